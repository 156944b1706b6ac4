package service

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"deckgrader-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPPTX assembles a minimal PPTX container in memory from slide XML
// parts, with deck dimensions 9144000x6858000 EMU.
func buildPPTX(t *testing.T, slideXMLs ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	write := func(name, content string) {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}

	var sldIds, rels strings.Builder
	for i := range slideXMLs {
		fmt.Fprintf(&sldIds, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+1)
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`, i+1, i+1)
	}

	write("ppt/presentation.xml", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<p:sldIdLst>%s</p:sldIdLst>
<p:sldSz cx="9144000" cy="6858000"/>
</p:presentation>`, sldIds.String()))

	write("ppt/_rels/presentation.xml.rels", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">%s</Relationships>`, rels.String()))

	for i, slide := range slideXMLs {
		write(fmt.Sprintf("ppt/slides/slide%d.xml", i+1), slide)
	}

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func slideXML(shapes ...string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<p:cSld><p:spTree>%s</p:spTree></p:cSld>
</p:sld>`, strings.Join(shapes, ""))
}

func textShape(x, y, w, h int64, text string) string {
	return fmt.Sprintf(`<p:sp><p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm></p:spPr><p:txBody><a:p><a:r><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp>`, x, y, w, h, text)
}

func TestParseDeckStructure(t *testing.T) {
	content := buildPPTX(t,
		slideXML(textShape(100, 200, 300, 400, "Film: Kurtlar Vadisi")),
		slideXML(textShape(0, 0, 500, 500, "Adalet ilkesi")),
	)

	parser := NewParserService()
	deck, err := parser.Parse(content)
	require.NoError(t, err)

	assert.Equal(t, 9144000.0, deck.Meta.SlideWidth)
	assert.Equal(t, 6858000.0, deck.Meta.SlideHeight)
	assert.Equal(t, "EMU", deck.Meta.Units)
	assert.Equal(t, 2, deck.Meta.TotalSlides)

	require.Len(t, deck.Slides, 2)
	assert.Equal(t, 1, deck.Slides[0].SlideNo)
	assert.Equal(t, 2, deck.Slides[1].SlideNo)

	require.Len(t, deck.Slides[0].Elements, 1)
	el := deck.Slides[0].Elements[0]
	assert.Equal(t, "Film: Kurtlar Vadisi", el.Text)
	assert.Equal(t, "Film: Kurtlar Vadisi", el.RawText)
	assert.Equal(t, "text", el.Type)
	assert.NotEmpty(t, el.ID)
	assert.Equal(t, models.BoundingBox{X: 100, Y: 200, W: 300, H: 400}, el.BBox)
}

func TestParseSlideNumberingWithEmptySlides(t *testing.T) {
	content := buildPPTX(t,
		slideXML(textShape(0, 0, 100, 100, "first")),
		slideXML(), // no shapes at all
		slideXML(textShape(0, 0, 100, 100, "third")),
	)

	parser := NewParserService()
	deck, err := parser.Parse(content)
	require.NoError(t, err)

	assert.Equal(t, 3, deck.Meta.TotalSlides)
	require.Len(t, deck.Slides, 3)
	for i, slide := range deck.Slides {
		assert.Equal(t, i+1, slide.SlideNo)
	}
	assert.Empty(t, deck.Slides[1].Elements)
}

func TestParseDropsWhitespaceOnlyShapes(t *testing.T) {
	content := buildPPTX(t,
		slideXML(
			textShape(0, 0, 100, 100, "   "),
			textShape(0, 0, 100, 100, "gerçek içerik"),
		),
	)

	parser := NewParserService()
	deck, err := parser.Parse(content)
	require.NoError(t, err)

	require.Len(t, deck.Slides[0].Elements, 1)
	assert.Equal(t, "gerçek içerik", deck.Slides[0].Elements[0].Text)
}

func TestParseMultiParagraphShape(t *testing.T) {
	shape := `<p:sp><p:spPr/><p:txBody>` +
		`<a:p><a:r><a:t>Birinci   satır</a:t></a:r></a:p>` +
		`<a:p></a:p>` +
		`<a:p><a:r><a:t>İkinci satır</a:t></a:r></a:p>` +
		`</p:txBody></p:sp>`
	content := buildPPTX(t, slideXML(shape))

	parser := NewParserService()
	deck, err := parser.Parse(content)
	require.NoError(t, err)

	require.Len(t, deck.Slides[0].Elements, 1)
	el := deck.Slides[0].Elements[0]
	// Empty paragraphs are skipped; surviving ones join with a newline.
	assert.Equal(t, "Birinci   satır\nİkinci satır", el.RawText)
	assert.Equal(t, "Birinci satır İkinci satır", el.Text)
	// Geometry absent from the shape defaults to zero.
	assert.Equal(t, models.BoundingBox{}, el.BBox)
}

func TestParseStyleFirstRunWins(t *testing.T) {
	shape := `<p:sp><p:spPr/><p:txBody><a:p>` +
		`<a:r><a:rPr sz="1800" b="1"><a:latin typeface="Arial"/></a:rPr><a:t>Başlık </a:t></a:r>` +
		`<a:r><a:rPr sz="2400" b="0"><a:latin typeface="Times New Roman"/></a:rPr><a:t>devamı</a:t></a:r>` +
		`</a:p></p:txBody></p:sp>`
	content := buildPPTX(t, slideXML(shape))

	parser := NewParserService()
	deck, err := parser.Parse(content)
	require.NoError(t, err)

	require.Len(t, deck.Slides[0].Elements, 1)
	style := deck.Slides[0].Elements[0].Style
	require.NotNil(t, style.FontSize)
	assert.Equal(t, 18.0, *style.FontSize)
	require.NotNil(t, style.Bold)
	assert.True(t, *style.Bold)
	require.NotNil(t, style.FontName)
	assert.Equal(t, "Arial", *style.FontName)

	assert.Equal(t, "Başlık devamı", deck.Slides[0].Elements[0].Text)
}

func TestParseStyleFromFirstStyledRun(t *testing.T) {
	// The first run carries no style; attributes come from the first run
	// that has them.
	shape := `<p:sp><p:spPr/><p:txBody><a:p>` +
		`<a:r><a:t>düz </a:t></a:r>` +
		`<a:r><a:rPr sz="2000"/><a:t>boyutlu</a:t></a:r>` +
		`</a:p></p:txBody></p:sp>`
	content := buildPPTX(t, slideXML(shape))

	parser := NewParserService()
	deck, err := parser.Parse(content)
	require.NoError(t, err)

	style := deck.Slides[0].Elements[0].Style
	require.NotNil(t, style.FontSize)
	assert.Equal(t, 20.0, *style.FontSize)
	assert.Nil(t, style.Bold)
	assert.Nil(t, style.FontName)
}

func TestParseRejectsNonContainer(t *testing.T) {
	parser := NewParserService()
	_, err := parser.Parse([]byte("definitely not a zip archive"))
	require.Error(t, err)
}

func TestParseRejectsContainerWithoutPresentation(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	f.Write([]byte("<doc/>"))
	require.NoError(t, w.Close())

	parser := NewParserService()
	_, err = parser.Parse(buf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presentation.xml")
}

func TestNormalizeTextIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"tek",
		"  çok \n\n fazla\t boşluk  ",
		"satır\nsonu\r\nkarışık",
		"already normalized",
		"sert boşluk",
		"dar boşluk ve　geniş",
	}
	for _, in := range inputs {
		once := normalizeText(in)
		assert.Equal(t, once, normalizeText(once), "input %q", in)
	}
}

func TestNormalizeTextUnicodeWhitespace(t *testing.T) {
	cases := map[string]string{
		"a b":             "a b", // no-break space
		"a  b":       "a b",
		"a\vb":                 "a b", // vertical tab
		"a b":             "a b", // line separator
		"a \tb":           "a b", // em space mixed with ASCII
		" kenarlar　": "kenarlar",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeText(in), "input %q", in)
	}
}

func TestTextInRegionCenterSemantics(t *testing.T) {
	meta := models.DeckMeta{SlideWidth: 1000, SlideHeight: 1000, Units: "EMU", TotalSlides: 1}
	slide := models.SlideData{
		SlideNo: 1,
		Elements: []models.TextElement{
			{ID: "inside", Text: "a", BBox: models.BoundingBox{X: 0, Y: 0, W: 400, H: 400}},      // center (200, 200)
			{ID: "edge", Text: "b", BBox: models.BoundingBox{X: 400, Y: 400, W: 200, H: 200}},    // center (500, 500)
			{ID: "outside", Text: "c", BBox: models.BoundingBox{X: 600, Y: 600, W: 300, H: 300}}, // center (750, 750)
		},
	}

	parser := NewParserService()
	matches := parser.TextInRegion(slide, meta, 0, 0.5, 0, 0.5)

	require.Len(t, matches, 2)
	assert.Equal(t, "inside", matches[0].ID)
	// The interval is closed: an element centered exactly on the boundary is included.
	assert.Equal(t, "edge", matches[1].ID)
}

func TestSearchText(t *testing.T) {
	deck := &models.ParsedDeck{
		Meta: models.DeckMeta{TotalSlides: 2},
		Slides: []models.SlideData{
			{SlideNo: 1, Elements: []models.TextElement{{ID: "a", Text: "Film Adı: Matrix"}}},
			{SlideNo: 2, Elements: []models.TextElement{
				{ID: "b", Text: "film sahnesi analizi"},
				{ID: "c", Text: "yönetmen"},
			}},
		},
	}

	parser := NewParserService()

	matches, err := parser.SearchText(deck, "film", false)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].SlideNo)
	assert.Equal(t, "a", matches[0].Element.ID)
	assert.Equal(t, 2, matches[1].SlideNo)
	assert.Equal(t, "b", matches[1].Element.ID)

	matches, err = parser.SearchText(deck, "film", true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Element.ID)

	_, err = parser.SearchText(deck, "(", false)
	require.Error(t, err)
}
