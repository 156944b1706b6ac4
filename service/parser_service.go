package service

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"deckgrader-backend/models"

	"github.com/google/uuid"
)

var (
	// Go's \s is ASCII-only; PPTX runs routinely carry NBSP and other
	// Unicode whitespace, so the class is widened to match them all.
	whitespacePattern = regexp.MustCompile(`[\s\v\x{1c}-\x{1f}\x{85}\p{Z}]+`)
	slidePathPattern  = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// ParserService extracts structured content from PPTX files
type ParserService struct{}

// NewParserService creates a new parser service
func NewParserService() *ParserService {
	return &ParserService{}
}

// SearchMatch pairs a matching element with the slide it was found on
type SearchMatch struct {
	SlideNo int                `json:"slide_no"`
	Element models.TextElement `json:"element"`
}

type xmlPresentation struct {
	SldIdLst struct {
		SldIds []struct {
			RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sldId"`
	} `xml:"sldIdLst"`
	SldSz struct {
		CX float64 `xml:"cx,attr"`
		CY float64 `xml:"cy,attr"`
	} `xml:"sldSz"`
}

type xmlRelationships struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// Parse reads a PPTX container and extracts its normalized document model.
// Slides are 1-indexed in presentation order; shapes whose text normalizes
// to the empty string are not materialized.
func (s *ParserService) Parse(content []byte) (*models.ParsedDeck, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pptx container: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	presFile, ok := files["ppt/presentation.xml"]
	if !ok {
		return nil, fmt.Errorf("ppt/presentation.xml not found in archive")
	}
	presData, err := readZipFile(presFile)
	if err != nil {
		return nil, fmt.Errorf("read presentation.xml: %w", err)
	}

	var pres xmlPresentation
	if err := xml.Unmarshal(presData, &pres); err != nil {
		return nil, fmt.Errorf("parse presentation.xml: %w", err)
	}

	slideIDs := make([]string, 0, len(pres.SldIdLst.SldIds))
	for _, sld := range pres.SldIdLst.SldIds {
		slideIDs = append(slideIDs, sld.RID)
	}
	targets := s.slideTargets(files, slideIDs)

	meta := models.DeckMeta{
		SlideWidth:  pres.SldSz.CX,
		SlideHeight: pres.SldSz.CY,
		Units:       "EMU",
		TotalSlides: len(targets),
	}

	slides := make([]models.SlideData, 0, len(targets))
	for i, target := range targets {
		slideFile, ok := files[target]
		if !ok {
			return nil, fmt.Errorf("slide part %s not found in archive", target)
		}
		rc, err := slideFile.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", target, err)
		}
		elements, err := extractSlideElements(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", target, err)
		}
		slides = append(slides, models.SlideData{SlideNo: i + 1, Elements: elements})
	}

	return &models.ParsedDeck{Meta: meta, Slides: slides}, nil
}

// slideTargets resolves slide part names in presentation order from the
// relationship table, falling back to numeric slide file order when the
// relationships are missing or incomplete.
func (s *ParserService) slideTargets(files map[string]*zip.File, slideIDs []string) []string {
	relFile, ok := files["ppt/_rels/presentation.xml.rels"]
	if !ok || len(slideIDs) == 0 {
		return sortedSlidePaths(files)
	}
	relData, err := readZipFile(relFile)
	if err != nil {
		return sortedSlidePaths(files)
	}
	var rels xmlRelationships
	if err := xml.Unmarshal(relData, &rels); err != nil {
		return sortedSlidePaths(files)
	}

	byID := make(map[string]string, len(rels.Rels))
	for _, rel := range rels.Rels {
		byID[rel.ID] = rel.Target
	}

	targets := make([]string, 0, len(slideIDs))
	for _, id := range slideIDs {
		target, ok := byID[id]
		if !ok {
			return sortedSlidePaths(files)
		}
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else {
			target = path.Join("ppt", target)
		}
		targets = append(targets, target)
	}
	return targets
}

func sortedSlidePaths(files map[string]*zip.File) []string {
	type numberedSlide struct {
		no   int
		name string
	}
	var found []numberedSlide
	for name := range files {
		m := slidePathPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		no, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, numberedSlide{no: no, name: name})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].no < found[j].no })

	paths := make([]string, 0, len(found))
	for _, f := range found {
		paths = append(paths, f.name)
	}
	return paths
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// extractSlideElements token-walks a slide XML part and collects one text
// element per text-bearing shape. Style is captured from the first non-empty
// run that carries each attribute; later runs never override it.
func extractSlideElements(r io.Reader) ([]models.TextElement, error) {
	decoder := xml.NewDecoder(r)

	var elements []models.TextElement
	var inShape, inShapeProps, inXfrm, inTextBody, inRun, inText bool
	var bbox models.BoundingBox
	var style models.TextStyle
	var paragraphs, paraParts []string
	var runText strings.Builder
	var runStyle models.TextStyle

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode slide xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp":
				inShape = true
				bbox = models.BoundingBox{}
				style = models.TextStyle{}
				paragraphs = nil
			case "spPr":
				if inShape {
					inShapeProps = true
				}
			case "xfrm":
				if inShapeProps {
					inXfrm = true
				}
			case "off":
				if inXfrm {
					bbox.X = attrFloat(t, "x")
					bbox.Y = attrFloat(t, "y")
				}
			case "ext":
				if inXfrm {
					bbox.W = attrFloat(t, "cx")
					bbox.H = attrFloat(t, "cy")
				}
			case "txBody":
				if inShape {
					inTextBody = true
				}
			case "p":
				if inTextBody {
					paraParts = nil
				}
			case "r":
				if inTextBody {
					inRun = true
					runText.Reset()
					runStyle = models.TextStyle{}
				}
			case "rPr":
				if inRun {
					for _, attr := range t.Attr {
						switch attr.Name.Local {
						case "sz":
							if v, err := strconv.ParseFloat(attr.Value, 64); err == nil {
								pt := v / 100 // sz is in hundredths of a point
								runStyle.FontSize = &pt
							}
						case "b":
							b := attr.Value == "1" || attr.Value == "true"
							runStyle.Bold = &b
						}
					}
				}
			case "latin":
				if inRun {
					for _, attr := range t.Attr {
						if attr.Name.Local == "typeface" && attr.Value != "" {
							name := attr.Value
							runStyle.FontName = &name
						}
					}
				}
			case "t":
				if inRun {
					inText = true
				}
			}

		case xml.CharData:
			if inText {
				runText.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				if !inRun {
					continue
				}
				inRun = false
				if text := runText.String(); text != "" {
					paraParts = append(paraParts, text)
					if style.FontSize == nil {
						style.FontSize = runStyle.FontSize
					}
					if style.Bold == nil {
						style.Bold = runStyle.Bold
					}
					if style.FontName == nil {
						style.FontName = runStyle.FontName
					}
				}
			case "p":
				if inTextBody && len(paraParts) > 0 {
					paragraphs = append(paragraphs, strings.Join(paraParts, ""))
					paraParts = nil
				}
			case "txBody":
				inTextBody = false
			case "xfrm":
				inXfrm = false
			case "spPr":
				inShapeProps = false
			case "sp":
				if !inShape {
					continue
				}
				inShape = false
				rawText := strings.Join(paragraphs, "\n")
				text := normalizeText(rawText)
				if text == "" {
					continue
				}
				elements = append(elements, models.TextElement{
					ID:      uuid.New().String()[:8],
					Type:    "text",
					Text:    text,
					RawText: strings.TrimSpace(rawText),
					BBox:    bbox,
					Style:   style,
				})
			}
		}
	}

	return elements, nil
}

func attrFloat(el xml.StartElement, name string) float64 {
	for _, attr := range el.Attr {
		if attr.Name.Local == name {
			if v, err := strconv.ParseFloat(attr.Value, 64); err == nil {
				return v
			}
		}
	}
	return 0
}

// normalizeText collapses every maximal whitespace run (newlines and Unicode
// whitespace included) into a single space and trims the ends. Idempotent.
func normalizeText(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// TextInRegion returns the elements whose bounding-box center falls within
// the closed rectangle given as ratios (0-1) of the deck dimensions.
// Ratios are caller-supplied and not range-checked.
func (s *ParserService) TextInRegion(
	slide models.SlideData,
	meta models.DeckMeta,
	xMinRatio, xMaxRatio, yMinRatio, yMaxRatio float64,
) []models.TextElement {
	xMin := meta.SlideWidth * xMinRatio
	xMax := meta.SlideWidth * xMaxRatio
	yMin := meta.SlideHeight * yMinRatio
	yMax := meta.SlideHeight * yMaxRatio

	var matching []models.TextElement
	for _, el := range slide.Elements {
		cx := el.BBox.CenterX()
		cy := el.BBox.CenterY()
		if xMin <= cx && cx <= xMax && yMin <= cy && cy <= yMax {
			matching = append(matching, el)
		}
	}
	return matching
}

// SearchText returns all elements whose normalized text matches the pattern,
// in slide-then-element order. Matching is case-insensitive by default.
func (s *ParserService) SearchText(deck *models.ParsedDeck, pattern string, caseSensitive bool) ([]SearchMatch, error) {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile search pattern: %w", err)
	}

	var matches []SearchMatch
	for _, slide := range deck.Slides {
		for _, el := range slide.Elements {
			if re.MatchString(el.Text) {
				matches = append(matches, SearchMatch{SlideNo: slide.SlideNo, Element: el})
			}
		}
	}
	return matches, nil
}
