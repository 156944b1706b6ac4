package models

// BoundingBox represents the position and size of an element on a slide,
// in the deck's native length unit (EMU)
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// CenterX returns the horizontal center of the box
func (b BoundingBox) CenterX() float64 {
	return b.X + b.W/2
}

// CenterY returns the vertical center of the box
func (b BoundingBox) CenterY() float64 {
	return b.Y + b.H/2
}

// TextStyle holds best-effort style information captured from the first
// run that carried each attribute
type TextStyle struct {
	FontSize *float64 `json:"font_size,omitempty"`
	Bold     *bool    `json:"bold,omitempty"`
	FontName *string  `json:"font_name,omitempty"`
}

// TextElement is a single text-bearing shape extracted from a slide.
// Text is whitespace-normalized; RawText keeps the verbatim (trimmed)
// content for evidence quoting.
type TextElement struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Text    string      `json:"text"`
	RawText string      `json:"raw_text"`
	BBox    BoundingBox `json:"bbox"`
	Style   TextStyle   `json:"style"`
}

// SlideData holds the extracted elements of a single slide.
// SlideNo is 1-indexed and matches extraction order.
type SlideData struct {
	SlideNo  int           `json:"slide_no"`
	Elements []TextElement `json:"elements"`
}

// DeckMeta holds presentation-level metadata
type DeckMeta struct {
	SlideWidth  float64 `json:"slide_width"`
	SlideHeight float64 `json:"slide_height"`
	Units       string  `json:"units"`
	TotalSlides int     `json:"total_slides"`
}

// ParsedDeck is the complete normalized document model produced by the parser
type ParsedDeck struct {
	Meta   DeckMeta    `json:"meta"`
	Slides []SlideData `json:"slides"`
}
