package service

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"deckgrader-backend/models"
)

const (
	// MinTextLength is the minimum total normalized character count
	MinTextLength = 300

	// MaxFileSize is the maximum accepted file size (15 MiB)
	MaxFileSize = 15 * 1024 * 1024
)

// zipMagic is the fixed 4-byte signature of a ZIP-based container
var zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

type deckParser interface {
	Parse(content []byte) (*models.ParsedDeck, error)
}

// GateService performs deterministic validation checks before AI processing
type GateService struct {
	parser deckParser
}

// GateServiceOption is a functional option for GateService
type GateServiceOption func(*GateService)

// GateWithParser sets the deck parser
func GateWithParser(p deckParser) GateServiceOption {
	return func(s *GateService) {
		s.parser = p
	}
}

// NewGateService creates a new gate service
func NewGateService(opts ...GateServiceOption) *GateService {
	s := &GateService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = NewParserService()
	}
	return s
}

// ValidateFile runs the gate checks in order, short-circuiting on the first
// failure. The parser is only invoked once the signature check has passed;
// a parse failure is reported as a gate failure, never returned as an error.
func (s *GateService) ValidateFile(content []byte) (bool, string, *models.ParsedDeck) {
	// 1. File size
	if len(content) > MaxFileSize {
		return false, fmt.Sprintf("Dosya boyutu çok büyük. Maksimum: %dMB", MaxFileSize/(1024*1024)), nil
	}

	// 2. ZIP signature
	if len(content) < len(zipMagic) || !bytes.Equal(content[:len(zipMagic)], zipMagic) {
		return false, "Geçersiz PPTX dosyası", nil
	}

	// 3. Parse attempt
	deck, err := s.parser.Parse(content)
	if err != nil {
		return false, fmt.Sprintf("PPTX ayrıştırma hatası: %s", err), nil
	}

	// 4. Non-empty deck
	if deck.Meta.TotalSlides == 0 {
		return false, "Sunum boş veya slayt içermiyor", nil
	}

	// 5. Minimum content
	total := totalTextLength(deck)
	if total < MinTextLength {
		return false, fmt.Sprintf("Yetersiz içerik. Minimum %d karakter gerekli, %d karakter bulundu", MinTextLength, total), nil
	}

	return true, "OK", deck
}

// ContentStats returns content statistics for a parsed deck
func (s *GateService) ContentStats(deck *models.ParsedDeck) models.ContentStats {
	total := totalTextLength(deck)
	slideCount := deck.Meta.TotalSlides

	stats := models.ContentStats{
		TotalSlides:     slideCount,
		TotalCharacters: total,
	}
	if slideCount > 0 {
		stats.AvgCharsPerSlide = float64(total) / float64(slideCount)
	}
	return stats
}

func totalTextLength(deck *models.ParsedDeck) int {
	total := 0
	for _, slide := range deck.Slides {
		for _, el := range slide.Elements {
			total += utf8.RuneCountInString(el.Text)
		}
	}
	return total
}
