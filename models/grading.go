package models

// EvidenceItem is a slide-anchored quotation supporting a score or comment
type EvidenceItem struct {
	SlideNo int     `json:"slide_no"`
	Quote   string  `json:"quote"`
	Context *string `json:"context,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// DetectedPrinciple is the evaluation of one ethics principle found in the deck
type DetectedPrinciple struct {
	Principle         string  `json:"principle"`
	CorrectDefinition bool    `json:"correct_definition"`
	SceneMatch        bool    `json:"scene_match"`
	Note              *string `json:"note,omitempty"`
}

// RubricScore is the score for a single rubric category
type RubricScore struct {
	Category            string              `json:"category"`
	Score               float64             `json:"score"`
	MaxScore            float64             `json:"max_score"`
	Reason              string              `json:"reason"`
	Evidence            []EvidenceItem      `json:"evidence"`
	SubScores           map[string]float64  `json:"sub_scores,omitempty"`
	DetectedPrinciples  []DetectedPrinciple `json:"detected_principles,omitempty"`
	ConsistencyAnalysis *string             `json:"consistency_analysis,omitempty"`
	FoundFields         []string            `json:"found_fields,omitempty"`
	MissingFields       []string            `json:"missing_fields,omitempty"`
	LanguageErrors      []string            `json:"language_errors,omitempty"`
}

// ImprovementSuggestion is an actionable suggestion tied to a rubric category.
// Priority is one of "high", "medium", "low".
type ImprovementSuggestion struct {
	Category   string `json:"category"`
	Suggestion string `json:"suggestion"`
	Priority   string `json:"priority"`
}

// GradingResult is the complete grading outcome for one presentation.
// TotalScore is always within [0, 100].
type GradingResult struct {
	TotalScore        float64                 `json:"total_score"`
	RubricScores      []RubricScore           `json:"rubric_scores"`
	MissingItems      []string                `json:"missing_items"`
	Improvements      []ImprovementSuggestion `json:"improvements"`
	OnTimeSubmitted   bool                    `json:"on_time_submitted"`
	GradingNotes      *string                 `json:"grading_notes,omitempty"`
	OverallEvaluation *string                 `json:"overall_evaluation,omitempty"`
}

// ContentStats summarizes the extractable content of a parsed deck
type ContentStats struct {
	TotalSlides      int     `json:"total_slides"`
	TotalCharacters  int     `json:"total_characters"`
	AvgCharsPerSlide float64 `json:"avg_chars_per_slide"`
}

// AnalyzeResponse is the response envelope for single-file analysis
type AnalyzeResponse struct {
	Success       bool           `json:"success"`
	Result        *GradingResult `json:"result"`
	Error         *string        `json:"error"`
	ParsedContent *ParsedDeck    `json:"parsed_content"`
}

// StudentResult is the outcome for one student in bulk grading
type StudentResult struct {
	StudentName string         `json:"student_name"`
	Filename    string         `json:"filename"`
	Success     bool           `json:"success"`
	Result      *GradingResult `json:"result"`
	Error       *string        `json:"error"`
}

// BulkAnalyzeResponse is the response envelope for bulk analysis
type BulkAnalyzeResponse struct {
	TotalFiles int             `json:"total_files"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Results    []StudentResult `json:"results"`
}

// HealthResponse is the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
