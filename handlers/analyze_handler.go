package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"deckgrader-backend/models"

	"github.com/gin-gonic/gin"
)

// Gate validates raw deck bytes before grading
type Gate interface {
	ValidateFile(content []byte) (bool, string, *models.ParsedDeck)
}

// Grader produces a grading result for a validated deck
type Grader interface {
	Grade(ctx context.Context, deck *models.ParsedDeck, onTime bool) (*models.GradingResult, error)
}

// summaryCategories are the fixed rubric categories reported in the export,
// in column order
var summaryCategories = []string{
	"Etik Ilkeleri",
	"Sahne Aciklamasi",
	"Sablon Uyumu",
	"Gorsel Tasarim",
	"Zamanında Teslim",
}

// AnalyzeHandler handles HTTP requests for deck analysis and grading
type AnalyzeHandler struct {
	gate   Gate
	grader Grader
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(gate Gate, grader Grader) *AnalyzeHandler {
	return &AnalyzeHandler{
		gate:   gate,
		grader: grader,
	}
}

// Analyze handles POST /api/analyze
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "Dosya gerekli",
			},
		})
		return
	}

	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pptx") {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_FILE_TYPE",
				"message": "Sadece .pptx dosyaları kabul edilir",
			},
		})
		return
	}

	content, err := readUpload(fileHeader)
	if err != nil {
		log.Printf("Error reading upload %s: %v", fileHeader.Filename, err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "READ_FAILED",
				"message": "Dosya okunamadı",
			},
		})
		return
	}

	onTime := c.PostForm("on_time") == "true"

	ok, message, deck := h.gate.ValidateFile(content)
	if !ok {
		c.JSON(http.StatusOK, models.AnalyzeResponse{
			Success: false,
			Error:   &message,
		})
		return
	}

	result, err := h.grader.Grade(c.Request.Context(), deck, onTime)
	if err != nil {
		log.Printf("Grading error for %s: %v", fileHeader.Filename, err)
		errMsg := err.Error()
		c.JSON(http.StatusOK, models.AnalyzeResponse{
			Success: false,
			Error:   &errMsg,
		})
		return
	}

	c.JSON(http.StatusOK, models.AnalyzeResponse{
		Success: true,
		Result:  result,
	})
}

// AnalyzeBulk handles POST /api/analyze-bulk
func (h *AnalyzeHandler) AnalyzeBulk(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILES",
				"message": "En az bir dosya gerekli",
			},
		})
		return
	}

	onTime := c.PostForm("on_time") == "true"
	response := h.processBulk(c.Request.Context(), form.File["files"], onTime)
	c.JSON(http.StatusOK, response)
}

// processBulk grades each file strictly in order, isolating failures per
// item: a failing item is recorded and the remaining items still run.
func (h *AnalyzeHandler) processBulk(ctx context.Context, files []*multipart.FileHeader, onTime bool) models.BulkAnalyzeResponse {
	results := make([]models.StudentResult, 0, len(files))

	for _, fileHeader := range files {
		filename := fileHeader.Filename
		if filename == "" {
			filename = "unknown.pptx"
		}
		studentName := extractStudentName(filename)

		if !strings.HasSuffix(strings.ToLower(filename), ".pptx") {
			results = append(results, failedStudent(studentName, filename, "Sadece .pptx dosyaları kabul edilir"))
			continue
		}

		content, err := readUpload(fileHeader)
		if err != nil {
			log.Printf("Error reading %s: %v", filename, err)
			results = append(results, failedStudent(studentName, filename, err.Error()))
			continue
		}

		ok, message, deck := h.gate.ValidateFile(content)
		if !ok {
			results = append(results, failedStudent(studentName, filename, message))
			continue
		}

		result, err := h.grader.Grade(ctx, deck, onTime)
		if err != nil {
			log.Printf("Error grading %s: %v", filename, err)
			results = append(results, failedStudent(studentName, filename, err.Error()))
			continue
		}

		results = append(results, models.StudentResult{
			StudentName: studentName,
			Filename:    filename,
			Success:     true,
			Result:      result,
		})
	}

	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}

	return models.BulkAnalyzeResponse{
		TotalFiles: len(results),
		Successful: successful,
		Failed:     len(results) - successful,
		Results:    results,
	}
}

// ExportCSV handles POST /api/export-csv: runs the bulk flow and streams a
// per-student score summary
func (h *AnalyzeHandler) ExportCSV(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILES",
				"message": "En az bir dosya gerekli",
			},
		})
		return
	}

	onTime := c.PostForm("on_time") == "true"
	response := h.processBulk(c.Request.Context(), form.File["files"], onTime)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"#", "Öğrenci Adı", "Dosya Adı", "Durum", "Toplam Puan"}
	for _, cat := range summaryCategories {
		header = append(header, cat+" Puanı")
	}
	header = append(header, "Genel Değerlendirme")
	w.Write(header)

	for i, result := range response.Results {
		row := []string{strconv.Itoa(i + 1), result.StudentName, result.Filename}
		if result.Success {
			row = append(row, "Başarılı", formatScore(result.Result.TotalScore))
			for _, cat := range summaryCategories {
				row = append(row, formatScore(categoryScore(result.Result, cat)))
			}
			overall := ""
			if result.Result.OverallEvaluation != nil {
				overall = *result.Result.OverallEvaluation
			}
			row = append(row, overall)
		} else {
			row = append(row, "Hata", "-")
			for range summaryCategories {
				row = append(row, "-")
			}
			errMsg := "Bilinmeyen hata"
			if result.Error != nil {
				errMsg = *result.Error
			}
			row = append(row, errMsg)
		}
		w.Write(row)
	}

	writeDetailSection(w, response.Results)
	w.Flush()

	c.Header("Content-Disposition", `attachment; filename=ogrenci_puanlari.csv`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// writeDetailSection appends the per-student breakdown below the summary:
// one row per rubric entry plus one per improvement suggestion, for each
// successfully graded student
func writeDetailSection(w *csv.Writer, results []models.StudentResult) {
	w.Write([]string{})
	w.Write([]string{"Öğrenci Adı", "Kategori", "Puan", "Max Puan", "Açıklama"})

	for _, result := range results {
		if !result.Success {
			continue
		}
		for _, rubric := range result.Result.RubricScores {
			w.Write([]string{
				result.StudentName,
				rubric.Category,
				formatScore(rubric.Score),
				formatScore(rubric.MaxScore),
				rubric.Reason,
			})
		}
		for _, imp := range result.Result.Improvements {
			w.Write([]string{
				result.StudentName,
				imp.Category,
				"",
				"",
				fmt.Sprintf("Öneri (%s): %s", imp.Priority, imp.Suggestion),
			})
		}
	}
}

// ParseOnly handles POST /api/parse: parse and validate without grading,
// for debugging and testing
func (h *AnalyzeHandler) ParseOnly(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil || !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pptx") {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_FILE_TYPE",
				"message": "Sadece .pptx dosyaları kabul edilir",
			},
		})
		return
	}

	content, err := readUpload(fileHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "READ_FAILED",
				"message": "Dosya okunamadı",
			},
		})
		return
	}

	ok, message, deck := h.gate.ValidateFile(content)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": message,
			},
		})
		return
	}

	c.JSON(http.StatusOK, deck)
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func failedStudent(studentName, filename, message string) models.StudentResult {
	return models.StudentResult{
		StudentName: studentName,
		Filename:    filename,
		Success:     false,
		Error:       &message,
	}
}

// extractStudentName derives a display name from an isim_soyisim.pptx
// style filename
func extractStudentName(filename string) string {
	name := strings.ToLower(filename)
	name = strings.TrimSuffix(name, ".pptx")
	name = strings.ReplaceAll(name, "_", " ")

	words := strings.Fields(name)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func categoryScore(result *models.GradingResult, category string) float64 {
	for _, rubric := range result.RubricScores {
		if rubric.Category == category {
			return rubric.Score
		}
	}
	return 0
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
