package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"deckgrader-backend/models"

	"github.com/google/generative-ai-go/genai"
)

// The grading prompt is delivered to the model in Turkish; the rubric text,
// the localized response field names, and the category names are part of the
// external contract and must stay verbatim.
const gradingSystemPrompt = `Sen bir üniversite etik dersi ödev değerlendirme uzmanısın. Öğrenci sunumlarını (PowerPoint) derinlemesine analiz edip değerlendiriyorsun.

## GÖREV
Verilen sunum içeriğini aşağıdaki rubriğe göre kapsamlı şekilde değerlendir. Tüm değerlendirmeyi sen yapacaksın.

## ÖNEMLİ NOT
Filmin gerçek sahnelerini bilemeyebilirsin. Bu nedenle:
- Sahnenin gerçekten filmde olup olmadığını doğrulayamazsın
- AMA şunları değerlendirebilirsin:
  * Açıklamanın kendi içinde tutarlı olup olmadığı
  * Anlatımın mantıksal bütünlüğü
  * Etik ilke ile sahne arasındaki bağlantının mantıklı olup olmadığı
  * Yazının kalitesi ve akademik düzeyi

## RUBRİK (Toplam 100 puan)

### 1. ETİK İLKELERİ DOĞRULUĞU VE UYGULAMASI (15 puan)

Öğrencinin sunumunda hangi etik ilkelerinden bahsettiğini bul ve değerlendir:

a) İLKE TANIMI DOĞRULUĞU (5 puan):
   - Etik ilkesi doğru tanımlanmış mı?
   - Tanım akademik/felsefi açıdan kabul edilebilir mi?
   - Yanlış veya eksik tanımlar varsa puan düşür

b) İLKE-SAHNE UYUMU (5 puan):
   - Verilen sahne gerçekten bu etik ilkeyi yansıtıyor mu?
   - Öğrenci doğru etik ilkeyi mi seçmiş?

c) AÇIKLAMA KALİTESİ (5 puan):
   - Etik ilke ile sahne arasındaki bağlantı açık mı?
   - Mantıksal çıkarım doğru mu?

Minimum 5 farklı etik ilkesi gerekli. 5'ten az varsa ciddi puan kesintisi yap.

### 2. SAHNE AÇIKLAMASI KALİTESİ (50 puan)

a) ÖZGÜLLÜK VE DETAY (0-20 puan):
   - Sahne somut ve detaylı anlatılmış mı?
   - Karakterlerin isimleri, diyaloglar, olayların sırası var mı?

b) İÇ TUTARLILIK (0-15 puan):
   - Anlatılan olaylar kendi içinde tutarlı mı?
   - Mantık hataları veya çelişkiler var mı?

c) ETİK BAĞLANTISI (0-15 puan):
   - Sahne ile etik ilke arasındaki bağ açıkça kurulmuş mu?
   - Analiz yüzeysel mi derin mi?

### 3. ŞABLON UYUMU (15 puan)

Sunumda şu alanları ara:
- Film adı (2 puan)
- Tür/Genre (2 puan)
- Yönetmen (2 puan)
- Senarist (1 puan)
- Oyuncular (1 puan)
- Kişisel düşünceler/değerlendirme (2 puan)
- Sayfa numaraları (2 puan)
- Genel düzen ve format (3 puan)

### 4. GÖRSEL TASARIM VE SUNUM KALİTESİ (10 puan)

a) METİN KALİTESİ (5 puan):
   - Yazım ve dilbilgisi hataları
   - Akademik dil kullanımı

b) DÜZEN (5 puan):
   - Bilgi mantıklı organize edilmiş mi?
   - Profesyonel görünüm

### 5. ZAMANINDA TESLİM (10 puan)
- Bu kısım manuel olarak belirlenir, sen 0 puan ver

## DEĞERLENDİRME PRENSİPLERİ

1. Her puan için sunumdan somut alıntı (slayt numarası + metin) göster
2. Nesnel ol, kişisel görüşlerden kaçın
3. Yapıcı iyileştirme önerileri ver
4. Filmi bilmemen dezavantaj olmamalı - tutarlılık ve mantığı değerlendir

## JSON ÇIKTI FORMATI

{
  "toplam_puan": 75,
  "rubrik_puanlari": [
    {
      "kategori": "Etik Ilkeleri",
      "puan": 12,
      "max_puan": 15,
      "aciklama": "Degerlendirme aciklamasi",
      "kanitlar": [{"slayt_no": 1, "alinti": "Ornek alinti", "yorum": "Yorum"}],
      "alt_puanlar": {"ilke_tanimi": 4, "sahne_uyumu": 4, "aciklama": 4},
      "tespit_edilen_ilkeler": [{"ilke": "Adalet", "dogru_tanim": true, "sahne_uyumu": true, "not": "Aciklama"}]
    },
    {
      "kategori": "Sahne Aciklamasi",
      "puan": 35,
      "max_puan": 50,
      "aciklama": "Sahne degerlendirmesi",
      "kanitlar": [{"slayt_no": 2, "alinti": "Sahne alintisi", "yorum": "Yorum"}],
      "alt_puanlar": {"ozgulluk": 15, "tutarlilik": 10, "etik_baglantisi": 10},
      "tutarlilik_analizi": "Tutarlilik analizi"
    },
    {
      "kategori": "Sablon Uyumu",
      "puan": 12,
      "max_puan": 15,
      "aciklama": "Sablon degerlendirmesi",
      "kanitlar": [{"slayt_no": 1, "alinti": "Film adi vs"}],
      "alt_puanlar": {"alanlar": 8, "format": 4},
      "bulunan_alanlar": ["Film adi", "Yonetmen"],
      "eksik_alanlar": ["Senarist"]
    },
    {
      "kategori": "Gorsel Tasarim",
      "puan": 7,
      "max_puan": 10,
      "aciklama": "Tasarim degerlendirmesi",
      "kanitlar": [],
      "alt_puanlar": {"metin": 4, "duzen": 3},
      "dil_hatalari": []
    }
  ],
  "eksik_ogeler": ["Eksik oge 1"],
  "iyilestirme_onerileri": [{"kategori": "Genel", "oneri": "Oneri metni", "oncelik": "orta"}],
  "genel_degerlendirme": "Genel degerlendirme metni",
  "notlar": ""
}

ONEMLI: Sadece gecerli JSON dondur. JSON disinda metin olmasin.`

const gradingUserPromptTemplate = `Aşağıdaki öğrenci sunumunu değerlendir:

=== SUNUM İÇERİĞİ ===
%s

=== SUNUM BİLGİLERİ ===
Toplam slayt sayısı: %d
Toplam karakter sayısı: %d

Lütfen yukarıdaki rubriğe göre JSON formatında değerlendirme yap.`

const fixJSONPromptTemplate = `Önceki yanıtın geçerli JSON formatında değildi. Lütfen aşağıdaki hatayı düzelt ve SADECE geçerli JSON döndür:

Hata: %v

Beklenen format için sistem mesajındaki JSON şemasına bak.`

const (
	// DefaultModelName is used when no model identifier is configured
	DefaultModelName = "gemini-2.0-flash"

	firstCallTemperature float32 = 0.2
	retryTemperature     float32 = 0.1
	maxOutputTokens      int32   = 4000
)

var (
	// ErrModelNotConfigured is returned when grading is attempted without
	// model credentials; no network call is made in that case.
	ErrModelNotConfigured = errors.New("model API key not configured")
)

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// chatMessage is one turn of the model conversation
type chatMessage struct {
	role string // "user" or "model"
	text string
}

// generativeCaller is the seam to the external generative model
type generativeCaller interface {
	generate(ctx context.Context, system string, history []chatMessage, prompt string, temperature float32) (string, error)
}

// geminiCaller calls the Gemini API through the genai client
type geminiCaller struct {
	client    *genai.Client
	modelName string
}

func (g *geminiCaller) generate(ctx context.Context, system string, history []chatMessage, prompt string, temperature float32) (string, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(temperature)
	model.SetMaxOutputTokens(maxOutputTokens)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	session := model.StartChat()
	for _, msg := range history {
		session.History = append(session.History, &genai.Content{
			Role:  msg.role,
			Parts: []genai.Part{genai.Text(msg.text)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("model call: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("model returned no candidates")
	}

	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	if builder.Len() == 0 {
		return "", fmt.Errorf("model returned empty content")
	}
	return builder.String(), nil
}

// GraderService produces rubric-based grading results via the external model
type GraderService struct {
	client    *genai.Client
	modelName string
	caller    generativeCaller
}

// GraderServiceOption is a functional option for GraderService
type GraderServiceOption func(*GraderService)

// GraderWithClient sets the Gemini client
func GraderWithClient(client *genai.Client) GraderServiceOption {
	return func(s *GraderService) {
		s.client = client
	}
}

// GraderWithModel sets the model identifier
func GraderWithModel(name string) GraderServiceOption {
	return func(s *GraderService) {
		s.modelName = name
	}
}

// NewGraderService creates a new grader service
func NewGraderService(opts ...GraderServiceOption) *GraderService {
	s := &GraderService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.modelName == "" {
		s.modelName = DefaultModelName
	}
	if s.caller == nil && s.client != nil {
		s.caller = &geminiCaller{client: s.client, modelName: s.modelName}
	}
	return s
}

// gradeState enumerates the grading protocol states. The transition table in
// Grade makes the at-most-one-retry guarantee structural: only stateParse can
// enter stateRepairCall, and only once.
type gradeState int

const (
	stateBuildPrompt gradeState = iota
	stateCallModel
	stateParse
	stateRepairCall
	stateMerge
	stateFail
)

// Grade evaluates a parsed deck against the rubric. It issues at most two
// external calls: the initial request at a low temperature, plus a single
// repair request at a lower temperature when the first response does not
// survive local JSON repair and schema validation.
func (s *GraderService) Grade(ctx context.Context, deck *models.ParsedDeck, onTime bool) (*models.GradingResult, error) {
	if s.caller == nil {
		return nil, ErrModelNotConfigured
	}

	var (
		userPrompt string
		rawReply   string
		parsed     *models.LLMGradingResponse
		parseErr   error
		failErr    error
		repaired   bool
	)

	state := stateBuildPrompt
	for {
		switch state {
		case stateBuildPrompt:
			userPrompt = buildUserPrompt(deck)
			state = stateCallModel

		case stateCallModel:
			rawReply, failErr = s.caller.generate(ctx, gradingSystemPrompt, nil, userPrompt, firstCallTemperature)
			if failErr != nil {
				state = stateFail
			} else {
				state = stateParse
			}

		case stateParse:
			parsed, parseErr = parseModelResponse(rawReply)
			switch {
			case parseErr == nil:
				state = stateMerge
			case repaired:
				failErr = fmt.Errorf("model returned invalid JSON after retry: %w", parseErr)
				state = stateFail
			default:
				state = stateRepairCall
			}

		case stateRepairCall:
			repaired = true
			log.Printf("Warning: first model response invalid, retrying: %v", parseErr)
			history := []chatMessage{
				{role: "user", text: userPrompt},
				{role: "model", text: rawReply},
			}
			fixPrompt := fmt.Sprintf(fixJSONPromptTemplate, parseErr)
			rawReply, failErr = s.caller.generate(ctx, gradingSystemPrompt, history, fixPrompt, retryTemperature)
			if failErr != nil {
				state = stateFail
			} else {
				state = stateParse
			}

		case stateMerge:
			return assembleResult(parsed, onTime), nil

		case stateFail:
			return nil, failErr
		}
	}
}

// buildUserPrompt serializes the deck as labeled slide blocks of raw text
// plus slide and character counts.
func buildUserPrompt(deck *models.ParsedDeck) string {
	var parts []string
	for _, slide := range deck.Slides {
		parts = append(parts, fmt.Sprintf("\n[Slayt %d]", slide.SlideNo))
		for _, el := range slide.Elements {
			parts = append(parts, fmt.Sprintf("  • %s", el.RawText))
		}
	}
	slideContent := strings.Join(parts, "\n")
	return fmt.Sprintf(gradingUserPromptTemplate, slideContent, deck.Meta.TotalSlides, totalTextLength(deck))
}

// parseModelResponse applies the local repair pipeline and schema validation.
// The repair (fence stripping, outermost-object extraction, trailing-comma
// removal) runs on every parse attempt; it is distinct from the remote retry.
func parseModelResponse(raw string) (*models.LLMGradingResponse, error) {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[3:]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		text = text[start : end+1]
	}

	text = trailingCommaPattern.ReplaceAllString(text, "$1")

	var resp models.LLMGradingResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("model response schema: %w", err)
	}
	return &resp, nil
}

var priorityVocabulary = map[string]string{
	"yuksek": "high",
	"orta":   "medium",
	"dusuk":  "low",
}

func mapPriority(token string) string {
	if p, ok := priorityVocabulary[token]; ok {
		return p
	}
	return "medium"
}

// assembleResult maps the model's localized response schema into the domain
// result and merges the manual on-time component. The final total is always
// clamped to 100, even when the model already reported 100.
func assembleResult(resp *models.LLMGradingResponse, onTime bool) *models.GradingResult {
	rubricScores := make([]models.RubricScore, 0, len(resp.RubrikPuanlari)+1)

	for _, lr := range resp.RubrikPuanlari {
		evidence := make([]models.EvidenceItem, 0, len(lr.Kanitlar))
		for _, ev := range lr.Kanitlar {
			item := models.EvidenceItem{
				SlideNo: intField(ev, "slayt_no"),
				Quote:   stringField(ev, "alinti"),
			}
			if comment := stringField(ev, "yorum"); comment != "" {
				item.Comment = &comment
			}
			evidence = append(evidence, item)
		}

		var principles []models.DetectedPrinciple
		for _, p := range lr.TespitEdilenIlkeler {
			dp := models.DetectedPrinciple{
				Principle:         stringField(p, "ilke"),
				CorrectDefinition: boolField(p, "dogru_tanim", true),
				SceneMatch:        boolField(p, "sahne_uyumu", true),
			}
			if note := stringField(p, "not"); note != "" {
				dp.Note = &note
			}
			principles = append(principles, dp)
		}

		rubricScores = append(rubricScores, models.RubricScore{
			Category:            lr.Kategori,
			Score:               *lr.Puan,
			MaxScore:            *lr.MaxPuan,
			Reason:              lr.Aciklama,
			Evidence:            evidence,
			SubScores:           lr.AltPuanlar,
			DetectedPrinciples:  principles,
			ConsistencyAnalysis: lr.TutarlilikAnalizi,
			FoundFields:         lr.BulunanAlanlar,
			MissingFields:       lr.EksikAlanlar,
			LanguageErrors:      lr.DilHatalari,
		})
	}

	onTimeScore := 0.0
	onTimeReason := "Zamanında teslim edilmedi"
	if onTime {
		onTimeScore = 10.0
		onTimeReason = "Zamanında teslim edildi"
	}
	rubricScores = append(rubricScores, models.RubricScore{
		Category: "Zamanında Teslim",
		Score:    onTimeScore,
		MaxScore: 10,
		Reason:   onTimeReason,
		Evidence: []models.EvidenceItem{},
	})

	improvements := make([]models.ImprovementSuggestion, 0, len(resp.IyilestirmeOnerileri))
	for _, imp := range resp.IyilestirmeOnerileri {
		category := imp["kategori"]
		if category == "" {
			category = "Genel"
		}
		improvements = append(improvements, models.ImprovementSuggestion{
			Category:   category,
			Suggestion: imp["oneri"],
			Priority:   mapPriority(imp["oncelik"]),
		})
	}

	total := *resp.ToplamPuan + onTimeScore
	if total > 100 {
		total = 100
	}

	return &models.GradingResult{
		TotalScore:        total,
		RubricScores:      rubricScores,
		MissingItems:      resp.EksikOgeler,
		Improvements:      improvements,
		OnTimeSubmitted:   onTime,
		GradingNotes:      resp.Notlar,
		OverallEvaluation: resp.GenelDegerlendirme,
	}
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func intField(m map[string]interface{}, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}

func boolField(m map[string]interface{}, key string, fallback bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return fallback
}
