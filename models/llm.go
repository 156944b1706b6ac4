package models

import (
	"errors"
	"fmt"
)

// The model responds with localized (Turkish) field names; they are part of
// the external contract and must not be renamed. The adapter in the grader
// service translates this shape into the domain schema field by field.

// LLMRubricScore is the model's score for one rubric category
type LLMRubricScore struct {
	Kategori string   `json:"kategori"`
	Puan     *float64 `json:"puan"`
	MaxPuan  *float64 `json:"max_puan"`
	Aciklama string   `json:"aciklama"`
	// Evidence and principle entries arrive with loose shapes; they are
	// coerced during assembly rather than rejected here.
	Kanitlar             []map[string]interface{} `json:"kanitlar"`
	AltPuanlar           map[string]float64       `json:"alt_puanlar,omitempty"`
	TespitEdilenIlkeler  []map[string]interface{} `json:"tespit_edilen_ilkeler,omitempty"`
	TutarlilikAnalizi    *string                  `json:"tutarlilik_analizi,omitempty"`
	BulunanAlanlar       []string                 `json:"bulunan_alanlar,omitempty"`
	EksikAlanlar         []string                 `json:"eksik_alanlar,omitempty"`
	DilHatalari          []string                 `json:"dil_hatalari,omitempty"`
}

// LLMGradingResponse is the expected top-level response object from the model
type LLMGradingResponse struct {
	ToplamPuan             *float64            `json:"toplam_puan"`
	RubrikPuanlari         []LLMRubricScore    `json:"rubrik_puanlari"`
	EksikOgeler            []string            `json:"eksik_ogeler"`
	IyilestirmeOnerileri   []map[string]string `json:"iyilestirme_onerileri"`
	Notlar                 *string             `json:"notlar,omitempty"`
	GenelDegerlendirme     *string             `json:"genel_degerlendirme,omitempty"`
}

// Validate checks the response against the expected schema. Entry scores
// must be non-negative; an empty aciklama is tolerated, and score/max_score
// consistency within an entry is deliberately not checked.
func (r *LLMGradingResponse) Validate() error {
	if r.ToplamPuan == nil {
		return errors.New("toplam_puan alanı eksik")
	}
	if *r.ToplamPuan < 0 || *r.ToplamPuan > 100 {
		return fmt.Errorf("toplam_puan 0-100 aralığında olmalı: %v", *r.ToplamPuan)
	}
	if r.RubrikPuanlari == nil {
		return errors.New("rubrik_puanlari alanı eksik")
	}
	for i, rs := range r.RubrikPuanlari {
		if rs.Kategori == "" {
			return fmt.Errorf("rubrik_puanlari[%d]: kategori eksik", i)
		}
		if rs.Puan == nil {
			return fmt.Errorf("rubrik_puanlari[%d]: puan eksik", i)
		}
		if rs.MaxPuan == nil {
			return fmt.Errorf("rubrik_puanlari[%d]: max_puan eksik", i)
		}
		if *rs.Puan < 0 {
			return fmt.Errorf("rubrik_puanlari[%d]: puan negatif olamaz: %v", i, *rs.Puan)
		}
		if *rs.MaxPuan < 0 {
			return fmt.Errorf("rubrik_puanlari[%d]: max_puan negatif olamaz: %v", i, *rs.MaxPuan)
		}
	}
	return nil
}
