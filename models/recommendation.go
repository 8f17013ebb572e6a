package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

type RecommendationType string

const (
	RecommendationStyling  RecommendationType = "styling"
	RecommendationOutfit   RecommendationType = "outfit"
	RecommendationSeasonal RecommendationType = "seasonal"
	RecommendationTrend    RecommendationType = "trend"
	RecommendationColor    RecommendationType = "color"
	RecommendationBodyType RecommendationType = "body-type"
)

func (t RecommendationType) Value() string {
	return string(t)
}

var recommendationTypeRule = regexp.MustCompile(`^(styling|outfit|seasonal|trend|color|body-type)$`)

func ValidateRecommendationType(fl validator.FieldLevel) bool {
	return recommendationTypeRule.MatchString(fl.Field().String())
}

func ValidateSeason(fl validator.FieldLevel) bool {
	return IsValidSeason(fl.Field().String())
}

// RecommendationRequest is constructed by the API boundary and consumed once
// by the orchestrator. Never mutated after construction.
type RecommendationRequest struct {
	UserID      uint                       `json:"user_id" validate:"required"`
	Type        RecommendationType         `json:"type" validate:"required,recommendationtype"`
	Context     *RecommendationContext     `json:"context"`
	Preferences *RecommendationPreferences `json:"preferences"`
}

type RecommendationContext struct {
	Occasion          string `json:"occasion"`
	Season            string `json:"season" validate:"omitempty,season"`
	Weather           string `json:"weather"`
	IncludeGarmentIDs []uint `json:"include_garment_ids"`
	ExcludeGarmentIDs []uint `json:"exclude_garment_ids"`
}

type RecommendationPreferences struct {
	MaxOutfits              int  `json:"max_outfits" validate:"omitempty,min=1,max=10"`
	IncludeColorAnalysis    bool `json:"include_color_analysis"`
	IncludeStyleAnalysis    bool `json:"include_style_analysis"`
	IncludePersonalization  bool `json:"include_personalization"`
}

// StylingInput is the fully resolved payload rendered into the styling prompt.
// Derived per call, read only, never persisted directly.
type StylingInput struct {
	User     UserAccount
	Body     *BodyProfile
	Garments []Garment
	Request  RecommendationRequest
}

type OutfitItem struct {
	GarmentID    uint   `json:"garment_id"`
	Category     string `json:"category"`
	DisplayOrder int    `json:"display_order"`
	Notes        string `json:"notes,omitempty"`
}

type ColorAnalysis struct {
	DominantColors        []string `json:"dominant_colors"`
	HarmonyScore          float64  `json:"harmony_score"`
	SkinToneCompatibility float64  `json:"skin_tone_compatibility"`
}

type Outfit struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Confidence    float64        `json:"confidence"` // clamped to [0,1]
	Occasion      string         `json:"occasion"`
	Season        string         `json:"season"`
	Weather       string         `json:"weather"`
	Items         []OutfitItem   `json:"items"`
	StylingTips   []string       `json:"styling_tips"`
	ColorAnalysis *ColorAnalysis `json:"color_analysis,omitempty"`
}

type StyleAnalysis struct {
	OverallStyle     string   `json:"overall_style"`
	StrengthAreas    []string `json:"strength_areas"`
	ImprovementAreas []string `json:"improvement_areas"`
	Summary          string   `json:"summary"`
}

type PersonalizationInsights struct {
	PreferredColors     []string `json:"preferred_colors"`
	PreferredCategories []string `json:"preferred_categories"`
	Suggestions         []string `json:"suggestions"`
}

// StylingRecommendation is the validated output of the styling parse.
type StylingRecommendation struct {
	Outfits       []Outfit                 `json:"outfits"`
	StyleAnalysis *StyleAnalysis           `json:"style_analysis,omitempty"`
	Insights      *PersonalizationInsights `json:"personalization_insights,omitempty"`
	// garment ids referenced by the model that were not part of the request
	HallucinatedItemIDs []uint `json:"-"`
}

// RecommendationResult is what callers receive: the recommendation plus
// aggregate metadata about how it was produced.
type RecommendationResult struct {
	Recommendation      StylingRecommendation `json:"recommendation"`
	AggregateConfidence float64               `json:"aggregate_confidence"`
	DurationMs          int64                 `json:"duration_ms"`
	CostEstimate        float64               `json:"cost_estimate"`
	CacheHit            bool                  `json:"cache_hit"`
}

// RecommendationFeedback stores one user reaction to a recommendation. Any
// feedback invalidates that user's cached recommendations.
type RecommendationFeedback struct {
	JsonModel
	UserAccountID                 uint                        `json:"-"`
	UserAccount                   UserAccount                 `json:"-"`
	StylingRecommendationRecordID uint                        `json:"recommendation_id"`
	StylingRecommendationRecord   StylingRecommendationRecord `json:"-"`

	OutfitID string  `json:"outfit_id"`
	Rating   int     `json:"rating" validate:"min=1,max=5"`
	Comment  *string `gorm:"type:text" json:"comment"`
}

// StylingRecommendationRecord persists one recommendation run with LLM usage.
type StylingRecommendationRecord struct {
	JsonModel
	UserAccountID uint        `json:"-"`
	UserAccount   UserAccount `json:"-"`

	RecommendationType string  `json:"recommendation_type"`
	Status             string  `json:"status"` // pending, completed, failed
	ResultJSON         *string `gorm:"type:text" json:"-"`
	OutfitCount        int     `json:"outfit_count"`

	AggregateConfidence *float64 `json:"aggregate_confidence"`
	Duration            *float64 `json:"duration"` // in seconds
	LLMModel            *string  `json:"llm_model"`
	LLMInputTokenCount  *int32   `json:"llm_input_token_count"`
	LLMOutputTokenCount *int32   `json:"llm_output_token_count"`
	LLMTotalTokenCount  *int32   `json:"llm_total_token_count"`
	CostEstimate        *float64 `json:"cost_estimate"`

	GenerationRetryTimes   int     `json:"generation_retry_times"`
	GenerationErrorMessage *string `json:"generation_error_message"`
}
