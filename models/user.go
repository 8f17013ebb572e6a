package models

import "time"

type UserAccount struct {
	JsonModel
	Name   string `json:"name"`
	Email  string `json:"email" gorm:"unique"`
	Status string `json:"-"`
	// style descriptors the user picked during onboarding, comma separated
	StylePreferences *string `json:"style_preferences"`
	AvatarURL        string  `json:"avatar_url"`
}

// BodyProfile is optional per-user data used to personalize styling prompts.
type BodyProfile struct {
	JsonModel
	UserAccountID uint        `gorm:"uniqueIndex" json:"-"`
	UserAccount   UserAccount `json:"-"`
	BodyType      *string     `json:"body_type"`
	HeightCm      *int        `json:"height_cm"`
	WeightKg      *int        `json:"weight_kg"`
	SkinTone      *string     `json:"skin_tone"`
	HairColor     *string     `json:"hair_color"`
}

// StyleProfile is the running aggregate updated after each successful styling
// recommendation. JSON blobs are kept as text, same as the generation records.
type StyleProfile struct {
	JsonModel
	UserAccountID  uint        `gorm:"uniqueIndex" json:"-"`
	UserAccount    UserAccount `json:"-"`
	OverallStyle   *string     `json:"overall_style"`
	AnalysisJSON   *string     `gorm:"type:text" json:"-"`
	InsightsJSON   *string     `gorm:"type:text" json:"-"`
	LastAnalyzedAt *time.Time  `json:"last_analyzed_at"`
}
