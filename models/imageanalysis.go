package models

// AnalysisSuggestions carries the model's secondary guesses, each list
// re-validated against the taxonomy independently of the primary fields.
type AnalysisSuggestions struct {
	AlternativeCategories []string `json:"alternative_categories,omitempty"`
	AlternativeColors     []string `json:"alternative_colors,omitempty"`
	CareInstructions      []string `json:"care_instructions,omitempty"`
	StylingTips           []string `json:"styling_tips,omitempty"`
}

// ImageAnalysisResult is the validated classification of one garment photo.
// Confidence runs 0-100. Degraded marks results where the primary category
// had to be replaced by the fallback or the raw response was unusable, so
// callers can tell a confident answer from a salvaged one.
type ImageAnalysisResult struct {
	Confidence  float64              `json:"confidence"`
	Category    string               `json:"category"`
	Subcategory *string              `json:"subcategory,omitempty"`
	Color       string               `json:"color,omitempty"`
	ColorHex    string               `json:"color_hex,omitempty"`
	Material    string               `json:"material,omitempty"`
	Pattern     string               `json:"pattern,omitempty"`
	Style       string               `json:"style,omitempty"`
	Brand       string               `json:"brand,omitempty"`
	Description string               `json:"description,omitempty"`
	Season      string               `json:"season,omitempty"`
	Tags        []string             `json:"tags,omitempty"`
	Suggestions *AnalysisSuggestions `json:"suggestions,omitempty"`
	Degraded    bool                 `json:"degraded"`
}
