package models

type Garment struct {
	JsonModel
	Name        string      `json:"name"`
	Description *string     `gorm:"type:text" json:"description"`
	Owner       UserAccount `json:"-"`
	OwnerID     uint        `json:"-"`

	// taxonomy fields, filled by the image analysis pipeline or by hand
	Category    string  `json:"category"` // taxonomy category id
	Subcategory *string `json:"subcategory"`
	Color       *string `json:"color"`
	ColorHex    *string `json:"color_hex"`
	Material    *string `json:"material"`
	Pattern     *string `json:"pattern"`
	Brand       *string `json:"brand"`
	Season      *string `json:"season"`
	Size        *string `json:"size"`

	Status              string  `json:"status"`            // temporary, in_wardrobe
	ProcessingStatus    string  `json:"processing_status"` // idle, analyzing, completed, failed
	ProcessRetryTimes   int     `json:"process_retry_times"`
	ProcessErrorMessage *string `json:"process_error_message"`
	ImageURL            *string `json:"image_url"`
}

// GarmentAnalysisRecord persists one image-analysis run with its LLM usage,
// mirroring how try-on generations were tracked before.
type GarmentAnalysisRecord struct {
	JsonModel
	GarmentID     uint        `json:"garment_id"`
	Garment       Garment     `json:"garment"`
	UserAccountID uint        `json:"-"`
	UserAccount   UserAccount `json:"-"`

	Status     string   `json:"status"` // pending, completed, failed
	ResultJSON *string  `gorm:"type:text" json:"-"`
	Degraded   bool     `json:"degraded"`
	Confidence *float64 `json:"confidence"`

	Duration            *float64 `json:"duration"` // in seconds
	LLMModel            *string  `json:"llm_model"`
	LLMInputTokenCount  *int32   `json:"llm_input_token_count"`
	LLMOutputTokenCount *int32   `json:"llm_output_token_count"`
	LLMTotalTokenCount  *int32   `json:"llm_total_token_count"`
	CostEstimate        *float64 `json:"cost_estimate"`

	AnalysisRetryTimes   int     `json:"analysis_retry_times"`
	AnalysisErrorMessage *string `json:"analysis_error_message"`
}
