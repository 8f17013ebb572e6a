package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"stylistapi/models"
	"stylistapi/services"
)

const (
	TypeGarmentAnalysis       = "analyze:garment"
	TypeStylingRecommendation = "recommend:styling"

	maxGarmentProcessRetries = 3
)

type GarmentAnalysisPayload struct {
	GarmentID uint `json:"garment_id"`
}

type StylingRecommendationPayload struct {
	UserID             uint   `json:"user_id"`
	RecommendationType string `json:"recommendation_type"`
	Occasion           string `json:"occasion,omitempty"`
	Season             string `json:"season,omitempty"`
	MaxOutfits         int    `json:"max_outfits,omitempty"`
}

// NewClient initializes an asynq client for enqueuing tasks
func NewClient() (*asynq.Client, error) {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}), nil
}

func NewGarmentAnalysisTask(garmentID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(GarmentAnalysisPayload{GarmentID: garmentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGarmentAnalysis, payload), nil
}

func NewStylingRecommendationTask(payload StylingRecommendationPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeStylingRecommendation, raw), nil
}

// HandleGarmentAnalysisTask classifies one uploaded garment photo and writes
// the taxonomy fields back onto the garment row. Provider failures bump the
// retry counter; once exhausted the garment is marked failed so the app can
// offer manual classification.
func HandleGarmentAnalysisTask(ctx context.Context, t *asynq.Task, db *gorm.DB, svc *services.RecommendationService) error {
	var payload GarmentAnalysisPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Garment: %v] Start analysis\n", payload.GarmentID)

	var garment models.Garment
	if res := db.First(&garment, payload.GarmentID); res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Garment: %v] Error on retrieving garment for analysis: %v", payload.GarmentID, res.Error))
		return res.Error
	}
	if garment.ImageURL == nil {
		saveGarmentProcessingFail(db, garment, "Garment has no image to analyze", false)
		sentry.CaptureException(fmt.Errorf("[Garment: %v] Image URL is nil", payload.GarmentID))
		return fmt.Errorf("[Garment: %v] Image URL is nil", payload.GarmentID)
	}

	garment.ProcessingStatus = "analyzing"
	db.Save(&garment)

	result, err := svc.AnalyzeGarmentImage(ctx, services.ImageAnalysisRequest{
		UserID:    garment.OwnerID,
		GarmentID: garment.ID,
		Image:     services.ImageInput{URI: *garment.ImageURL},
	})
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Garment: %v] Error on analyzing image: %v", payload.GarmentID, err))
		saveGarmentProcessingFail(db, garment, "Failed to analyze garment photo", true)
		return err
	}

	fmt.Printf("[Garment: %v] Analysis done, category=%s confidence=%.0f degraded=%v\n",
		payload.GarmentID, result.Category, result.Confidence, result.Degraded)

	applyAnalysisToGarment(&garment, result)
	garment.ProcessingStatus = "completed"
	garment.ProcessErrorMessage = nil
	if res := db.Save(&garment); res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Garment: %v] Error on saving analyzed garment: %v", payload.GarmentID, res.Error))
		return res.Error
	}
	return nil
}

// HandleStylingRecommendationTask runs one styling recommendation in the
// background. The pipeline persists the run itself, so the handler only
// reports the outcome back to asynq for its retry bookkeeping.
func HandleStylingRecommendationTask(ctx context.Context, t *asynq.Task, svc *services.RecommendationService) error {
	var payload StylingRecommendationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Styling: user %v] Start recommendation type=%s\n", payload.UserID, payload.RecommendationType)

	req := models.RecommendationRequest{
		UserID: payload.UserID,
		Type:   models.RecommendationType(payload.RecommendationType),
	}
	if payload.Occasion != "" || payload.Season != "" {
		req.Context = &models.RecommendationContext{
			Occasion: payload.Occasion,
			Season:   payload.Season,
		}
	}
	if payload.MaxOutfits > 0 {
		req.Preferences = &models.RecommendationPreferences{
			MaxOutfits:             payload.MaxOutfits,
			IncludeColorAnalysis:   true,
			IncludeStyleAnalysis:   true,
			IncludePersonalization: true,
		}
	}

	result, err := svc.RecommendOutfits(ctx, req)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Styling: user %v] Error on recommendation: %v", payload.UserID, err))
		return err
	}
	fmt.Printf("[Styling: user %v] Done, outfits=%v confidence=%.2f cacheHit=%v\n",
		payload.UserID, len(result.Recommendation.Outfits), result.AggregateConfidence, result.CacheHit)
	return nil
}

func applyAnalysisToGarment(garment *models.Garment, result *models.ImageAnalysisResult) {
	garment.Category = result.Category
	garment.Subcategory = result.Subcategory
	if result.Color != "" {
		garment.Color = services.StrPointer(result.Color)
	}
	if result.ColorHex != "" {
		garment.ColorHex = services.StrPointer(result.ColorHex)
	}
	if result.Material != "" {
		garment.Material = services.StrPointer(result.Material)
	}
	if result.Pattern != "" {
		garment.Pattern = services.StrPointer(result.Pattern)
	}
	if result.Brand != "" {
		garment.Brand = services.StrPointer(result.Brand)
	}
	if result.Season != "" {
		garment.Season = services.StrPointer(result.Season)
	}
	if result.Description != "" {
		garment.Description = services.StrPointer(result.Description)
	}
}

func saveGarmentProcessingFail(db *gorm.DB, garment models.Garment, message string, shouldRetry bool) {
	garment.ProcessRetryTimes = garment.ProcessRetryTimes + 1
	garment.ProcessErrorMessage = services.StrPointer(message)
	if !shouldRetry || garment.ProcessRetryTimes >= maxGarmentProcessRetries {
		garment.ProcessingStatus = "failed"
	} else {
		garment.ProcessingStatus = "idle"
	}
	if res := db.Save(&garment); res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Garment: %v] Error on saving processing failure: %v", garment.ID, res.Error))
	}
}
