package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stylistapi/dbhelper"
	"stylistapi/models"
	"stylistapi/services"
	"stylistapi/test"
)

const garmentAnalysisResponse = `{
	"confidence": 88,
	"category": "tops",
	"subcategory": "shirts",
	"color": "blue",
	"material": "cotton",
	"season": "spring",
	"description": "A blue cotton shirt"
}`

func newTaskTestService(provider services.LLMProvider, repo services.WardrobeRepository) *services.RecommendationService {
	cache, _ := services.NewResponseCache(&services.PipelineConfig{CacheBackend: services.CacheBackendMemory})
	return services.NewRecommendationService(
		provider,
		cache,
		models.DefaultTaxonomy(),
		repo,
		services.LogTelemetryRecorder{},
		&services.PipelineConfig{
			Provider:              "mock",
			Model:                 "test-model",
			ImageModel:            "test-model",
			MaxOutputTokens:       1024,
			CallTimeout:           time.Second,
			MaxAttempts:           1,
			StylingCacheTTL:       time.Minute,
			ImageCacheTTL:         time.Minute,
			FallbackConfidenceCap: services.DefaultFallbackConfidenceCap,
		},
	)
}

func TestGarmentAnalysisTask(t *testing.T) {
	fmt.Println("Starting TestGarmentAnalysisTask")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user, _ := test.CreateFakeUserWithWardrobe(db)
	garment := test.CreateFakeGarmentForAnalysis(db, user.ID, "https://example.com/shirt.jpg")

	provider := &test.MockLLMProvider{Responses: []test.MockResponse{{Text: garmentAnalysisResponse}}}
	svc := newTaskTestService(provider, dbhelper.NewWardrobeRepository(db))

	fakeTask, err := NewGarmentAnalysisTask(garment.ID)
	require.NoError(t, err)

	err = HandleGarmentAnalysisTask(context.Background(), fakeTask, db, svc)
	require.NoError(t, err)

	var updated models.Garment
	db.First(&updated, garment.ID)
	assert.Equal(t, "completed", updated.ProcessingStatus)
	assert.Equal(t, "tops", updated.Category)
	require.NotNil(t, updated.Subcategory)
	assert.Equal(t, "shirts", *updated.Subcategory)
	require.NotNil(t, updated.ColorHex)
	assert.Equal(t, "#0000FF", *updated.ColorHex)

	var record models.GarmentAnalysisRecord
	res := db.Where("garment_id = ?", garment.ID).First(&record)
	require.NoError(t, res.Error)
	assert.Equal(t, "completed", record.Status)
	assert.False(t, record.Degraded)
}

func TestGarmentAnalysisTaskDegradedResponse(t *testing.T) {
	fmt.Println("Starting TestGarmentAnalysisTaskDegradedResponse")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user, _ := test.CreateFakeUserWithWardrobe(db)
	garment := test.CreateFakeGarmentForAnalysis(db, user.ID, "https://example.com/blur.jpg")

	provider := &test.MockLLMProvider{Responses: []test.MockResponse{{Text: "I cannot see a garment in this photo."}}}
	svc := newTaskTestService(provider, dbhelper.NewWardrobeRepository(db))

	fakeTask, err := NewGarmentAnalysisTask(garment.ID)
	require.NoError(t, err)

	err = HandleGarmentAnalysisTask(context.Background(), fakeTask, db, svc)
	require.NoError(t, err, "degraded analysis still completes the task")

	var updated models.Garment
	db.First(&updated, garment.ID)
	assert.Equal(t, "completed", updated.ProcessingStatus)
	assert.Equal(t, "tops", updated.Category, "fallback category applied")

	var record models.GarmentAnalysisRecord
	res := db.Where("garment_id = ?", garment.ID).First(&record)
	require.NoError(t, res.Error)
	assert.True(t, record.Degraded)
}

func TestGarmentAnalysisTaskMissingImage(t *testing.T) {
	fmt.Println("Starting TestGarmentAnalysisTaskMissingImage")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user, _ := test.CreateFakeUserWithWardrobe(db)
	garment := models.Garment{Name: "No Image", OwnerID: user.ID, Status: "temporary", ProcessingStatus: "idle"}
	db.Create(&garment)

	provider := &test.MockLLMProvider{Responses: []test.MockResponse{{Text: garmentAnalysisResponse}}}
	svc := newTaskTestService(provider, dbhelper.NewWardrobeRepository(db))

	fakeTask, err := NewGarmentAnalysisTask(garment.ID)
	require.NoError(t, err)

	err = HandleGarmentAnalysisTask(context.Background(), fakeTask, db, svc)
	require.Error(t, err)

	var updated models.Garment
	db.First(&updated, garment.ID)
	assert.Equal(t, "failed", updated.ProcessingStatus)
	assert.Equal(t, 0, provider.CallCount())
}

func TestStylingRecommendationTask(t *testing.T) {
	fmt.Println("Starting TestStylingRecommendationTask")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user, garments := test.CreateFakeUserWithWardrobe(db)

	stylingResponse := fmt.Sprintf(`{
		"outfits": [
			{
				"id": "outfit-1",
				"name": "Office Look",
				"confidence": 0.9,
				"items": [
					{"garment_id": %d, "category": "tops", "display_order": 1},
					{"garment_id": %d, "category": "bottoms", "display_order": 2}
				]
			}
		]
	}`, garments[0].ID, garments[1].ID)

	provider := &test.MockLLMProvider{Responses: []test.MockResponse{{Text: stylingResponse}}}
	svc := newTaskTestService(provider, dbhelper.NewWardrobeRepository(db))

	fakeTask, err := NewStylingRecommendationTask(StylingRecommendationPayload{
		UserID:             user.ID,
		RecommendationType: "styling",
		Occasion:           "work",
	})
	require.NoError(t, err)

	err = HandleStylingRecommendationTask(context.Background(), fakeTask, svc)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.CallCount())

	var record models.StylingRecommendationRecord
	res := db.Where("user_account_id = ?", user.ID).First(&record)
	require.NoError(t, res.Error)
	assert.Equal(t, "completed", record.Status)
	assert.Equal(t, 1, record.OutfitCount)
}

func TestTaskPayloadRoundTrip(t *testing.T) {
	task, err := NewGarmentAnalysisTask(42)
	require.NoError(t, err)
	assert.Equal(t, TypeGarmentAnalysis, task.Type())

	var payload GarmentAnalysisPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, uint(42), payload.GarmentID)
}
