package test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"stylistapi/models"
	"stylistapi/services"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

// CreateFakeUserWithWardrobe seeds one user, a body profile and a small
// wardrobe, returning everything for assertions.
func CreateFakeUserWithWardrobe(db *gorm.DB) (models.UserAccount, []models.Garment) {
	user := models.UserAccount{
		Name:             "Kamila",
		Email:            "kamila@example.com",
		Status:           "active",
		StylePreferences: services.StrPointer("casual, minimalist"),
	}
	db.Create(&user)

	body := models.BodyProfile{
		UserAccountID: user.ID,
		BodyType:      services.StrPointer("hourglass"),
		HeightCm:      intPointer(170),
		SkinTone:      services.StrPointer("warm"),
	}
	db.Create(&body)

	garments := []models.Garment{
		{
			Name: "Blue Oxford Shirt", OwnerID: user.ID, Category: "tops",
			Subcategory: services.StrPointer("shirts"), Color: services.StrPointer("blue"),
			Material: services.StrPointer("cotton"), Status: "in_wardrobe", ProcessingStatus: "completed",
		},
		{
			Name: "Black Jeans", OwnerID: user.ID, Category: "bottoms",
			Subcategory: services.StrPointer("jeans"), Color: services.StrPointer("black"),
			Material: services.StrPointer("denim"), Status: "in_wardrobe", ProcessingStatus: "completed",
		},
		{
			Name: "White Sneakers", OwnerID: user.ID, Category: "shoes",
			Subcategory: services.StrPointer("sneakers"), Color: services.StrPointer("white"),
			Status: "in_wardrobe", ProcessingStatus: "completed",
		},
	}
	for i := range garments {
		db.Create(&garments[i])
	}
	return user, garments
}

func CreateFakeGarmentForAnalysis(db *gorm.DB, ownerID uint, imageURL string) models.Garment {
	garment := models.Garment{
		Name:             "Uploaded Garment",
		OwnerID:          ownerID,
		Status:           "temporary",
		ProcessingStatus: "idle",
		ImageURL:         services.StrPointer(imageURL),
	}
	db.Create(&garment)
	return garment
}

func intPointer(v int) *int {
	return &v
}

// MockLLMProvider replays scripted responses in order and counts calls.
// When the script runs out the last entry repeats.
type MockLLMProvider struct {
	mu        sync.Mutex
	Responses []MockResponse
	Calls     int
}

type MockResponse struct {
	Text string
	Err  error
}

func (m *MockLLMProvider) Name() string {
	return "mock"
}

func (m *MockLLMProvider) next() (*services.ProviderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return nil, fmt.Errorf("mock provider has no scripted responses")
	}
	idx := m.Calls
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.Calls++
	scripted := m.Responses[idx]
	if scripted.Err != nil {
		return nil, scripted.Err
	}
	return &services.ProviderResponse{
		Text:             scripted.Text,
		InputTokenCount:  100,
		OutputTokenCount: 200,
		TotalTokenCount:  300,
	}, nil
}

func (m *MockLLMProvider) Complete(ctx context.Context, prompt string, params services.GenerationParams) (*services.ProviderResponse, error) {
	return m.next()
}

func (m *MockLLMProvider) CompleteWithImage(ctx context.Context, prompt string, image services.ImageInput, params services.GenerationParams) (*services.ProviderResponse, error) {
	return m.next()
}

func (m *MockLLMProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// CountingTelemetry records every event for assertions.
type CountingTelemetry struct {
	mu            sync.Mutex
	UsageEvents   int
	OutcomeEvents int
	LastSuccess   bool
}

func (c *CountingTelemetry) RecordProviderUsage(userID uint, op services.OperationKind, totalTokens int32, costEstimate float64, durationMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.UsageEvents++
}

func (c *CountingTelemetry) RecordPipelineOutcome(userID uint, op services.OperationKind, success bool, itemCount int, durationMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.OutcomeEvents++
	c.LastSuccess = success
}

func (c *CountingTelemetry) Usage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.UsageEvents
}
