package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stylistapi/models"
)

const validStylingResponse = `{
	"outfits": [
		{
			"id": "outfit-1",
			"name": "Casual Friday",
			"confidence": 0.8,
			"items": [
				{"garment_id": 1, "category": "tops", "display_order": 1},
				{"garment_id": 2, "category": "bottoms", "display_order": 2}
			]
		}
	],
	"style_analysis": {"overall_style": "casual", "summary": "Relaxed and coherent"}
}`

const validImageResponse = `{
	"confidence": 92,
	"category": "tops",
	"subcategory": "shirts",
	"color": "blue",
	"material": "cotton",
	"season": "spring"
}`

// scriptedProvider replays responses in order, repeating the last one, with
// an optional delay to widen concurrency windows.
type scriptedProvider struct {
	responses []scriptedResponse
	delay     time.Duration
	calls     atomic.Int32
}

type scriptedResponse struct {
	text string
	err  error
}

func (p *scriptedProvider) Name() string { return "mock" }

func (p *scriptedProvider) next() (*ProviderResponse, error) {
	idx := int(p.calls.Add(1)) - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	scripted := p.responses[idx]
	if scripted.err != nil {
		return nil, scripted.err
	}
	return &ProviderResponse{Text: scripted.text, InputTokenCount: 100, OutputTokenCount: 50, TotalTokenCount: 150}, nil
}

func (p *scriptedProvider) Complete(ctx context.Context, prompt string, params GenerationParams) (*ProviderResponse, error) {
	return p.next()
}

func (p *scriptedProvider) CompleteWithImage(ctx context.Context, prompt string, image ImageInput, params GenerationParams) (*ProviderResponse, error) {
	return p.next()
}

type fakeRepo struct {
	mu              sync.Mutex
	userContext     *UserContext
	loadErr         error
	saveErr         error
	recommendations []*models.StylingRecommendationRecord
	analyses        []*models.GarmentAnalysisRecord
	feedback        []*models.RecommendationFeedback
	profileUpserts  int
}

func (r *fakeRepo) LoadUserContext(ctx context.Context, userID uint) (*UserContext, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.userContext, nil
}

func (r *fakeRepo) SaveRecommendation(ctx context.Context, record *models.StylingRecommendationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.recommendations = append(r.recommendations, record)
	return nil
}

func (r *fakeRepo) SaveGarmentAnalysis(ctx context.Context, record *models.GarmentAnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.analyses = append(r.analyses, record)
	return nil
}

func (r *fakeRepo) SaveFeedback(ctx context.Context, feedback *models.RecommendationFeedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback = append(r.feedback, feedback)
	return nil
}

func (r *fakeRepo) UpsertStyleProfile(ctx context.Context, userID uint, analysis *models.StyleAnalysis, insights *models.PersonalizationInsights) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.profileUpserts++
	return nil
}

func (r *fakeRepo) savedRecommendations() []*models.StylingRecommendationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recommendations
}

func testUserContext() *UserContext {
	shirt := models.Garment{Name: "Blue Shirt", Category: "tops"}
	shirt.ID = 1
	jeans := models.Garment{Name: "Black Jeans", Category: "bottoms"}
	jeans.ID = 2
	return &UserContext{
		User:     models.UserAccount{Name: "Kamila"},
		Garments: []models.Garment{shirt, jeans},
	}
}

func pipelineTestConfig() *PipelineConfig {
	return &PipelineConfig{
		Provider:              "mock",
		Model:                 "test-model",
		ImageModel:            "test-model",
		MaxOutputTokens:       1024,
		Temperature:           0.2,
		CallTimeout:           time.Second,
		MaxAttempts:           3,
		BackoffBase:           time.Millisecond,
		StylingCacheTTL:       time.Minute,
		ImageCacheTTL:         time.Minute,
		FallbackConfidenceCap: DefaultFallbackConfidenceCap,
	}
}

func newTestService(provider LLMProvider, repo WardrobeRepository, telemetry TelemetryRecorder) *RecommendationService {
	return NewRecommendationService(
		provider,
		NewResponseCacheFrom(newMapCache()),
		models.DefaultTaxonomy(),
		repo,
		telemetry,
		pipelineTestConfig(),
	)
}

func stylingRequest() models.RecommendationRequest {
	return models.RecommendationRequest{
		UserID: 1,
		Type:   models.RecommendationStyling,
		Context: &models.RecommendationContext{
			Occasion: "work",
		},
	}
}

func TestRecommendOutfitsSuccessAndCacheHit(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{{text: validStylingResponse}}}
	repo := &fakeRepo{userContext: testUserContext()}
	svc := newTestService(provider, repo, LogTelemetryRecorder{})

	result, err := svc.RecommendOutfits(context.Background(), stylingRequest())
	require.NoError(t, err)
	require.Len(t, result.Recommendation.Outfits, 1)
	assert.Equal(t, 0.8, result.AggregateConfidence)
	assert.False(t, result.CacheHit)
	assert.Equal(t, int32(1), provider.calls.Load())

	records := repo.savedRecommendations()
	require.Len(t, records, 1)
	assert.Equal(t, "completed", records[0].Status)
	assert.Equal(t, 1, records[0].OutfitCount)
	assert.Equal(t, int32(150), *records[0].LLMTotalTokenCount)
	assert.Equal(t, 1, repo.profileUpserts)

	// identical request is answered from cache without another provider call
	cached, err := svc.RecommendOutfits(context.Background(), stylingRequest())
	require.NoError(t, err)
	assert.True(t, cached.CacheHit)
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestRecommendOutfitsRejectsInvalidRequest(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{{text: validStylingResponse}}}
	svc := newTestService(provider, &fakeRepo{userContext: testUserContext()}, LogTelemetryRecorder{})

	_, err := svc.RecommendOutfits(context.Background(), models.RecommendationRequest{
		UserID: 1,
		Type:   "astrology",
	})
	require.Error(t, err)
	assert.Equal(t, int32(0), provider.calls.Load())
}

func TestRecommendOutfitsSharesInFlightComputation(t *testing.T) {
	provider := &scriptedProvider{
		responses: []scriptedResponse{{text: validStylingResponse}},
		delay:     50 * time.Millisecond,
	}
	repo := &fakeRepo{userContext: testUserContext()}
	svc := newTestService(provider, repo, LogTelemetryRecorder{})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*models.RecommendationResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.RecommendOutfits(context.Background(), stylingRequest())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i].Recommendation.Outfits, 1)
	}
	assert.Equal(t, int32(1), provider.calls.Load(), "concurrent identical requests share one provider call")
}

func TestRecommendOutfitsToleratesPersistenceFailure(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{{text: validStylingResponse}}}
	repo := &fakeRepo{userContext: testUserContext(), saveErr: errors.New("connection refused")}
	svc := newTestService(provider, repo, LogTelemetryRecorder{})

	result, err := svc.RecommendOutfits(context.Background(), stylingRequest())
	require.NoError(t, err, "persistence failures never unwind a computed result")
	assert.Len(t, result.Recommendation.Outfits, 1)
}

func TestRecommendOutfitsUserContextLoadFailure(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{{text: validStylingResponse}}}
	repo := &fakeRepo{loadErr: errors.New("connection refused")}
	svc := newTestService(provider, repo, LogTelemetryRecorder{})

	_, err := svc.RecommendOutfits(context.Background(), stylingRequest())
	require.Error(t, err)
	var persistErr *PersistenceError
	assert.ErrorAs(t, err, &persistErr)
	assert.Equal(t, int32(0), provider.calls.Load())
}

func TestRecommendOutfitsProviderFailure(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{{err: errors.New("status 503: unavailable")}}}
	repo := &fakeRepo{userContext: testUserContext()}
	telemetry := &recordingTelemetry{}
	svc := newTestService(provider, repo, telemetry)

	_, err := svc.RecommendOutfits(context.Background(), stylingRequest())
	require.Error(t, err)
	var providerErr *ProviderError
	assert.ErrorAs(t, err, &providerErr)
	assert.Equal(t, int32(3), provider.calls.Load(), "transient failures are retried")
	assert.Equal(t, 3, telemetry.usage)

	records := repo.savedRecommendations()
	require.Len(t, records, 1)
	assert.Equal(t, "failed", records[0].Status)
	assert.NotNil(t, records[0].GenerationErrorMessage)
}

func TestRecommendOutfitsMalformedResponse(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{{text: "I cannot help with that."}}}
	repo := &fakeRepo{userContext: testUserContext()}
	svc := newTestService(provider, repo, LogTelemetryRecorder{})

	_, err := svc.RecommendOutfits(context.Background(), stylingRequest())
	require.Error(t, err)
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, int32(1), provider.calls.Load(), "malformed responses are not retried")
}

func imageRequest() ImageAnalysisRequest {
	return ImageAnalysisRequest{
		UserID:    1,
		GarmentID: 10,
		Image:     ImageInput{Data: []byte("fake-image"), MIMEType: "image/jpeg"},
	}
}

func TestAnalyzeGarmentImageSuccessAndCacheHit(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{{text: validImageResponse}}}
	repo := &fakeRepo{}
	svc := newTestService(provider, repo, LogTelemetryRecorder{})

	result, err := svc.AnalyzeGarmentImage(context.Background(), imageRequest())
	require.NoError(t, err)
	assert.Equal(t, "tops", result.Category)
	assert.Equal(t, float64(92), result.Confidence)
	assert.Equal(t, "#0000FF", result.ColorHex)
	assert.False(t, result.Degraded)
	assert.Len(t, repo.analyses, 1)
	assert.Equal(t, "completed", repo.analyses[0].Status)

	_, err = svc.AnalyzeGarmentImage(context.Background(), imageRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestAnalyzeGarmentImageDegradesToFallback(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{{text: "No JSON here, sorry."}}}
	repo := &fakeRepo{}
	svc := newTestService(provider, repo, LogTelemetryRecorder{})

	result, err := svc.AnalyzeGarmentImage(context.Background(), imageRequest())
	require.NoError(t, err, "unusable responses degrade instead of failing")
	assert.True(t, result.Degraded)
	assert.Equal(t, FallbackCategory, result.Category)
	assert.Equal(t, float64(0), result.Confidence)
	assert.Equal(t, []string{"manual-classification-needed"}, result.Tags)

	require.Len(t, repo.analyses, 1)
	assert.True(t, repo.analyses[0].Degraded)
	assert.NotNil(t, repo.analyses[0].AnalysisErrorMessage)

	// degraded results are not cached, the next attempt tries again
	_, err = svc.AnalyzeGarmentImage(context.Background(), imageRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestAnalyzeGarmentImageProviderFailure(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{{err: errors.New("status 400: bad image")}}}
	repo := &fakeRepo{}
	svc := newTestService(provider, repo, LogTelemetryRecorder{})

	_, err := svc.AnalyzeGarmentImage(context.Background(), imageRequest())
	require.Error(t, err)
	require.Len(t, repo.analyses, 1)
	assert.Equal(t, "failed", repo.analyses[0].Status)
}

func TestProcessFeedbackInvalidatesUserCache(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{{text: validStylingResponse}}}
	repo := &fakeRepo{userContext: testUserContext()}
	svc := newTestService(provider, repo, LogTelemetryRecorder{})

	_, err := svc.RecommendOutfits(context.Background(), stylingRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.calls.Load())

	err = svc.ProcessFeedback(context.Background(), &models.RecommendationFeedback{
		UserAccountID: 1,
		OutfitID:      "outfit-1",
		Rating:        2,
	})
	require.NoError(t, err)
	assert.Len(t, repo.feedback, 1)

	// the cached recommendation is gone, a fresh one is computed
	result, err := svc.RecommendOutfits(context.Background(), stylingRequest())
	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestProcessFeedbackRejectsInvalidRating(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{{text: validStylingResponse}}}
	svc := newTestService(provider, &fakeRepo{}, LogTelemetryRecorder{})

	err := svc.ProcessFeedback(context.Background(), &models.RecommendationFeedback{
		UserAccountID: 1,
		Rating:        9,
	})
	assert.Error(t, err)
}
