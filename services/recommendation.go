package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator"

	"stylistapi/models"
)

// DefaultMaxOutfits is used when the request carries no preference.
const DefaultMaxOutfits = 3

// RecommendationService runs the two pipeline operations end to end:
// validate, fingerprint, consult the cache, deduplicate concurrent identical
// requests, call the provider with retries, validate the response and persist
// the outcome.
type RecommendationService struct {
	provider  LLMProvider
	cache     *ResponseCache
	taxonomy  *models.GarmentTaxonomy
	repo      WardrobeRepository
	telemetry TelemetryRecorder
	config    *PipelineConfig
	pricing   PricingFunc
	validate  *validator.Validate
	flights   *flightGroup[string]
}

func NewRecommendationService(
	provider LLMProvider,
	responseCache *ResponseCache,
	taxonomy *models.GarmentTaxonomy,
	repo WardrobeRepository,
	telemetry TelemetryRecorder,
	config *PipelineConfig,
) *RecommendationService {
	validate := validator.New()
	validate.RegisterValidation("recommendationtype", models.ValidateRecommendationType)
	validate.RegisterValidation("season", models.ValidateSeason)
	return &RecommendationService{
		provider:  provider,
		cache:     responseCache,
		taxonomy:  taxonomy,
		repo:      repo,
		telemetry: telemetry,
		config:    config,
		pricing:   PricingFor(provider.Name()),
		validate:  validate,
		flights:   newFlightGroup[string](),
	}
}

func (s *RecommendationService) params(model string) GenerationParams {
	return GenerationParams{
		Model:           model,
		MaxOutputTokens: s.config.MaxOutputTokens,
		Temperature:     s.config.Temperature,
		TopP:            s.config.TopP,
		TopK:            s.config.TopK,
	}
}

// RecommendOutfits produces outfit recommendations for one user. Identical
// requests within the cache TTL are answered from cache; identical requests
// in flight at the same time share a single provider call.
func (s *RecommendationService) RecommendOutfits(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResult, error) {
	start := time.Now()
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid recommendation request: %w", err)
	}

	fingerprint, err := Fingerprint(OpStyling, req.UserID, req)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(ctx, fingerprint); ok {
		var result models.RecommendationResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			result.CacheHit = true
			result.DurationMs = time.Since(start).Milliseconds()
			s.telemetry.RecordPipelineOutcome(req.UserID, OpStyling, true, len(result.Recommendation.Outfits), result.DurationMs)
			return &result, nil
		}
		log.Printf("[Recommendation] dropping undecodable cache entry %v", fingerprint)
	}

	payload, err := s.flights.do(ctx, fingerprint, func(runCtx context.Context) (string, error) {
		return s.computeStyling(runCtx, req, fingerprint)
	})
	if err != nil {
		s.telemetry.RecordPipelineOutcome(req.UserID, OpStyling, false, 0, time.Since(start).Milliseconds())
		return nil, err
	}

	var result models.RecommendationResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decoding computed recommendation: %w", err)
	}
	result.DurationMs = time.Since(start).Milliseconds()
	s.telemetry.RecordPipelineOutcome(req.UserID, OpStyling, true, len(result.Recommendation.Outfits), result.DurationMs)
	return &result, nil
}

func (s *RecommendationService) computeStyling(ctx context.Context, req models.RecommendationRequest, fingerprint string) (string, error) {
	start := time.Now()

	userContext, err := s.repo.LoadUserContext(ctx, req.UserID)
	if err != nil {
		return "", &PersistenceError{Op: "loading user context", Err: err}
	}

	input := models.StylingInput{
		User:     userContext.User,
		Body:     userContext.Body,
		Garments: selectGarments(userContext.Garments, req.Context),
		Request:  req,
	}
	prompt := BuildStylingPrompt(input, s.taxonomy)

	resp, err := CallWithRetry(ctx, s.provider.Name(), req.UserID, OpStyling, prompt, s.config, s.telemetry, s.pricing,
		func(callCtx context.Context) (*ProviderResponse, error) {
			return s.provider.Complete(callCtx, prompt, s.params(s.config.Model))
		})
	if err != nil {
		s.persistStylingFailure(ctx, req, err, start)
		return "", err
	}

	maxOutfits := DefaultMaxOutfits
	if req.Preferences != nil && req.Preferences.MaxOutfits > 0 {
		maxOutfits = req.Preferences.MaxOutfits
	}
	recommendation, err := ParseStylingRecommendation(resp.Text, input, maxOutfits)
	if err != nil {
		s.persistStylingFailure(ctx, req, err, start)
		return "", err
	}

	cost := s.pricing(resp.InputTokenCount, resp.OutputTokenCount)
	result := models.RecommendationResult{
		Recommendation:      *recommendation,
		AggregateConfidence: aggregateConfidence(recommendation.Outfits),
		CostEstimate:        cost,
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encoding recommendation: %w", err)
	}

	s.persistStyling(ctx, req, recommendation, &result, resp, start)
	s.cache.Put(ctx, fingerprint, string(payload), s.config.StylingCacheTTL,
		[]string{UserTag(req.UserID), OpTag(OpStyling)})
	return string(payload), nil
}

// persistStyling records the run and updates the style profile. Persistence
// is best effort: failures are logged and reported, never returned.
func (s *RecommendationService) persistStyling(ctx context.Context, req models.RecommendationRequest, recommendation *models.StylingRecommendation, result *models.RecommendationResult, resp *ProviderResponse, start time.Time) {
	resultJSON, _ := json.Marshal(recommendation)
	record := &models.StylingRecommendationRecord{
		UserAccountID:       req.UserID,
		RecommendationType:  req.Type.Value(),
		Status:              "completed",
		ResultJSON:          StrPointer(string(resultJSON)),
		OutfitCount:         len(recommendation.Outfits),
		AggregateConfidence: Float64Pointer(result.AggregateConfidence),
		Duration:            Float64Pointer(time.Since(start).Seconds()),
		LLMModel:            StrPointer(s.config.Model),
		LLMInputTokenCount:  Int32Pointer(resp.InputTokenCount),
		LLMOutputTokenCount: Int32Pointer(resp.OutputTokenCount),
		LLMTotalTokenCount:  Int32Pointer(resp.TotalTokenCount),
		CostEstimate:        Float64Pointer(result.CostEstimate),
	}
	if err := s.repo.SaveRecommendation(ctx, record); err != nil {
		log.Printf("[Recommendation] failed to persist recommendation for user %v: %v", req.UserID, err)
		sentry.CaptureException(err)
	}

	if recommendation.StyleAnalysis != nil || recommendation.Insights != nil {
		if err := s.repo.UpsertStyleProfile(ctx, req.UserID, recommendation.StyleAnalysis, recommendation.Insights); err != nil {
			log.Printf("[Recommendation] failed to update style profile for user %v: %v", req.UserID, err)
			sentry.CaptureException(err)
		}
	}
}

func (s *RecommendationService) persistStylingFailure(ctx context.Context, req models.RecommendationRequest, cause error, start time.Time) {
	record := &models.StylingRecommendationRecord{
		UserAccountID:          req.UserID,
		RecommendationType:     req.Type.Value(),
		Status:                 "failed",
		Duration:               Float64Pointer(time.Since(start).Seconds()),
		LLMModel:               StrPointer(s.config.Model),
		GenerationErrorMessage: StrPointer(cause.Error()),
	}
	if err := s.repo.SaveRecommendation(ctx, record); err != nil {
		log.Printf("[Recommendation] failed to persist failed run for user %v: %v", req.UserID, err)
		sentry.CaptureException(err)
	}
}

// ImageAnalysisRequest identifies one garment photo to classify.
type ImageAnalysisRequest struct {
	UserID    uint `validate:"required"`
	GarmentID uint `validate:"required"`
	Image     ImageInput
}

type imageFingerprintInput struct {
	GarmentID   uint   `json:"garment_id"`
	ImageDigest string `json:"image_digest,omitempty"`
	ImageURI    string `json:"image_uri,omitempty"`
	MIMEType    string `json:"mime_type,omitempty"`
}

// AnalyzeGarmentImage classifies one garment photo against the taxonomy.
// Unusable provider responses degrade to the manual-classification fallback
// instead of failing; only provider errors that survive the retry loop are
// returned.
func (s *RecommendationService) AnalyzeGarmentImage(ctx context.Context, req ImageAnalysisRequest) (*models.ImageAnalysisResult, error) {
	start := time.Now()
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid image analysis request: %w", err)
	}

	fpInput := imageFingerprintInput{
		GarmentID: req.GarmentID,
		ImageURI:  req.Image.URI,
		MIMEType:  req.Image.MIMEType,
	}
	if req.Image.IsInline() {
		digest := sha256.Sum256(req.Image.Data)
		fpInput.ImageDigest = hex.EncodeToString(digest[:])
	}
	fingerprint, err := Fingerprint(OpImageAnalysis, req.UserID, fpInput)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(ctx, fingerprint); ok {
		var result models.ImageAnalysisResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			s.telemetry.RecordPipelineOutcome(req.UserID, OpImageAnalysis, true, 1, time.Since(start).Milliseconds())
			return &result, nil
		}
		log.Printf("[ImageAnalysis] dropping undecodable cache entry %v", fingerprint)
	}

	payload, err := s.flights.do(ctx, fingerprint, func(runCtx context.Context) (string, error) {
		return s.computeImageAnalysis(runCtx, req, fingerprint)
	})
	if err != nil {
		s.telemetry.RecordPipelineOutcome(req.UserID, OpImageAnalysis, false, 0, time.Since(start).Milliseconds())
		return nil, err
	}

	var result models.ImageAnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decoding computed analysis: %w", err)
	}
	s.telemetry.RecordPipelineOutcome(req.UserID, OpImageAnalysis, true, 1, time.Since(start).Milliseconds())
	return &result, nil
}

func (s *RecommendationService) computeImageAnalysis(ctx context.Context, req ImageAnalysisRequest, fingerprint string) (string, error) {
	start := time.Now()
	prompt := BuildImageAnalysisPrompt(s.taxonomy)

	resp, err := CallWithRetry(ctx, s.provider.Name(), req.UserID, OpImageAnalysis, prompt, s.config, s.telemetry, s.pricing,
		func(callCtx context.Context) (*ProviderResponse, error) {
			return s.provider.CompleteWithImage(callCtx, prompt, req.Image, s.params(s.config.ImageModel))
		})
	if err != nil {
		s.persistImageAnalysis(ctx, req, nil, nil, err, start)
		return "", err
	}

	result, parseErr := ParseImageAnalysis(resp.Text, s.taxonomy, s.config.FallbackConfidenceCap)
	if parseErr != nil {
		log.Printf("[ImageAnalysis] unusable response for garment %v, using fallback: %v", req.GarmentID, parseErr)
		sentry.CaptureException(parseErr)
	}

	s.persistImageAnalysis(ctx, req, result, resp, parseErr, start)

	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encoding analysis: %w", err)
	}
	// Degraded results are not cached so a later retry gets a fresh chance.
	if !result.Degraded {
		s.cache.Put(ctx, fingerprint, string(payload), s.config.ImageCacheTTL,
			[]string{UserTag(req.UserID), OpTag(OpImageAnalysis)})
	}
	return string(payload), nil
}

func (s *RecommendationService) persistImageAnalysis(ctx context.Context, req ImageAnalysisRequest, result *models.ImageAnalysisResult, resp *ProviderResponse, cause error, start time.Time) {
	record := &models.GarmentAnalysisRecord{
		GarmentID:     req.GarmentID,
		UserAccountID: req.UserID,
		Duration:      Float64Pointer(time.Since(start).Seconds()),
		LLMModel:      StrPointer(s.config.ImageModel),
	}
	if result != nil {
		resultJSON, _ := json.Marshal(result)
		record.Status = "completed"
		record.ResultJSON = StrPointer(string(resultJSON))
		record.Degraded = result.Degraded
		record.Confidence = Float64Pointer(result.Confidence)
	} else {
		record.Status = "failed"
	}
	if cause != nil {
		record.AnalysisErrorMessage = StrPointer(cause.Error())
	}
	if resp != nil {
		record.LLMInputTokenCount = Int32Pointer(resp.InputTokenCount)
		record.LLMOutputTokenCount = Int32Pointer(resp.OutputTokenCount)
		record.LLMTotalTokenCount = Int32Pointer(resp.TotalTokenCount)
		record.CostEstimate = Float64Pointer(s.pricing(resp.InputTokenCount, resp.OutputTokenCount))
	}
	if err := s.repo.SaveGarmentAnalysis(ctx, record); err != nil {
		log.Printf("[ImageAnalysis] failed to persist analysis for garment %v: %v", req.GarmentID, err)
		sentry.CaptureException(err)
	}
}

// ProcessFeedback stores the reaction and invalidates every cached
// recommendation for the user, so the next request reflects it.
func (s *RecommendationService) ProcessFeedback(ctx context.Context, feedback *models.RecommendationFeedback) error {
	if err := s.validate.Struct(feedback); err != nil {
		return fmt.Errorf("invalid feedback: %w", err)
	}
	if err := s.repo.SaveFeedback(ctx, feedback); err != nil {
		return &PersistenceError{Op: "saving feedback", Err: err}
	}
	s.cache.InvalidateUser(ctx, feedback.UserAccountID)
	return nil
}

func selectGarments(garments []models.Garment, reqContext *models.RecommendationContext) []models.Garment {
	if reqContext == nil {
		return garments
	}
	include := make(map[uint]bool, len(reqContext.IncludeGarmentIDs))
	for _, id := range reqContext.IncludeGarmentIDs {
		include[id] = true
	}
	exclude := make(map[uint]bool, len(reqContext.ExcludeGarmentIDs))
	for _, id := range reqContext.ExcludeGarmentIDs {
		exclude[id] = true
	}
	var out []models.Garment
	for _, g := range garments {
		if exclude[g.ID] {
			continue
		}
		if len(include) > 0 && !include[g.ID] {
			continue
		}
		out = append(out, g)
	}
	return out
}

func aggregateConfidence(outfits []models.Outfit) float64 {
	if len(outfits) == 0 {
		return 0
	}
	var sum float64
	for _, o := range outfits {
		sum += o.Confidence
	}
	return sum / float64(len(outfits))
}
