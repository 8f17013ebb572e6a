package services

import (
	"context"
	"fmt"

	"stylistapi/models"
)

// PersistenceError wraps repository failures that reach the caller, so storage
// problems stay distinguishable from provider or validation errors.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%v: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// UserContext is everything the styling prompt needs about one user, loaded
// in a single round trip before the provider call.
type UserContext struct {
	User     models.UserAccount
	Body     *models.BodyProfile
	Garments []models.Garment
}

// WardrobeRepository is the persistence surface the orchestrator depends on.
// The gorm implementation lives in dbhelper; tests swap in fakes.
type WardrobeRepository interface {
	LoadUserContext(ctx context.Context, userID uint) (*UserContext, error)
	SaveRecommendation(ctx context.Context, record *models.StylingRecommendationRecord) error
	SaveGarmentAnalysis(ctx context.Context, record *models.GarmentAnalysisRecord) error
	SaveFeedback(ctx context.Context, feedback *models.RecommendationFeedback) error
	UpsertStyleProfile(ctx context.Context, userID uint, analysis *models.StyleAnalysis, insights *models.PersonalizationInsights) error
}
