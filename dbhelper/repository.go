package dbhelper

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"stylistapi/models"
	"stylistapi/services"
)

// GormWardrobeRepository backs the pipeline with postgres through gorm.
type GormWardrobeRepository struct {
	db *gorm.DB
}

func NewWardrobeRepository(db *gorm.DB) *GormWardrobeRepository {
	return &GormWardrobeRepository{db: db}
}

func (r *GormWardrobeRepository) LoadUserContext(ctx context.Context, userID uint) (*services.UserContext, error) {
	var user models.UserAccount
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}

	var body models.BodyProfile
	userContext := &services.UserContext{User: user}
	err := r.db.WithContext(ctx).Where("user_account_id = ?", userID).First(&body).Error
	if err == nil {
		userContext.Body = &body
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", userID, "in_wardrobe").
		Order("id").
		Find(&userContext.Garments).Error
	if err != nil {
		return nil, err
	}
	return userContext, nil
}

func (r *GormWardrobeRepository) SaveRecommendation(ctx context.Context, record *models.StylingRecommendationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *GormWardrobeRepository) SaveGarmentAnalysis(ctx context.Context, record *models.GarmentAnalysisRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *GormWardrobeRepository) SaveFeedback(ctx context.Context, feedback *models.RecommendationFeedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

func (r *GormWardrobeRepository) UpsertStyleProfile(ctx context.Context, userID uint, analysis *models.StyleAnalysis, insights *models.PersonalizationInsights) error {
	var profile models.StyleProfile
	err := r.db.WithContext(ctx).Where("user_account_id = ?", userID).First(&profile).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	profile.UserAccountID = userID

	now := time.Now()
	profile.LastAnalyzedAt = &now
	if analysis != nil {
		raw, err := json.Marshal(analysis)
		if err != nil {
			return err
		}
		profile.AnalysisJSON = services.StrPointer(string(raw))
		if analysis.OverallStyle != "" {
			profile.OverallStyle = services.StrPointer(analysis.OverallStyle)
		}
	}
	if insights != nil {
		raw, err := json.Marshal(insights)
		if err != nil {
			return err
		}
		profile.InsightsJSON = services.StrPointer(string(raw))
	}
	return r.db.WithContext(ctx).Save(&profile).Error
}
