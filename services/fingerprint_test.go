package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"stylistapi/models"
)

func TestFingerprintIsOrderInvariant(t *testing.T) {
	first := models.RecommendationRequest{
		UserID: 7,
		Type:   models.RecommendationStyling,
		Context: &models.RecommendationContext{
			Occasion:          "work",
			IncludeGarmentIDs: []uint{3, 1, 2},
		},
	}
	second := models.RecommendationRequest{
		UserID: 7,
		Type:   models.RecommendationStyling,
		Context: &models.RecommendationContext{
			Occasion:          "work",
			IncludeGarmentIDs: []uint{1, 2, 3},
		},
	}

	fpFirst, err := Fingerprint(OpStyling, 7, first)
	assert.NoError(t, err)
	fpSecond, err := Fingerprint(OpStyling, 7, second)
	assert.NoError(t, err)
	assert.Equal(t, fpFirst, fpSecond)
}

func TestFingerprintFormat(t *testing.T) {
	fp, err := Fingerprint(OpStyling, 42, map[string]string{"k": "v"})
	assert.NoError(t, err)

	parts := strings.Split(fp, ":")
	assert.Len(t, parts, 3)
	assert.Equal(t, "styling", parts[0])
	assert.Equal(t, "42", parts[1])
	assert.Len(t, parts[2], 64)
}

func TestFingerprintChangesWithInput(t *testing.T) {
	base := models.RecommendationRequest{UserID: 7, Type: models.RecommendationStyling}
	other := models.RecommendationRequest{UserID: 7, Type: models.RecommendationSeasonal}

	fpBase, err := Fingerprint(OpStyling, 7, base)
	assert.NoError(t, err)
	fpOther, err := Fingerprint(OpStyling, 7, other)
	assert.NoError(t, err)
	assert.NotEqual(t, fpBase, fpOther)

	fpOtherUser, err := Fingerprint(OpStyling, 8, base)
	assert.NoError(t, err)
	assert.NotEqual(t, fpBase, fpOtherUser)

	fpOtherOp, err := Fingerprint(OpImageAnalysis, 7, base)
	assert.NoError(t, err)
	assert.NotEqual(t, fpBase, fpOtherOp)
}
