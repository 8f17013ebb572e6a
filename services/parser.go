package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"stylistapi/models"
)

// ErrNoStructuredData marks a provider response with no JSON payload at all.
var ErrNoStructuredData = errors.New("no structured data in provider response")

// MalformedResponseError marks a response whose JSON payload could not be
// turned into a usable domain object.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed provider response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

const (
	// DefaultFallbackConfidenceCap bounds the confidence of any result whose
	// primary category had to be replaced by the fallback.
	DefaultFallbackConfidenceCap = 30

	FallbackCategory        = "tops"
	manualClassificationTag = "manual-classification-needed"
)

// ExtractJSONBlock finds the JSON object or array embedded in free-form model
// output, tolerating markdown fences and prose around it.
func ExtractJSONBlock(raw string) (string, error) {
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return "", ErrNoStructuredData
	}
	closer := byte('}')
	if raw[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(raw, closer)
	if end <= start {
		return "", ErrNoStructuredData
	}
	return raw[start : end+1], nil
}

// FallbackImageAnalysis is the degraded result used when a photo response is
// unusable: the garment lands in the wardrobe unclassified and flagged for
// manual review instead of failing the upload.
func FallbackImageAnalysis() *models.ImageAnalysisResult {
	return &models.ImageAnalysisResult{
		Confidence: 0,
		Category:   FallbackCategory,
		Tags:       []string{manualClassificationTag},
		Degraded:   true,
	}
}

type rawImageAnalysis struct {
	Confidence  float64                     `json:"confidence"`
	Category    string                      `json:"category"`
	Subcategory string                      `json:"subcategory"`
	Color       string                      `json:"color"`
	Material    string                      `json:"material"`
	Pattern     string                      `json:"pattern"`
	Style       string                      `json:"style"`
	Brand       string                      `json:"brand"`
	Description string                      `json:"description"`
	Season      string                      `json:"season"`
	Tags        []string                    `json:"tags"`
	Suggestions *models.AnalysisSuggestions `json:"suggestions"`
}

// ParseImageAnalysis validates one classification response against the
// taxonomy. Structural failures return the fallback result together with the
// typed error so the caller can log and persist the degradation; field-level
// problems are repaired in place (clamped, dropped or replaced by the
// fallback category with capped confidence).
func ParseImageAnalysis(rawText string, taxonomy *models.GarmentTaxonomy, fallbackCap float64) (*models.ImageAnalysisResult, error) {
	block, err := ExtractJSONBlock(rawText)
	if err != nil {
		return FallbackImageAnalysis(), err
	}
	var raw rawImageAnalysis
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return FallbackImageAnalysis(), &MalformedResponseError{Err: err}
	}

	out := &models.ImageAnalysisResult{
		Confidence:  clampFloat(raw.Confidence, 0, 100),
		Pattern:     strings.TrimSpace(raw.Pattern),
		Style:       strings.TrimSpace(raw.Style),
		Brand:       strings.TrimSpace(raw.Brand),
		Description: strings.TrimSpace(raw.Description),
		Tags:        normalizeTags(raw.Tags),
	}

	if taxonomy.IsValidCategory(raw.Category) {
		out.Category = raw.Category
		if sub := strings.TrimSpace(raw.Subcategory); sub != "" && taxonomy.IsValidSubcategory(raw.Category, sub) {
			out.Subcategory = StrPointer(sub)
		}
	} else {
		// Unknown category invalidates the subcategory too.
		log.Printf("[Parser] category %q not in taxonomy, falling back to %q", raw.Category, FallbackCategory)
		out.Category = FallbackCategory
		out.Degraded = true
		if out.Confidence > fallbackCap {
			out.Confidence = fallbackCap
		}
	}

	if color := strings.TrimSpace(raw.Color); color != "" {
		out.Color = color
		if resolved, ok := taxonomy.ResolveColor(color); ok {
			out.ColorHex = resolved.Hex
		}
	}

	if material := strings.TrimSpace(raw.Material); material != "" {
		out.Material = material
		if !taxonomy.IsValidMaterial(material) {
			log.Printf("[Parser] material %q not in taxonomy, keeping as advisory", material)
		}
	}

	if models.IsValidSeason(raw.Season) {
		out.Season = raw.Season
	}

	if raw.Suggestions != nil {
		out.Suggestions = &models.AnalysisSuggestions{
			AlternativeCategories: filterByTaxonomy(raw.Suggestions.AlternativeCategories, taxonomy.IsValidCategory),
			AlternativeColors:     filterColors(raw.Suggestions.AlternativeColors, taxonomy),
			CareInstructions:      filterNonEmpty(raw.Suggestions.CareInstructions),
			StylingTips:           filterNonEmpty(raw.Suggestions.StylingTips),
		}
	}

	return out, nil
}

// ParseStylingRecommendation validates one styling response. Unlike the image
// path there is no useful fallback here, so structural failures come back as
// typed errors. Garment ids the model invented are collected and logged, not
// fatal.
func ParseStylingRecommendation(rawText string, input models.StylingInput, maxOutfits int) (*models.StylingRecommendation, error) {
	block, err := ExtractJSONBlock(rawText)
	if err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	var rec models.StylingRecommendation
	if err := json.Unmarshal([]byte(block), &rec); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	if len(rec.Outfits) == 0 {
		return nil, &MalformedResponseError{Err: errors.New("response contains no outfits")}
	}

	known := make(map[uint]bool, len(input.Garments))
	for _, g := range input.Garments {
		known[g.ID] = true
	}

	if maxOutfits > 0 && len(rec.Outfits) > maxOutfits {
		log.Printf("[Parser] truncating %v outfits to requested maximum %v", len(rec.Outfits), maxOutfits)
		rec.Outfits = rec.Outfits[:maxOutfits]
	}

	seenHallucinated := make(map[uint]bool)
	for i := range rec.Outfits {
		outfit := &rec.Outfits[i]
		if outfit.ID == "" {
			outfit.ID = fmt.Sprintf("outfit-%d", i+1)
		}
		outfit.Name = strings.TrimSpace(outfit.Name)
		outfit.Description = strings.TrimSpace(outfit.Description)
		outfit.Confidence = clampFloat(outfit.Confidence, 0, 1)
		outfit.StylingTips = filterNonEmpty(outfit.StylingTips)
		if ca := outfit.ColorAnalysis; ca != nil {
			ca.HarmonyScore = clampFloat(ca.HarmonyScore, 0, 1)
			ca.SkinToneCompatibility = clampFloat(ca.SkinToneCompatibility, 0, 1)
		}
		for _, item := range outfit.Items {
			if !known[item.GarmentID] && !seenHallucinated[item.GarmentID] {
				seenHallucinated[item.GarmentID] = true
				rec.HallucinatedItemIDs = append(rec.HallucinatedItemIDs, item.GarmentID)
				log.Printf("[Parser] outfit %v references unknown garment id %v", outfit.ID, item.GarmentID)
			}
		}
	}

	if rec.StyleAnalysis != nil {
		rec.StyleAnalysis.StrengthAreas = filterNonEmpty(rec.StyleAnalysis.StrengthAreas)
		rec.StyleAnalysis.ImprovementAreas = filterNonEmpty(rec.StyleAnalysis.ImprovementAreas)
	}
	if rec.Insights != nil {
		rec.Insights.PreferredColors = filterNonEmpty(rec.Insights.PreferredColors)
		rec.Insights.PreferredCategories = filterNonEmpty(rec.Insights.PreferredCategories)
		rec.Insights.Suggestions = filterNonEmpty(rec.Insights.Suggestions)
	}

	return &rec, nil
}

func normalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		normalized := models.LowerCaser.String(strings.TrimSpace(tag))
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}

func filterByTaxonomy(values []string, valid func(string) bool) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" && valid(trimmed) {
			out = append(out, trimmed)
		}
	}
	return out
}

func filterColors(values []string, taxonomy *models.GarmentTaxonomy) []string {
	var out []string
	for _, v := range values {
		if resolved, ok := taxonomy.ResolveColor(v); ok {
			out = append(out, resolved.ID)
		}
	}
	return out
}
