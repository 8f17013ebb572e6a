package services

import (
	"fmt"
	"sort"
	"strings"

	"stylistapi/models"
)

const notSpecified = "Not specified"

func orNotSpecified(value string) string {
	if strings.TrimSpace(value) == "" {
		return notSpecified
	}
	return value
}

func strOrNotSpecified(value *string) string {
	if value == nil {
		return notSpecified
	}
	return orNotSpecified(*value)
}

const stylingResponseExample = `{
  "outfits": [
    {
      "id": "outfit-1",
      "name": "Smart Casual Friday",
      "description": "A relaxed but put-together look",
      "confidence": 0.85,
      "occasion": "work",
      "season": "fall",
      "weather": "mild",
      "items": [
        {"garment_id": 12, "category": "tops", "display_order": 1, "notes": "tucked in"},
        {"garment_id": 34, "category": "bottoms", "display_order": 2}
      ],
      "styling_tips": ["Roll the sleeves for a more casual feel"],
      "color_analysis": {
        "dominant_colors": ["navy", "white"],
        "harmony_score": 0.9,
        "skin_tone_compatibility": 0.8
      }
    }
  ],
  "style_analysis": {
    "overall_style": "smart casual",
    "strength_areas": ["color coordination"],
    "improvement_areas": ["layering"],
    "summary": "A cohesive wardrobe with room for outerwear variety"
  },
  "personalization_insights": {
    "preferred_colors": ["navy", "white"],
    "preferred_categories": ["tops"],
    "suggestions": ["Add a light jacket for transitional weather"]
  }
}`

const imageAnalysisResponseExample = `{
  "confidence": 85,
  "category": "tops",
  "subcategory": "shirts",
  "color": "blue",
  "material": "cotton",
  "pattern": "solid",
  "style": "casual",
  "brand": "",
  "description": "A light blue button-down shirt",
  "season": "spring",
  "tags": ["casual", "office"],
  "suggestions": {
    "alternative_categories": [],
    "alternative_colors": ["navy"],
    "care_instructions": ["machine wash cold"],
    "styling_tips": ["Pairs well with dark trousers"]
  }
}`

// BuildStylingPrompt renders the fully resolved styling request into the
// prompt text. Output is byte-for-byte deterministic for identical inputs:
// garments are sorted by id and every section is emitted in a fixed order.
func BuildStylingPrompt(input models.StylingInput, taxonomy *models.GarmentTaxonomy) string {
	var b strings.Builder

	b.WriteString("You are a professional fashion stylist. Build outfit recommendations using only the wardrobe items listed below.\n\n")
	b.WriteString(taxonomy.Manifest())
	b.WriteString("\n")

	b.WriteString("User profile:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orNotSpecified(input.User.Name))
	fmt.Fprintf(&b, "- Style preferences: %s\n", strOrNotSpecified(input.User.StylePreferences))
	if body := input.Body; body != nil {
		fmt.Fprintf(&b, "- Body type: %s\n", strOrNotSpecified(body.BodyType))
		fmt.Fprintf(&b, "- Height: %s\n", intOrNotSpecified(body.HeightCm, "cm"))
		fmt.Fprintf(&b, "- Weight: %s\n", intOrNotSpecified(body.WeightKg, "kg"))
		fmt.Fprintf(&b, "- Skin tone: %s\n", strOrNotSpecified(body.SkinTone))
		fmt.Fprintf(&b, "- Hair color: %s\n", strOrNotSpecified(body.HairColor))
	} else {
		b.WriteString("- Body profile: Not specified\n")
	}
	b.WriteString("\n")

	b.WriteString("Request context:\n")
	fmt.Fprintf(&b, "- Recommendation type: %s\n", input.Request.Type.Value())
	occasion, season, weather := "", "", ""
	if c := input.Request.Context; c != nil {
		occasion, season, weather = c.Occasion, c.Season, c.Weather
	}
	fmt.Fprintf(&b, "- Occasion: %s\n", orNotSpecified(occasion))
	fmt.Fprintf(&b, "- Season: %s\n", orNotSpecified(season))
	fmt.Fprintf(&b, "- Weather: %s\n", orNotSpecified(weather))
	b.WriteString("\n")

	b.WriteString("Wardrobe:\n")
	garments := make([]models.Garment, len(input.Garments))
	copy(garments, input.Garments)
	sort.Slice(garments, func(i, j int) bool { return garments[i].ID < garments[j].ID })
	for _, g := range garments {
		fmt.Fprintf(&b, "- id=%d category=%s subcategory=%s color=%s material=%s season=%s name=%s\n",
			g.ID,
			orNotSpecified(g.Category),
			strOrNotSpecified(g.Subcategory),
			strOrNotSpecified(g.Color),
			strOrNotSpecified(g.Material),
			strOrNotSpecified(g.Season),
			orNotSpecified(g.Name),
		)
	}
	if len(garments) == 0 {
		b.WriteString("- (empty)\n")
	}
	b.WriteString("\n")

	maxOutfits := DefaultMaxOutfits
	includeColor, includeStyle, includePersonalization := true, true, true
	if p := input.Request.Preferences; p != nil {
		if p.MaxOutfits > 0 {
			maxOutfits = p.MaxOutfits
		}
		includeColor = p.IncludeColorAnalysis
		includeStyle = p.IncludeStyleAnalysis
		includePersonalization = p.IncludePersonalization
	}
	fmt.Fprintf(&b, "Produce at most %d outfits.\n", maxOutfits)
	fmt.Fprintf(&b, "Include color analysis per outfit: %v\n", includeColor)
	fmt.Fprintf(&b, "Include overall style analysis: %v\n", includeStyle)
	fmt.Fprintf(&b, "Include personalization insights: %v\n", includePersonalization)
	b.WriteString("\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Reference garments strictly by their numeric id from the wardrobe list.\n")
	b.WriteString("- Use only categories, colors, materials and seasons from the lists above.\n")
	b.WriteString("- Confidence is a number between 0 and 1.\n")
	b.WriteString("\n")

	b.WriteString("Respond with only a JSON object, no markdown fences and no commentary, in exactly this shape:\n")
	b.WriteString(stylingResponseExample)
	b.WriteString("\n")

	return b.String()
}

// BuildImageAnalysisPrompt renders the garment classification prompt. It only
// depends on the taxonomy, so the text is identical for every photo.
func BuildImageAnalysisPrompt(taxonomy *models.GarmentTaxonomy) string {
	var b strings.Builder

	b.WriteString("You are a fashion catalog assistant. Classify the garment in the attached photo.\n\n")
	b.WriteString(taxonomy.Manifest())
	b.WriteString("\n")

	b.WriteString("Rules:\n")
	b.WriteString("- category must be one of the valid category ids, subcategory one of that category's subcategories.\n")
	b.WriteString("- color must be one of the valid color ids or names.\n")
	b.WriteString("- confidence is a number between 0 and 100.\n")
	b.WriteString("- Leave brand empty unless it is clearly visible.\n")
	b.WriteString("\n")

	b.WriteString("Respond with only a JSON object, no markdown fences and no commentary, in exactly this shape:\n")
	b.WriteString(imageAnalysisResponseExample)
	b.WriteString("\n")

	return b.String()
}

func intOrNotSpecified(value *int, unit string) string {
	if value == nil {
		return notSpecified
	}
	return fmt.Sprintf("%d %s", *value, unit)
}
