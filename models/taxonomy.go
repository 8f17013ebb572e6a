package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var LowerCaser = cases.Lower(language.English)

// Season values the pipeline accepts from the model. Anything else is dropped.
const (
	SeasonSpring = "spring"
	SeasonSummer = "summer"
	SeasonFall   = "fall"
	SeasonWinter = "winter"
)

var Seasons = []string{SeasonSpring, SeasonSummer, SeasonFall, SeasonWinter}

func IsValidSeason(value string) bool {
	for _, s := range Seasons {
		if s == value {
			return true
		}
	}
	return false
}

type TaxonomyCategory struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
	Sizes         []string `json:"sizes"`
}

type TaxonomyColor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Hex    string `json:"hex"`
	Family string `json:"family"` // neutral, warm, cool, earth
}

// GarmentTaxonomy is the closed reference set of valid categories, colors and
// materials. Built once at process start, read-only afterwards, safe for
// concurrent reads. Membership checks are case-sensitive on ids, color name
// resolution is not.
type GarmentTaxonomy struct {
	categoryOrder []string
	categories    map[string]TaxonomyCategory
	colorOrder    []TaxonomyColor
	colorByKey    map[string]TaxonomyColor
	materialSet   map[string]bool
	materials     []string
}

func NewGarmentTaxonomy(categories []TaxonomyCategory, colors []TaxonomyColor, materials []string) *GarmentTaxonomy {
	t := &GarmentTaxonomy{
		categories:  make(map[string]TaxonomyCategory, len(categories)),
		colorByKey:  make(map[string]TaxonomyColor, len(colors)*2),
		materialSet: make(map[string]bool, len(materials)),
	}
	for _, c := range categories {
		t.categoryOrder = append(t.categoryOrder, c.ID)
		t.categories[c.ID] = c
	}
	for _, c := range colors {
		t.colorOrder = append(t.colorOrder, c)
		t.colorByKey[c.ID] = c
		t.colorByKey[LowerCaser.String(c.Name)] = c
	}
	for _, m := range materials {
		t.materials = append(t.materials, m)
		t.materialSet[m] = true
	}
	return t
}

func (t *GarmentTaxonomy) IsValidCategory(id string) bool {
	_, ok := t.categories[id]
	return ok
}

func (t *GarmentTaxonomy) IsValidSubcategory(categoryID, subID string) bool {
	category, ok := t.categories[categoryID]
	if !ok {
		return false
	}
	for _, sub := range category.Subcategories {
		if sub == subID {
			return true
		}
	}
	return false
}

// ResolveColor matches a color by id or display name, case-insensitively.
// When no exact match exists it falls back to the nearest match: the first
// taxonomy color whose id is contained in the given name ("navy blue" -> navy).
func (t *GarmentTaxonomy) ResolveColor(nameOrID string) (TaxonomyColor, bool) {
	key := LowerCaser.String(strings.TrimSpace(nameOrID))
	if key == "" {
		return TaxonomyColor{}, false
	}
	if color, ok := t.colorByKey[key]; ok {
		return color, true
	}
	best := -1
	bestPos := 0
	for i, color := range t.colorOrder {
		pos := strings.Index(key, color.ID)
		if pos < 0 {
			continue
		}
		// prefer the longest contained id, then the earliest occurrence
		if best < 0 || len(color.ID) > len(t.colorOrder[best].ID) ||
			(len(color.ID) == len(t.colorOrder[best].ID) && pos < bestPos) {
			best = i
			bestPos = pos
		}
	}
	if best >= 0 {
		return t.colorOrder[best], true
	}
	return TaxonomyColor{}, false
}

func (t *GarmentTaxonomy) IsValidMaterial(material string) bool {
	return t.materialSet[material]
}

func (t *GarmentTaxonomy) Materials() []string {
	out := make([]string, len(t.materials))
	copy(out, t.materials)
	return out
}

func (t *GarmentTaxonomy) CategoryIDs() []string {
	out := make([]string, len(t.categoryOrder))
	copy(out, t.categoryOrder)
	return out
}

func (t *GarmentTaxonomy) Category(id string) (TaxonomyCategory, bool) {
	c, ok := t.categories[id]
	return c, ok
}

func (t *GarmentTaxonomy) SizesFor(categoryID string) []string {
	if c, ok := t.categories[categoryID]; ok {
		return c.Sizes
	}
	return nil
}

// Manifest renders the taxonomy as a deterministic text block embedded into
// prompts so the model is constrained to legal values.
func (t *GarmentTaxonomy) Manifest() string {
	var b strings.Builder
	b.WriteString("Valid categories and subcategories:\n")
	for _, id := range t.categoryOrder {
		c := t.categories[id]
		fmt.Fprintf(&b, "- %s: %s\n", c.ID, strings.Join(c.Subcategories, ", "))
	}
	b.WriteString("Valid colors:\n")
	for _, c := range t.colorOrder {
		fmt.Fprintf(&b, "- %s (%s, %s family)\n", c.ID, c.Hex, c.Family)
	}
	b.WriteString("Valid materials: ")
	b.WriteString(strings.Join(t.materials, ", "))
	b.WriteString("\nValid seasons: ")
	b.WriteString(strings.Join(Seasons, ", "))
	b.WriteString("\n")
	return b.String()
}

// DefaultTaxonomy is the reference table shipped with the service.
func DefaultTaxonomy() *GarmentTaxonomy {
	letterSizes := []string{"XS", "S", "M", "L", "XL", "XXL"}
	return NewGarmentTaxonomy(
		[]TaxonomyCategory{
			{ID: "tops", Name: "Tops", Subcategories: []string{"t-shirts", "shirts", "blouses", "sweaters", "hoodies", "tank-tops"}, Sizes: letterSizes},
			{ID: "bottoms", Name: "Bottoms", Subcategories: []string{"jeans", "trousers", "shorts", "skirts", "leggings"}, Sizes: letterSizes},
			{ID: "dresses", Name: "Dresses", Subcategories: []string{"casual-dresses", "evening-dresses", "maxi-dresses", "mini-dresses"}, Sizes: letterSizes},
			{ID: "outerwear", Name: "Outerwear", Subcategories: []string{"jackets", "coats", "blazers", "vests", "parkas"}, Sizes: letterSizes},
			{ID: "shoes", Name: "Shoes", Subcategories: []string{"sneakers", "boots", "sandals", "heels", "loafers"}, Sizes: []string{"36", "37", "38", "39", "40", "41", "42", "43", "44", "45"}},
			{ID: "accessories", Name: "Accessories", Subcategories: []string{"bags", "hats", "belts", "scarves", "jewelry", "sunglasses"}, Sizes: []string{"one-size"}},
		},
		[]TaxonomyColor{
			{ID: "black", Name: "Black", Hex: "#000000", Family: "neutral"},
			{ID: "white", Name: "White", Hex: "#FFFFFF", Family: "neutral"},
			{ID: "gray", Name: "Gray", Hex: "#808080", Family: "neutral"},
			{ID: "beige", Name: "Beige", Hex: "#F5F5DC", Family: "earth"},
			{ID: "brown", Name: "Brown", Hex: "#8B4513", Family: "earth"},
			{ID: "red", Name: "Red", Hex: "#FF0000", Family: "warm"},
			{ID: "orange", Name: "Orange", Hex: "#FFA500", Family: "warm"},
			{ID: "yellow", Name: "Yellow", Hex: "#FFFF00", Family: "warm"},
			{ID: "pink", Name: "Pink", Hex: "#FFC0CB", Family: "warm"},
			{ID: "green", Name: "Green", Hex: "#008000", Family: "cool"},
			{ID: "blue", Name: "Blue", Hex: "#0000FF", Family: "cool"},
			{ID: "navy", Name: "Navy", Hex: "#000080", Family: "cool"},
			{ID: "purple", Name: "Purple", Hex: "#800080", Family: "cool"},
		},
		[]string{"cotton", "wool", "polyester", "leather", "denim", "silk", "linen", "nylon", "cashmere", "suede"},
	)
}
