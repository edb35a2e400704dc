package recipe

import (
	"strings"

	"github.com/google/uuid"
)

// Limits applied to every recipe that leaves the extraction stage
const (
	MaxTotalMinutes     = 60
	MaxNonStapleCount   = 12
	DefaultServes       = 2
	DefaultCuisine      = "Other"
	fallbackTitlePrefix = "Untitled Recipe"
)

// PipelineStatus is the coarse lifecycle marker of a recipe
type PipelineStatus string

const (
	PipelineStatusExtracted  PipelineStatus = "extracted"
	PipelineStatusCardsReady PipelineStatus = "cards_ready"
)

// IsValid reports whether the status is known
func (s PipelineStatus) IsValid() bool {
	return s == PipelineStatusExtracted || s == PipelineStatusCardsReady
}

// Ingredient is one line of a recipe's ingredient list
type Ingredient struct {
	ID                 uuid.UUID
	RecipeID           uuid.UUID
	Name               string
	Quantity           string
	Unit               string
	IsPantryStaple     bool
	IsSacred           bool
	SupermarketSection string
	EstimatedCost      *float64
	SortOrder          int
}

// Validate validates the ingredient
func (i Ingredient) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrIngredientNameRequired
	}
	if i.EstimatedCost != nil && *i.EstimatedCost < 0 {
		return ErrNegativeCost
	}
	return nil
}

// Details carries the descriptive fields of a freshly extracted recipe
type Details struct {
	Title            string
	Hook             string
	Description      string
	Cuisine          string
	Vessel           string
	TotalTimeMinutes int
	PrepTimeMinutes  int
	CookTimeMinutes  int
	Serves           int
	Difficulty       int
	SpiceLevel       int
	AdventureLevel   int
	DietaryTags      []string
	SeasonTags       []string
	Tips             []string
	SourceURL        string
}

// Scale bounds for the rating-style fields
type scale struct {
	min, max, fallback int
}

var (
	difficultyScale = scale{min: 1, max: 5, fallback: 2}
	spiceScale      = scale{min: 0, max: 5, fallback: 0}
	adventureScale  = scale{min: 1, max: 5, fallback: 2}
)

func (s scale) clamp(v int) int {
	switch {
	case v == 0:
		return s.fallback
	case v < s.min:
		return s.min
	case v > s.max:
		return s.max
	default:
		return v
	}
}

// ClampTotalTime returns the total time capped at MaxTotalMinutes.
// A missing total is derived from the clamped prep and cook times.
func ClampTotalTime(total, prep, cook int) int {
	if total <= 0 {
		total = ClampPartTime(prep) + ClampPartTime(cook)
	}
	return min(total, MaxTotalMinutes)
}

// ClampPartTime bounds a prep or cook time to [0, MaxTotalMinutes]
func ClampPartTime(minutes int) int {
	return min(max(minutes, 0), MaxTotalMinutes)
}

// CountNonStaples returns how many ingredients are not pantry staples
func CountNonStaples(ingredients []Ingredient) int {
	count := 0
	for _, ing := range ingredients {
		if !ing.IsPantryStaple {
			count++
		}
	}
	return count
}

// CapNonStaples trims the list so that at most limit non-staple ingredients
// remain. Flexible ingredients are dropped from the end of the list first,
// sacred ones only if flexible removals are not enough. Staples are never
// dropped. The names of removed ingredients are returned in list order.
func CapNonStaples(ingredients []Ingredient, limit int) ([]Ingredient, []string) {
	excess := CountNonStaples(ingredients) - limit
	if excess <= 0 {
		return ingredients, nil
	}

	drop := make(map[int]bool, excess)
	for pass := 0; pass < 2 && len(drop) < excess; pass++ {
		wantSacred := pass == 1
		for i := len(ingredients) - 1; i >= 0 && len(drop) < excess; i-- {
			ing := ingredients[i]
			if ing.IsPantryStaple || ing.IsSacred != wantSacred {
				continue
			}
			drop[i] = true
		}
	}

	kept := make([]Ingredient, 0, len(ingredients)-len(drop))
	var dropped []string
	for i, ing := range ingredients {
		if drop[i] {
			dropped = append(dropped, ing.Name)
			continue
		}
		kept = append(kept, ing)
	}
	return kept, dropped
}

func cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, tag)
	}
	return cleaned
}
