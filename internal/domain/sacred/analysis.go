// Package sacred models the per-recipe record of which ingredients and
// techniques define a dish and which ones can be simplified.
package sacred

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RiskLevel expresses how far the simplified recipe drifts from the original
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ParseRiskLevel normalizes free text, falling back to medium
func ParseRiskLevel(text string) RiskLevel {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(text))) {
	case RiskLow:
		return RiskLow
	case RiskHigh:
		return RiskHigh
	default:
		return RiskMedium
	}
}

const (
	MaxQualityScore = 10.0
	MaxConfidence   = 1.0
	otherCuisine    = "other"
)

var (
	ErrRecipeRequired   = errors.New("sacred analysis requires a recipe id")
	ErrHeroRequired     = errors.New("sacred analysis requires a hero ingredient")
	ErrAnalysisNotFound = errors.New("sacred analysis not found")
)

// SacredIngredient is an ingredient that must not be substituted
type SacredIngredient struct {
	Ingredient string `json:"ingredient"`
	Reason     string `json:"reason"`
}

// FlexibleIngredient is an ingredient that can be simplified or dropped
type FlexibleIngredient struct {
	Ingredient string `json:"ingredient"`
	CanRemove  bool   `json:"can_remove"`
	Substitute string `json:"substitute,omitempty"`
}

// Draft is the unvalidated analysis as produced by extraction
type Draft struct {
	HeroIngredient       string
	SacredIngredients    []SacredIngredient
	SacredTechnique      string
	SacredFlavourProfile string
	FlexibleIngredients  []FlexibleIngredient
	SideTasksNeeded      []string
	OnePotFeasible       bool
	QualityScore         float64
	Confidence           float64
	RiskLevel            string
	AdaptationsMade      []string
}

// Analysis is the sacred/flexible breakdown of one recipe
type Analysis struct {
	recipeID             uuid.UUID
	cuisine              string
	heroIngredient       string
	sacredIngredients    []SacredIngredient
	sacredTechnique      string
	sacredFlavourProfile string
	flexibleIngredients  []FlexibleIngredient
	sideTasksNeeded      []string
	onePotFeasible       bool
	qualityScore         float64
	confidence           float64
	riskLevel            RiskLevel
	adaptationsMade      []string
	createdAt            time.Time
}

// NewAnalysis validates and normalizes a draft for the given recipe.
// A blank hero defaults to the first sacred ingredient.
func NewAnalysis(recipeID uuid.UUID, cuisine string, d Draft, now time.Time) (*Analysis, error) {
	if recipeID == uuid.Nil {
		return nil, ErrRecipeRequired
	}

	sacredIngredients := dedupeSacred(d.SacredIngredients)
	hero := strings.TrimSpace(d.HeroIngredient)
	if hero == "" && len(sacredIngredients) > 0 {
		hero = sacredIngredients[0].Ingredient
	}
	if hero == "" {
		return nil, ErrHeroRequired
	}

	flexible := make([]FlexibleIngredient, 0, len(d.FlexibleIngredients))
	for _, f := range d.FlexibleIngredients {
		f.Ingredient = strings.TrimSpace(f.Ingredient)
		f.Substitute = strings.TrimSpace(f.Substitute)
		if f.Ingredient == "" {
			continue
		}
		flexible = append(flexible, f)
	}

	return &Analysis{
		recipeID:             recipeID,
		cuisine:              CuisineKey(cuisine),
		heroIngredient:       hero,
		sacredIngredients:    sacredIngredients,
		sacredTechnique:      strings.TrimSpace(d.SacredTechnique),
		sacredFlavourProfile: strings.TrimSpace(d.SacredFlavourProfile),
		flexibleIngredients:  flexible,
		sideTasksNeeded:      dedupeStrings(d.SideTasksNeeded),
		onePotFeasible:       d.OnePotFeasible,
		qualityScore:         clamp(d.QualityScore, 0, MaxQualityScore),
		confidence:           clamp(d.Confidence, 0, MaxConfidence),
		riskLevel:            ParseRiskLevel(d.RiskLevel),
		adaptationsMade:      dedupeStrings(d.AdaptationsMade),
		createdAt:            now,
	}, nil
}

// State is the persisted form of an analysis
type State struct {
	RecipeID             uuid.UUID
	Cuisine              string
	HeroIngredient       string
	SacredIngredients    []SacredIngredient
	SacredTechnique      string
	SacredFlavourProfile string
	FlexibleIngredients  []FlexibleIngredient
	SideTasksNeeded      []string
	OnePotFeasible       bool
	QualityScore         float64
	Confidence           float64
	RiskLevel            RiskLevel
	AdaptationsMade      []string
	CreatedAt            time.Time
}

// Restore rebuilds an analysis from storage
func Restore(s State) *Analysis {
	return &Analysis{
		recipeID:             s.RecipeID,
		cuisine:              s.Cuisine,
		heroIngredient:       s.HeroIngredient,
		sacredIngredients:    s.SacredIngredients,
		sacredTechnique:      s.SacredTechnique,
		sacredFlavourProfile: s.SacredFlavourProfile,
		flexibleIngredients:  s.FlexibleIngredients,
		sideTasksNeeded:      s.SideTasksNeeded,
		onePotFeasible:       s.OnePotFeasible,
		qualityScore:         s.QualityScore,
		confidence:           s.Confidence,
		riskLevel:            s.RiskLevel,
		adaptationsMade:      s.AdaptationsMade,
		createdAt:            s.CreatedAt,
	}
}

// State returns the persisted form of the analysis
func (a *Analysis) State() State {
	return State{
		RecipeID:             a.recipeID,
		Cuisine:              a.cuisine,
		HeroIngredient:       a.heroIngredient,
		SacredIngredients:    a.sacredIngredients,
		SacredTechnique:      a.sacredTechnique,
		SacredFlavourProfile: a.sacredFlavourProfile,
		FlexibleIngredients:  a.flexibleIngredients,
		SideTasksNeeded:      a.sideTasksNeeded,
		OnePotFeasible:       a.onePotFeasible,
		QualityScore:         a.qualityScore,
		Confidence:           a.confidence,
		RiskLevel:            a.riskLevel,
		AdaptationsMade:      a.adaptationsMade,
		CreatedAt:            a.createdAt,
	}
}

// AddAdaptation records a change made while fitting the recipe to the constraints
func (a *Analysis) AddAdaptation(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	a.adaptationsMade = append(a.adaptationsMade, note)
}

// IsSacred reports whether the ingredient is marked sacred, ignoring case
func (a *Analysis) IsSacred(ingredient string) bool {
	for _, s := range a.sacredIngredients {
		if strings.EqualFold(s.Ingredient, strings.TrimSpace(ingredient)) {
			return true
		}
	}
	return false
}

func (a *Analysis) RecipeID() uuid.UUID { return a.recipeID }
func (a *Analysis) Cuisine() string { return a.cuisine }
func (a *Analysis) HeroIngredient() string { return a.heroIngredient }
func (a *Analysis) SacredIngredients() []SacredIngredient { return a.sacredIngredients }
func (a *Analysis) SacredTechnique() string { return a.sacredTechnique }
func (a *Analysis) SacredFlavourProfile() string { return a.sacredFlavourProfile }
func (a *Analysis) FlexibleIngredients() []FlexibleIngredient { return a.flexibleIngredients }
func (a *Analysis) SideTasksNeeded() []string { return a.sideTasksNeeded }
func (a *Analysis) OnePotFeasible() bool { return a.onePotFeasible }
func (a *Analysis) QualityScore() float64 { return a.qualityScore }
func (a *Analysis) Confidence() float64 { return a.confidence }
func (a *Analysis) RiskLevel() RiskLevel { return a.riskLevel }
func (a *Analysis) AdaptationsMade() []string { return a.adaptationsMade }
func (a *Analysis) CreatedAt() time.Time { return a.createdAt }

// CuisineKey normalizes a cuisine name into the key used for aggregation
func CuisineKey(cuisine string) string {
	key := strings.ToLower(strings.Join(strings.Fields(cuisine), " "))
	if key == "" {
		return otherCuisine
	}
	return key
}

func dedupeSacred(items []SacredIngredient) []SacredIngredient {
	seen := make(map[string]bool, len(items))
	out := make([]SacredIngredient, 0, len(items))
	for _, item := range items {
		item.Ingredient = strings.TrimSpace(item.Ingredient)
		item.Reason = strings.TrimSpace(item.Reason)
		key := strings.ToLower(item.Ingredient)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func dedupeStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
