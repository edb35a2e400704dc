// Package knowledge holds the per-cuisine aggregate learned from sacred
// analyses and the rendering of that aggregate into prompt context.
package knowledge

import (
	"errors"
	"slices"
	"time"
)

// Promotion thresholds, in percent of the analyses for a cuisine
const (
	SacredIngredientThreshold = 30
	CommonlyRemovedThreshold  = 40
	SideTaskThreshold         = 30

	// MinAnalyses is the smallest sample a cuisine needs before learning runs
	MinAnalyses = 2
	// TopDistinct caps the hero, technique and flavour profile lists
	TopDistinct = 5
)

var (
	// ErrInsufficientData means the cuisine has fewer than MinAnalyses analyses
	ErrInsufficientData = errors.New("not enough sacred analyses to learn from")
	ErrNotFound         = errors.New("knowledge base not found")
)

// SacredIngredientStat is an ingredient that a cuisine tends to keep sacred
type SacredIngredientStat struct {
	Ingredient string `json:"ingredient" yaml:"ingredient"`
	Frequency  int    `json:"frequency" yaml:"frequency"`
	Count      int    `json:"count" yaml:"count"`
	Reason     string `json:"reason" yaml:"reason"`
}

// RemovedIngredientStat is an ingredient frequently marked removable
type RemovedIngredientStat struct {
	Ingredient string `json:"ingredient" yaml:"ingredient"`
	Frequency  int    `json:"frequency" yaml:"frequency"`
	Count      int    `json:"count" yaml:"count"`
}

// SideTaskStat is a parallel task frequently needed alongside the main vessel
type SideTaskStat struct {
	Task      string `json:"task" yaml:"task"`
	Frequency int    `json:"frequency" yaml:"frequency"`
	Count     int    `json:"count" yaml:"count"`
}

// Substitution is an observed original to substitute pair
type Substitution struct {
	Original   string `json:"original" yaml:"original"`
	Substitute string `json:"substitute" yaml:"substitute"`
}

// KnowledgeBase is the learned aggregate for one cuisine. It is always
// rebuilt from scratch by Recompute and never patched in place.
type KnowledgeBase struct {
	Cuisine                 string                  `json:"cuisine" yaml:"cuisine"`
	CommonSacredIngredients []SacredIngredientStat  `json:"common_sacred_ingredients" yaml:"common_sacred_ingredients"`
	CommonSacredTechniques  []string                `json:"common_sacred_techniques" yaml:"common_sacred_techniques"`
	CommonFlavourProfiles   []string                `json:"common_flavour_profiles" yaml:"common_flavour_profiles"`
	TypicalHeroIngredients  []string                `json:"typical_hero_ingredients" yaml:"typical_hero_ingredients"`
	CommonlyRemoved         []RemovedIngredientStat `json:"commonly_removed" yaml:"commonly_removed"`
	CommonSubstitutions     []Substitution          `json:"common_substitutions" yaml:"common_substitutions"`
	CommonSideTasks         []SideTaskStat          `json:"common_side_tasks" yaml:"common_side_tasks"`
	RecipeCount             int                     `json:"recipe_count" yaml:"recipe_count"`
	AvgQualityScore         float64                 `json:"avg_quality_score" yaml:"avg_quality_score"`
	LastLearnedAt           time.Time               `json:"last_learned_at" yaml:"last_learned_at"`
}

// SameAggregate reports whether two bases hold the same learned content.
// LastLearnedAt is ignored and nil slices equal empty ones.
func (kb *KnowledgeBase) SameAggregate(other *KnowledgeBase) bool {
	if kb == nil || other == nil {
		return kb == other
	}
	return kb.Cuisine == other.Cuisine &&
		kb.RecipeCount == other.RecipeCount &&
		kb.AvgQualityScore == other.AvgQualityScore &&
		slices.Equal(kb.CommonSacredIngredients, other.CommonSacredIngredients) &&
		slices.Equal(kb.CommonSacredTechniques, other.CommonSacredTechniques) &&
		slices.Equal(kb.CommonFlavourProfiles, other.CommonFlavourProfiles) &&
		slices.Equal(kb.TypicalHeroIngredients, other.TypicalHeroIngredients) &&
		slices.Equal(kb.CommonlyRemoved, other.CommonlyRemoved) &&
		slices.Equal(kb.CommonSubstitutions, other.CommonSubstitutions) &&
		slices.Equal(kb.CommonSideTasks, other.CommonSideTasks)
}
