package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/alchemorsel/recipeflow/internal/application/structured"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/google/uuid"
)

// RecipePayload is the record_recipe tool output
type RecipePayload struct {
	Title            string              `json:"title"`
	Hook             string              `json:"hook"`
	Description      string              `json:"description"`
	Cuisine          string              `json:"cuisine"`
	Vessel           string              `json:"vessel"`
	TotalTimeMinutes structured.Int      `json:"total_time_minutes"`
	PrepTimeMinutes  structured.Int      `json:"prep_time_minutes"`
	CookTimeMinutes  structured.Int      `json:"cook_time_minutes"`
	Serves           structured.Int      `json:"serves"`
	Difficulty       structured.Int      `json:"difficulty"`
	SpiceLevel       structured.Int      `json:"spice_level"`
	AdventureLevel   structured.Int      `json:"adventure_level"`
	DietaryTags      []string            `json:"dietary_tags"`
	SeasonTags       []string            `json:"season_tags"`
	Tips             []string            `json:"tips"`
	Ingredients      []IngredientPayload `json:"ingredients" validate:"required,min=1,dive"`
	SacredAnalysis   *SacredPayload      `json:"sacred_analysis" validate:"omitempty"`
}

// IngredientPayload is one ingredient line of the tool output
type IngredientPayload struct {
	Name               string            `json:"name" validate:"required"`
	Quantity           string            `json:"quantity"`
	Unit               string            `json:"unit"`
	IsPantryStaple     bool              `json:"is_pantry_staple"`
	IsSacred           bool              `json:"is_sacred"`
	SupermarketSection string            `json:"supermarket_section"`
	EstimatedCost      *structured.Float `json:"estimated_cost" validate:"omitempty,gte=0"`
}

// SacredPayload is the sacred analysis part of the tool output
type SacredPayload struct {
	HeroIngredient       string                      `json:"hero_ingredient"`
	SacredIngredients    []sacred.SacredIngredient   `json:"sacred_ingredients"`
	SacredTechnique      string                      `json:"sacred_technique"`
	SacredFlavourProfile string                      `json:"sacred_flavour_profile"`
	FlexibleIngredients  []sacred.FlexibleIngredient `json:"flexible_ingredients"`
	SideTasksNeeded      []string                    `json:"side_tasks_needed"`
	OnePotFeasible       bool                        `json:"one_pot_feasible"`
	QualityScore         structured.Float            `json:"quality_score"`
	Confidence           structured.Float            `json:"confidence"`
	RiskLevel            string                      `json:"risk_level"`
	AdaptationsMade      []string                    `json:"adaptations_made"`
}

// normalized is a payload mapped onto domain aggregates
type normalized struct {
	recipe   *recipe.Recipe
	analysis *sacred.Analysis
	dropped  []string
}

// details maps the descriptive fields
func (p *RecipePayload) details(sourceURL string) recipe.Details {
	return recipe.Details{
		Title:            p.Title,
		Hook:             p.Hook,
		Description:      p.Description,
		Cuisine:          p.Cuisine,
		Vessel:           p.Vessel,
		TotalTimeMinutes: int(p.TotalTimeMinutes),
		PrepTimeMinutes:  int(p.PrepTimeMinutes),
		CookTimeMinutes:  int(p.CookTimeMinutes),
		Serves:           int(p.Serves),
		Difficulty:       int(p.Difficulty),
		SpiceLevel:       int(p.SpiceLevel),
		AdventureLevel:   int(p.AdventureLevel),
		DietaryTags:      p.DietaryTags,
		SeasonTags:       p.SeasonTags,
		Tips:             p.Tips,
		SourceURL:        sourceURL,
	}
}

// ingredients maps the ingredient lines, marking names the analysis lists as
// sacred even when the line itself does not say so
func (p *RecipePayload) ingredients() []recipe.Ingredient {
	sacredNames := make(map[string]bool)
	if p.SacredAnalysis != nil {
		for _, s := range p.SacredAnalysis.SacredIngredients {
			sacredNames[strings.ToLower(strings.TrimSpace(s.Ingredient))] = true
		}
	}

	out := make([]recipe.Ingredient, 0, len(p.Ingredients))
	for _, in := range p.Ingredients {
		ing := recipe.Ingredient{
			Name:               strings.TrimSpace(in.Name),
			Quantity:           strings.TrimSpace(in.Quantity),
			Unit:               strings.TrimSpace(in.Unit),
			IsPantryStaple:     in.IsPantryStaple,
			IsSacred:           in.IsSacred || sacredNames[strings.ToLower(strings.TrimSpace(in.Name))],
			SupermarketSection: strings.TrimSpace(in.SupermarketSection),
		}
		if in.EstimatedCost != nil {
			cost := float64(*in.EstimatedCost)
			ing.EstimatedCost = &cost
		}
		out = append(out, ing)
	}
	return out
}

// draft maps the sacred analysis. A blank hero with no sacred ingredients
// falls back to the first non-staple ingredient.
func (p *RecipePayload) draft(ingredients []recipe.Ingredient) sacred.Draft {
	s := p.SacredAnalysis
	d := sacred.Draft{
		HeroIngredient:       s.HeroIngredient,
		SacredIngredients:    s.SacredIngredients,
		SacredTechnique:      s.SacredTechnique,
		SacredFlavourProfile: s.SacredFlavourProfile,
		FlexibleIngredients:  s.FlexibleIngredients,
		SideTasksNeeded:      s.SideTasksNeeded,
		OnePotFeasible:       s.OnePotFeasible,
		QualityScore:         float64(s.QualityScore),
		Confidence:           float64(s.Confidence),
		RiskLevel:            s.RiskLevel,
		AdaptationsMade:      s.AdaptationsMade,
	}
	if strings.TrimSpace(d.HeroIngredient) == "" && len(d.SacredIngredients) == 0 {
		for _, ing := range ingredients {
			if !ing.IsPantryStaple {
				d.HeroIngredient = ing.Name
				break
			}
		}
	}
	return d
}

// normalize turns a validated payload into a recipe and its optional
// analysis, enforcing the non-staple cap
func normalize(p *RecipePayload, uploadID uuid.UUID, sourceURL string, now time.Time) (*normalized, error) {
	ingredients, dropped := recipe.CapNonStaples(p.ingredients(), recipe.MaxNonStapleCount)

	r, err := recipe.NewRecipe(uploadID, p.details(sourceURL), ingredients, now)
	if err != nil {
		return nil, err
	}

	out := &normalized{recipe: r, dropped: dropped}
	if p.SacredAnalysis == nil {
		return out, nil
	}

	analysis, err := sacred.NewAnalysis(r.ID(), r.Cuisine(), p.draft(ingredients), now)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		analysis.AddAdaptation(fmt.Sprintf("Dropped to fit the %d ingredient limit: %s",
			recipe.MaxNonStapleCount, strings.Join(dropped, ", ")))
	}
	out.analysis = analysis
	return out, nil
}
