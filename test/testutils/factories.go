// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/card"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// RecipeBuilder provides a fluent interface for building test recipes
type RecipeBuilder struct {
	faker       *gofakeit.Faker
	uploadID    uuid.UUID
	details     recipe.Details
	ingredients []recipe.Ingredient
	now         time.Time
}

// NewRecipeBuilder creates a new recipe builder with random defaults
func NewRecipeBuilder() *RecipeBuilder {
	faker := gofakeit.New(time.Now().UnixNano())

	return &RecipeBuilder{
		faker:    faker,
		uploadID: uuid.New(),
		details: recipe.Details{
			Title:            faker.Dessert(),
			Hook:             faker.Sentence(6),
			Description:      faker.Paragraph(1, 2, 8, " "),
			Cuisine:          "Italian",
			Vessel:           "deep skillet",
			TotalTimeMinutes: 35,
			PrepTimeMinutes:  10,
			CookTimeMinutes:  25,
			Serves:           2,
			Difficulty:       2,
			SpiceLevel:       1,
			AdventureLevel:   2,
		},
		now: time.Now().UTC(),
	}
}

// WithTitle sets the recipe title
func (rb *RecipeBuilder) WithTitle(title string) *RecipeBuilder {
	rb.details.Title = title
	return rb
}

// WithCuisine sets the recipe cuisine
func (rb *RecipeBuilder) WithCuisine(cuisine string) *RecipeBuilder {
	rb.details.Cuisine = cuisine
	return rb
}

// WithIngredients sets the recipe ingredients
func (rb *RecipeBuilder) WithIngredients(ingredients []recipe.Ingredient) *RecipeBuilder {
	rb.ingredients = ingredients
	return rb
}

// WithIngredientNames sets non-staple ingredients by name
func (rb *RecipeBuilder) WithIngredientNames(names ...string) *RecipeBuilder {
	rb.ingredients = make([]recipe.Ingredient, 0, len(names))
	for _, name := range names {
		rb.ingredients = append(rb.ingredients, recipe.Ingredient{Name: name, Quantity: "1"})
	}
	return rb
}

// At sets the creation time
func (rb *RecipeBuilder) At(now time.Time) *RecipeBuilder {
	rb.now = now
	return rb
}

// Build constructs the recipe with validation
func (rb *RecipeBuilder) Build() (*recipe.Recipe, error) {
	if len(rb.ingredients) == 0 {
		rb.ingredients = RandomIngredients(rb.faker, 6, 2)
	}
	return recipe.NewRecipe(rb.uploadID, rb.details, rb.ingredients, rb.now)
}

// MustBuild constructs the recipe and panics on error
func (rb *RecipeBuilder) MustBuild() *recipe.Recipe {
	r, err := rb.Build()
	if err != nil {
		panic(fmt.Sprintf("build recipe: %v", err))
	}
	r.PullEvents()
	return r
}

// RandomIngredients creates distinct non-staple ingredients followed by staples
func RandomIngredients(faker *gofakeit.Faker, nonStaples, staples int) []recipe.Ingredient {
	seen := make(map[string]bool)
	list := make([]recipe.Ingredient, 0, nonStaples+staples)
	for len(list) < nonStaples {
		name := faker.Vegetable()
		if seen[name] {
			name = fmt.Sprintf("%s %d", name, len(list)+1)
		}
		seen[name] = true
		list = append(list, recipe.Ingredient{
			Name:               name,
			Quantity:           fmt.Sprintf("%d", faker.Number(1, 4)),
			Unit:               faker.RandomString([]string{"", "g", "cup", "tbsp"}),
			SupermarketSection: "produce",
		})
	}
	staplePool := []string{"salt", "black pepper", "olive oil", "water"}
	for i := 0; i < staples; i++ {
		list = append(list, recipe.Ingredient{Name: staplePool[i%len(staplePool)], IsPantryStaple: true})
	}
	return list
}

// AnalysisBuilder provides a fluent interface for building sacred analyses
type AnalysisBuilder struct {
	recipeID uuid.UUID
	cuisine  string
	draft    sacred.Draft
	now      time.Time
}

// NewAnalysisBuilder creates an analysis builder with a plausible default draft
func NewAnalysisBuilder(cuisine string) *AnalysisBuilder {
	return &AnalysisBuilder{
		recipeID: uuid.New(),
		cuisine:  cuisine,
		draft: sacred.Draft{
			HeroIngredient:       "chicken thigh",
			SacredIngredients:    []sacred.SacredIngredient{{Ingredient: "chicken thigh", Reason: "the dish is built around it"}},
			SacredTechnique:      "sear then braise",
			SacredFlavourProfile: "savoury and warm",
			OnePotFeasible:       true,
			QualityScore:         7,
			Confidence:           0.8,
			RiskLevel:            "low",
		},
		now: time.Now().UTC(),
	}
}

// ForRecipe sets the analysed recipe
func (ab *AnalysisBuilder) ForRecipe(recipeID uuid.UUID) *AnalysisBuilder {
	ab.recipeID = recipeID
	return ab
}

// WithHero sets the hero ingredient
func (ab *AnalysisBuilder) WithHero(hero string) *AnalysisBuilder {
	ab.draft.HeroIngredient = hero
	return ab
}

// WithSacred replaces the sacred ingredients
func (ab *AnalysisBuilder) WithSacred(names ...string) *AnalysisBuilder {
	ab.draft.SacredIngredients = nil
	for _, name := range names {
		ab.draft.SacredIngredients = append(ab.draft.SacredIngredients, sacred.SacredIngredient{
			Ingredient: name,
			Reason:     "defines " + name + " dishes",
		})
	}
	return ab
}

// WithRemovable adds flexible ingredients that can be removed
func (ab *AnalysisBuilder) WithRemovable(names ...string) *AnalysisBuilder {
	for _, name := range names {
		ab.draft.FlexibleIngredients = append(ab.draft.FlexibleIngredients, sacred.FlexibleIngredient{
			Ingredient: name,
			CanRemove:  true,
		})
	}
	return ab
}

// WithSubstitute adds a flexible ingredient with a substitute
func (ab *AnalysisBuilder) WithSubstitute(original, substitute string) *AnalysisBuilder {
	ab.draft.FlexibleIngredients = append(ab.draft.FlexibleIngredients, sacred.FlexibleIngredient{
		Ingredient: original,
		Substitute: substitute,
	})
	return ab
}

// WithSideTasks sets the side tasks
func (ab *AnalysisBuilder) WithSideTasks(tasks ...string) *AnalysisBuilder {
	ab.draft.SideTasksNeeded = tasks
	return ab
}

// WithTechnique sets the sacred technique
func (ab *AnalysisBuilder) WithTechnique(technique string) *AnalysisBuilder {
	ab.draft.SacredTechnique = technique
	return ab
}

// WithQuality sets the quality score
func (ab *AnalysisBuilder) WithQuality(score float64) *AnalysisBuilder {
	ab.draft.QualityScore = score
	return ab
}

// At sets the creation time
func (ab *AnalysisBuilder) At(now time.Time) *AnalysisBuilder {
	ab.now = now
	return ab
}

// MustBuild constructs the analysis and panics on error
func (ab *AnalysisBuilder) MustBuild() *sacred.Analysis {
	a, err := sacred.NewAnalysis(ab.recipeID, ab.cuisine, ab.draft, ab.now)
	if err != nil {
		panic(fmt.Sprintf("build analysis: %v", err))
	}
	return a
}

// RecipePayloadBuilder builds record_recipe tool output as JSON
type RecipePayloadBuilder struct {
	payload map[string]any
}

// NewRecipePayloadBuilder creates a payload with a title, cuisine and vessel
func NewRecipePayloadBuilder(title, cuisine string) *RecipePayloadBuilder {
	return &RecipePayloadBuilder{payload: map[string]any{
		"title":              title,
		"hook":               "Weeknight comfort in one pan",
		"description":        "A compressed take on " + title,
		"cuisine":            cuisine,
		"vessel":             "deep skillet",
		"total_time_minutes": 35,
		"prep_time_minutes":  10,
		"cook_time_minutes":  25,
		"serves":             2,
		"difficulty":         2,
		"spice_level":        2,
		"adventure_level":    2,
		"ingredients":        []map[string]any{},
	}}
}

// WithField sets an arbitrary top level field
func (b *RecipePayloadBuilder) WithField(key string, value any) *RecipePayloadBuilder {
	b.payload[key] = value
	return b
}

// WithIngredient appends an ingredient line
func (b *RecipePayloadBuilder) WithIngredient(name string, staple, isSacred bool) *RecipePayloadBuilder {
	list := b.payload["ingredients"].([]map[string]any)
	b.payload["ingredients"] = append(list, map[string]any{
		"name":                name,
		"quantity":            "1",
		"unit":                "",
		"is_pantry_staple":    staple,
		"is_sacred":           isSacred,
		"supermarket_section": "produce",
	})
	return b
}

// WithSacredAnalysis sets the sacred analysis object
func (b *RecipePayloadBuilder) WithSacredAnalysis(analysis map[string]any) *RecipePayloadBuilder {
	b.payload["sacred_analysis"] = analysis
	return b
}

// JSON renders the payload
func (b *RecipePayloadBuilder) JSON() string {
	data, err := json.Marshal(b.payload)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// CardDrafts creates n valid card drafts that use the given ingredients in turn
func CardDrafts(n int, ingredients []string) []card.Draft {
	drafts := make([]card.Draft, 0, n)
	for i := 0; i < n; i++ {
		d := card.Draft{
			Title:         fmt.Sprintf("Phase %d", i+1),
			CardType:      "cook",
			HeatLevel:     "medium",
			Instructions:  []string{"Add the ingredients to the pan", "Stir every minute"},
			SuccessMarker: "Edges turn golden and smell nutty",
			TechniqueIcon: "pan",
		}
		if len(ingredients) > 0 {
			name := ingredients[i%len(ingredients)]
			d.IngredientsUsed = []card.IngredientUse{{Name: name, Qty: "1", Action: "add"}}
		}
		drafts = append(drafts, d)
	}
	return drafts
}

// CardsPayloadJSON renders card drafts in the record_workflow_cards shape
func CardsPayloadJSON(drafts []card.Draft) string {
	cards := make([]map[string]any, 0, len(drafts))
	for _, d := range drafts {
		used := make([]map[string]any, 0, len(d.IngredientsUsed))
		for _, u := range d.IngredientsUsed {
			used = append(used, map[string]any{"name": u.Name, "qty": u.Qty, "action": u.Action})
		}
		c := map[string]any{
			"title":            d.Title,
			"card_type":        d.CardType,
			"heat_level":       d.HeatLevel,
			"instructions":     d.Instructions,
			"success_marker":   d.SuccessMarker,
			"technique_icon":   d.TechniqueIcon,
			"ingredients_used": used,
		}
		if d.TimerSeconds != nil {
			c["timer_seconds"] = *d.TimerSeconds
		}
		cards = append(cards, c)
	}
	data, err := json.Marshal(map[string]any{"cards": cards})
	if err != nil {
		panic(err)
	}
	return string(data)
}
