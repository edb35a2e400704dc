package knowledge_test

import (
	"strings"
	"testing"

	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/stretchr/testify/assert"
)

func TestRenderContext(t *testing.T) {
	t.Run("NoBases_ShouldEmitMarker", func(t *testing.T) {
		assert.Equal(t, knowledge.NoPriorKnowledgeMarker, knowledge.RenderContext(nil))
	})

	t.Run("Bases_ShouldRenderEachSection", func(t *testing.T) {
		bases := []*knowledge.KnowledgeBase{
			{
				Cuisine:                 "thai",
				RecipeCount:             12,
				AvgQualityScore:         7.85,
				CommonSacredIngredients: []knowledge.SacredIngredientStat{{Ingredient: "lemongrass", Frequency: 83}},
				CommonSacredTechniques:  []string{"pounding paste"},
				CommonlyRemoved:         []knowledge.RemovedIngredientStat{{Ingredient: "kaffir lime leaves", Frequency: 50}},
				CommonSideTasks:         []knowledge.SideTaskStat{{Task: "boil jasmine rice", Frequency: 67}},
			},
			{Cuisine: "italian", RecipeCount: 3, AvgQualityScore: 8},
		}

		rendered := knowledge.RenderContext(bases)

		assert.Contains(t, rendered, "## thai (12 recipes, avg quality 7.85)")
		assert.Contains(t, rendered, "- Sacred ingredients: lemongrass (83%)")
		assert.Contains(t, rendered, "- Sacred techniques: pounding paste")
		assert.Contains(t, rendered, "- Commonly removed: kaffir lime leaves (50%)")
		assert.Contains(t, rendered, "- Common side tasks: boil jasmine rice (67%)")
		assert.Contains(t, rendered, "- Sacred ingredients: none observed")
		assert.Less(t, strings.Index(rendered, "## thai"), strings.Index(rendered, "## italian"))
		assert.NotContains(t, rendered, knowledge.NoPriorKnowledgeMarker)
	})
}

func TestSortForContext(t *testing.T) {
	bases := []*knowledge.KnowledgeBase{
		{Cuisine: "mexican", RecipeCount: 4},
		{Cuisine: "indian", RecipeCount: 9},
		{Cuisine: "greek", RecipeCount: 4},
	}

	knowledge.SortForContext(bases)

	assert.Equal(t, "indian", bases[0].Cuisine)
	assert.Equal(t, "greek", bases[1].Cuisine)
	assert.Equal(t, "mexican", bases[2].Cuisine)
}
