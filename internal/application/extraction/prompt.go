package extraction

import (
	"fmt"
	"strings"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
)

// RecordRecipeTool is the name of the structured output tool for extraction
const RecordRecipeTool = "record_recipe"

const systemPrompt = `You are a recipe editor who rewrites any recipe into a short, guided, one-pot format.

COMPRESSION RULES
1. Keep at most %d ingredients, NOT counting pantry staples. Pantry staples are salt, pepper, cooking oil, water, and flour when it is used only in small amounts for dusting or thickening. Mark staples with is_pantry_staple=true.
2. Use a single primary cooking vessel. Only these side tasks may run in parallel: boiling a starch (rice, pasta, noodles, potatoes), toasting bread, boiling eggs, a short blanch. List them in sacred_analysis.side_tasks_needed and set one_pot_feasible=true when the dish fits the vessel plus those side tasks.
3. Target 30 to 40 minutes total. Never exceed %d minutes.
4. Merge or drop minor ingredients to fit the limits and record every change in sacred_analysis.adaptations_made.

SACRED VS FLEXIBLE
- Pick exactly one hero_ingredient: the ingredient the dish is named for or built around.
- Mark the few ingredients, the technique and the flavour profile that define the dish as sacred. Sacred elements are never substituted except for dietary necessity. Give a short reason for each sacred ingredient.
- Every other ingredient is flexible. Say whether it can be removed and name a substitute where a common one exists.
- quality_score is 0 to 10, confidence is 0 to 1, risk_level is low, medium or high.

Use the learned cuisine knowledge below as a prior. Prefer patterns it reports, but the source recipe wins when they disagree.

%s

Respond only by calling the %s tool. Do not add commentary.`

// buildRequest assembles the single generation call for an extraction
func buildRequest(knowledgeContext string, src source, temperature float64, maxTokens int) *generation.Request {
	system := fmt.Sprintf(systemPrompt, recipe.MaxNonStapleCount, recipe.MaxTotalMinutes, knowledgeContext, RecordRecipeTool)

	var user strings.Builder
	fmt.Fprintf(&user, "Source type: %s\n", src.kind)
	if src.url != "" {
		fmt.Fprintf(&user, "Source URL: %s\n", src.url)
	}
	if src.text != "" {
		user.WriteString("\nSOURCE CONTENT:\n")
		user.WriteString(src.text)
	}
	if len(src.images) > 0 {
		user.WriteString("\nThe recipe is shown in the attached image. Read every ingredient and step from it.")
	}

	return &generation.Request{
		Messages: []generation.Message{
			{Role: generation.RoleSystem, Content: system},
			{Role: generation.RoleUser, Content: user.String(), Images: src.images},
		},
		Temperature: &temperature,
		MaxTokens:   maxTokens,
		Tool: &generation.Tool{
			Name:        RecordRecipeTool,
			Description: "Record the compressed recipe and its sacred analysis.",
			Parameters:  recordRecipeSchema(),
		},
	}
}

func recordRecipeSchema() map[string]any {
	str := map[string]any{"type": "string"}
	integer := map[string]any{"type": "integer"}
	number := map[string]any{"type": "number"}
	boolean := map[string]any{"type": "boolean"}
	strList := map[string]any{"type": "array", "items": str}

	ingredient := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":                str,
			"quantity":            str,
			"unit":                str,
			"is_pantry_staple":    boolean,
			"is_sacred":           boolean,
			"supermarket_section": str,
			"estimated_cost":      number,
		},
		"required": []string{"name", "is_pantry_staple", "is_sacred"},
	}

	sacredAnalysis := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hero_ingredient": str,
			"sacred_ingredients": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":       "object",
					"properties": map[string]any{"ingredient": str, "reason": str},
					"required":   []string{"ingredient", "reason"},
				},
			},
			"sacred_technique":       str,
			"sacred_flavour_profile": str,
			"flexible_ingredients": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"ingredient": str,
						"can_remove": boolean,
						"substitute": str,
					},
					"required": []string{"ingredient", "can_remove"},
				},
			},
			"side_tasks_needed": strList,
			"one_pot_feasible":  boolean,
			"quality_score":     number,
			"confidence":        number,
			"risk_level":        map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
			"adaptations_made":  strList,
		},
		"required": []string{"hero_ingredient", "sacred_ingredients", "flexible_ingredients", "one_pot_feasible", "quality_score", "confidence", "risk_level"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":              str,
			"hook":               str,
			"description":        str,
			"cuisine":            str,
			"vessel":             str,
			"total_time_minutes": integer,
			"prep_time_minutes":  integer,
			"cook_time_minutes":  integer,
			"serves":             integer,
			"difficulty":         integer,
			"spice_level":        integer,
			"adventure_level":    integer,
			"dietary_tags":       strList,
			"season_tags":        strList,
			"tips":               strList,
			"ingredients":        map[string]any{"type": "array", "items": ingredient},
			"sacred_analysis":    sacredAnalysis,
		},
		"required": []string{"title", "cuisine", "vessel", "total_time_minutes", "ingredients", "sacred_analysis"},
	}
}
