package cards

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alchemorsel/recipeflow/internal/application/structured"
	"github.com/alchemorsel/recipeflow/internal/domain/card"
	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
)

// RecordCardsTool is the name of the structured output tool for card generation
const RecordCardsTool = "record_workflow_cards"

const systemPrompt = `You turn a compressed one-pot recipe into %d to %d ordered workflow cards a home cook follows one at a time.

Rules:
- Each card is one phase of cooking with a short title, a card_type (prep, cook, simmer, finish or serve) and a heat_level (off, low, medium, medium_high, high).
- Instructions are short imperative steps.
- success_marker is a sensory cue the cook can check (colour, smell, sound, texture). Never write "until done" or "until cooked".
- Put a timer_seconds on cards that wait on the pot.
- Side tasks such as boiling rice or pasta go in parallel_task on the card where they should start.
- ingredients_used lists, by the exact recipe ingredient name, what the card handles.
- Never substitute or drop a sacred ingredient and keep the sacred technique intact.

Respond only by calling the %s tool.`

// buildRequest assembles the single generation call for a card set
func buildRequest(r *recipe.Recipe, analysis *sacred.Analysis, temperature float64, maxTokens int) *generation.Request {
	system := fmt.Sprintf(systemPrompt, card.MinCards, card.MaxCards, RecordCardsTool)

	var user strings.Builder
	fmt.Fprintf(&user, "RECIPE: %s\n", r.Title())
	fmt.Fprintf(&user, "Cuisine: %s | Vessel: %s | Total time: %d min | Serves: %d\n",
		r.Cuisine(), r.Vessel(), r.TotalTimeMinutes(), r.Serves())
	user.WriteString("\nINGREDIENTS:\n")
	for _, ing := range r.Ingredients() {
		fmt.Fprintf(&user, "- %s", ing.Name)
		if qty := strings.TrimSpace(ing.Quantity + " " + ing.Unit); qty != "" {
			fmt.Fprintf(&user, " (%s)", qty)
		}
		if ing.IsSacred {
			user.WriteString(" [SACRED]")
		}
		if ing.IsPantryStaple {
			user.WriteString(" [staple]")
		}
		user.WriteString("\n")
	}

	user.WriteString("\nSACRED ANALYSIS:\n")
	user.WriteString(describeAnalysis(analysis))
	if tips := r.Tips(); len(tips) > 0 {
		user.WriteString("\n\nTIPS:\n- ")
		user.WriteString(strings.Join(tips, "\n- "))
	}

	return &generation.Request{
		Messages: []generation.Message{
			{Role: generation.RoleSystem, Content: system},
			{Role: generation.RoleUser, Content: user.String()},
		},
		Temperature: &temperature,
		MaxTokens:   maxTokens,
		Tool: &generation.Tool{
			Name:        RecordCardsTool,
			Description: "Record the ordered workflow cards for the recipe.",
			Parameters:  recordCardsSchema(),
		},
	}
}

func describeAnalysis(a *sacred.Analysis) string {
	if a == nil {
		return card.NoSacredAnalysisMarker
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hero: %s\n", a.HeroIngredient())
	for _, s := range a.SacredIngredients() {
		fmt.Fprintf(&b, "Sacred: %s (%s)\n", s.Ingredient, s.Reason)
	}
	if a.SacredTechnique() != "" {
		fmt.Fprintf(&b, "Sacred technique: %s\n", a.SacredTechnique())
	}
	if a.SacredFlavourProfile() != "" {
		fmt.Fprintf(&b, "Flavour profile: %s\n", a.SacredFlavourProfile())
	}
	if tasks := a.SideTasksNeeded(); len(tasks) > 0 {
		fmt.Fprintf(&b, "Side tasks: %s\n", strings.Join(tasks, ", "))
	}
	fmt.Fprintf(&b, "One pot feasible: %t", a.OnePotFeasible())
	return b.String()
}

func recordCardsSchema() map[string]any {
	str := map[string]any{"type": "string"}
	cardSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":     str,
			"card_type": str,
			"heat_level": map[string]any{
				"type": "string",
				"enum": []string{"off", "low", "medium", "medium_high", "high"},
			},
			"instructions":   map[string]any{"type": "array", "items": str, "minItems": 1},
			"success_marker": str,
			"timer_seconds":  map[string]any{"type": "integer"},
			"parallel_task":  str,
			"pro_tip":        str,
			"technique_icon": str,
			"ingredients_used": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":       "object",
					"properties": map[string]any{"name": str, "qty": str, "action": str},
					"required":   []string{"name"},
				},
			},
		},
		"required": []string{"title", "heat_level", "instructions", "success_marker"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cards": map[string]any{
				"type":     "array",
				"items":    cardSchema,
				"minItems": card.MinCards,
				"maxItems": card.MaxCards,
			},
		},
		"required": []string{"cards"},
	}
}

// CardsPayload is the record_workflow_cards tool output. A bare array of
// cards is accepted as well as the {"cards": [...]} object.
type CardsPayload struct {
	Cards []CardPayload `json:"cards" validate:"required,dive"`
}

// UnmarshalJSON implements json.Unmarshaler
func (p *CardsPayload) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &p.Cards)
	}
	type wrapped CardsPayload
	return json.Unmarshal(data, (*wrapped)(p))
}

// CardPayload is one card of the tool output
type CardPayload struct {
	Title           string               `json:"title" validate:"required"`
	CardType        string               `json:"card_type"`
	HeatLevel       string               `json:"heat_level"`
	Instructions    []string             `json:"instructions" validate:"required,min=1"`
	SuccessMarker   string               `json:"success_marker" validate:"required"`
	TimerSeconds    *structured.Int      `json:"timer_seconds"`
	ParallelTask    *string              `json:"parallel_task"`
	ProTip          *string              `json:"pro_tip"`
	TechniqueIcon   string               `json:"technique_icon"`
	IngredientsUsed []card.IngredientUse `json:"ingredients_used"`
}

func (p *CardsPayload) drafts() []card.Draft {
	drafts := make([]card.Draft, 0, len(p.Cards))
	for _, c := range p.Cards {
		d := card.Draft{
			Title:           c.Title,
			CardType:        c.CardType,
			HeatLevel:       c.HeatLevel,
			Instructions:    c.Instructions,
			SuccessMarker:   c.SuccessMarker,
			ParallelTask:    c.ParallelTask,
			ProTip:          c.ProTip,
			TechniqueIcon:   c.TechniqueIcon,
			IngredientsUsed: c.IngredientsUsed,
		}
		if c.TimerSeconds != nil {
			seconds := int(*c.TimerSeconds)
			d.TimerSeconds = &seconds
		}
		drafts = append(drafts, d)
	}
	return drafts
}
