// Package card models the ordered workflow cards a cook follows for a recipe.
package card

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Bounds on the size of a card set
const (
	MinCards = 4
	MaxCards = 6
)

// NoSacredAnalysisMarker stands in for the sacred context when a recipe has no analysis
const NoSacredAnalysisMarker = "NO SACRED ANALYSIS: use general culinary expertise."

// HeatLevel is the burner setting for a card
type HeatLevel string

const (
	HeatOff        HeatLevel = "off"
	HeatLow        HeatLevel = "low"
	HeatMedium     HeatLevel = "medium"
	HeatMediumHigh HeatLevel = "medium_high"
	HeatHigh       HeatLevel = "high"
)

// ParseHeatLevel accepts spellings like "Medium-High" or "medium high"
func ParseHeatLevel(text string) (HeatLevel, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch level := HeatLevel(normalized); level {
	case HeatOff, HeatLow, HeatMedium, HeatMediumHigh, HeatHigh:
		return level, true
	case "":
		return HeatOff, true
	}
	return "", false
}

var (
	ErrRecipeRequired        = errors.New("workflow card requires a recipe id")
	ErrCardCount             = fmt.Errorf("card set must contain between %d and %d cards", MinCards, MaxCards)
	ErrTitleRequired         = errors.New("card title is required")
	ErrInstructionsRequired  = errors.New("card needs at least one instruction")
	ErrSuccessMarkerRequired = errors.New("card success marker is required")
	ErrVagueSuccessMarker    = errors.New("card success marker must describe a sensory cue")
	ErrInvalidHeatLevel      = errors.New("unknown card heat level")
)

// vagueMarkers are success markers that give the cook nothing to look for
var vagueMarkers = map[string]bool{
	"done":         true,
	"until done":   true,
	"cooked":       true,
	"until cooked": true,
	"ready":        true,
	"finished":     true,
	"complete":     true,
}

// IngredientUse is an ingredient handled on a card
type IngredientUse struct {
	Name   string `json:"name"`
	Qty    string `json:"qty"`
	Action string `json:"action"`
}

// Draft is an unvalidated card as produced by generation
type Draft struct {
	Title           string
	CardType        string
	HeatLevel       string
	Instructions    []string
	SuccessMarker   string
	TimerSeconds    *int
	ParallelTask    *string
	ProTip          *string
	TechniqueIcon   string
	IngredientsUsed []IngredientUse
}

// WorkflowCard is one phase of cooking a recipe
type WorkflowCard struct {
	id              uuid.UUID
	recipeID        uuid.UUID
	cardNumber      int
	title           string
	cardType        string
	heatLevel       HeatLevel
	instructions    []string
	successMarker   string
	timerSeconds    *int
	parallelTask    *string
	proTip          *string
	techniqueIcon   string
	ingredientsUsed []IngredientUse
	createdAt       time.Time
}

// NewSet validates a generated card set for a recipe. Cards are numbered
// 1..n in the order given. Ingredient names are mapped onto the recipe's
// own spelling, ignoring case; names the recipe does not contain are
// dropped and returned so the caller can log them.
func NewSet(recipeID uuid.UUID, drafts []Draft, recipeIngredients []string, now time.Time) ([]*WorkflowCard, []string, error) {
	if recipeID == uuid.Nil {
		return nil, nil, ErrRecipeRequired
	}
	if len(drafts) < MinCards || len(drafts) > MaxCards {
		return nil, nil, fmt.Errorf("%w: got %d", ErrCardCount, len(drafts))
	}

	canonical := make(map[string]string, len(recipeIngredients))
	for _, name := range recipeIngredients {
		canonical[foldName(name)] = name
	}

	cards := make([]*WorkflowCard, 0, len(drafts))
	var unknown []string
	for i, d := range drafts {
		c, dropped, err := newCard(recipeID, i+1, d, canonical, now)
		if err != nil {
			return nil, nil, fmt.Errorf("card %d: %w", i+1, err)
		}
		unknown = append(unknown, dropped...)
		cards = append(cards, c)
	}
	return cards, unknown, nil
}

func newCard(recipeID uuid.UUID, number int, d Draft, canonical map[string]string, now time.Time) (*WorkflowCard, []string, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return nil, nil, ErrTitleRequired
	}

	instructions := make([]string, 0, len(d.Instructions))
	for _, step := range d.Instructions {
		if step = strings.TrimSpace(step); step != "" {
			instructions = append(instructions, step)
		}
	}
	if len(instructions) == 0 {
		return nil, nil, ErrInstructionsRequired
	}

	marker := strings.TrimSpace(d.SuccessMarker)
	if marker == "" {
		return nil, nil, ErrSuccessMarkerRequired
	}
	if vagueMarkers[strings.ToLower(strings.TrimRight(marker, ".!"))] {
		return nil, nil, ErrVagueSuccessMarker
	}

	heat, ok := ParseHeatLevel(d.HeatLevel)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidHeatLevel, d.HeatLevel)
	}

	var timer *int
	if d.TimerSeconds != nil && *d.TimerSeconds > 0 {
		seconds := *d.TimerSeconds
		timer = &seconds
	}

	used := make([]IngredientUse, 0, len(d.IngredientsUsed))
	var dropped []string
	for _, use := range d.IngredientsUsed {
		if foldName(use.Name) == "" {
			continue
		}
		name, ok := canonical[foldName(use.Name)]
		if !ok {
			dropped = append(dropped, use.Name)
			continue
		}
		use.Name = name
		use.Qty = strings.TrimSpace(use.Qty)
		use.Action = strings.TrimSpace(use.Action)
		used = append(used, use)
	}

	return &WorkflowCard{
		id:              uuid.New(),
		recipeID:        recipeID,
		cardNumber:      number,
		title:           title,
		cardType:        strings.TrimSpace(d.CardType),
		heatLevel:       heat,
		instructions:    instructions,
		successMarker:   marker,
		timerSeconds:    timer,
		parallelTask:    trimmedOrNil(d.ParallelTask),
		proTip:          trimmedOrNil(d.ProTip),
		techniqueIcon:   strings.TrimSpace(d.TechniqueIcon),
		ingredientsUsed: used,
		createdAt:       now,
	}, dropped, nil
}

// UncoveredIngredients lists recipe ingredients no card mentions
func UncoveredIngredients(cards []*WorkflowCard, recipeIngredients []string) []string {
	covered := make(map[string]bool)
	for _, c := range cards {
		for _, use := range c.ingredientsUsed {
			covered[foldName(use.Name)] = true
		}
	}
	var missing []string
	for _, name := range recipeIngredients {
		if !covered[foldName(name)] {
			missing = append(missing, name)
		}
	}
	return missing
}

// State is the persisted form of a card
type State struct {
	ID              uuid.UUID
	RecipeID        uuid.UUID
	CardNumber      int
	Title           string
	CardType        string
	HeatLevel       HeatLevel
	Instructions    []string
	SuccessMarker   string
	TimerSeconds    *int
	ParallelTask    *string
	ProTip          *string
	TechniqueIcon   string
	IngredientsUsed []IngredientUse
	CreatedAt       time.Time
}

// Restore rebuilds a card from storage
func Restore(s State) *WorkflowCard {
	return &WorkflowCard{
		id:              s.ID,
		recipeID:        s.RecipeID,
		cardNumber:      s.CardNumber,
		title:           s.Title,
		cardType:        s.CardType,
		heatLevel:       s.HeatLevel,
		instructions:    s.Instructions,
		successMarker:   s.SuccessMarker,
		timerSeconds:    s.TimerSeconds,
		parallelTask:    s.ParallelTask,
		proTip:          s.ProTip,
		techniqueIcon:   s.TechniqueIcon,
		ingredientsUsed: s.IngredientsUsed,
		createdAt:       s.CreatedAt,
	}
}

// State returns the persisted form of the card
func (c *WorkflowCard) State() State {
	return State{
		ID:              c.id,
		RecipeID:        c.recipeID,
		CardNumber:      c.cardNumber,
		Title:           c.title,
		CardType:        c.cardType,
		HeatLevel:       c.heatLevel,
		Instructions:    c.instructions,
		SuccessMarker:   c.successMarker,
		TimerSeconds:    c.timerSeconds,
		ParallelTask:    c.parallelTask,
		ProTip:          c.proTip,
		TechniqueIcon:   c.techniqueIcon,
		IngredientsUsed: c.ingredientsUsed,
		CreatedAt:       c.createdAt,
	}
}

func (c *WorkflowCard) ID() uuid.UUID { return c.id }
func (c *WorkflowCard) RecipeID() uuid.UUID { return c.recipeID }
func (c *WorkflowCard) CardNumber() int { return c.cardNumber }
func (c *WorkflowCard) Title() string { return c.title }
func (c *WorkflowCard) CardType() string { return c.cardType }
func (c *WorkflowCard) HeatLevel() HeatLevel { return c.heatLevel }
func (c *WorkflowCard) Instructions() []string { return c.instructions }
func (c *WorkflowCard) SuccessMarker() string { return c.successMarker }
func (c *WorkflowCard) TimerSeconds() *int { return c.timerSeconds }
func (c *WorkflowCard) ParallelTask() *string { return c.parallelTask }
func (c *WorkflowCard) ProTip() *string { return c.proTip }
func (c *WorkflowCard) TechniqueIcon() string { return c.techniqueIcon }
func (c *WorkflowCard) IngredientsUsed() []IngredientUse { return c.ingredientsUsed }
func (c *WorkflowCard) CreatedAt() time.Time { return c.createdAt }

func foldName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
