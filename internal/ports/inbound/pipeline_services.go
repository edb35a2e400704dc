// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"

	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/google/uuid"
)

// ExtractionService turns raw recipe sources into constrained recipes
type ExtractionService interface {
	Extract(ctx context.Context, cmd ExtractCommand) (*ExtractResult, error)
}

// KnowledgeService builds prompt context from, and learns into, the
// per-cuisine knowledge bases
type KnowledgeService interface {
	// BuildContext renders the top cuisines into the extraction prompt block
	BuildContext(ctx context.Context) (string, error)
	// Learn recomputes the cuisine's knowledge base from all its analyses
	Learn(ctx context.Context, cuisine string) (*knowledge.KnowledgeBase, error)
	// LearnBestEffort runs Learn and logs any failure instead of returning it
	LearnBestEffort(ctx context.Context, cuisine string)
	// LearnAll recomputes every cuisine that has analyses
	LearnAll(ctx context.Context, progress func(LearnProgress)) (*LearnAllReport, error)

	Get(ctx context.Context, cuisine string) (*knowledge.KnowledgeBase, error)
	Top(ctx context.Context, limit int) ([]*knowledge.KnowledgeBase, error)
}

// CardService generates and reads workflow cards
type CardService interface {
	Generate(ctx context.Context, recipeID uuid.UUID) (*GenerateCardsResult, error)
	ListCards(ctx context.Context, recipeID uuid.UUID) ([]CardDTO, error)
}

// Commands

// ExtractCommand is the body of an extraction request
type ExtractCommand struct {
	UploadType string `json:"upload_type" validate:"required,oneof=text url pdf image"`
	RawText    string `json:"raw_text,omitempty" validate:"max=200000"`
	FileURL    string `json:"file_url,omitempty" validate:"omitempty,url"`
	SourceURL  string `json:"source_url,omitempty" validate:"omitempty,url"`
}

// GenerateCardsCommand is the body of a card generation request
type GenerateCardsCommand struct {
	RecipeID string `json:"recipe_id" validate:"required,uuid"`
}

// Response DTOs

// ExtractResult is returned by a successful extraction
type ExtractResult struct {
	RecipeID       uuid.UUID         `json:"recipe_id"`
	UploadID       uuid.UUID         `json:"upload_id"`
	SacredAnalysis *SacredSummaryDTO `json:"sacred_analysis"`
}

// SacredSummaryDTO summarizes the sacred analysis of an extracted recipe
type SacredSummaryDTO struct {
	Hero        string   `json:"hero"`
	Quality     float64  `json:"quality"`
	Confidence  float64  `json:"confidence"`
	SacredCount int      `json:"sacred_count"`
	Adaptations []string `json:"adaptations"`
}

// GenerateCardsResult is returned by a successful card generation
type GenerateCardsResult struct {
	RecipeID    uuid.UUID `json:"recipe_id"`
	CardCount   int       `json:"card_count"`
	SacredAware bool      `json:"sacred_aware"`
}

// CardDTO is a stored workflow card
type CardDTO struct {
	ID              uuid.UUID          `json:"id"`
	CardNumber      int                `json:"card_number"`
	Title           string             `json:"title"`
	CardType        string             `json:"card_type"`
	HeatLevel       string             `json:"heat_level"`
	Instructions    []string           `json:"instructions"`
	SuccessMarker   string             `json:"success_marker"`
	TimerSeconds    *int               `json:"timer_seconds,omitempty"`
	ParallelTask    *string            `json:"parallel_task,omitempty"`
	ProTip          *string            `json:"pro_tip,omitempty"`
	TechniqueIcon   string             `json:"technique_icon"`
	IngredientsUsed []IngredientUseDTO `json:"ingredients_used"`
}

// IngredientUseDTO is an ingredient handled on a card
type IngredientUseDTO struct {
	Name   string `json:"name"`
	Qty    string `json:"qty"`
	Action string `json:"action"`
}

// LearnProgress reports one cuisine processed by LearnAll
type LearnProgress struct {
	Cuisine string
	Err     error
	Total   int
}

// LearnAllReport summarizes a LearnAll run
type LearnAllReport struct {
	Learned []string
	Skipped []string
	Failed  map[string]string
}
