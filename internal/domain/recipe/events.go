package recipe

import (
	"time"

	"github.com/google/uuid"
)

// RecipeExtractedEvent is raised when a recipe is built from an upload
type RecipeExtractedEvent struct {
	RecipeID    uuid.UUID
	UploadID    uuid.UUID
	Cuisine     string
	ExtractedAt time.Time
}

func (e RecipeExtractedEvent) EventName() string {
	return "recipe.extracted"
}

func (e RecipeExtractedEvent) OccurredAt() time.Time {
	return e.ExtractedAt
}

// RecipeCardsReadyEvent is raised when a recipe gets a new card set
type RecipeCardsReadyEvent struct {
	RecipeID  uuid.UUID
	CardCount int
	ReadyAt   time.Time
}

func (e RecipeCardsReadyEvent) EventName() string {
	return "recipe.cards_ready"
}

func (e RecipeCardsReadyEvent) OccurredAt() time.Time {
	return e.ReadyAt
}
