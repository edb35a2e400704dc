package gorm

import (
	"context"
	"fmt"

	"github.com/alchemorsel/recipeflow/internal/domain/card"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CardRepository implements the workflow card repository interface using GORM
type CardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository
func NewCardRepository(db *gorm.DB) outbound.CardRepository {
	return &CardRepository{db: db}
}

// ReplaceForRecipe swaps the recipe's card set and records its pipeline
// status atomically
func (r *CardRepository) ReplaceForRecipe(ctx context.Context, rec *recipe.Recipe, cards []*card.WorkflowCard) error {
	models := make([]*WorkflowCardModel, len(cards))
	for i, c := range cards {
		models[i] = CardToModel(c)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&RecipeModel{}).
			Where("id = ?", rec.ID()).
			Updates(map[string]interface{}{
				"pipeline_status": string(rec.PipelineStatus()),
				"updated_at":      rec.UpdatedAt(),
			})
		if result.Error != nil {
			return fmt.Errorf("update recipe status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return recipe.ErrRecipeNotFound
		}

		if err := tx.Where("recipe_id = ?", rec.ID()).Delete(&WorkflowCardModel{}).Error; err != nil {
			return fmt.Errorf("delete cards: %w", err)
		}

		if len(models) == 0 {
			return nil
		}
		if err := tx.Omit(clause.Associations).Create(&models).Error; err != nil {
			return fmt.Errorf("insert cards: %w", err)
		}
		return nil
	})
}

// FindByRecipeID returns a recipe's cards in card order
func (r *CardRepository) FindByRecipeID(ctx context.Context, recipeID uuid.UUID) ([]*card.WorkflowCard, error) {
	var models []WorkflowCardModel

	err := r.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("card_number ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	cards := make([]*card.WorkflowCard, len(models))
	for i := range models {
		cards[i] = ModelToCard(&models[i])
	}
	return cards, nil
}
