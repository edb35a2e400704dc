// Package gorm provides GORM-based repository implementations
package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecipeRepository implements the recipe repository interface using GORM
type RecipeRepository struct {
	db *gorm.DB
}

// NewRecipeRepository creates a new recipe repository
func NewRecipeRepository(db *gorm.DB) outbound.RecipeRepository {
	return &RecipeRepository{db: db}
}

// SaveExtraction creates the recipe, its ingredients and the optional
// sacred analysis inside one transaction
func (r *RecipeRepository) SaveExtraction(ctx context.Context, rec *recipe.Recipe, analysis *sacred.Analysis) error {
	model := RecipeToModel(rec)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Ingredients").Create(model).Error; err != nil {
			if isUniqueViolation(err, "slug") {
				return recipe.ErrDuplicateSlug
			}
			return fmt.Errorf("insert recipe: %w", err)
		}

		if len(model.Ingredients) > 0 {
			if err := tx.Create(&model.Ingredients).Error; err != nil {
				return fmt.Errorf("insert ingredients: %w", err)
			}
		}

		if analysis == nil {
			return nil
		}
		if err := tx.Omit(clause.Associations).Create(AnalysisToModel(analysis)).Error; err != nil {
			return fmt.Errorf("insert sacred analysis: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

// FindByID finds a recipe by ID with its ingredients in sort order
func (r *RecipeRepository) FindByID(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error) {
	var model RecipeModel

	result := r.db.WithContext(ctx).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		First(&model, "id = ?", id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, recipe.ErrRecipeNotFound
		}
		return nil, result.Error
	}

	return ModelToRecipe(&model)
}

// Exists reports whether a recipe with the ID is stored
func (r *RecipeRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&RecipeModel{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
