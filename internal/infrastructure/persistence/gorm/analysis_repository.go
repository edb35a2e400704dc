package gorm

import (
	"context"
	"errors"

	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SacredAnalysisRepository implements the sacred analysis read side using GORM
type SacredAnalysisRepository struct {
	db *gorm.DB
}

// NewSacredAnalysisRepository creates a new sacred analysis repository
func NewSacredAnalysisRepository(db *gorm.DB) outbound.SacredAnalysisRepository {
	return &SacredAnalysisRepository{db: db}
}

// FindByRecipeID returns the analysis stored with a recipe
func (r *SacredAnalysisRepository) FindByRecipeID(ctx context.Context, recipeID uuid.UUID) (*sacred.Analysis, error) {
	var model SacredAnalysisModel

	if err := r.db.WithContext(ctx).First(&model, "recipe_id = ?", recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sacred.ErrAnalysisNotFound
		}
		return nil, err
	}

	return ModelToAnalysis(&model), nil
}

// FindByCuisine returns every analysis for a cuisine key, oldest first
func (r *SacredAnalysisRepository) FindByCuisine(ctx context.Context, cuisine string) ([]*sacred.Analysis, error) {
	var models []SacredAnalysisModel

	err := r.db.WithContext(ctx).
		Where("cuisine = ?", cuisine).
		Order("created_at ASC").
		Order("recipe_id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	analyses := make([]*sacred.Analysis, len(models))
	for i := range models {
		analyses[i] = ModelToAnalysis(&models[i])
	}
	return analyses, nil
}

// ListCuisines returns the distinct cuisine keys that have analyses
func (r *SacredAnalysisRepository) ListCuisines(ctx context.Context) ([]string, error) {
	var cuisines []string

	err := r.db.WithContext(ctx).
		Model(&SacredAnalysisModel{}).
		Distinct("cuisine").
		Order("cuisine ASC").
		Pluck("cuisine", &cuisines).Error
	if err != nil {
		return nil, err
	}
	return cuisines, nil
}
