package gorm

import (
	"context"
	"errors"

	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KnowledgeRepository implements the knowledge repository interface using GORM
type KnowledgeRepository struct {
	db *gorm.DB
}

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(db *gorm.DB) outbound.KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// Upsert replaces the stored aggregate for the cuisine
func (r *KnowledgeRepository) Upsert(ctx context.Context, kb *knowledge.KnowledgeBase) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cuisine"}},
			UpdateAll: true,
		}).
		Create(KnowledgeBaseToModel(kb)).Error
}

// FindByCuisine returns the aggregate for a cuisine key
func (r *KnowledgeRepository) FindByCuisine(ctx context.Context, cuisine string) (*knowledge.KnowledgeBase, error) {
	var model KnowledgeBaseModel

	if err := r.db.WithContext(ctx).First(&model, "cuisine = ?", cuisine).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, knowledge.ErrNotFound
		}
		return nil, err
	}

	return ModelToKnowledgeBase(&model), nil
}

// Top returns the most learned cuisines
func (r *KnowledgeRepository) Top(ctx context.Context, limit int) ([]*knowledge.KnowledgeBase, error) {
	var models []KnowledgeBaseModel

	query := r.db.WithContext(ctx).
		Order("recipe_count DESC").
		Order("cuisine ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	bases := make([]*knowledge.KnowledgeBase, len(models))
	for i := range models {
		bases[i] = ModelToKnowledgeBase(&models[i])
	}
	return bases, nil
}
