package gorm

import (
	"context"
	"errors"

	"github.com/alchemorsel/recipeflow/internal/domain/upload"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UploadRepository implements the upload repository interface using GORM
type UploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository creates a new upload repository
func NewUploadRepository(db *gorm.DB) outbound.UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts a new upload
func (r *UploadRepository) Create(ctx context.Context, u *upload.Upload) error {
	return r.db.WithContext(ctx).Create(UploadToModel(u)).Error
}

// Update stores the upload's current status
func (r *UploadRepository) Update(ctx context.Context, u *upload.Upload) error {
	model := UploadToModel(u)

	result := r.db.WithContext(ctx).
		Model(&UploadModel{}).
		Where("id = ?", model.ID).
		Select("status", "error_message", "recipe_id", "raw_content_ref", "completed_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return upload.ErrUploadNotFound
	}

	return nil
}

// FindByID finds an upload by ID
func (r *UploadRepository) FindByID(ctx context.Context, id uuid.UUID) (*upload.Upload, error) {
	var model UploadModel

	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, upload.ErrUploadNotFound
		}
		return nil, err
	}

	return ModelToUpload(&model), nil
}
