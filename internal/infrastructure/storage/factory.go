package storage

import (
	"fmt"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"go.uber.org/zap"
)

// NewBlobStore returns the store selected by storage.provider
func NewBlobStore(cfg *config.Config, logger *zap.Logger) (outbound.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "local":
		return NewLocalStore(cfg.Storage.LocalPath, logger)
	case "s3":
		return NewS3Store(cfg.AWS, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.Storage.Provider)
	}
}
