package lock

import (
	"github.com/alchemorsel/recipeflow/internal/infrastructure/cache"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"go.uber.org/zap"
)

// NewLockManager returns a Redis backed manager when a client is available
// and an in-process one otherwise
func NewLockManager(cfg config.LockConfig, client *cache.RedisClient, logger *zap.Logger) outbound.LockManager {
	if client != nil {
		return NewRedisLockManager(client, cfg.WaitTimeout, cfg.RetryDelay, logger)
	}
	logger.Info("Redis disabled, pipeline locks are process local")
	return NewMemoryLockManager(cfg.WaitTimeout, logger)
}
