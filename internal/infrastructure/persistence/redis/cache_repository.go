// Package redis provides the Redis backed cache repository
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/cache"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"go.uber.org/zap"
)

// CacheRepository implements the cache repository interface on Redis
type CacheRepository struct {
	client *cache.RedisClient
	logger *zap.Logger
}

// NewCacheRepository creates a new Redis cache repository
func NewCacheRepository(client *cache.RedisClient, logger *zap.Logger) outbound.CacheRepository {
	return &CacheRepository{
		client: client,
		logger: logger,
	}
}

// Get retrieves a value. Absent keys and an open circuit both read as a
// miss so callers fall back to the source of truth.
func (r *CacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, cache.ErrKeyNotFound), errors.Is(err, cache.ErrCircuitOpen):
		return nil, outbound.ErrCacheMiss
	default:
		r.logger.Debug("Cache get failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}
}

// Set stores a value with TTL
func (r *CacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl)
}

// Delete removes a value
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	return r.client.Delete(ctx, key)
}

// Exists checks if a key exists
func (r *CacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	return r.client.Exists(ctx, key)
}
