package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/cache"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const redisKeyPrefix = "lock:"

// RedisLockManager takes locks shared by every instance pointing at the
// same Redis. Each holder writes a random token with SET NX PX and only
// that token can delete the key again.
type RedisLockManager struct {
	client      *cache.RedisClient
	waitTimeout time.Duration
	retryDelay  time.Duration
	logger      *zap.Logger
}

// NewRedisLockManager creates a Redis backed lock manager
func NewRedisLockManager(client *cache.RedisClient, waitTimeout, retryDelay time.Duration, logger *zap.Logger) *RedisLockManager {
	if retryDelay <= 0 {
		retryDelay = 100 * time.Millisecond
	}
	return &RedisLockManager{
		client:      client,
		waitTimeout: waitTimeout,
		retryDelay:  retryDelay,
		logger:      logger.Named("lock"),
	}
}

var _ outbound.LockManager = (*RedisLockManager)(nil)

// Acquire implements outbound.LockManager. ttl must be positive so a
// crashed holder cannot keep the key forever.
func (m *RedisLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (outbound.Lock, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock %s: ttl must be positive", key)
	}

	waitCtx, cancel := withWaitTimeout(ctx, m.waitTimeout)
	defer cancel()

	token := []byte(uuid.NewString())
	ticker := time.NewTicker(m.retryDelay)
	defer ticker.Stop()

	for {
		ok, err := m.client.SetNX(waitCtx, redisKeyPrefix+key, token, ttl)
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return &redisLock{manager: m, key: key, token: token}, nil
		}

		select {
		case <-waitCtx.Done():
			return nil, waitError(ctx, key)
		case <-ticker.C:
		}
	}
}

type redisLock struct {
	manager *RedisLockManager
	key     string
	token   []byte
}

func (l *redisLock) Key() string { return l.key }

func (l *redisLock) Release(ctx context.Context) error {
	deleted, err := l.manager.client.CompareAndDelete(ctx, redisKeyPrefix+l.key, l.token)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if !deleted {
		l.manager.logger.Warn("Lock expired or was taken over before release", zap.String("key", l.key))
		return outbound.ErrLockNotHeld
	}
	return nil
}
