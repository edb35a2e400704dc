// Package cache provides the shared Redis client used for caching and
// cross-instance locks
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrKeyNotFound is returned by Get for absent keys
var ErrKeyNotFound = errors.New("key not found in cache")

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1]
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClient wraps a go-redis client with key prefixing and a circuit
// breaker
type RedisClient struct {
	client  redis.UniversalClient
	prefix  string
	logger  *zap.Logger
	breaker *CircuitBreaker
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) (*RedisClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:           []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Password:        cfg.Password,
		DB:              cfg.Database,
		MaxRetries:      cfg.MaxRetries,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ConnMaxIdleTime: 5 * time.Minute,
		PoolTimeout:     10 * time.Second,
	})

	r := NewRedisClientWith(client, cfg.KeyPrefix, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.logger.Info("Redis client initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("database", cfg.Database),
	)
	return r, nil
}

// NewRedisClientWith wraps an existing client
func NewRedisClientWith(client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisClient {
	return &RedisClient{
		client:  client,
		prefix:  prefix,
		logger:  logger.Named("redis"),
		breaker: NewCircuitBreaker(5, 30*time.Second),
	}
}

// Key applies the configured prefix
func (r *RedisClient) Key(key string) string {
	return r.prefix + key
}

// do runs fn behind the circuit breaker. redis.Nil counts as success.
func (r *RedisClient) do(op, key string, fn func() error) error {
	if !r.breaker.AllowRequest() {
		return ErrCircuitOpen
	}

	err := fn()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.breaker.RecordFailure()
		r.logger.Error("Redis command failed",
			zap.String("op", op),
			zap.String("key", key),
			zap.Error(err),
		)
		return err
	}

	r.breaker.RecordSuccess()
	return err
}

// Ping tests the Redis connection
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.do("PING", "", func() error {
		return r.client.Ping(ctx).Err()
	})
}

// Get retrieves a value
func (r *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.do("GET", key, func() error {
		var err error
		value, err = r.client.Get(ctx, r.Key(key)).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

// Set stores a value with TTL. A zero TTL keeps the key until deleted.
func (r *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.do("SET", key, func() error {
		return r.client.Set(ctx, r.Key(key), value, ttl).Err()
	})
}

// SetNX sets a key only if it does not exist
func (r *RedisClient) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var ok bool
	err := r.do("SETNX", key, func() error {
		var err error
		ok, err = r.client.SetNX(ctx, r.Key(key), value, ttl).Result()
		return err
	})
	return ok, err
}

// CompareAndDelete deletes key only while it holds value
func (r *RedisClient) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	var deleted int64
	err := r.do("EVALSHA", key, func() error {
		var err error
		deleted, err = compareAndDelete.Run(ctx, r.client, []string{r.Key(key)}, value).Int64()
		return err
	})
	return deleted == 1, err
}

// Delete removes keys
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.Key(k)
	}
	return r.do("DEL", fmt.Sprint(keys), func() error {
		return r.client.Del(ctx, prefixed...).Err()
	})
}

// Exists reports whether a key exists
func (r *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := r.do("EXISTS", key, func() error {
		var err error
		n, err = r.client.Exists(ctx, r.Key(key)).Result()
		return err
	})
	return n > 0, err
}

// BreakerState reports the circuit breaker state for health checks
func (r *RedisClient) BreakerState() CircuitState {
	return r.breaker.State()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}
