package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/ports/outbound"
	"github.com/alchemorsel/pantry/pkg/healthcheck"
)

// CacheRepository implements outbound.CacheRepository on Redis.
// Calls go through a circuit breaker so a dead Redis fails fast.
type CacheRepository struct {
	client  redis.UniversalClient
	breaker *healthcheck.CircuitBreaker
	logger  *zap.Logger
}

// NewCacheRepository creates a Redis cache repository
func NewCacheRepository(client redis.UniversalClient, breaker *healthcheck.CircuitBreaker, logger *zap.Logger) *CacheRepository {
	if breaker == nil {
		breaker = healthcheck.NewCircuitBreaker("redis", healthcheck.DefaultCircuitBreakerConfig())
	}
	return &CacheRepository{
		client:  client,
		breaker: breaker,
		logger:  logger.Named("redis-cache"),
	}
}

var _ outbound.CacheRepository = (*CacheRepository)(nil)

func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Get retrieves a value; absent keys return outbound.ErrCacheMiss
func (r *CacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.breaker.Execute(func() error {
		var err error
		value, err = r.client.Get(ctx, key).Bytes()
		return err
	}, isMiss)

	if isMiss(err) {
		return nil, outbound.ErrCacheMiss
	}
	if err != nil {
		r.logger.Debug("Cache get failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return value, nil
}

// Set stores a value with TTL
func (r *CacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := r.breaker.Execute(func() error {
		return r.client.Set(ctx, key, value, ttl).Err()
	})
	if err != nil {
		r.logger.Warn("Cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Delete removes a value from cache
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	err := r.breaker.Execute(func() error {
		return r.client.Del(ctx, key).Err()
	})
	if err != nil {
		r.logger.Warn("Cache delete failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Exists checks if a key exists in cache
func (r *CacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := r.breaker.Execute(func() error {
		var err error
		n, err = r.client.Exists(ctx, key).Result()
		return err
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
