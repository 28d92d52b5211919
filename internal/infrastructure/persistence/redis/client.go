// Package redis provides the Redis connection and the Redis-backed cache repository
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/infrastructure/config"
)

// NewClient creates a Redis client from configuration and verifies the connection
func NewClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (redis.UniversalClient, error) {
	opts := &redis.UniversalOptions{
		Addrs:        []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Password:     cfg.Password,
		DB:           cfg.Database,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// Connection timeouts
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,

		ConnMaxIdleTime: 5 * time.Minute,
		PoolTimeout:     10 * time.Second,
	}

	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis client initialized successfully",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("database", cfg.Database),
	)

	return client, nil
}
