// Package cache holds the local durable product snapshot and the
// cross-instance product change broadcast.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCloseTimeout = 5 * time.Second
	pingTimeout         = 5 * time.Second
)

// NewRedisClient creates a client and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
