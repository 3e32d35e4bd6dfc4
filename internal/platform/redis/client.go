// Package redis implements queue.Backend on Redis. Each named queue is a
// waiting list, a delayed sorted set scored by visibility time, an active
// sorted set scored by lease time and a hash of job records. Every state
// change runs as a Lua script so a job is never in two places at once.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/quizgen-api/internal/config"
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}
