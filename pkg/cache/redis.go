package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/pdb-slot-api/pkg/config"
)

const (
	pingTimeout  = 5 * time.Second
	retryBackoff = 500 * time.Millisecond
)

// NewRedis connects the client shared by the claim store, event broker, list
// cache and rate limiter. The ping is retried ConnectAttempts times so the API
// can start alongside a Redis container that is still booting.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = ping(ctx, client); err == nil {
			return client, nil
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", client.Options().Addr, ctx.Err())
		case <-time.After(time.Duration(i) * retryBackoff):
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("ping redis %s: %w", client.Options().Addr, err)
}

func ping(ctx context.Context, client *redis.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return client.Ping(pingCtx).Err()
}
