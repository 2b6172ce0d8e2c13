package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
	"github.com/danielcwq/stall-finder/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client holds the go-redis client backing the embedding cache.
type Client struct {
	client *redis.Client
}

func options(cfg *config.RedisConfig) *redis.Options {
	dialTimeout := time.Duration(cfg.DialTimeoutMs) * time.Millisecond
	return &redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  dialTimeout,
		ReadTimeout:  dialTimeout,
		WriteTimeout: dialTimeout,
	}
}

// NewClient connects once without retrying. The cache is optional, so an
// unreachable server is reported to the caller instead of delaying startup.
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr(), err)
	}

	observability.GetLogger().Info().
		Str("addr", cfg.RedisAddr()).
		Int("db", cfg.DB).
		Int("pool_size", cfg.PoolSize).
		Msg("Connected to Redis")
	return &Client{client: client}, nil
}

// Client returns the underlying Redis client
func (c *Client) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}
