package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"riskstrat/internal/adapters/config"
	"riskstrat/pkg/errors"
)

// Client holds the connection behind the prediction cache. Cache semantics
// (keys, TTL, invalidation) live in repository/redis.
type Client struct {
	rdb *redis.Client
}

// NewClient dials Redis and fails fast when the server does not answer PING
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "ping redis at %s", cfg.Addr())
	}
	return &Client{rdb: rdb}, nil
}

// Client exposes the go-redis handle to the cache repository
func (c *Client) Client() *redis.Client { return c.rdb }

func (c *Client) Close() error { return c.rdb.Close() }

// Health backs the redis check behind /ready
func (c *Client) Health(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis ping")
	}
	return nil
}
