// Package redis backs the protocol's coordination primitives with
// go-redis/v9: finalization locks, API rate limits, the event fan-out
// channel, and pinned oracle prices.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quorumlabs/adjudicator/internal/config"
)

// Client wraps a go-redis client. Sub-components (LockManager, RateLimiter,
// SignalBus, PriceOracle) share one connection pool through it.
type Client struct {
	rdb *redis.Client
}

// New dials Redis with the given settings and verifies connectivity with a
// ping before returning.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Ping checks that the connection is still live.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying exposes the raw driver for the sub-components in this package.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
