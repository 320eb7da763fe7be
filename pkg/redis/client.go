// Package redis wraps the go-redis client behind the small surface the
// shared response cache and the health checker need.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
)

// Config holds the redis connection settings
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Client is a thin wrapper over one redis connection pool. It carries
// only the string get/set and ping operations the service uses.
type Client struct {
	rdb    *redis.Client
	logger ectologger.Logger
}

// NewClient connects and verifies the connection with a ping before
// handing the client out.
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger.Infof("Connected to redis at %s", addr)

	return &Client{
		rdb:    rdb,
		logger: logger,
	}, nil
}

// Close releases the connection pool
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping reports whether redis is reachable; the health checker calls
// this on every readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get retrieves a value by key. A missing key surfaces as redis.Nil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Set stores a value under key for the given TTL. A zero expiration
// keeps the key until it is overwritten.
func (c *Client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}
