// Package redis provides the Redis-backed cache and distributed-lock
// primitives used by the Engram sidecar (DOMAIN STACK, Engram sidecar) and
// by the Store's Tabula Rasa boot-ownership check (§4.1).
package redis

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/RSBalchII/anchor/internal/config"
	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
	"github.com/RSBalchII/anchor/pkg/errors"
)

var ErrClientClosed = errors.Unavailable("redis client is closed")

// Client wraps a standalone go-redis client with a closed-guard so that
// callers get a typed error instead of a panic after Close.
type Client struct {
	rdb    *goredis.Client
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewClient dials a standalone Redis instance per cfg and verifies
// connectivity with a bounded ping before returning.
func NewClient(cfg config.RedisConfig, log logging.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	client := &Client{rdb: rdb, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, errors.CodeCacheError, "redis connection failed")
	}

	log.Info("redis client connected", logging.String("addr", cfg.Addr))
	return client, nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.rdb.Close()
	if err != nil {
		c.logger.Error("failed to close redis client", logging.Err(err))
	}
	return err
}

func (c *Client) Ping(ctx context.Context) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, key string) *goredis.StringCmd {
	if c.isClosed() {
		cmd := goredis.NewStringCmd(ctx)
		cmd.SetErr(ErrClientClosed)
		return cmd
	}
	return c.rdb.Get(ctx, key)
}

func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *goredis.StatusCmd {
	if c.isClosed() {
		cmd := goredis.NewStatusCmd(ctx)
		cmd.SetErr(ErrClientClosed)
		return cmd
	}
	return c.rdb.Set(ctx, key, value, ttl)
}

func (c *Client) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	if c.isClosed() {
		cmd := goredis.NewIntCmd(ctx)
		cmd.SetErr(ErrClientClosed)
		return cmd
	}
	return c.rdb.Del(ctx, keys...)
}

func (c *Client) Exists(ctx context.Context, keys ...string) *goredis.IntCmd {
	if c.isClosed() {
		cmd := goredis.NewIntCmd(ctx)
		cmd.SetErr(ErrClientClosed)
		return cmd
	}
	return c.rdb.Exists(ctx, keys...)
}

// Underlying exposes the raw client for the lock primitives' Lua scripts.
func (c *Client) Underlying() *goredis.Client {
	return c.rdb
}
