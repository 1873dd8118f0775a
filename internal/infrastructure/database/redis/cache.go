package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
	"github.com/RSBalchII/anchor/pkg/errors"
)

// ErrCacheMiss is returned by Get/GetOrSet when the key is absent.
var ErrCacheMiss = errors.NotFound("cache miss")

// Cache is the Engram sidecar's read/write contract over Redis: a JSON
// value store with singleflight-coalesced loader support, per DOMAIN STACK's
// "Engram sidecar" wiring.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	// GetOrSet reads key into dest; on miss it runs loader, with concurrent
	// identical lookups coalesced into a single loader invocation via
	// singleflight, then caches and returns the loaded value.
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
	Ping(ctx context.Context) error
}

type redisCache struct {
	client     *Client
	log        logging.Logger
	prefix     string
	defaultTTL time.Duration
	group      singleflight.Group
}

// NewRedisCache builds a Cache over client, namespacing every key under
// prefix and using defaultTTL when callers pass ttl<=0.
func NewRedisCache(client *Client, log logging.Logger, prefix string, defaultTTL time.Duration) Cache {
	return &redisCache{client: client, log: log, prefix: prefix, defaultTTL: defaultTTL}
}

func (c *redisCache) buildKey(key string) string {
	return c.prefix + key
}

// jitterTTL applies +/-10% jitter so that many keys written at once don't
// expire in the same instant and stampede the Postgres-resident Engram table.
func (c *redisCache) jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitter := time.Duration(float64(ttl) * 0.1 * (rand.Float64()*2 - 1))
	return ttl + jitter
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.buildKey(key)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return ErrCacheMiss
		}
		return errors.Wrap(err, errors.CodeCacheError, "redis get failed")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "cache value unmarshal failed")
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	ttl = c.jitterTTL(ttl)

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "cache value marshal failed")
	}
	if err := c.client.Set(ctx, c.buildKey(key), data, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "redis set failed")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.buildKey(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "redis delete failed")
	}
	return nil
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.buildKey(key)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CodeCacheError, "redis exists failed")
	}
	return n > 0, nil
}

func (c *redisCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if err != ErrCacheMiss {
		return err
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if setErr := c.Set(ctx, key, v, ttl); setErr != nil {
			c.log.Warn("failed to populate cache after load", logging.String("key", key), logging.Err(setErr))
		}
		return v, nil
	})
	if err != nil {
		return err
	}

	data, err := json.Marshal(val)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "loaded value marshal failed")
	}
	return json.Unmarshal(data, dest)
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}
