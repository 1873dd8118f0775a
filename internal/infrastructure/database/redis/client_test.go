//go:build integration

package redis_test

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RSBalchII/anchor/internal/config"
	"github.com/RSBalchII/anchor/internal/infrastructure/database/redis"
	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
)

func testRedisConfig(t *testing.T) config.RedisConfig {
	t.Helper()
	addr := os.Getenv("INTEGRATION_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("INTEGRATION_TEST_REDIS_ADDR not set; skipping integration test")
	}
	return config.RedisConfig{Addr: addr, PoolSize: 5, MinIdleConns: 1}
}

func TestNewClient_Success(t *testing.T) {
	cfg := testRedisConfig(t)
	client, err := redis.NewClient(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	cfg := config.RedisConfig{Addr: "127.0.0.1:1"}
	client, err := redis.NewClient(cfg, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestClient_Operations(t *testing.T) {
	cfg := testRedisConfig(t)
	client, err := redis.NewClient(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "anchor:test:key", "value", 0).Err())

	val, err := client.Get(ctx, "anchor:test:key").Result()
	require.NoError(t, err)
	assert.Equal(t, "value", val)

	require.NoError(t, client.Del(ctx, "anchor:test:key").Err())

	_, err = client.Get(ctx, "anchor:test:key").Result()
	assert.Equal(t, goredis.Nil, err)
}

func TestClient_Close_IsIdempotentAndBlocksFurtherUse(t *testing.T) {
	cfg := testRedisConfig(t)
	client, err := redis.NewClient(cfg, logging.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	err = client.Get(context.Background(), "anchor:test:key").Err()
	assert.Equal(t, redis.ErrClientClosed, err)
}
