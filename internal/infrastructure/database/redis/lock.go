package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/RSBalchII/anchor/pkg/errors"
)

var ErrLockNotAcquired = errors.Conflict("failed to acquire lock")
var ErrLockNotHeld = errors.Conflict("lock not held by this owner")

// DistributedLock guards the Tabula Rasa boot check (§4.1): "if the data
// directory exists and is not already owned by a live process". A single
// anchor process instance holds this lock for the duration of its lifetime;
// a crashed holder's lock expires with its TTL, letting the next boot
// proceed with Tabula Rasa rather than waiting forever on a dead owner.
type DistributedLock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
}

// LockFactory constructs named DistributedLocks.
type LockFactory interface {
	NewMutex(name string, ttl time.Duration) DistributedLock
}

type redisLockFactory struct {
	client *Client
}

// NewLockFactory builds a LockFactory over client.
func NewLockFactory(client *Client) LockFactory {
	return &redisLockFactory{client: client}
}

func (f *redisLockFactory) NewMutex(name string, ttl time.Duration) DistributedLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisMutex{
		client: f.client,
		name:   "anchor:lock:" + name,
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

type redisMutex struct {
	client *Client
	name   string
	value  string
	ttl    time.Duration
}

func (m *redisMutex) TryLock(ctx context.Context) (bool, error) {
	ok, err := m.client.Underlying().SetNX(ctx, m.name, m.value, m.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CodeCacheError, "lock acquire failed")
	}
	return ok, nil
}

var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

func (m *redisMutex) Unlock(ctx context.Context) error {
	res, err := unlockScript.Run(ctx, m.client.Underlying(), []string{m.name}, m.value).Result()
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "lock release failed")
	}
	if res.(int64) == 0 {
		return ErrLockNotHeld
	}
	return nil
}

var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

func (m *redisMutex) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, m.client.Underlying(), []string{m.name}, m.value, ttl.Milliseconds()).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CodeCacheError, "lock extend failed")
	}
	return res.(int64) == 1, nil
}
