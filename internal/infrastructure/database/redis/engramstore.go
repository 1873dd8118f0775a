package redis

import (
	"context"
	"time"

	"github.com/RSBalchII/anchor/internal/domain/memory"
)

// CachedStore decorates a memory.Store, front-loading GetEngram with a Redis
// cache so repeat phrase->atom lookups within a TTL skip Postgres entirely,
// per §5's "Engram store: shared, and additionally mirrored into a
// process-wide cache for repeat lookups within a TTL" shared-resource rule.
// Every other method passes through unchanged.
type CachedStore struct {
	memory.Store
	cache Cache
	ttl   time.Duration
}

// NewCachedStore wraps store with cache, using ttl for Engram cache entries.
func NewCachedStore(store memory.Store, cache Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: store, cache: cache, ttl: ttl}
}

func (s *CachedStore) GetEngram(ctx context.Context, keyHash string) ([]string, bool, error) {
	var atomIDs []string
	err := s.cache.GetOrSet(ctx, engramCacheKey(keyHash), &atomIDs, s.ttl, func(ctx context.Context) (interface{}, error) {
		ids, ok, err := s.Store.GetEngram(ctx, keyHash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrCacheMiss
		}
		return ids, nil
	})
	if err == ErrCacheMiss {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return atomIDs, true, nil
}

func (s *CachedStore) PutEngram(ctx context.Context, keyHash string, atomIDs []string) error {
	if err := s.Store.PutEngram(ctx, keyHash, atomIDs); err != nil {
		return err
	}
	return s.cache.Set(ctx, engramCacheKey(keyHash), atomIDs, s.ttl)
}

func engramCacheKey(keyHash string) string {
	return "engram:" + keyHash
}
