package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultMaxEntries bounds the in-memory store so a flood of unique keys
// cannot grow it without limit.
const DefaultMaxEntries = 100000

// MemoryStore is a process-local Store. Atomicity holds only inside one process.
// At capacity the least recently used entry is evicted.
type MemoryStore struct {
	items *ttlcache.Cache[string, string]
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		items: ttlcache.New[string, string](
			ttlcache.WithCapacity[string, string](uint64(maxEntries)),
			// a duplicate must not extend the original retention
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}

// AdmitOnce is GetOrSet under the cache lock, the in-process SET NX.
func (s *MemoryStore) AdmitOnce(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	_, found := s.items.GetOrSet(key, value, ttlcache.WithTTL[string, string](ttl))
	return !found, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	item := s.items.Get(key)
	if item == nil || item.IsExpired() {
		return "", ErrCacheMiss
	}
	return item.Value(), nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.items.Delete(k)
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len reports live and not yet collected entries.
func (s *MemoryStore) Len() int {
	return s.items.Len()
}
