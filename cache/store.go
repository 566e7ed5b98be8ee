package cache

import "context"

// Store is the minimal contract shared by the in-process LRU cache and the
// Redis-backed store. Implementations are expected to swallow their own
// infrastructure errors and report a miss instead; callers treat the store
// as best-effort.
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V)
	Delete(ctx context.Context, key string) bool
}

// LRUStore adapts a Cache to the Store interface for callers that select
// between local and Redis-backed caching at wiring time.
type LRUStore[V any] struct {
	lru *Cache[V]
}

// NewLRUStore wraps cache in the Store interface.
func NewLRUStore[V any](cache *Cache[V]) *LRUStore[V] {
	return &LRUStore[V]{lru: cache}
}

func (s *LRUStore[V]) Get(_ context.Context, key string) (V, bool) {
	return s.lru.Get(key)
}

func (s *LRUStore[V]) Set(_ context.Context, key string, value V) {
	s.lru.Set(key, value)
}

func (s *LRUStore[V]) Delete(_ context.Context, key string) bool {
	return s.lru.Delete(key)
}
