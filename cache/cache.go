package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a bounded in-memory key/value cache with TTL expiry and strict
// least-recently-used eviction. Every operation takes the single mutex for
// the full read-modify-write sequence; locking individual map operations
// would allow two concurrent Sets to both pass the size check and leave the
// cache over capacity.
type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List // front = most recently used
	items   map[string]*list.Element
	now     func() time.Time
}

type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
}

// Stats is a point-in-time snapshot of cache configuration and occupancy.
type Stats struct {
	Size       int   `json:"size"`
	MaxSize    int   `json:"max_size"`
	TTLSeconds int64 `json:"ttl_seconds"`
}

// New creates a cache holding at most maxSize entries, each valid for ttl
// after insertion.
func New[V any](maxSize int, ttl time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		items:   make(map[string]*list.Element),
		now:     time.Now,
	}
}

// Get returns the value for key if present and not expired. An expired entry
// is removed on read. A hit promotes the entry to most recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	ent := elem.Value.(*entry[V])
	if c.now().Sub(ent.insertedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.items, key)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return ent.value, true
}

// Set inserts or refreshes key as most recently used, then evicts from the
// least-recently-used end until the cache fits maxSize. Eviction order among
// equally-recent entries follows insertion order.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry[V])
		ent.value = value
		ent.insertedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&entry[V]{key: key, value: value, insertedAt: c.now()})
	c.items[key] = elem

	for len(c.items) > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry[V]).key)
	}
}

// Delete removes key, reporting whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.order.Remove(elem)
	delete(c.items, key)
	return true
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// Stats reports current size and configuration.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:       len(c.items),
		MaxSize:    c.maxSize,
		TTLSeconds: int64(c.ttl / time.Second),
	}
}
