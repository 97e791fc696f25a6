// Package lrucache provides a generic, thread-safe LRU cache with
// metrics, adapted from the validator's cache package for the one
// additional thing the compiler needs cached: resolved Definitions
// Cache lookups keyed by name/url.
package lrucache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// Cache is a generic thread-safe LRU cache with built-in hit/miss/evict
// counters, backed by container/list for O(1) recency updates.
type Cache[K comparable, V any] struct {
	mu       sync.RWMutex
	items    map[K]*entry[K, V]
	order    *list.List
	capacity int

	hits   atomic.Uint64
	misses atomic.Uint64
	evicts atomic.Uint64
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	element *list.Element
}

// New creates a Cache holding at most capacity entries.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 256
	}
	return &Cache[K, V]{
		items:    make(map[K]*entry[K, V], capacity),
		order:    list.New(),
		capacity: capacity,
	}
}

// Get retrieves a value, moving it to the front of the LRU list on hit.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	c.mu.Lock()
	c.order.MoveToFront(e.element)
	c.mu.Unlock()
	return e.value, true
}

// Set adds or updates a value, evicting the least recently used entry
// if the cache is at capacity.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		e.value = value
		c.order.MoveToFront(e.element)
		return
	}
	if len(c.items) >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			delete(c.items, oldest.Value.(K))
			c.order.Remove(oldest)
			c.evicts.Add(1)
		}
	}
	el := c.order.PushFront(key)
	c.items[key] = &entry[K, V]{key: key, value: value, element: el}
}

// GetOrSet returns the cached value for key, computing and storing it
// via fn on a miss.
func (c *Cache[K, V]) GetOrSet(key K, fn func() (V, bool)) (V, bool) {
	if v, ok := c.Get(key); ok {
		return v, true
	}
	v, ok := fn()
	if ok {
		c.Set(key, v)
	}
	return v, ok
}

// Stats summarizes cache hit/miss/eviction counts.
type Stats struct {
	Size    int
	Hits    uint64
	Misses  uint64
	Evicts  uint64
	HitRate float64
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.RLock()
	size := len(c.items)
	c.mu.RUnlock()
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{Size: size, Hits: hits, Misses: misses, Evicts: c.evicts.Load(), HitRate: rate}
}
