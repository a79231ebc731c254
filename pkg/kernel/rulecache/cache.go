// Package rulecache implements the process-wide parsed-rule cache: a
// bounded, insertion-ordered map keyed by raw rule-file text, evicted
// least-recently-used. Entries are immutable once inserted, so GetCloned
// hands back the same pointer under the lock and releases it immediately —
// parsing and evaluation never happen while the lock is held.
package rulecache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is the cache size used when none is configured.
const DefaultCapacity = 256

// Cache memoizes a parsed value of type V by its raw source text.
type Cache[V any] struct {
	mu    sync.Mutex
	inner *lru.Cache[string, V]
}

// New creates a Cache holding at most capacity entries. A non-positive
// capacity falls back to DefaultCapacity.
func New[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	inner, err := lru.New[string, V](capacity)
	if err != nil {
		// lru.New only errors on size <= 0, already guarded above.
		panic(err)
	}
	return &Cache[V]{inner: inner}
}

// GetCloned returns the cached value for raw, if present, marking it most
// recently used. The bool reports whether an entry was found.
func (c *Cache[V]) GetCloned(raw string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Get(raw)
}

// Insert stores value under raw, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *Cache[V]) Insert(raw string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(raw, value)
}

// Len reports the number of entries currently cached.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}

// Purge empties the cache.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Purge()
}
