package cache

import (
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
)

// Package errors
var (
	// ErrInvalidSize indicates the requested capacity is not positive.
	ErrInvalidSize = errors.New("cache size must be positive")

	// ErrInvalidTTL indicates the default TTL is not positive.
	ErrInvalidTTL = errors.New("cache default TTL must be positive")
)

// entry carries a cached value together with its lifetime bounds.
type entry[V any] struct {
	value     V
	createdAt time.Time
	expiresAt time.Time
}

// Cache is a bounded TTL + LRU store. The recency bookkeeping is delegated
// to hashicorp's simplelru; expiry and hit/miss accounting live here.
// All methods are safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	entries    *lru.LRU[K, entry[V]]
	maxSize    int
	defaultTTL time.Duration
	hits       uint64
	misses     uint64
	now        func() time.Time
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V]) error

// WithClock replaces the time source. Intended for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) error {
		if now == nil {
			now = time.Now
		}
		c.now = now
		return nil
	}
}

// New creates a cache holding at most maxSize live entries.
// Entries stored without an explicit TTL expire after defaultTTL.
func New[K comparable, V any](maxSize int, defaultTTL time.Duration, opts ...Option[K, V]) (*Cache[K, V], error) {
	if maxSize < 1 {
		return nil, ErrInvalidSize
	}
	if defaultTTL <= 0 {
		return nil, ErrInvalidTTL
	}

	entries, err := lru.NewLRU[K, entry[V]](maxSize, nil)
	if err != nil {
		return nil, err
	}

	c := &Cache[K, V]{
		entries:    entries,
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Get returns the live value for key, marking it most recently used.
// An expired entry is evicted on the spot and counts as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		c.misses++
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		// Lazy expiry
		c.entries.Remove(key)
		c.misses++
		return zero, false
	}

	c.hits++
	return e.value, true
}

// Set stores value under key with the given TTL. A non-positive TTL uses
// the cache's default. Inserting a new key at capacity evicts the least
// recently used entry first.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries.Add(key, entry[V]{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	})
}

// Delete removes key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
}

// Clear removes all entries. Hit/miss counters are preserved.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

// Stats reports current size and lifetime hit/miss counters.
type Stats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:    c.entries.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
