// Package memorycache provides an in-process LRU cache with TTL expiry,
// bounded by entry count. Resolved permission views are small and uniform,
// so a count bound keeps memory predictable without byte accounting.
package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/asagiri/genbamon/pkg/cache"
)

// Config holds configuration for the memory cache.
type Config struct {
	// MaxEntries is the maximum number of cached values. When exceeded,
	// least recently used entries are evicted. Zero means 10000.
	MaxEntries int

	// DefaultTTL is the time-to-live applied when Set is called with a
	// zero ttl. Zero means 5 minutes.
	DefaultTTL time.Duration
}

type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

// Cache implements cache.Cache with an LRU eviction list guarded by a
// single mutex. Expired entries are dropped lazily on access.
type Cache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	recency    *list.List // front = most recently used
	maxEntries int
	defaultTTL time.Duration

	hits        uint64
	misses      uint64
	keysAdded   uint64
	keysEvicted uint64
}

// New creates a memory cache from the given config.
func New(cfg Config) *Cache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		items:      make(map[string]*list.Element),
		recency:    list.New(),
		maxEntries: maxEntries,
		defaultTTL: ttl,
	}
}

// Get retrieves a value, refreshing its recency.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	ent := elem.Value.(*entry)
	if time.Now().After(ent.expiresAt) {
		c.removeLocked(elem)
		c.misses++
		return nil, false
	}
	c.recency.MoveToFront(elem)
	c.hits++
	return ent.value, true
}

// Set stores a value, evicting the least recently used entries when the
// cache is full.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	expiresAt := time.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		ent.value = value
		ent.expiresAt = expiresAt
		c.recency.MoveToFront(elem)
		return nil
	}

	elem := c.recency.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem
	c.keysAdded++

	for len(c.items) > c.maxEntries {
		oldest := c.recency.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.keysEvicted++
	}
	return nil
}

// Delete removes a single entry.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeLocked(elem)
	}
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.recency.Init()
	return nil
}

// Close releases resources. The memory cache holds none beyond its maps.
func (c *Cache) Close() error {
	return c.Clear(context.Background())
}

// Metrics returns a snapshot of cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &cache.Metrics{
		Hits:        c.hits,
		Misses:      c.misses,
		KeysAdded:   c.keysAdded,
		KeysEvicted: c.keysEvicted,
	}
}

// Len returns the current number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry)
	delete(c.items, ent.key)
	c.recency.Remove(elem)
}
