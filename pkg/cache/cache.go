// Package cache defines the caching interface used for resolved permission
// views. Implementations must be safe for concurrent use.
package cache

import (
	"context"
	"time"
)

// Cache stores computed values under opaque string keys with a TTL.
type Cache interface {
	// Get retrieves a value. Returns the value and true when present and
	// unexpired, or nil and false otherwise.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value. A zero ttl uses the implementation default.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a single entry.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Close releases resources held by the cache.
	Close() error

	// Metrics returns cache statistics.
	Metrics() *Metrics
}

// Metrics holds cache performance statistics.
type Metrics struct {
	Hits        uint64
	Misses      uint64
	KeysAdded   uint64
	KeysEvicted uint64
}

// HitRate returns the cache hit rate between 0.0 and 1.0.
func (m *Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0.0
	}
	return float64(m.Hits) / float64(total)
}
