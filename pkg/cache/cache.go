package cache

import (
	"context"
	"time"
)

// Cache stores derived read-only listings, keyed by request shape.
//
// Permission check results must never be cached: stale authorization state
// is a security defect, so the resolver always re-reads the authoritative
// rows. Only discovery responses go through here.
type Cache interface {
	// Get returns the cached value and true, or nil and false on a miss.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value under key for at most ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete drops a single key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear drops every entry.
	Clear(ctx context.Context) error

	// Close releases resources held by the cache.
	Close() error

	// Metrics returns counters since construction, or nil when disabled.
	Metrics() *Metrics
}

// Metrics holds cache counters.
type Metrics struct {
	Hits        uint64
	Misses      uint64
	KeysAdded   uint64
	KeysEvicted uint64
}

// HitRate returns hits over total lookups, zero when nothing was looked up.
func (m *Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0.0
	}
	return float64(m.Hits) / float64(total)
}
