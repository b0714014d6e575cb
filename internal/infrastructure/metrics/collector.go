package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/kitahara/bunko/pkg/cache"
)

// Collector collects and aggregates metrics for the engine.
type Collector struct {
	// Permission check outcomes
	checksAllowed uint64
	checksDenied  uint64

	// Operation metrics
	opRequests sync.Map // map[string]*uint64 - operation -> count
	opErrors   sync.Map // map[string]*uint64 - operation -> error count
	opDuration sync.Map // map[string]*durationValue - operation -> total duration in seconds

	// Discovery cache reference (optional, for querying cache metrics)
	cache cache.Cache
}

// durationValue holds duration with mutex for thread-safe updates.
type durationValue struct {
	mu           sync.Mutex
	totalSeconds float64
}

// CheckMetrics holds permission check outcome counts.
type CheckMetrics struct {
	Allowed uint64
	Denied  uint64
}

// CacheMetrics holds discovery cache performance metrics.
type CacheMetrics struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysAdded   uint64
	KeysEvicted uint64
}

// OperationMetrics holds per-operation request metrics.
type OperationMetrics struct {
	RequestCounts        map[string]uint64
	ErrorCounts          map[string]uint64
	TotalDurationSeconds map[string]float64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache sets the discovery cache instance for collecting cache metrics.
func (c *Collector) SetCache(cache cache.Cache) {
	c.cache = cache
}

// RecordCheck records the outcome of a permission check.
func (c *Collector) RecordCheck(allowed bool) {
	if allowed {
		atomic.AddUint64(&c.checksAllowed, 1)
	} else {
		atomic.AddUint64(&c.checksDenied, 1)
	}
}

// RecordRequest records an engine operation call.
func (c *Collector) RecordRequest(operation string) {
	counter := c.getOrCreateCounter(&c.opRequests, operation)
	atomic.AddUint64(counter, 1)
}

// RecordError records a failed engine operation.
func (c *Collector) RecordError(operation string) {
	counter := c.getOrCreateCounter(&c.opErrors, operation)
	atomic.AddUint64(counter, 1)
}

// RecordDuration records the duration of an operation in seconds.
func (c *Collector) RecordDuration(operation string, durationSeconds float64) {
	val, _ := c.opDuration.LoadOrStore(operation, &durationValue{})
	dv := val.(*durationValue)
	dv.mu.Lock()
	dv.totalSeconds += durationSeconds
	dv.mu.Unlock()
}

// GetCheckMetrics returns permission check outcome counts.
func (c *Collector) GetCheckMetrics() CheckMetrics {
	return CheckMetrics{
		Allowed: atomic.LoadUint64(&c.checksAllowed),
		Denied:  atomic.LoadUint64(&c.checksDenied),
	}
}

// GetOperationMetrics returns a snapshot of per-operation metrics.
func (c *Collector) GetOperationMetrics() OperationMetrics {
	m := OperationMetrics{
		RequestCounts:        make(map[string]uint64),
		ErrorCounts:          make(map[string]uint64),
		TotalDurationSeconds: make(map[string]float64),
	}

	c.opRequests.Range(func(key, value interface{}) bool {
		m.RequestCounts[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})
	c.opErrors.Range(func(key, value interface{}) bool {
		m.ErrorCounts[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})
	c.opDuration.Range(func(key, value interface{}) bool {
		dv := value.(*durationValue)
		dv.mu.Lock()
		m.TotalDurationSeconds[key.(string)] = dv.totalSeconds
		dv.mu.Unlock()
		return true
	})

	return m
}

// GetCacheMetrics returns discovery cache metrics, zero-valued when no
// cache is configured.
func (c *Collector) GetCacheMetrics() CacheMetrics {
	if c.cache == nil {
		return CacheMetrics{}
	}

	m := c.cache.Metrics()
	if m == nil {
		return CacheMetrics{}
	}
	return CacheMetrics{
		Hits:        m.Hits,
		Misses:      m.Misses,
		HitRate:     m.HitRate(),
		KeysAdded:   m.KeysAdded,
		KeysEvicted: m.KeysEvicted,
	}
}

func (c *Collector) getOrCreateCounter(m *sync.Map, key string) *uint64 {
	val, _ := m.LoadOrStore(key, new(uint64))
	return val.(*uint64)
}
