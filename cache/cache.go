// ABOUTME: This file implements the read-through TTL cache shared by all fetchers
// ABOUTME: Entries are keyed by (operation, arguments) and grouped in TTL buckets

package cache

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"funnel-dashboard/metrics"
)

const bucketSize = 4096

// Key identifies a cached value by logical operation name and a stable
// rendering of its arguments. Two calls with different date windows are
// different keys.
type Key struct {
	Op   string
	Args string
}

func (k Key) String() string {
	return k.Op + ":" + k.Args
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache memoizes fetch results with a per-entry time to live. Concurrent
// readers and miss-driven writers are safe; duplicate concurrent
// recomputation of the same missed key is tolerated by design — this is a
// low-traffic internal dashboard and last write wins.
//
// Storage is one expirable LRU per TTL class (the service uses a handful of
// fixed TTLs), with an explicit expiry check on read so that freshness never
// depends on the LRU's background eviction.
type Cache struct {
	mu      sync.Mutex
	buckets map[time.Duration]*expirable.LRU[string, entry]
	now     func() time.Time
	logger  *slog.Logger
}

// New creates an empty cache.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		buckets: make(map[time.Duration]*expirable.LRU[string, entry]),
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock overrides the cache's time source. Tests only.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// GetOrCompute returns the fresh cached value for key, or invokes fn, stores
// its result for ttl, and returns it. Errors from fn propagate to the caller
// and nothing is stored — fetchers are expected to handle their own source
// failures and return safe defaults instead of errors.
func (c *Cache) GetOrCompute(key Key, ttl time.Duration, fn func() (any, error)) (any, error) {
	bucket := c.bucket(ttl)

	if e, ok := bucket.Get(key.String()); ok && c.clock().Before(e.expiresAt) {
		metrics.CacheHits.WithLabelValues(key.Op).Inc()
		return e.value, nil
	}
	metrics.CacheMisses.WithLabelValues(key.Op).Inc()

	value, err := fn()
	if err != nil {
		return nil, err
	}

	bucket.Add(key.String(), entry{value: value, expiresAt: c.clock().Add(ttl)})
	return value, nil
}

// Clear evicts every entry immediately. In-flight reads may still observe a
// value stored before the clear; any read starting after Clear returns is
// guaranteed to recompute.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.buckets {
		b.Purge()
	}
	c.logger.Info("cache cleared")
}

// Len reports the number of live entries across all TTL buckets.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.buckets {
		n += b.Len()
	}
	return n
}

func (c *Cache) clock() time.Time {
	c.mu.Lock()
	now := c.now
	c.mu.Unlock()
	return now()
}

func (c *Cache) bucket(ttl time.Duration) *expirable.LRU[string, entry] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.buckets[ttl]; ok {
		return b
	}
	b := expirable.NewLRU[string, entry](bucketSize, nil, ttl)
	c.buckets[ttl] = b
	return b
}

// Lookup is a typed wrapper over GetOrCompute. A cached value of the wrong
// type is treated as a defect, not a miss.
func Lookup[T any](c *Cache, key Key, ttl time.Duration, fn func() (T, error)) (T, error) {
	v, err := c.GetOrCompute(key, ttl, func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache entry %s holds %T, want %T", key, v, zero)
	}
	return typed, nil
}
