package services

import (
	"sync"
	"time"

	"pnodewatch/config"
	"pnodewatch/models"
)

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is an in-process key/value cache with per-entry absolute
// expiry and a stale-read escape hatch. Expired entries are evicted
// lazily on Get, never by a background sweep, so GetStale can still
// hand back the last stored value for degraded-mode fallback.
//
// Safe for concurrent use within one process. Deliberately not
// distributed: multiple instances of the dashboard mean independent
// caches.
type TTLCache[V any] struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry[V]
	defaultTTL time.Duration
}

func NewTTLCache[V any](defaultTTL time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		entries:    make(map[string]cacheEntry[V]),
		defaultTTL: defaultTTL,
	}
}

// Get returns the fresh value for key. An expired entry reads as
// absent and is dropped from the fresh view, though GetStale can still
// see it.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key. ttl <= 0 falls back to the instance
// default; expiry is absolute, computed now.
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: time.Now().Add(ttl)}
}

func (c *TTLCache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry[V])
}

// Len counts all stored entries, expired ones included.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrSet returns the cached value for key or computes, stores and
// returns a fresh one. There is no single-flight: two callers racing on
// a cold key will each run fetch. Call volume at this layer is low
// enough that deduplication is not worth the bookkeeping.
func (c *TTLCache[V]) GetOrSet(key string, fetch func() (V, error), ttl time.Duration) (V, bool, error) {
	if value, ok := c.Get(key); ok {
		return value, true, nil
	}

	value, err := fetch()
	if err != nil {
		var zero V
		return zero, false, err
	}

	c.Set(key, value, ttl)
	return value, false, nil
}

// GetStale returns the last stored value regardless of expiry. Absent
// only when the key was never set or was explicitly deleted.
func (c *TTLCache[V]) GetStale(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// IsStale reports whether key holds an entry past its expiry.
func (c *TTLCache[V]) IsStale(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	return ok && time.Now().After(entry.expiresAt)
}

// Caches bundles the per-data-class cache instances. Distinct instances
// on purpose: clearing the live-stats cache must not dump the fleet
// snapshot, and each class carries its own default TTL.
type Caches struct {
	Snapshot  *TTLCache[*models.SnapshotResponse]
	Nodes     *TTLCache[*models.PnodeRow]
	LiveStats *TTLCache[*models.StatsResponse]
}

func NewCaches(cfg *config.Config) *Caches {
	return &Caches{
		Snapshot:  NewTTLCache[*models.SnapshotResponse](cfg.SnapshotCacheTTL()),
		Nodes:     NewTTLCache[*models.PnodeRow](cfg.NodeCacheTTL()),
		LiveStats: NewTTLCache[*models.StatsResponse](cfg.LiveStatsCacheTTL()),
	}
}

// ClearAll empties every cache class.
func (c *Caches) ClearAll() {
	c.Snapshot.Clear()
	c.Nodes.Clear()
	c.LiveStats.Clear()
}

// Sizes reports entry counts per cache class, for the admin endpoint.
func (c *Caches) Sizes() map[string]int {
	return map[string]int{
		"snapshot":   c.Snapshot.Len(),
		"nodes":      c.Nodes.Len(),
		"live_stats": c.LiveStats.Len(),
	}
}
