package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

type cacheEntry struct {
	records   []Record
	expiresAt time.Time
}

// QueryCache is a TTL cache of read results keyed by query and params.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewQueryCache creates a cache holding at most maxSize results for ttl.
func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	return &QueryCache{
		entries: make(map[string]cacheEntry),
		maxSize: max(maxSize, 1),
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(query string, params map[string]any) string {
	data, _ := json.Marshal(map[string]any{"q": query, "p": params})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// Get returns a live cached result.
func (c *QueryCache) Get(query string, params map[string]any) ([]Record, bool) {
	key := cacheKey(query, params)

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.records, true
}

// Set stores a result. When full, expired entries go first, then the
// entry closest to expiry.
func (c *QueryCache) Set(query string, params map[string]any, records []Record) {
	key := cacheKey(query, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.entries[key] = cacheEntry{records: records, expiresAt: c.now().Add(c.ttl)}
}

func (c *QueryCache) evictLocked() {
	now := c.now()
	oldestKey := ""
	var oldest time.Time
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	if len(c.entries) >= c.maxSize && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Clear drops every entry.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// CacheStats is a point-in-time view of cache usage.
type CacheStats struct {
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
}

// Stats returns cache statistics.
func (c *QueryCache) Stats() CacheStats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	rate := 0.0
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{Size: size, Capacity: c.maxSize, Hits: hits, Misses: misses, HitRate: rate}
}

// CachedDriver serves repeated reads from a QueryCache. The long-running
// server wraps its connection in one so identical plan requests do not
// re-query the graph.
type CachedDriver struct {
	Driver
	cache *QueryCache
}

// NewCachedDriver wraps d with cache.
func NewCachedDriver(d Driver, cache *QueryCache) *CachedDriver {
	return &CachedDriver{Driver: d, cache: cache}
}

// Execute consults the cache before the database. Errors are not cached.
func (d *CachedDriver) Execute(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	if records, ok := d.cache.Get(query, params); ok {
		return records, nil
	}
	records, err := d.Driver.Execute(ctx, query, params)
	if err != nil {
		return nil, err
	}
	d.cache.Set(query, params, records)
	return records, nil
}

// ExecuteWrite invalidates the whole cache; any write may change facts.
func (d *CachedDriver) ExecuteWrite(ctx context.Context, query string, params map[string]any) error {
	d.cache.Clear()
	return d.Driver.ExecuteWrite(ctx, query, params)
}

// Cache returns the underlying cache.
func (d *CachedDriver) Cache() *QueryCache {
	return d.cache
}
