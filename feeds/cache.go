package feeds

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Recorder receives cache and upstream statistics.
type Recorder interface {
	RecordCacheLookup(hit bool)
	RecordFeedFailure(source string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheLookup(bool)   {}
func (nopRecorder) RecordFeedFailure(string) {}

type cacheEntry struct {
	value   any
	written time.Time
	ttl     time.Duration
	size    int
}

// Cache is a key-value cache with a TTL per entry. Concurrent misses on the
// same key share a single fetch.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]cacheEntry
	group    singleflight.Group
	now      func() time.Time
	recorder Recorder
}

type CacheOption func(*Cache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func WithRecorder(r Recorder) CacheOption {
	return func(c *Cache) {
		if r != nil {
			c.recorder = r
		}
	}
}

func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries:  make(map[string]cacheEntry),
		now:      time.Now,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key hashes a source identity and its call arguments into a cache key.
func Key(source string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, source)
	for _, a := range args {
		parts = append(parts, fmt.Sprintf("%v", a))
	}
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

func (c *Cache) lookup(key string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.written) >= e.ttl {
		return cacheEntry{}, false
	}
	return e, true
}

func (c *Cache) store(key string, value any, ttl time.Duration) {
	size := 0
	if b, err := json.Marshal(value); err == nil {
		size = len(b)
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, written: c.now(), ttl: ttl, size: size}
	c.mu.Unlock()
}

// GetOrFetch returns the cached value for key while it is younger than ttl.
// Otherwise it calls fetch, stores whatever it returns (including empty
// results) and returns it. fetch must not fail; sources degrade to empty
// values themselves.
func GetOrFetch[T any](c *Cache, key string, ttl time.Duration, fetch func() T) T {
	if e, ok := c.lookup(key); ok {
		if v, ok := e.value.(T); ok {
			c.recorder.RecordCacheLookup(true)
			return v
		}
	}
	c.recorder.RecordCacheLookup(false)

	v, _, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if e, ok := c.lookup(key); ok {
			if v, ok := e.value.(T); ok {
				return v, nil
			}
		}
		v := fetch()
		c.store(key, v, ttl)
		return v, nil
	})
	out, _ := v.(T)
	return out
}

// Sweep removes entries older than twice maxTTL and returns how many were
// dropped. It is independent of the read-time validity check.
func (c *Cache) Sweep(maxTTL time.Duration) int {
	cutoff := 2 * maxTTL
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.written) > cutoff {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

type CacheStats struct {
	Entries     int `json:"entries"`
	Valid       int `json:"valid"`
	Expired     int `json:"expired"`
	ApproxBytes int `json:"approx_bytes"`
}

func (c *Cache) Stats() CacheStats {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{Entries: len(c.entries)}
	for _, e := range c.entries {
		if now.Sub(e.written) < e.ttl {
			stats.Valid++
		} else {
			stats.Expired++
		}
		stats.ApproxBytes += e.size + sha256.Size*2 // hex key
	}
	return stats
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
