package feeds

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingRecorder struct {
	mu       sync.Mutex
	hits     int
	misses   int
	failures map[string]int
}

func (r *countingRecorder) RecordCacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *countingRecorder) RecordFeedFailure(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures == nil {
		r.failures = map[string]int{}
	}
	r.failures[source]++
}

func newTestCache() (*Cache, *fakeClock, *countingRecorder) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rec := &countingRecorder{}
	return NewCache(WithClock(clock.Now), WithRecorder(rec)), clock, rec
}

func TestGetOrFetchCachesWithinTTL(t *testing.T) {
	cache, clock, rec := newTestCache()
	calls := 0
	fetch := func() []string {
		calls++
		return []string{"quake"}
	}
	key := Key("usgs", 45.0, 7.0)

	first := GetOrFetch(cache, key, 5*time.Minute, fetch)
	clock.Advance(time.Minute)
	second := GetOrFetch(cache, key, 5*time.Minute, fetch)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)

	clock.Advance(5 * time.Minute)
	GetOrFetch(cache, key, 5*time.Minute, fetch)
	assert.Equal(t, 2, calls, "expired entry should be fetched again")
}

func TestGetOrFetchStoresEmptyResults(t *testing.T) {
	cache, _, _ := newTestCache()
	calls := 0
	fetch := func() []string {
		calls++
		return []string{}
	}

	GetOrFetch(cache, "k", time.Minute, fetch)
	got := GetOrFetch(cache, "k", time.Minute, fetch)

	assert.Equal(t, 1, calls)
	assert.Empty(t, got)
}

func TestGetOrFetchCollapsesConcurrentMisses(t *testing.T) {
	cache := NewCache()
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func() int {
		calls.Add(1)
		<-release
		return 42
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = GetOrFetch(cache, "shared", time.Minute, fetch)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}

func TestKeyDependsOnSourceAndArgs(t *testing.T) {
	assert.Equal(t, Key("usgs", 1.0, 2.0), Key("usgs", 1.0, 2.0))
	assert.NotEqual(t, Key("usgs", 1.0, 2.0), Key("gdacs", 1.0, 2.0))
	assert.NotEqual(t, Key("usgs", 1.0, 2.0), Key("usgs", 2.0, 1.0))
	assert.Len(t, Key("usgs"), 64)
}

func TestSweepAndStats(t *testing.T) {
	cache, clock, _ := newTestCache()
	GetOrFetch(cache, "old", 5*time.Minute, func() string { return "a" })
	clock.Advance(20 * time.Minute)
	GetOrFetch(cache, "fresh", 5*time.Minute, func() string { return "b" })

	stats := cache.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 1, stats.Valid)
	assert.Equal(t, 1, stats.Expired)
	assert.Greater(t, stats.ApproxBytes, 0)

	removed := cache.Sweep(5 * time.Minute)
	require.Equal(t, 1, removed)
	assert.Equal(t, 1, cache.Stats().Entries)

	cache.Clear()
	assert.Equal(t, CacheStats{}, cache.Stats())
}
