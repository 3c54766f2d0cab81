package metrics

import "sync"

// CacheHitTracker accumulates hit/miss counts for a cache layer and keeps
// QuoteCacheHitRate current. It does not wrap a client directly (C1's
// SecondaryCache already owns its redis.Client) — it is embedded by
// whichever cache layer wants its hit rate observed.
type CacheHitTracker struct {
	mu     sync.Mutex
	hits   int64
	misses int64
}

// NewCacheHitTracker creates a tracker with zeroed counters.
func NewCacheHitTracker() *CacheHitTracker {
	return &CacheHitTracker{}
}

// Hit records a cache hit and refreshes the hit-rate gauge.
func (t *CacheHitTracker) Hit() {
	t.mu.Lock()
	t.hits++
	t.refresh()
	t.mu.Unlock()
}

// Miss records a cache miss and refreshes the hit-rate gauge.
func (t *CacheHitTracker) Miss() {
	t.mu.Lock()
	t.misses++
	t.refresh()
	t.mu.Unlock()
}

// refresh must be called with t.mu held.
func (t *CacheHitTracker) refresh() {
	total := t.hits + t.misses
	if total == 0 {
		return
	}
	QuoteCacheHitRate.Set(float64(t.hits) / float64(total))
}

// Reset zeroes the tracker's counters, e.g. on provider reconnect.
func (t *CacheHitTracker) Reset() {
	t.mu.Lock()
	t.hits, t.misses = 0, 0
	QuoteCacheHitRate.Set(0)
	t.mu.Unlock()
}
