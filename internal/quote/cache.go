// Package quote implements the Price Feed Layer (C1): a bounded-staleness
// cache over rate-limited external providers, grounded on
// cryptofunk/internal/market/cache.go's CachedCoinGeckoClient and
// redis_cache.go, generalized from a single CoinGecko client to an
// extensible provider registry.
package quote

import (
	"sync"
	"time"

	"github.com/solarb/engine/internal/arb"
)

// cacheKey is (provider, input_mint, output_mint), the QuoteCache's key
// per §3.
type cacheKey struct {
	Provider   string
	InputMint  string
	OutputMint string
}

// Cache is a multi-reader/single-writer map from cacheKey to the most
// recent PriceQuote, with per-entry TTL. Readers never block writers for
// more than the duration of a short critical section, matching §5's
// "QuoteCache: multi-reader/single-writer" resource model.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]arb.PriceQuote

	majorPairs   map[string]bool // input_mint considered "major"
	ttlMajor     time.Duration
	ttlOther     time.Duration
}

// NewCache builds an empty cache. majorMints marks which input mints get
// the longer "major-token pairs" TTL; everything else gets ttlOther.
func NewCache(majorMints []string, ttlMajor, ttlOther time.Duration) *Cache {
	major := make(map[string]bool, len(majorMints))
	for _, m := range majorMints {
		major[m] = true
	}
	return &Cache{
		entries:    make(map[cacheKey]arb.PriceQuote),
		majorPairs: major,
		ttlMajor:   ttlMajor,
		ttlOther:   ttlOther,
	}
}

func (c *Cache) ttlFor(inputMint string) time.Duration {
	if c.majorPairs[inputMint] {
		return c.ttlMajor
	}
	return c.ttlOther
}

// Get returns the cached quote for the key if present and not expired as
// of now. The returned PriceQuote is a value copy: callers receive an
// immutable view that cannot outlive the cache's logical lock.
func (c *Cache) Get(provider, inputMint, outputMint string, now time.Duration) (arb.PriceQuote, bool) {
	c.mu.RLock()
	q, ok := c.entries[cacheKey{provider, inputMint, outputMint}]
	c.mu.RUnlock()
	if !ok {
		return arb.PriceQuote{}, false
	}
	if q.Expired(now) {
		return arb.PriceQuote{}, false
	}
	return q, true
}

// Put writes a quote into the cache, overriding its ValidityDurationMs with
// the cache's configured TTL for that mint class unless the quote already
// declares a shorter validity window (a provider is always allowed to be
// stricter than the default).
func (c *Cache) Put(q arb.PriceQuote) {
	ttl := c.ttlFor(q.InputMint)
	if q.ValidityDurationMs <= 0 || time.Duration(q.ValidityDurationMs)*time.Millisecond > ttl {
		q.ValidityDurationMs = int(ttl / time.Millisecond)
	}
	c.mu.Lock()
	c.entries[cacheKey{q.Provider, q.InputMint, q.OutputMint}] = q
	c.mu.Unlock()
}

// Snapshot returns a point-in-time copy of every unexpired entry, the
// logical read lock C2 holds for one tick's enumeration (§5: "Within one
// tick, C2→C3→C4→C7 observe the same QuoteCache snapshot").
func (c *Cache) Snapshot(now time.Duration) []arb.PriceQuote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]arb.PriceQuote, 0, len(c.entries))
	for _, q := range c.entries {
		if !q.Expired(now) {
			out = append(out, q)
		}
	}
	return out
}

// Len reports the number of entries currently held, expired or not —
// used to enforce the §5 memory bound N_providers * N_pairs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Evict removes expired entries, bounding memory growth between ticks.
func (c *Cache) Evict(now time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, q := range c.entries {
		if q.Expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
