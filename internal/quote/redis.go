package quote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/solarb/engine/internal/arb"
	"github.com/solarb/engine/internal/metrics"
)

// SecondaryCache is an optional cross-instance quote cache layer backed by
// Redis, mirroring cryptofunk/internal/market/cache.go's
// CachedCoinGeckoClient: reads check Redis as a best-effort supplement to
// the in-process Cache, writes are fire-and-forget so a slow or down Redis
// never blocks a tick.
type SecondaryCache struct {
	rdb *redis.Client
	ttl time.Duration
	hit *metrics.CacheHitTracker
}

// NewSecondaryCache wraps an existing *redis.Client (real or miniredis-backed
// in tests).
func NewSecondaryCache(rdb *redis.Client, ttl time.Duration) *SecondaryCache {
	return &SecondaryCache{rdb: rdb, ttl: ttl, hit: metrics.NewCacheHitTracker()}
}

func (s *SecondaryCache) key(provider, inputMint, outputMint string) string {
	return "solarb:quote:" + provider + ":" + inputMint + ":" + outputMint
}

// Get attempts a Redis lookup; failures and misses both return ok=false so
// callers fall through to a live fetch, never treating Redis as a hard
// dependency.
func (s *SecondaryCache) Get(ctx context.Context, provider, inputMint, outputMint string) (arb.PriceQuote, bool) {
	metrics.RecordQuoteCacheOperation("get")
	raw, err := s.rdb.Get(ctx, s.key(provider, inputMint, outputMint)).Bytes()
	if err != nil {
		s.hit.Miss()
		return arb.PriceQuote{}, false
	}
	var q arb.PriceQuote
	if err := json.Unmarshal(raw, &q); err != nil {
		s.hit.Miss()
		return arb.PriceQuote{}, false
	}
	s.hit.Hit()
	return q, true
}

// Put writes asynchronously and logs, but never returns an error to the
// caller — the spec treats C1 caching as bounded-staleness best effort,
// not a durability guarantee.
func (s *SecondaryCache) Put(q arb.PriceQuote) {
	metrics.RecordQuoteCacheOperation("put")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		raw, err := json.Marshal(q)
		if err != nil {
			log.Warn().Err(err).Str("provider", q.Provider).Msg("failed to marshal quote for secondary cache")
			return
		}
		if err := s.rdb.Set(ctx, s.key(q.Provider, q.InputMint, q.OutputMint), raw, s.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("provider", q.Provider).Msg("secondary cache write failed")
		}
	}()
}
