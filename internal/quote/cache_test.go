package quote

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/engine/internal/arb"
)

func sampleQuote(provider string, observedAt time.Duration, ttlMs int) arb.PriceQuote {
	return arb.PriceQuote{
		Provider:           provider,
		InputMint:          "SOL",
		OutputMint:         "USDC",
		InputAmount:        decimal.NewFromInt(1),
		OutputAmount:       decimal.NewFromFloat(100),
		ObservedAt:         observedAt,
		ValidityDurationMs: ttlMs,
	}
}

func TestCache_PutGet_RespectsTTL(t *testing.T) {
	c := NewCache([]string{"SOL"}, 30*time.Second, 10*time.Second)
	q := sampleQuote("jupiter", 0, 1_000)
	c.Put(q)

	got, ok := c.Get("jupiter", "SOL", "USDC", 500*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "jupiter", got.Provider)

	_, ok = c.Get("jupiter", "SOL", "USDC", 31*time.Second)
	assert.False(t, ok, "Put keeps the quote's own 1s validity window because it is shorter than the 30s major-pair TTL, so the quote has expired by 31s")
}

func TestCache_MajorVsOtherTTL(t *testing.T) {
	c := NewCache([]string{"SOL"}, 30*time.Second, 10*time.Second)

	major := sampleQuote("jupiter", 0, 0)
	major.InputMint = "SOL"
	c.Put(major)

	other := sampleQuote("jupiter", 0, 0)
	other.InputMint = "LONGTAIL"
	c.Put(other)

	_, ok := c.Get("jupiter", "SOL", "USDC", 15*time.Second)
	assert.True(t, ok, "major pair should still be cached at 15s")

	_, ok = c.Get("jupiter", "LONGTAIL", "USDC", 15*time.Second)
	assert.False(t, ok, "long-tail pair should have expired by 15s")
}

func TestCache_Snapshot_ExcludesExpired(t *testing.T) {
	c := NewCache(nil, 30*time.Second, 10*time.Second)
	c.Put(sampleQuote("p1", 0, 1_000))
	c.Put(sampleQuote("p2", 0, 100_000))

	snap := c.Snapshot(2 * time.Second)
	require.Len(t, snap, 1)
	assert.Equal(t, "p2", snap[0].Provider)
}

func TestCache_Evict(t *testing.T) {
	c := NewCache(nil, 30*time.Second, 10*time.Second)
	c.Put(sampleQuote("p1", 0, 1_000))
	c.Put(sampleQuote("p2", 0, 100_000))

	removed := c.Evict(2 * time.Second)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}
