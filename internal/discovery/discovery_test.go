package discovery

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/engine/internal/arb"
)

func quote(provider, venue, in, out string, inAmt, outAmt float64) arb.PriceQuote {
	return arb.PriceQuote{
		Provider:           provider,
		Venue:              venue,
		InputMint:          in,
		OutputMint:         out,
		InputAmount:        decimal.NewFromFloat(inAmt),
		OutputAmount:       decimal.NewFromFloat(outAmt),
		ValidityDurationMs: 60_000,
	}
}

func baseCfg() Config {
	return Config{
		MinProfitBps:         10,
		MinProfitAbsolute:    decimal.NewFromFloat(0.01),
		MaxCandidatesPerTick: 20,
		TriangularBaseTokens: []string{"SOL"},
	}
}

func TestDiscover_SingleProvider_NoCrossVenueCandidates(t *testing.T) {
	quotes := []arb.PriceQuote{
		quote("jupiter", "jupiter", "SOL", "USDC", 1, 100),
	}
	cands := Discover(quotes, baseCfg(), 0, time.Second)
	assert.Empty(t, cands)
}

func TestDiscover_CrossVenuePair_SpreadAboveThreshold(t *testing.T) {
	quotes := []arb.PriceQuote{
		quote("jupiter", "raydium", "SOL", "USDC", 1, 100),
		quote("orca", "orca", "SOL", "USDC", 1, 102),
	}
	cands := Discover(quotes, baseCfg(), 0, time.Second)
	require.Len(t, cands, 1)
	assert.Equal(t, arb.KindCrossVenuePair, cands[0].Kind)
	assert.True(t, cands[0].ExpectedNetProfit.IsPositive())
}

func TestDiscover_MinProfitBpsExceedsSpread_ZeroCandidates(t *testing.T) {
	quotes := []arb.PriceQuote{
		quote("jupiter", "raydium", "SOL", "USDC", 1, 100),
		quote("orca", "orca", "SOL", "USDC", 1, 100.05),
	}
	cfg := baseCfg()
	cfg.MinProfitBps = 500
	cands := Discover(quotes, cfg, 0, time.Second)
	assert.Empty(t, cands)
}

func TestDiscover_Triangular_DetectsProfitableCycle(t *testing.T) {
	quotes := []arb.PriceQuote{
		quote("jupiter", "raydium", "SOL", "USDB", 1, 1.01),
		quote("jupiter", "raydium", "USDB", "USDC", 1, 1.01),
		quote("jupiter", "raydium", "USDC", "SOL", 1, 1.0),
	}
	cfg := baseCfg()
	cfg.TriangularBaseTokens = []string{"SOL"}
	cands := Discover(quotes, cfg, 0, time.Second)

	var found bool
	for _, c := range cands {
		if c.Kind == arb.KindTriangular {
			found = true
			assert.Equal(t, []string{"SOL", "USDB", "USDC", "SOL"}, c.Path)
		}
	}
	assert.True(t, found, "expected a triangular candidate from the profitable cycle")
}

func TestDiscover_LegExpiringBeforeDeadline_Rejected(t *testing.T) {
	q1 := quote("jupiter", "raydium", "SOL", "USDC", 1, 100)
	q1.ValidityDurationMs = 100 // expires well before the execution deadline
	q2 := quote("orca", "orca", "SOL", "USDC", 1, 102)

	cands := Discover([]arb.PriceQuote{q1, q2}, baseCfg(), 0, 5*time.Second)
	assert.Empty(t, cands)
}

func TestDiscover_MaxCandidatesPerTick_Caps(t *testing.T) {
	quotes := []arb.PriceQuote{
		quote("jupiter", "raydium", "SOL", "USDC", 1, 100),
		quote("orca", "orca", "SOL", "USDC", 1, 102),
		quote("jupiter", "raydium", "SOL", "USDT", 1, 100),
		quote("orca", "orca", "SOL", "USDT", 1, 103),
	}
	cfg := baseCfg()
	cfg.MaxCandidatesPerTick = 1
	cands := Discover(quotes, cfg, 0, time.Second)
	assert.Len(t, cands, 1)
}
