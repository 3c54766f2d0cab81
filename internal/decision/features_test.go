package decision

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/solarb/engine/internal/arb"
)

type fakeHistory struct{ prices []float64 }

func (f fakeHistory) RecentMidPrices(inputMint, outputMint string, n int) []float64 { return f.prices }

type fakeSentiment struct{ v float64 }

func (f fakeSentiment) Sentiment(inputMint, outputMint string) float64 { return f.v }

func TestExtractFeatures_NoHistory_VolatilityAndTrendAreZero(t *testing.T) {
	c := arb.OpportunityCandidate{
		NotionalIn:          decimal.NewFromInt(1),
		ExpectedGrossProfit: decimal.NewFromFloat(0.01),
		Legs:                []arb.Leg{{InputMint: "SOL", OutputMint: "USDC", Liquidity24h: decimal.NewFromFloat(5000)}},
	}
	x := ExtractFeatures(c, DefaultFeatureConfig(), 0, nil, nil, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, 0.0, x[4])
	assert.Equal(t, 0.0, x[5])
	assert.Equal(t, 0.5, x[6], "sentiment defaults to neutral without a SentimentSource")
	assert.InDelta(t, 0.5, x[7], 1e-9, "noon normalizes to 0.5 of the day")
}

func TestExtractFeatures_WithSentimentSource_UsesInjectedValue(t *testing.T) {
	c := arb.OpportunityCandidate{
		NotionalIn:          decimal.NewFromInt(1),
		ExpectedGrossProfit: decimal.NewFromFloat(0.01),
		Legs:                []arb.Leg{{InputMint: "SOL", OutputMint: "USDC"}},
	}
	x := ExtractFeatures(c, DefaultFeatureConfig(), 0, nil, fakeSentiment{v: 0.8}, time.Now().UTC())
	assert.Equal(t, 0.8, x[6])
}

func TestExtractFeatures_VolatileHistory_NonZeroVolatility(t *testing.T) {
	c := arb.OpportunityCandidate{
		NotionalIn:          decimal.NewFromInt(1),
		ExpectedGrossProfit: decimal.NewFromFloat(0.01),
		Legs:                []arb.Leg{{InputMint: "SOL", OutputMint: "USDC"}},
	}
	prices := []float64{100, 110, 90, 120, 80, 130, 70, 140, 60, 150, 50, 160, 40, 170, 30, 180, 20, 190, 10, 200, 1}
	x := ExtractFeatures(c, DefaultFeatureConfig(), 0, fakeHistory{prices: prices}, nil, time.Now().UTC())
	assert.Greater(t, x[4], 0.0)
}

func TestMinLiquidityNorm_UsesWeakestLeg(t *testing.T) {
	legs := []arb.Leg{
		{Liquidity24h: decimal.NewFromFloat(20_000)},
		{Liquidity24h: decimal.NewFromFloat(100)},
	}
	assert.InDelta(t, 0.01, minLiquidityNorm(legs, 10_000), 1e-9)
}
