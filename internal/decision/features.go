// Package decision implements the Autonomous Decision Module (C7): the
// fixed 8-dimensional feature vector, sigmoid admission scoring,
// Kelly-like position sizing, and the fallback rule below the minimum
// training sample count, grounded on cryptofunk's
// internal/indicators/{ema,rsi}.go cinar/indicator/v2 usage for the
// volatility/trend features, generalized from a standalone MCP tool call
// into an in-process feature extractor.
package decision

import (
	"math"
	"time"

	"github.com/cinar/indicator/v2/trend"

	"github.com/solarb/engine/internal/arb"
)

// PriceHistory supplies recent mid-prices for a pair, used to derive
// market_volatility and trend_strength; callers typically source this
// from the quote cache's recently-observed rates.
type PriceHistory interface {
	RecentMidPrices(inputMint, outputMint string, n int) []float64
}

// SentimentSource is an optional external signal for the sentiment
// feature; the pipeline has no native sentiment data, so in its absence
// a neutral constant (0.5) is used, per the spec's "leaves their
// definition to the implementer."
type SentimentSource interface {
	Sentiment(inputMint, outputMint string) float64
}

// FeatureConfig holds the anchors needed to normalize raw signals into
// [0,1] feature values.
type FeatureConfig struct {
	VolumeAnchor         float64
	VolatilityWindow     int
	TrendShortPeriod     int
	TrendLongPeriod      int
	PortfolioNotionalCap float64 // normalizes portfolio_concentration
}

// NeutralSentiment is the default SentimentSource: it reports the
// spec-documented neutral constant for every pair, since the pipeline
// has no native sentiment feed.
type NeutralSentiment struct{}

func (NeutralSentiment) Sentiment(inputMint, outputMint string) float64 { return 0.5 }

func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		VolumeAnchor:         10_000,
		VolatilityWindow:     20,
		TrendShortPeriod:     5,
		TrendLongPeriod:      20,
		PortfolioNotionalCap: 100_000,
	}
}

// ExtractFeatures builds the fixed-order 8-dimensional vector described
// by arb.FeatureNames: [spread, min_liquidity_norm, max_volume_norm,
// portfolio_concentration, market_volatility, trend_strength, sentiment,
// hour_of_day_norm].
func ExtractFeatures(c arb.OpportunityCandidate, cfg FeatureConfig, recentPortfolioNotional float64, history PriceHistory, sentiment SentimentSource, wallClock time.Time) [8]float64 {
	var x [8]float64

	x[0] = clamp01(spreadBps(c) / 10_000)
	x[1] = minLiquidityNorm(c.Legs, cfg.VolumeAnchor)
	x[2] = maxVolumeNorm(c.Legs, cfg.VolumeAnchor)
	x[3] = clamp01(recentPortfolioNotional / maxFloat(cfg.PortfolioNotionalCap, 1))

	if len(c.Legs) > 0 && history != nil {
		prices := history.RecentMidPrices(c.Legs[0].InputMint, c.Legs[0].OutputMint, cfg.VolatilityWindow)
		x[4] = marketVolatility(prices)
		x[5] = trendStrength(prices, cfg.TrendShortPeriod, cfg.TrendLongPeriod)
	}

	x[6] = 0.5
	if sentiment != nil && len(c.Legs) > 0 {
		x[6] = clamp01(sentiment.Sentiment(c.Legs[0].InputMint, c.Legs[0].OutputMint))
	}

	x[7] = float64(wallClock.Hour()) / 24.0

	return x
}

func spreadBps(c arb.OpportunityCandidate) float64 {
	notional, _ := c.NotionalIn.Float64()
	gross, _ := c.ExpectedGrossProfit.Float64()
	if notional <= 0 {
		return 0
	}
	return gross / notional * 10_000
}

func minLiquidityNorm(legs []arb.Leg, anchor float64) float64 {
	if anchor <= 0 || len(legs) == 0 {
		return 0
	}
	min := -1.0
	for _, l := range legs {
		v, _ := l.Liquidity24h.Float64()
		if min < 0 || v < min {
			min = v
		}
	}
	return clamp01(min / anchor)
}

func maxVolumeNorm(legs []arb.Leg, anchor float64) float64 {
	if anchor <= 0 || len(legs) == 0 {
		return 0
	}
	max := 0.0
	for _, l := range legs {
		v, _ := l.Liquidity24h.Float64()
		if v > max {
			max = v
		}
	}
	return clamp01(max / anchor)
}

// marketVolatility is the coefficient of variation (stddev/mean) of the
// last N mid-prices, clamped to [0,1].
func marketVolatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	mean := meanOf(prices)
	if mean == 0 {
		return 0
	}
	var sumSq float64
	for _, p := range prices {
		d := p - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(len(prices)))
	return clamp01(stddev / mean)
}

// trendStrength is a normalized EMA(short)-vs-EMA(long) crossover
// magnitude via cinar/indicator/v2's channel-based EMA.
func trendStrength(prices []float64, shortPeriod, longPeriod int) float64 {
	if len(prices) < longPeriod+1 {
		return 0
	}

	shortEMA := lastEMA(prices, shortPeriod)
	longEMA := lastEMA(prices, longPeriod)
	if longEMA == 0 {
		return 0
	}
	return clamp01(math.Abs(shortEMA-longEMA) / longEMA)
}

func lastEMA(prices []float64, period int) float64 {
	ch := make(chan float64, len(prices))
	for _, p := range prices {
		ch <- p
	}
	close(ch)

	ema := trend.NewEmaWithPeriod[float64](period)
	out := ema.Compute(ch)

	var last float64
	for v := range out {
		last = v
	}
	return last
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
