// Package scoring implements Scoring & Confidence (C3): a weighted blend
// of freshness, liquidity, spread-magnitude, and historical success rate
// into a single confidence value, grounded on
// cryptofunk/cmd/agents/arbitrage-agent/main.go's
// calculateOpportunityConfidence weighted-signal shape.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/solarb/engine/internal/arb"
)

// Weights is the five-signal weight vector, §4.3, read by C3 as a plain
// value copy per tick. Nothing updates it at run time: C8
// (internal/learning) does not write these weights, so the binary scores
// with DefaultWeights throughout.
type Weights struct {
	FreshnessYoungest float64
	FreshnessOldest   float64
	Liquidity         float64
	SpreadMagnitude   float64
	HistoricalSuccess float64
}

// DefaultWeights is the spec's §4.3 default (0.2, 0.2, 0.2, 0.2, 0.2).
func DefaultWeights() Weights {
	return Weights{0.2, 0.2, 0.2, 0.2, 0.2}
}

// SuccessRateSource resolves the per-venue historical success rate C8
// maintains; Samples reports how many observations back that rate so the
// scorer can down-weight it until enough history exists.
type SuccessRateSource interface {
	SuccessRate(venue string) (rate float64, samples int)
}

// ZeroHistory is a SuccessRateSource that always reports the spec's
// documented cold-start default, used before C8 has accumulated any
// decisions and in tests that don't care about the historical signal.
type ZeroHistory struct{}

func (ZeroHistory) SuccessRate(string) (float64, int) { return 0.5, 0 }

// Config holds C3's weights and anchors. The binary uses DefaultConfig;
// no field of the config file feeds it.
type Config struct {
	Weights            Weights
	VolumeAnchor       float64
	SpreadAnchorBps    float64
	MinHistorySamples  int
}

// DefaultConfig returns spec-documented anchors.
func DefaultConfig() Config {
	return Config{
		Weights:           DefaultWeights(),
		VolumeAnchor:      10_000,
		SpreadAnchorBps:   50,
		MinHistorySamples: 30,
	}
}

// Score computes confidence and priority for one candidate as of now,
// and returns the ordered reasoning strings the spec's Score.reasoning
// field requires.
func Score(c arb.OpportunityCandidate, cfg Config, hist SuccessRateSource) arb.Score {
	freshYoung, freshOld := freshnessSignals(c.Legs, nowFromCandidate(c))
	liquidity := liquiditySignal(c.Legs, cfg.VolumeAnchor)
	spread := spreadMagnitudeSignal(c, cfg.SpreadAnchorBps)
	hvenue, hsamples := worstVenueSuccessRate(c.Legs, hist)
	historical := historicalSignal(hvenue, hsamples, cfg.MinHistorySamples)

	w := cfg.Weights
	confidence := w.FreshnessYoungest*freshYoung +
		w.FreshnessOldest*freshOld +
		w.Liquidity*liquidity +
		w.SpreadMagnitude*spread +
		w.HistoricalSuccess*historical
	confidence = clamp01(confidence)

	netProfit, _ := c.ExpectedNetProfit.Float64()
	reasoning := []string{
		fmt.Sprintf("freshness(youngest)=%.2f freshness(oldest)=%.2f", freshYoung, freshOld),
		fmt.Sprintf("liquidity=%.2f (anchor=%.0f)", liquidity, cfg.VolumeAnchor),
		fmt.Sprintf("spread_magnitude=%.2f (anchor_bps=%.0f)", spread, cfg.SpreadAnchorBps),
		fmt.Sprintf("historical_success=%.2f (samples=%d)", historical, hsamples),
	}

	return arb.Score{
		Confidence: confidence,
		Reasoning:  reasoning,
		Priority:   confidence * netProfit,
	}
}

// nowFromCandidate treats the candidate's own CreatedAt as "now" for
// freshness purposes: by definition C3 scores a candidate at the instant
// it was produced by C2, within the same tick's read-lock snapshot.
func nowFromCandidate(c arb.OpportunityCandidate) time.Duration {
	return c.CreatedAt
}

// freshnessSignals linearly decays each leg's remaining validity fraction
// to 0 at its TTL, then returns the youngest (least-decayed) and oldest
// (most-decayed) leg's signal.
func freshnessSignals(legs []arb.Leg, now time.Duration) (youngest, oldest float64) {
	if len(legs) == 0 {
		return 0, 0
	}
	youngest, oldest = -1, 2
	for _, l := range legs {
		total := l.QuoteExpiresAt - l.QuoteObservedAt
		if total <= 0 {
			continue
		}
		remaining := l.QuoteExpiresAt - now
		frac := clamp01(float64(remaining) / float64(total))
		if frac > youngest {
			youngest = frac
		}
		if frac < oldest {
			oldest = frac
		}
	}
	if youngest < 0 {
		youngest = 0
	}
	if oldest > 1 {
		oldest = 0
	}
	return youngest, oldest
}

func liquiditySignal(legs []arb.Leg, anchor float64) float64 {
	if len(legs) == 0 || anchor <= 0 {
		return 0
	}
	min := math.Inf(1)
	for _, l := range legs {
		v, _ := l.Liquidity24h.Float64()
		if v < min {
			min = v
		}
	}
	return clamp01(min / anchor)
}

// spreadMagnitudeSignal is a sigmoid of spread_bps/spread_anchor, with
// declining weight above 2*anchor to down-weight implausibly large
// spreads as likely data errors.
func spreadMagnitudeSignal(c arb.OpportunityCandidate, anchorBps float64) float64 {
	if anchorBps <= 0 {
		return 0
	}
	notional, _ := c.NotionalIn.Float64()
	if notional <= 0 {
		return 0
	}
	gross, _ := c.ExpectedGrossProfit.Float64()
	spreadBps := gross / notional * 10_000

	x := spreadBps / anchorBps
	s := sigmoid(x)
	if spreadBps > 2*anchorBps {
		excess := (spreadBps - 2*anchorBps) / anchorBps
		s *= math.Exp(-0.5 * excess)
	}
	return clamp01(s)
}

// worstVenueSuccessRate looks up the lowest success rate and its sample
// count across all venues touched by the candidate's legs — the weakest
// link sets the signal, consistent with C4's overall-risk "worst case
// dominates" philosophy applied to confidence.
func worstVenueSuccessRate(legs []arb.Leg, hist SuccessRateSource) (rate float64, samples int) {
	if hist == nil {
		hist = ZeroHistory{}
	}
	rate = 1
	samples = -1
	for _, l := range legs {
		r, n := hist.SuccessRate(l.Venue)
		if r < rate {
			rate = r
		}
		if samples == -1 || n < samples {
			samples = n
		}
	}
	if samples == -1 {
		samples = 0
	}
	return rate, samples
}

// historicalSignal blends toward the neutral 0.5 default until the
// minimum sample count is reached, per "default 0.5 with low weight
// until >= 30 samples accumulated."
func historicalSignal(rate float64, samples, minSamples int) float64 {
	if minSamples <= 0 {
		return rate
	}
	confidence := clamp01(float64(samples) / float64(minSamples))
	return 0.5 + confidence*(rate-0.5)
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
