// Package risk implements the Risk Assessor (C4): per-candidate sandwich,
// liquidity, execution, and concentration risk, plus a named
// circuit-breaker registry, grounded on cryptofunk's
// internal/risk/circuit_breaker.go manager shape generalized from three
// fixed services to an arbitrary named-service registry. Nothing in the
// module constructs the registry: C1's provider actors hold their own
// breakers and C6 uses none.
package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solarb/engine/internal/arb"
)

// Config holds C4's anchors and thresholds, sourced from config.RiskConfig.
type Config struct {
	LiquidityAnchor          float64
	MediumProfitThreshold    decimal.Decimal
	HighProfitThreshold      decimal.Decimal
	CongestionBumpThreshold  float64
	ConcentrationWindow      time.Duration
	RiskTolerance            float64
}

// DefaultConfig returns the spec's §4.4 documented defaults.
func DefaultConfig() Config {
	return Config{
		LiquidityAnchor:         10_000,
		MediumProfitThreshold:   decimal.NewFromFloat(0.01),
		HighProfitThreshold:     decimal.NewFromFloat(0.05),
		CongestionBumpThreshold: 0.7,
		ConcentrationWindow:     60 * time.Second,
		RiskTolerance:           0.02,
	}
}

// Assessor tracks recent notional commitments per venue/pair for
// concentration_risk and assembles a RiskAssessment per candidate.
type Assessor struct {
	mu          sync.Mutex
	cfg         Config
	congestion  CongestionSource
	commitments map[string][]commitment // keyed by venue|pair
}

type commitment struct {
	at     time.Duration
	amount float64
}

func NewAssessor(cfg Config, congestion CongestionSource) *Assessor {
	return &Assessor{cfg: cfg, congestion: congestion, commitments: make(map[string][]commitment)}
}

// RecordCommitment registers notional sent to execution for a venue/pair,
// feeding future concentration_risk computations. Called by the engine
// just before it hands an admitted candidate to C6.
func (a *Assessor) RecordCommitment(venue, pair string, amount decimal.Decimal, now time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	amt, _ := amount.Float64()
	key := venue + "|" + pair
	a.commitments[key] = append(a.commitments[key], commitment{at: now, amount: amt})
}

// Assess computes the four risk dimensions for one candidate and the
// resulting overall/recommended_action, per §4.4.
func (a *Assessor) Assess(c arb.OpportunityCandidate, now time.Duration) arb.RiskAssessment {
	netProfit, _ := c.ExpectedNetProfit.Float64()
	congestion := 0.0
	if a.congestion != nil {
		congestion = a.congestion.Congestion()
	}

	sandwichRisk, sandwichLevel := sandwichRisk(netProfit, congestion, a.cfg)
	liquidityRisk := liquidityRisk(c.Legs, a.cfg.LiquidityAnchor)
	executionRisk := executionRisk(c.Legs)
	concentrationRisk := a.concentrationRisk(c, now)

	overall := maxOf(sandwichRisk, liquidityRisk, executionRisk, concentrationRisk)

	return arb.RiskAssessment{
		SandwichRisk:      sandwichRisk,
		SandwichLevel:     sandwichLevel,
		LiquidityRisk:     liquidityRisk,
		ExecutionRisk:     executionRisk,
		ConcentrationRisk: concentrationRisk,
		Overall:           overall,
		RecommendedAction: actionFor(sandwichLevel),
	}
}

// Admit reports whether a candidate's overall risk clears risk_tolerance.
func (a *Assessor) Admit(r arb.RiskAssessment) bool {
	return r.Overall <= a.cfg.RiskTolerance
}

// sandwichRisk steps into {Low,Medium,High,Critical} per the spec's
// heuristic: profit > 0.01 -> Medium, > 0.05 -> High, congestion proxy
// > 0.7 bumps one level. The numeric risk score mirrors the level so
// "overall" comparisons stay consistent across dimensions.
func sandwichRisk(netProfit, congestion float64, cfg Config) (float64, arb.RiskLevel) {
	medium, _ := cfg.MediumProfitThreshold.Float64()
	high, _ := cfg.HighProfitThreshold.Float64()

	level := arb.RiskLow
	switch {
	case netProfit > high:
		level = arb.RiskHigh
	case netProfit > medium:
		level = arb.RiskMedium
	}

	if congestion > cfg.CongestionBumpThreshold {
		level = bumpLevel(level)
	}

	return levelScore(level), level
}

func bumpLevel(l arb.RiskLevel) arb.RiskLevel {
	switch l {
	case arb.RiskLow:
		return arb.RiskMedium
	case arb.RiskMedium:
		return arb.RiskHigh
	case arb.RiskHigh:
		return arb.RiskCritical
	default:
		return arb.RiskCritical
	}
}

func levelScore(l arb.RiskLevel) float64 {
	switch l {
	case arb.RiskLow:
		return 0.1
	case arb.RiskMedium:
		return 0.4
	case arb.RiskHigh:
		return 0.7
	default:
		return 1.0
	}
}

func actionFor(l arb.RiskLevel) arb.RecommendedAction {
	switch l {
	case arb.RiskLow:
		return arb.ActionProceed
	case arb.RiskMedium:
		return arb.ActionWidenSlippage
	case arb.RiskHigh:
		return arb.ActionDelay
	default:
		return arb.ActionAbort
	}
}

func liquidityRisk(legs []arb.Leg, anchor float64) float64 {
	if anchor <= 0 || len(legs) == 0 {
		return 1
	}
	min := -1.0
	for _, l := range legs {
		v, _ := l.Liquidity24h.Float64()
		if min < 0 || v < min {
			min = v
		}
	}
	return clamp01(1 - clamp01(min/anchor))
}

// executionRisk increases with estimated total latency, leg count, and
// the number of distinct venues touched.
func executionRisk(legs []arb.Leg) float64 {
	if len(legs) == 0 {
		return 0
	}
	totalLatency := 0
	venues := make(map[string]bool)
	for _, l := range legs {
		totalLatency += l.EstimatedLatencyMs
		venues[l.Venue] = true
	}

	latencyComponent := clamp01(float64(totalLatency) / 2000) // 2s total latency saturates
	legComponent := clamp01(float64(len(legs)-1) / 4)          // >4 extra legs saturates
	venueComponent := clamp01(float64(len(venues)-1) / 3)      // >3 extra distinct venues saturates

	return maxOf(latencyComponent, legComponent, venueComponent)
}

// concentrationRisk is a function of recent notional committed to this
// candidate's venues/pairs over the rolling window, relative to the
// candidate's own notional: heavy recent concentration makes the new
// notional riskier to add.
func (a *Assessor) concentrationRisk(c arb.OpportunityCandidate, now time.Duration) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	notional, _ := c.NotionalIn.Float64()
	if notional <= 0 {
		return 0
	}

	var recent float64
	for _, l := range c.Legs {
		pair := l.InputMint + "/" + l.OutputMint
		key := l.Venue + "|" + pair
		for _, cm := range a.commitments[key] {
			if now-cm.at <= a.cfg.ConcentrationWindow {
				recent += cm.amount
			}
		}
	}

	return clamp01(recent / (recent + notional*4))
}

func maxOf(xs ...float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
