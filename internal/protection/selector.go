// Package protection implements the Protection Strategy Selector (C5): a
// decision table mapping (sandwich risk, profit) onto one of
// Bundle/Delayed/Split (congestion is not an input, and no row selects
// Private), plus the
// cost-benefit gate and the
// minimum-spacing rate limiter on bundle submissions, per §4.5.
//
// Grounded on cryptofunk's risk-agent BDI desires/intentions shape
// (cmd/agents/risk-agent/main.go), generalized here into a plain decision
// table: a handful of rows keyed on three small enums is a switch
// statement, not a state-machine library's concern.
package protection

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solarb/engine/internal/arb"
)

// Config holds C5's tunables, sourced from config.ProtectionConfig.
type Config struct {
	BaseTip               decimal.Decimal
	NetworkFeeEstimate    decimal.Decimal
	ModerateProfitBound   decimal.Decimal // <=, the High/moderate vs High/large boundary
	CostBenefitRatio      float64         // drop if protection_cost >= ratio * expected_net_profit
	MinBundleSpacing      time.Duration
	CriticalDelayMinMs    int
	CriticalDelayMaxMs    int
}

// DefaultConfig returns the spec's §4.5 documented defaults.
func DefaultConfig() Config {
	return Config{
		BaseTip:             decimal.NewFromFloat(0.0001),
		NetworkFeeEstimate:  decimal.NewFromFloat(0.00005),
		ModerateProfitBound: decimal.NewFromFloat(0.02),
		CostBenefitRatio:    0.5,
		MinBundleSpacing:    2 * time.Second,
		CriticalDelayMinMs:  5_000,
		CriticalDelayMaxMs:  15_000,
	}
}

// Selector holds the bundle-submission rate limiter's state; it is shared
// across all candidates since spacing applies to the submission channel,
// not to any single candidate.
type Selector struct {
	mu             sync.Mutex
	cfg            Config
	rng            *rand.Rand
	lastBundleSent time.Duration
	hasSent        bool
}

func NewSelector(cfg Config, seed int64) *Selector {
	return &Selector{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// ErrDroppedCostExceedsBenefit signals the candidate was rejected because
// its estimated protection cost is too large relative to expected profit.
type ErrDroppedCostExceedsBenefit struct {
	Cost   decimal.Decimal
	Profit decimal.Decimal
}

func (e ErrDroppedCostExceedsBenefit) Error() string {
	return "protection cost " + e.Cost.String() + " exceeds cost-benefit gate for profit " + e.Profit.String()
}

// Select builds a ProtectedExecutionPlan for the candidate's risk
// assessment, or returns ErrDroppedCostExceedsBenefit if the cost-benefit
// gate rejects it.
func (s *Selector) Select(c arb.OpportunityCandidate) (arb.ProtectedExecutionPlan, error) {
	plan := s.planFor(c.Risk.SandwichLevel, c.ExpectedNetProfit)

	if plan.ProtectionCostEstimate.GreaterThanOrEqual(c.ExpectedNetProfit.Mul(decimal.NewFromFloat(s.cfg.CostBenefitRatio))) {
		return arb.ProtectedExecutionPlan{}, ErrDroppedCostExceedsBenefit{Cost: plan.ProtectionCostEstimate, Profit: c.ExpectedNetProfit}
	}
	return plan, nil
}

func (s *Selector) planFor(level arb.RiskLevel, netProfit decimal.Decimal) arb.ProtectedExecutionPlan {
	switch level {
	case arb.RiskLow:
		return s.bundlePlan(s.cfg.BaseTip, 10_000)
	case arb.RiskMedium:
		return s.bundlePlan(s.cfg.BaseTip.Mul(decimal.NewFromInt(2)), 15_000)
	case arb.RiskHigh:
		if netProfit.LessThanOrEqual(s.cfg.ModerateProfitBound) {
			return s.delayedPlan(2_000, true)
		}
		return s.splitPlan(2, 5_000)
	default: // Critical
		delay := s.cfg.CriticalDelayMinMs + s.rng.Intn(s.cfg.CriticalDelayMaxMs-s.cfg.CriticalDelayMinMs+1)
		return s.delayedPlan(delay, true)
	}
}

func (s *Selector) bundlePlan(tip decimal.Decimal, maxWaitMs int) arb.ProtectedExecutionPlan {
	return arb.ProtectedExecutionPlan{
		Strategy:               arb.StrategyBundle,
		Bundle:                 &arb.BundleParams{Tip: tip, MaxWaitMs: maxWaitMs},
		ProtectionCostEstimate: tip.Add(s.cfg.NetworkFeeEstimate),
		DeadlineMs:             maxWaitMs,
	}
}

func (s *Selector) delayedPlan(delayMs int, randomize bool) arb.ProtectedExecutionPlan {
	return arb.ProtectedExecutionPlan{
		Strategy:               arb.StrategyDelayed,
		Delayed:                &arb.DelayedParams{DelayMs: delayMs, Randomize: randomize},
		ProtectionCostEstimate: s.cfg.NetworkFeeEstimate,
		DeadlineMs:             delayMs + 10_000,
	}
}

func (s *Selector) splitPlan(n int, spacingMs int) arb.ProtectedExecutionPlan {
	return arb.ProtectedExecutionPlan{
		Strategy:               arb.StrategySplit,
		Split:                  &arb.SplitParams{NTrades: n, SpacingMs: spacingMs},
		ProtectionCostEstimate: s.cfg.NetworkFeeEstimate.Mul(decimal.NewFromInt(int64(n))),
		DeadlineMs:             n * spacingMs,
	}
}

// WaitForBundleSlot blocks the caller (never reorders) until at least
// MinBundleSpacing has elapsed since the previous bundle submission.
// Callers pass a sleep function so tests can run under a VirtualClock
// without real time passing.
func (s *Selector) WaitForBundleSlot(now time.Duration, sleep func(time.Duration)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasSent {
		s.hasSent = true
		s.lastBundleSent = now
		return
	}

	elapsed := now - s.lastBundleSent
	if elapsed < s.cfg.MinBundleSpacing {
		sleep(s.cfg.MinBundleSpacing - elapsed)
		now += s.cfg.MinBundleSpacing - elapsed
	}
	s.lastBundleSent = now
}
