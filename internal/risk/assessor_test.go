package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/solarb/engine/internal/arb"
)

func candidate(netProfit float64, legs []arb.Leg) arb.OpportunityCandidate {
	return arb.OpportunityCandidate{
		NotionalIn:        decimal.NewFromInt(1),
		ExpectedNetProfit: decimal.NewFromFloat(netProfit),
		Legs:              legs,
	}
}

func simpleLeg(venue string, liquidity float64, latencyMs int) arb.Leg {
	return arb.Leg{
		Venue:              venue,
		InputMint:          "SOL",
		OutputMint:         "USDC",
		Liquidity24h:       decimal.NewFromFloat(liquidity),
		EstimatedLatencyMs: latencyMs,
	}
}

func TestAssess_LowProfitLowCongestion_ProceedAction(t *testing.T) {
	a := NewAssessor(DefaultConfig(), StaticCongestion(0.1))
	c := candidate(0.005, []arb.Leg{simpleLeg("jupiter", 20_000, 100), simpleLeg("orca", 20_000, 100)})
	r := a.Assess(c, 0)
	assert.Equal(t, arb.RiskLow, r.SandwichLevel)
	assert.Equal(t, arb.ActionProceed, r.RecommendedAction)
}

func TestAssess_HighProfit_HighRiskAbovMediumBelowCritical(t *testing.T) {
	a := NewAssessor(DefaultConfig(), StaticCongestion(0.1))
	c := candidate(0.06, []arb.Leg{simpleLeg("jupiter", 20_000, 100)})
	r := a.Assess(c, 0)
	assert.Equal(t, arb.RiskHigh, r.SandwichLevel)
	assert.Equal(t, arb.ActionDelay, r.RecommendedAction)
}

func TestAssess_CongestionBumpsLevel(t *testing.T) {
	a := NewAssessor(DefaultConfig(), StaticCongestion(0.9))
	c := candidate(0.06, []arb.Leg{simpleLeg("jupiter", 20_000, 100)}) // High -> bumped to Critical
	r := a.Assess(c, 0)
	assert.Equal(t, arb.RiskCritical, r.SandwichLevel)
	assert.Equal(t, arb.ActionAbort, r.RecommendedAction)
}

func TestAssess_LowLiquidity_HighLiquidityRisk(t *testing.T) {
	a := NewAssessor(DefaultConfig(), StaticCongestion(0))
	c := candidate(0.001, []arb.Leg{simpleLeg("jupiter", 10, 50)})
	r := a.Assess(c, 0)
	assert.Greater(t, r.LiquidityRisk, 0.9)
}

func TestAssess_OverallIsMaxNotMean(t *testing.T) {
	a := NewAssessor(DefaultConfig(), StaticCongestion(0))
	c := candidate(0.001, []arb.Leg{simpleLeg("jupiter", 10, 50)}) // high liquidity risk, low everything else
	r := a.Assess(c, 0)
	assert.Equal(t, r.Overall, r.LiquidityRisk)
}

func TestAdmit_RespectsRiskTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RiskTolerance = 0.5
	a := NewAssessor(cfg, StaticCongestion(0))
	assert.True(t, a.Admit(arb.RiskAssessment{Overall: 0.3}))
	assert.False(t, a.Admit(arb.RiskAssessment{Overall: 0.6}))
}

func TestConcentrationRisk_RisesWithRecentCommitments(t *testing.T) {
	a := NewAssessor(DefaultConfig(), StaticCongestion(0))
	c := candidate(0.005, []arb.Leg{simpleLeg("jupiter", 20_000, 100)})

	before := a.Assess(c, 0).ConcentrationRisk
	a.RecordCommitment("jupiter", "SOL/USDC", decimal.NewFromInt(100), 0)
	after := a.Assess(c, time.Second).ConcentrationRisk

	assert.Greater(t, after, before)
}

func TestConcentrationRisk_OldCommitmentsAgeOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConcentrationWindow = 10 * time.Second
	a := NewAssessor(cfg, StaticCongestion(0))
	c := candidate(0.005, []arb.Leg{simpleLeg("jupiter", 20_000, 100)})

	a.RecordCommitment("jupiter", "SOL/USDC", decimal.NewFromInt(100), 0)
	r := a.Assess(c, time.Minute)
	assert.Equal(t, 0.0, r.ConcentrationRisk)
}
