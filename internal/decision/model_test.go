package decision

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/solarb/engine/internal/arb"
)

func candidateWithProfit(netProfit float64) arb.OpportunityCandidate {
	return arb.OpportunityCandidate{
		NotionalIn:          decimal.NewFromInt(1),
		ExpectedGrossProfit: decimal.NewFromFloat(netProfit * 1.1),
		ExpectedNetProfit:   decimal.NewFromFloat(netProfit),
	}
}

func TestEvaluate_BelowMinTrainingSamples_UsesFallbackRule(t *testing.T) {
	m := NewModule(DefaultConfig(), arb.LearnedModel{})
	c := candidateWithProfit(0.01)
	c.Score = &arb.Score{Confidence: 0.95}

	d := m.Evaluate(c, [8]float64{}, decimal.NewFromFloat(0.01), decimal.NewFromInt(1))
	assert.True(t, d.Admitted)
}

func TestEvaluate_FallbackRejectsLowConfidence(t *testing.T) {
	m := NewModule(DefaultConfig(), arb.LearnedModel{})
	c := candidateWithProfit(0.01)
	c.Score = &arb.Score{Confidence: 0.5}

	d := m.Evaluate(c, [8]float64{}, decimal.NewFromFloat(0.01), decimal.NewFromInt(1))
	assert.False(t, d.Admitted)
}

func TestEvaluate_TrainedModel_AdmitsAboveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTrainingSamples = 0
	model := arb.LearnedModel{W: [8]float64{5, 0, 0, 0, 0, 0, 0, 0}, ConfidenceThreshold: 0.5}
	m := NewModule(cfg, model)

	d := m.Evaluate(candidateWithProfit(0.01), [8]float64{1, 0, 0, 0, 0, 0, 0, 0}, decimal.NewFromFloat(0.005), decimal.NewFromInt(1))
	assert.True(t, d.Admitted)
	assert.Greater(t, d.Fraction, 0.0)
}

func TestKellyFraction_ClampsToDocumentedBounds(t *testing.T) {
	// With a non-negative loss the raw fraction stays below s, so only a
	// negative worst-case loss (0.99 + 0.01*10 = 1.09) reaches the upper clamp.
	assert.Equal(t, 1.0, kellyFraction(0.99, decimal.NewFromFloat(1.0), decimal.NewFromFloat(-10)))
	assert.Equal(t, 0.001, kellyFraction(0.01, decimal.NewFromFloat(1.0), decimal.NewFromFloat(10)))
}

func TestAdapt_RaisesThresholdOnLowSuccessRate(t *testing.T) {
	cfg := DefaultConfig()
	model := arb.LearnedModel{W: [8]float64{}, ConfidenceThreshold: 0.85}
	m := NewModule(cfg, model)

	m.Adapt(0.5, nil, time.Second)
	assert.Greater(t, m.Snapshot().ConfidenceThreshold, 0.85)
}

func TestAdapt_LowersThresholdOnHighSuccessRate(t *testing.T) {
	cfg := DefaultConfig()
	model := arb.LearnedModel{W: [8]float64{}, ConfidenceThreshold: 0.85}
	m := NewModule(cfg, model)

	m.Adapt(0.9, nil, time.Second)
	assert.Less(t, m.Snapshot().ConfidenceThreshold, 0.85)
}

func TestAdapt_WeightUpdateMovesTowardLabeledOutcome(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LearningRate = 0.1
	model := arb.LearnedModel{W: [8]float64{}, ConfidenceThreshold: 0.85}
	m := NewModule(cfg, model)

	window := []LabeledFeature{{X: [8]float64{1, 0, 0, 0, 0, 0, 0, 0}, Y: 1}}
	m.Adapt(0.7, window, time.Second)
	assert.Greater(t, m.Snapshot().W[0], 0.0)
}

func TestSelectTop_OrdersByScoreTimesProfitAndCaps(t *testing.T) {
	decisions := []Decision{
		{Candidate: candidateWithProfit(0.01), Score: 0.9, Admitted: true},
		{Candidate: candidateWithProfit(0.05), Score: 0.9, Admitted: true},
		{Candidate: candidateWithProfit(0.1), Score: 0.1, Admitted: false},
	}
	top := SelectTop(decisions, 1)
	assert.Len(t, top, 1)
	assert.InDelta(t, 0.05, top[0].Candidate.ExpectedNetProfit.InexactFloat64(), 1e-9)
}
