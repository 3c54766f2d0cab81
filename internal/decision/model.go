package decision

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"

	"github.com/solarb/engine/internal/arb"
)

// Config holds C7's tunables, sourced from config.LearningConfig.
type Config struct {
	ConfidenceThreshold  float64
	MaxConcurrent        int
	LearningRate         float64
	LearningCadence       int
	MinTrainingSamples   int
	FallbackMinConfidence float64
	MinProfitThreshold   decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:   0.85,
		MaxConcurrent:         5,
		LearningRate:          0.001,
		LearningCadence:       50,
		MinTrainingSamples:    200,
		FallbackMinConfidence: 0.9,
		MinProfitThreshold:    decimal.NewFromFloat(0.001),
	}
}

// Decision is one candidate's admission outcome.
type Decision struct {
	Candidate arb.OpportunityCandidate
	Features  [8]float64
	Score     float64
	Admitted  bool
	Fraction  float64 // Kelly-like position sizing, as a fraction of per-tick notional budget
}

// Module owns the live LearnedModel (single-writer, many-reader per the
// spec's C8 ownership rule) and the sample count gating the fallback
// rule.
type Module struct {
	mu      sync.RWMutex
	model   arb.LearnedModel
	cfg     Config
	samples int
}

func NewModule(cfg Config, initial arb.LearnedModel) *Module {
	if initial.ConfidenceThreshold == 0 {
		initial.ConfidenceThreshold = cfg.ConfidenceThreshold
	}
	return &Module{cfg: cfg, model: initial}
}

// Snapshot returns a cloned, safe-to-hold copy of the current model.
func (m *Module) Snapshot() arb.LearnedModel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model.Clone()
}

// Evaluate scores one candidate's feature vector and decides admission,
// falling back to the rule-based gate below min_training_samples.
func (m *Module) Evaluate(c arb.OpportunityCandidate, x [8]float64, worstCaseLoss decimal.Decimal, perTickBudget decimal.Decimal) Decision {
	model := m.Snapshot()

	if m.sampleCount() < m.cfg.MinTrainingSamples {
		return m.fallbackEvaluate(c, x)
	}

	s := sigmoid(floats.Dot(model.W[:], x[:]))
	admitted := s >= model.ConfidenceThreshold
	fraction := 0.0
	if admitted {
		fraction = kellyFraction(s, c.ExpectedNetProfit, worstCaseLoss)
	}

	return Decision{Candidate: c, Features: x, Score: s, Admitted: admitted, Fraction: fraction}
}

// fallbackEvaluate implements "below min_training_samples, admit iff
// confidence >= 0.9 and expected_net_profit >= 2*min_profit_threshold."
func (m *Module) fallbackEvaluate(c arb.OpportunityCandidate, x [8]float64) Decision {
	confidence := 0.5
	if c.Score != nil {
		confidence = c.Score.Confidence
	}
	floor := m.cfg.MinProfitThreshold.Mul(decimal.NewFromInt(2))
	admitted := confidence >= m.cfg.FallbackMinConfidence && c.ExpectedNetProfit.GreaterThanOrEqual(floor)

	fraction := 0.0
	if admitted {
		fraction = 0.01 // conservative fixed sizing pre-training, never Kelly-sized without a trained model
	}
	return Decision{Candidate: c, Features: x, Score: confidence, Admitted: admitted, Fraction: fraction}
}

func (m *Module) sampleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.samples
}

// RecordSample increments the training-sample count; called by
// internal/learning as decisions+results accumulate.
func (m *Module) RecordSample() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples++
}

// Adapt applies one learning_cadence parameter-update step: confidence
// threshold scaling by recent success rate and the weight update rule
// w += eta * sum((y - s) * x) over the recent window.
func (m *Module) Adapt(recentSuccessRate float64, window []LabeledFeature, now time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case recentSuccessRate > 0.8:
		m.model.ConfidenceThreshold = maxFloat(0.5, m.model.ConfidenceThreshold*0.95)
	case recentSuccessRate < 0.6:
		m.model.ConfidenceThreshold = minFloat(0.95, m.model.ConfidenceThreshold*1.05)
	}

	var grad [8]float64
	for _, lf := range window {
		s := sigmoid(floats.Dot(m.model.W[:], lf.X[:]))
		err := lf.Y - s
		for i := range grad {
			grad[i] += err * lf.X[i]
		}
	}
	for i := range m.model.W {
		m.model.W[i] += m.cfg.LearningRate * grad[i]
	}

	m.model.RollingAccuracy = recentSuccessRate
	m.model.LastUpdated = now
}

// LabeledFeature pairs a historical feature vector with its realized
// outcome label (1 if the trade realized positive net profit, else 0).
type LabeledFeature struct {
	X [8]float64
	Y float64
}

// kellyFraction implements the spec's Kelly-like sizing formula, clamped
// to [0.001, 1.0].
func kellyFraction(s float64, expectedProfit, worstCaseLoss decimal.Decimal) float64 {
	profit, _ := expectedProfit.Float64()
	loss, _ := worstCaseLoss.Float64()
	if profit <= 0 {
		return 0.001
	}
	fraction := (s*profit - (1-s)*loss) / profit
	if fraction < 0.001 {
		return 0.001
	}
	if fraction > 1.0 {
		return 1.0
	}
	return fraction
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
