package learning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/engine/internal/arb"
	"github.com/solarb/engine/internal/decision"
)

type recordingAlerts struct {
	mu     sync.Mutex
	fired  int
	lastFields map[string]any
}

func (r *recordingAlerts) Alert(ctx context.Context, message string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired++
	r.lastFields = fields
}

func (r *recordingAlerts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fired
}

func successRecord(venue, pair string) arb.DecisionRecord {
	parts := splitPair(pair)
	return arb.DecisionRecord{
		Candidate: arb.OpportunityCandidate{Legs: []arb.Leg{{Venue: venue, InputMint: parts[0], OutputMint: parts[1]}}},
		Result:    arb.ExecutionResult{Success: true, RealizedProfit: decimal.NewFromFloat(0.01)},
	}
}

func failureRecord(venue, pair string) arb.DecisionRecord {
	parts := splitPair(pair)
	return arb.DecisionRecord{
		Candidate: arb.OpportunityCandidate{Legs: []arb.Leg{{Venue: venue, InputMint: parts[0], OutputMint: parts[1]}}},
		Result:    arb.ExecutionResult{Success: false},
	}
}

func splitPair(pair string) [2]string {
	for i, c := range pair {
		if c == '/' {
			return [2]string{pair[:i], pair[i+1:]}
		}
	}
	return [2]string{pair, ""}
}

func TestLearner_SuccessRate_UpdatesViaEMA(t *testing.T) {
	cfg := DefaultConfig()
	model := decision.NewModule(decision.DefaultConfig(), arb.LearnedModel{})
	l := NewLearner(cfg, model, nil, zerolog.Nop())

	l.process(context.Background(), successRecord("jupiter", "SOL/USDC"))
	rate, samples := l.SuccessRate("jupiter")
	assert.Equal(t, 1, samples)
	assert.Equal(t, 1.0, rate)

	l.process(context.Background(), failureRecord("jupiter", "SOL/USDC"))
	rate, samples = l.SuccessRate("jupiter")
	assert.Equal(t, 2, samples)
	assert.Less(t, rate, 1.0)
}

func TestLearner_SustainedDegradation_FiresAlert(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DegradationMinDecisions = 5
	alerts := &recordingAlerts{}
	model := decision.NewModule(decision.DefaultConfig(), arb.LearnedModel{})
	l := NewLearner(cfg, model, alerts, zerolog.Nop())

	for i := 0; i < 5; i++ {
		l.process(context.Background(), failureRecord("jupiter", "SOL/USDC"))
	}
	assert.Greater(t, alerts.count(), 0)
}

func TestLearner_NoAlertBelowMinDecisions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DegradationMinDecisions = 20
	alerts := &recordingAlerts{}
	model := decision.NewModule(decision.DefaultConfig(), arb.LearnedModel{})
	l := NewLearner(cfg, model, alerts, zerolog.Nop())

	for i := 0; i < 5; i++ {
		l.process(context.Background(), failureRecord("jupiter", "SOL/USDC"))
	}
	assert.Equal(t, 0, alerts.count())
}

func TestLearner_AdaptsEveryLearningCadenceDecisions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LearningCadence = 3
	model := decision.NewModule(decision.DefaultConfig(), arb.LearnedModel{ConfidenceThreshold: 0.85})
	l := NewLearner(cfg, model, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		l.process(context.Background(), successRecord("jupiter", "SOL/USDC"))
	}
	assert.NotEqual(t, 0.85, model.Snapshot().ConfidenceThreshold)
}

func TestLearner_Run_ProcessesSubmittedRecordsInOrder(t *testing.T) {
	cfg := DefaultConfig()
	model := decision.NewModule(decision.DefaultConfig(), arb.LearnedModel{})
	l := NewLearner(cfg, model, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	defer cancel()

	l.Submit(successRecord("jupiter", "SOL/USDC"))
	l.Submit(successRecord("jupiter", "SOL/USDC"))

	require.Eventually(t, func() bool {
		_, samples := l.SuccessRate("jupiter")
		return samples == 2
	}, time.Second, 10*time.Millisecond)
}
