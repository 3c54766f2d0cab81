// Package learning implements the Outcome Recorder & Learner (C8): it
// consumes every ExecutionResult linked to its DecisionRecord, maintains
// per-venue/per-pair/global rolling success rates, drives the C7 model's
// adaptation step, and raises sustained-degradation alerts.
//
// Grounded on cryptofunk's internal/orchestrator/messagebus.go message-
// passing shape, narrowed here to a single in-process Go channel: this is
// the spec's own distinction between an in-process "message channel" and
// internal/events' cross-process NATS fan-out for C9 alerts.
package learning

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/solarb/engine/internal/arb"
	"github.com/solarb/engine/internal/decision"
)

// AlertSink receives sustained-degradation notifications; wired to
// internal/alerts in the full pipeline.
type AlertSink interface {
	Alert(ctx context.Context, message string, fields map[string]any)
}

// Config holds C8's tunables.
type Config struct {
	VenueAlpha             float64
	PairAlpha              float64
	GlobalWindow           int
	DegradationThreshold   float64
	DegradationMinDecisions int
	LearningCadence        int
}

func DefaultConfig() Config {
	return Config{
		VenueAlpha:              0.05,
		PairAlpha:               0.05,
		GlobalWindow:            100,
		DegradationThreshold:    0.5,
		DegradationMinDecisions: 20,
		LearningCadence:         50,
	}
}

type emaRate struct {
	value   float64
	samples int
}

func (r *emaRate) update(alpha float64, outcome float64) {
	if r.samples == 0 {
		r.value = outcome
	} else {
		r.value = alpha*outcome + (1-alpha)*r.value
	}
	r.samples++
}

// Learner serializes all writes behind mu; reads of success rates are not
// lock-free: each takes mu's read lock for a single float64/int read, so
// reads run in parallel with each other but wait for an in-progress write.
type Learner struct {
	cfg    Config
	model  *decision.Module
	alerts AlertSink
	log    zerolog.Logger

	mu           sync.RWMutex
	perVenue     map[string]*emaRate
	perPair      map[string]*emaRate
	globalWindow []bool // ring buffer of success/failure, most-recent-last
	sinceLastAdapt int
	featureWindow  []decision.LabeledFeature

	records chan arb.DecisionRecord
}

func NewLearner(cfg Config, model *decision.Module, alerts AlertSink, log zerolog.Logger) *Learner {
	return &Learner{
		cfg:      cfg,
		model:    model,
		alerts:   alerts,
		log:      log,
		perVenue: make(map[string]*emaRate),
		perPair:  make(map[string]*emaRate),
		records:  make(chan arb.DecisionRecord, 256),
	}
}

// Submit enqueues a completed decision record for processing; C6 calls
// this after every execution. Records are processed in strict arrival
// order by Run.
func (l *Learner) Submit(rec arb.DecisionRecord) {
	l.records <- rec
}

// Run drains the records channel until ctx is cancelled, processing each
// record in arrival order.
func (l *Learner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-l.records:
			l.process(ctx, rec)
		}
	}
}

func (l *Learner) process(ctx context.Context, rec arb.DecisionRecord) {
	outcome := 0.0
	if rec.Result.Success && rec.Result.RealizedProfit.IsPositive() {
		outcome = 1.0
	}

	l.mu.Lock()
	for _, leg := range rec.Candidate.Legs {
		l.venueRate(leg.Venue).update(l.cfg.VenueAlpha, outcome)
		pairKey := leg.InputMint + "/" + leg.OutputMint
		l.pairRate(pairKey).update(l.cfg.PairAlpha, outcome)
	}
	l.globalWindow = append(l.globalWindow, outcome == 1.0)
	if len(l.globalWindow) > l.cfg.GlobalWindow {
		l.globalWindow = l.globalWindow[len(l.globalWindow)-l.cfg.GlobalWindow:]
	}
	l.featureWindow = append(l.featureWindow, decision.LabeledFeature{X: rec.Features, Y: outcome})
	if len(l.featureWindow) > l.cfg.GlobalWindow {
		l.featureWindow = l.featureWindow[len(l.featureWindow)-l.cfg.GlobalWindow:]
	}
	rate := l.globalSuccessRateLocked()
	l.sinceLastAdapt++
	shouldAdapt := l.sinceLastAdapt >= l.cfg.LearningCadence
	if shouldAdapt {
		l.sinceLastAdapt = 0
	}
	degraded := rate < l.cfg.DegradationThreshold && len(l.globalWindow) >= l.cfg.DegradationMinDecisions
	window := append([]decision.LabeledFeature(nil), l.featureWindow...)
	l.mu.Unlock()

	l.model.RecordSample()

	if shouldAdapt {
		l.model.Adapt(rate, window, rec.RecordedAt)
	}

	if degraded && l.alerts != nil {
		l.alerts.Alert(ctx, "sustained success-rate degradation", map[string]any{
			"success_rate": rate,
			"window":       len(l.globalWindow),
		})
	}
}

func (l *Learner) venueRate(venue string) *emaRate {
	r, ok := l.perVenue[venue]
	if !ok {
		r = &emaRate{}
		l.perVenue[venue] = r
	}
	return r
}

func (l *Learner) pairRate(pair string) *emaRate {
	r, ok := l.perPair[pair]
	if !ok {
		r = &emaRate{}
		l.perPair[pair] = r
	}
	return r
}

func (l *Learner) globalSuccessRateLocked() float64 {
	if len(l.globalWindow) == 0 {
		return 0.5
	}
	successes := 0
	for _, ok := range l.globalWindow {
		if ok {
			successes++
		}
	}
	return float64(successes) / float64(len(l.globalWindow))
}

// SuccessRate implements scoring.SuccessRateSource: C3 reads the
// per-venue rate under the read lock.
func (l *Learner) SuccessRate(venue string) (rate float64, samples int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.perVenue[venue]
	if !ok {
		return 0.5, 0
	}
	return r.value, r.samples
}

// PairSuccessRate returns the per-pair rolling success rate.
func (l *Learner) PairSuccessRate(pair string) (rate float64, samples int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.perPair[pair]
	if !ok {
		return 0.5, 0
	}
	return r.value, r.samples
}

// GlobalSuccessRate returns the current rolling-window success rate.
func (l *Learner) GlobalSuccessRate() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.globalSuccessRateLocked()
}
