package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/solarb/engine/internal/arb"
	"github.com/solarb/engine/internal/clock"
	"github.com/solarb/engine/internal/control"
	"github.com/solarb/engine/internal/decision"
	"github.com/solarb/engine/internal/discovery"
	"github.com/solarb/engine/internal/events"
	"github.com/solarb/engine/internal/execution"
	"github.com/solarb/engine/internal/learning"
	"github.com/solarb/engine/internal/metrics"
	"github.com/solarb/engine/internal/protection"
	"github.com/solarb/engine/internal/quote"
	"github.com/solarb/engine/internal/risk"
	"github.com/solarb/engine/internal/scoring"
	"github.com/solarb/engine/internal/store"
)

// priceRecorder is satisfied by quote.RollingHistory: Deps.PriceHist is
// typed as the narrower decision.PriceHistory reader interface, but when
// the concrete value also accepts observations, Tick feeds it every
// refreshed quote so C7's volatility/trend features have real data.
type priceRecorder interface {
	Record(inputMint, outputMint string, rate float64)
}

// Config holds one bot's tick-loop tunables, sourced from
// config.PipelineConfig/ProfitConfig/CacheConfig.
type Config struct {
	TickPeriod              time.Duration
	MaxCandidatesPerTick    int
	MaxConcurrentExecutions int
	Amount                  decimal.Decimal
	PerTickBudget           decimal.Decimal
	WorstCaseLoss           decimal.Decimal
	ConsistencyWindow       time.Duration
	ExecutionDeadline       time.Duration
	HousekeepingCron        string // robfig/cron spec, e.g. "@every 30s"; empty disables housekeeping
}

// Deps bundles the stage collaborators one Engine wires together. Built
// once per bot at construction time; internal/engine owns none of these
// types, only their sequencing.
type Deps struct {
	Quotes     *quote.Registry
	Discovery  discovery.Config
	Scoring    scoring.Config
	History    scoring.SuccessRateSource
	Risk       *risk.Assessor
	Protection *protection.Selector
	Features   decision.FeatureConfig
	PriceHist  decision.PriceHistory
	Sentiment  decision.SentimentSource
	Decision   *decision.Module
	Execution  *execution.Engine
	Learner    *learning.Learner
	Store      *store.Store
	Archiver   *store.Archiver
	Bus        *events.Bus
	Hub        *metrics.Hub
	Clock      clock.Clock
}

// Engine wires C1 (quote)->C2 (discovery)->C3 (scoring)->C4 (risk)->C5
// (protection)->C7 (decision)->C6 (execution)->C8 (learning) for one
// named bot instance, per tick, with C9 observability calls threaded
// through every stage. Grounded on cryptofunk's
// internal/orchestrator/orchestrator.go Run/makeDecision ticker-select
// shape, generalized from a single fixed decision loop to a
// per-bot-configurable pipeline.
type Engine struct {
	id   string
	cfg  Config
	deps Deps
	log  zerolog.Logger

	sem  *semaphore.Weighted
	cron *cron.Cron

	candidatesThisTick   int64
	decisionsAdmitted    int64
	decisionsRejected    int64
	executionsTotal      int64
	realizedProfitMicros int64
	inFlightExecutions   int64

	mu      sync.Mutex
	lastErr error
}

// New builds one bot's Engine. id identifies it in the control surface.
func New(id string, cfg Config, deps Deps, log zerolog.Logger) *Engine {
	return &Engine{
		id:   id,
		cfg:  cfg,
		deps: deps,
		log:  log.With().Str("component", "engine").Str("bot_id", id).Logger(),
		sem:  semaphore.NewWeighted(int64(cfg.MaxConcurrentExecutions)),
	}
}

// Run drives the tick loop until ctx is cancelled. A learning-cadence
// housekeeping job (model snapshot, cache eviction) runs alongside it on
// its own robfig/cron schedule, independent of the tick period.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info().Dur("tick_period", e.cfg.TickPeriod).Msg("engine starting")

	if e.cfg.HousekeepingCron != "" {
		e.cron = cron.New()
		if _, err := e.cron.AddFunc(e.cfg.HousekeepingCron, e.housekeep); err != nil {
			return fmt.Errorf("%w: schedule housekeeping: %v", arb.ErrConfiguration, err)
		}
		e.cron.Start()
		defer e.cron.Stop()
	}

	ticker := time.NewTicker(e.cfg.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("engine stopped by context")
			return ctx.Err()
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				e.log.Error().Err(err).Msg("tick failed")
				e.setLastErr(err)
			}
		}
	}
}

func (e *Engine) setLastErr(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

// LastError returns the most recent tick-level error, for GetBotStatus.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Tick runs one full pass over every watched pair: refresh quotes,
// discover candidates, and drive each candidate through scoring, risk,
// protection, decision, and (if admitted) execution and learning.
// Per-candidate failures are isolated and reported via C9; Tick itself
// always returns nil.
func (e *Engine) Tick(ctx context.Context) error {
	now := e.deps.Clock.Now()
	deadline := now + e.cfg.ExecutionDeadline

	var quotes []arb.PriceQuote
	for _, pair := range e.deps.Discovery.WatchedPairs {
		qs := e.deps.Quotes.RefreshAll(ctx, pair[0], pair[1], e.cfg.Amount, e.cfg.ConsistencyWindow)
		quotes = append(quotes, qs...)
	}
	if rec, ok := e.deps.PriceHist.(priceRecorder); ok {
		for _, q := range quotes {
			rec.Record(q.InputMint, q.OutputMint, q.Rate())
		}
	}

	discoverStart := time.Now()
	candidates := discovery.Discover(quotes, e.deps.Discovery, now, deadline)
	metrics.RecordDiscovery(countKind(candidates, arb.KindCrossVenuePair), countKind(candidates, arb.KindTriangular), time.Since(discoverStart).Seconds())

	if len(candidates) > e.cfg.MaxCandidatesPerTick {
		candidates = candidates[:e.cfg.MaxCandidatesPerTick]
	}
	atomic.StoreInt64(&e.candidatesThisTick, int64(len(candidates)))

	g, gctx := errgroup.WithContext(ctx)
	for i := range candidates {
		c := candidates[i]
		g.Go(func() error {
			e.processCandidate(gctx, c)
			return nil
		})
	}
	return g.Wait()
}

// processCandidate drives one candidate through C3-C8. Every rejection
// path is a normal outcome, not an error: a dropped candidate is logged
// and counted, and the pipeline moves on to the next one.
func (e *Engine) processCandidate(ctx context.Context, c arb.OpportunityCandidate) {
	score := scoring.Score(c, e.deps.Scoring, e.deps.History)
	c.Score = &score

	assessment := e.deps.Risk.Assess(c, e.deps.Clock.Now())
	c.Risk = &assessment
	metrics.RecordRiskAssessment(string(assessment.SandwichLevel), assessment.Overall)
	if e.deps.Hub != nil {
		_ = e.deps.Hub.Broadcast(metrics.EventRiskAssessed, map[string]any{"candidate_id": c.ID, "level": assessment.SandwichLevel})
	}

	if !e.deps.Risk.Admit(assessment) {
		e.emitDrop(ctx, c, "risk_not_admitted")
		return
	}

	plan, err := e.deps.Protection.Select(c)
	if err != nil {
		e.emitDrop(ctx, c, "cost_exceeds_benefit")
		return
	}
	c.Plan = &plan
	protectionCost, _ := plan.ProtectionCostEstimate.Float64()
	metrics.RecordProtectionCost(protectionCost)

	x := decision.ExtractFeatures(c, e.deps.Features, e.perTickNotional(), e.deps.PriceHist, e.deps.Sentiment, time.Now())
	dec := e.deps.Decision.Evaluate(c, x, e.cfg.WorstCaseLoss, e.cfg.PerTickBudget)
	metrics.RecordDecision(dec.Admitted)

	if !dec.Admitted {
		atomic.AddInt64(&e.decisionsRejected, 1)
		return
	}
	atomic.AddInt64(&e.decisionsAdmitted, 1)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return // ctx cancelled while waiting for an execution slot
	}
	atomic.AddInt64(&e.inFlightExecutions, 1)
	defer func() {
		atomic.AddInt64(&e.inFlightExecutions, -1)
		e.sem.Release(1)
	}()

	if venue, pair, ok := primaryVenueAndPair(c); ok {
		e.deps.Risk.RecordCommitment(venue, pair, c.NotionalIn, e.deps.Clock.Now())
	}

	if plan.Strategy == arb.StrategyBundle {
		e.deps.Protection.WaitForBundleSlot(e.deps.Clock.Now(), e.deps.Clock.Sleep)
	}

	result, execErr := e.deps.Execution.Execute(ctx, plan, c)
	atomic.AddInt64(&e.executionsTotal, 1)
	profit, _ := result.RealizedProfit.Float64()
	metrics.RecordExecution(string(plan.Strategy), result.Success, execErr, float64(result.Elapsed.Milliseconds()), profit)
	if result.Success {
		atomic.AddInt64(&e.realizedProfitMicros, int64(profit*1e6))
	}

	rec := arb.DecisionRecord{
		SchemaVersion: arb.CurrentSchemaVersion,
		Candidate:     c,
		Score:         score,
		Risk:          assessment,
		Plan:          plan,
		Result:        result,
		Features:      x,
		RecordedAt:    e.deps.Clock.Now(),
	}
	e.deps.Learner.Submit(rec)
	e.deps.Decision.RecordSample()

	if e.deps.Store != nil {
		if serr := e.deps.Store.AppendDecisionRecord(ctx, rec); serr != nil {
			e.log.Error().Err(serr).Str("candidate_id", c.ID).Msg("failed to persist decision record")
		}
	}

	e.publishResult(ctx, result)
}

// emitDrop records a dropped candidate for C9: a Prometheus counter plus
// a dashboard event, and, for every drop reason, an events.Bus publish so
// an out-of-process consumer can see it too.
func (e *Engine) emitDrop(ctx context.Context, c arb.OpportunityCandidate, reason string) {
	metrics.RecordProtectionDrop(reason)
	if e.deps.Hub != nil {
		_ = e.deps.Hub.Broadcast(metrics.EventProtectionDropped, map[string]any{"candidate_id": c.ID, "reason": reason})
	}
	if e.deps.Bus != nil {
		_ = e.deps.Bus.Publish(ctx, events.TypeProtectionDropped, map[string]any{"candidate_id": c.ID, "reason": reason})
	}
}

func (e *Engine) publishResult(ctx context.Context, result arb.ExecutionResult) {
	if e.deps.Hub != nil {
		_ = e.deps.Hub.Broadcast(metrics.EventExecutionResult, result)
	}
	if e.deps.Bus != nil {
		_ = e.deps.Bus.Publish(ctx, events.TypeExecutionResult, result)
	}
}

// housekeep runs the learning-cadence maintenance pass: persist the
// current model snapshot and evict expired quote-cache entries. Scheduled
// independently of the tick period so it keeps running even if a tick is
// slow.
func (e *Engine) housekeep() {
	ctx := context.Background()
	model := e.deps.Decision.Snapshot()
	metrics.UpdateLearningState(model.ConfidenceThreshold, e.deps.Learner.GlobalSuccessRate())

	removed := e.deps.Quotes.CacheEvict(e.deps.Clock.Now())
	if removed > 0 {
		e.log.Debug().Int("removed", removed).Msg("evicted expired quote cache entries")
	}

	if err := e.SaveModelSnapshot(ctx); err != nil {
		e.log.Error().Err(err).Msg("failed to snapshot learned model")
	}
}

// SaveModelSnapshot persists the current model immediately, bypassing the
// housekeeping schedule; used by the control surface's ForceSave.
func (e *Engine) SaveModelSnapshot(ctx context.Context) error {
	if e.deps.Store == nil {
		return nil
	}
	return e.deps.Store.SaveModel(ctx, e.deps.Decision.Snapshot(), e.deps.Clock.Now())
}

// ArchiveModelSnapshot uploads the current model to the configured S3
// archiver; used by the control surface's CreateBackup.
func (e *Engine) ArchiveModelSnapshot(ctx context.Context) (string, error) {
	if e.deps.Archiver == nil {
		return "", fmt.Errorf("%w: bot %s has no archiver configured", arb.ErrConfiguration, e.id)
	}
	now := time.Now()
	if err := e.deps.Archiver.UploadModelSnapshot(ctx, e.deps.Decision.Snapshot(), now); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/learned-model-%s.msgpack", e.id, now.UTC().Format("20060102T150405Z")), nil
}

// Metrics returns the bot's control-protocol metrics snapshot.
func (e *Engine) Metrics() control.BotMetrics {
	return control.BotMetrics{
		CandidatesPerTick: float64(atomic.LoadInt64(&e.candidatesThisTick)),
		DecisionsAdmitted: atomic.LoadInt64(&e.decisionsAdmitted),
		DecisionsRejected: atomic.LoadInt64(&e.decisionsRejected),
		ExecutionsTotal:   atomic.LoadInt64(&e.executionsTotal),
		GlobalSuccessRate: e.deps.Learner.GlobalSuccessRate(),
		RealizedProfit:    float64(atomic.LoadInt64(&e.realizedProfitMicros)) / 1e6,
	}
}

// ActiveExecutions reports in-flight C6 submissions, for GetResourceStatus.
func (e *Engine) ActiveExecutions() int {
	return int(atomic.LoadInt64(&e.inFlightExecutions))
}

// DegradedProviders reports provider names currently in the Degraded
// state, for GetResourceStatus.
func (e *Engine) DegradedProviders() []string {
	var out []string
	for _, p := range e.deps.Quotes.Providers() {
		if e.deps.Quotes.Health(p) == quote.HealthDegraded {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) perTickNotional() float64 {
	v, _ := e.cfg.PerTickBudget.Float64()
	return v
}

func countKind(candidates []arb.OpportunityCandidate, kind arb.CandidateKind) int {
	n := 0
	for _, c := range candidates {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func primaryVenueAndPair(c arb.OpportunityCandidate) (venue, pair string, ok bool) {
	if len(c.Legs) == 0 {
		return "", "", false
	}
	leg := c.Legs[0]
	return leg.Venue, leg.InputMint + "/" + leg.OutputMint, true
}
