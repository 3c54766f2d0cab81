package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/engine/internal/arb"
	"github.com/solarb/engine/internal/clock"
	"github.com/solarb/engine/internal/decision"
	"github.com/solarb/engine/internal/discovery"
	"github.com/solarb/engine/internal/execution"
	"github.com/solarb/engine/internal/learning"
	"github.com/solarb/engine/internal/protection"
	"github.com/solarb/engine/internal/quote"
	"github.com/solarb/engine/internal/risk"
	"github.com/solarb/engine/internal/scoring"
)

type fakeSigner struct{}

func (fakeSigner) Sign(ctx context.Context, leg arb.Leg) (execution.SignedTx, error) {
	return execution.SignedTx{Leg: leg}, nil
}

type fakeBundle struct{}

func (fakeBundle) SubmitBundle(ctx context.Context, txs []execution.SignedTx, tip decimal.Decimal) (string, error) {
	return "bundle-1", nil
}
func (fakeBundle) PollBundleStatus(ctx context.Context, bundleID string) (arb.BundleStatus, decimal.Decimal, error) {
	return arb.BundleAccepted, decimal.NewFromFloat(0.02), nil
}

type fakePrivate struct{}

func (fakePrivate) SubmitPrivate(ctx context.Context, txs []execution.SignedTx, fee decimal.Decimal) (string, error) {
	return "priv-1", nil
}

type fakeNormal struct{}

func (fakeNormal) SubmitNormal(ctx context.Context, txs []execution.SignedTx) (string, error) {
	return "tx-1", nil
}

type fakeFreshness struct{}

func (fakeFreshness) CurrentSpreadBps(ctx context.Context, c arb.OpportunityCandidate) (float64, error) {
	return 1000, nil
}

func providerFunc(inAmt, outAmt float64) quote.ProviderClientFunc {
	return func(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal) (arb.PriceQuote, error) {
		return arb.PriceQuote{
			InputMint: inputMint, OutputMint: outputMint,
			InputAmount: decimal.NewFromFloat(inAmt), OutputAmount: decimal.NewFromFloat(outAmt),
			Volume24h: decimal.NewFromFloat(50_000), ValidityDurationMs: 60_000,
		}, nil
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	vclock := clock.NewVirtualClock(0)
	cache := quote.NewCache([]string{"SOL"}, time.Minute, time.Minute)
	registry := quote.NewRegistry(cache, vclock)
	registry.Register(quote.ActorConfig{
		Name: "jupiter", Client: providerFunc(1, 105), RequestsPerSecond: 100, Burst: 10,
		MaxConcurrent: 10, BaseDelay: time.Millisecond, MaxRetries: 1, DegradeAfter: 5,
		Cooldown: time.Second, Timeout: time.Second,
	})
	registry.Register(quote.ActorConfig{
		Name: "raydium", Client: providerFunc(1, 95), RequestsPerSecond: 100, Burst: 10,
		MaxConcurrent: 10, BaseDelay: time.Millisecond, MaxRetries: 1, DegradeAfter: 5,
		Cooldown: time.Second, Timeout: time.Second,
	})

	riskAssessor := risk.NewAssessor(risk.Config{
		LiquidityAnchor: 10_000, MediumProfitThreshold: decimal.NewFromFloat(0.01),
		HighProfitThreshold: decimal.NewFromFloat(0.05), CongestionBumpThreshold: 0.7,
		ConcentrationWindow: time.Minute, RiskTolerance: 1.0,
	}, risk.StaticCongestion(0.1))

	selector := protection.NewSelector(protection.DefaultConfig(), 1)

	model := decision.NewModule(decision.Config{
		ConfidenceThreshold: 0.0, MaxConcurrent: 5, LearningRate: 0.001,
		LearningCadence: 50, MinTrainingSamples: 0, FallbackMinConfidence: 0, MinProfitThreshold: decimal.Zero,
	}, arb.LearnedModel{})

	execEngine := execution.NewEngine(execution.DefaultConfig(), fakeSigner{}, fakeBundle{}, fakePrivate{}, fakeNormal{}, fakeFreshness{}, func(time.Duration) {}, 1, zerolog.Nop())

	learner := learning.NewLearner(learning.DefaultConfig(), model, nil, zerolog.Nop())
	go learner.Run(context.Background())

	deps := Deps{
		Quotes: registry,
		Discovery: discovery.Config{
			MinProfitBps: 1, MinProfitAbsolute: decimal.NewFromFloat(0.0001),
			MaxCandidatesPerTick: 10, WatchedPairs: [][2]string{{"SOL", "USDC"}},
		},
		Scoring:    scoring.DefaultConfig(),
		History:    scoring.ZeroHistory{},
		Risk:       riskAssessor,
		Protection: selector,
		Features:   decision.DefaultFeatureConfig(),
		PriceHist:  fakePriceHistory{},
		Sentiment:  fakeSentiment{},
		Decision:   model,
		Execution:  execEngine,
		Learner:    learner,
		Clock:      vclock,
	}

	cfg := Config{
		TickPeriod: time.Hour, MaxCandidatesPerTick: 10, MaxConcurrentExecutions: 4,
		Amount: decimal.NewFromFloat(1), PerTickBudget: decimal.NewFromFloat(1000),
		WorstCaseLoss: decimal.NewFromFloat(0.01), ConsistencyWindow: time.Second, ExecutionDeadline: time.Minute,
	}
	return New("test-bot", cfg, deps, zerolog.Nop())
}

type fakePriceHistory struct{}

func (fakePriceHistory) RecentMidPrices(inputMint, outputMint string, n int) []float64 { return nil }

type fakeSentiment struct{}

func (fakeSentiment) Sentiment(inputMint, outputMint string) float64 { return 0.5 }

func TestEngine_Tick_AdmitsAndExecutesCandidate(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Tick(context.Background()))

	metrics := e.Metrics()
	assert.GreaterOrEqual(t, metrics.CandidatesPerTick, float64(1))
	assert.GreaterOrEqual(t, metrics.ExecutionsTotal, int64(1))
}

func TestEngine_Tick_NoWatchedPairsIsNoop(t *testing.T) {
	e := newTestEngine(t)
	e.deps.Discovery.WatchedPairs = nil
	require.NoError(t, e.Tick(context.Background()))
	assert.Equal(t, float64(0), e.Metrics().CandidatesPerTick)
}

func TestEngine_Run_StopsOnContextCancel(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.TickPeriod = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_ActiveExecutions_ZeroWhenIdle(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, 0, e.ActiveExecutions())
}

func TestEngine_DegradedProviders_EmptyInitially(t *testing.T) {
	e := newTestEngine(t)
	assert.Empty(t, e.DegradedProviders())
}

func TestEngine_SaveModelSnapshot_NoopWithoutStore(t *testing.T) {
	e := newTestEngine(t)
	assert.NoError(t, e.SaveModelSnapshot(context.Background()))
}

func TestEngine_ArchiveModelSnapshot_ErrorsWithoutArchiver(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ArchiveModelSnapshot(context.Background())
	assert.Error(t, err)
}

func TestEngine_Tick_RecordsPriceHistoryWhenRecordable(t *testing.T) {
	e := newTestEngine(t)
	hist := quote.NewRollingHistory(10)
	e.deps.PriceHist = hist

	require.NoError(t, e.Tick(context.Background()))

	assert.NotEmpty(t, hist.RecentMidPrices("SOL", "USDC", 10))
}
