package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/engine/internal/arb"
)

type fakeSigner struct{ err error }

func (f fakeSigner) Sign(ctx context.Context, leg arb.Leg) (SignedTx, error) {
	if f.err != nil {
		return SignedTx{}, f.err
	}
	return SignedTx{Leg: leg}, nil
}

type fakeBundle struct {
	status   arb.BundleStatus
	realized decimal.Decimal
	submitErr error
}

func (f *fakeBundle) SubmitBundle(ctx context.Context, txs []SignedTx, tip decimal.Decimal) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "bundle-1", nil
}
func (f *fakeBundle) PollBundleStatus(ctx context.Context, bundleID string) (arb.BundleStatus, decimal.Decimal, error) {
	return f.status, f.realized, nil
}

type fakePrivate struct {
	err      error
	legsSeen *int
}

func (f fakePrivate) SubmitPrivate(ctx context.Context, txs []SignedTx, fee decimal.Decimal) (string, error) {
	if f.legsSeen != nil {
		*f.legsSeen = len(txs)
	}
	if f.err != nil {
		return "", f.err
	}
	return "priv-1", nil
}

type fakeNormal struct {
	err      error
	legsSeen *int
}

func (f fakeNormal) SubmitNormal(ctx context.Context, txs []SignedTx) (string, error) {
	if f.legsSeen != nil {
		*f.legsSeen = len(txs)
	}
	if f.err != nil {
		return "", f.err
	}
	return "tx-1", nil
}

type fakeFreshness struct{ currentBps float64 }

func (f fakeFreshness) CurrentSpreadBps(ctx context.Context, c arb.OpportunityCandidate) (float64, error) {
	return f.currentBps, nil
}

func oneLegCandidate(id string, netProfit, notional, gross float64) arb.OpportunityCandidate {
	return arb.OpportunityCandidate{
		ID:                  id,
		NotionalIn:          decimal.NewFromFloat(notional),
		ExpectedGrossProfit: decimal.NewFromFloat(gross),
		ExpectedNetProfit:   decimal.NewFromFloat(netProfit),
		Legs:                []arb.Leg{{Venue: "orca", InputMint: "SOL", OutputMint: "USDC"}},
	}
}

// twoLegCandidate models a real triangular/cross-venue candidate: C2
// never emits a single-leg candidate, so non-Bundle strategies must
// submit the whole leg set, not just the first leg.
func twoLegCandidate(id string, netProfit, notional, gross float64) arb.OpportunityCandidate {
	return arb.OpportunityCandidate{
		ID:                  id,
		NotionalIn:          decimal.NewFromFloat(notional),
		ExpectedGrossProfit: decimal.NewFromFloat(gross),
		ExpectedNetProfit:   decimal.NewFromFloat(netProfit),
		Legs: []arb.Leg{
			{Venue: "orca", InputMint: "SOL", OutputMint: "USDC"},
			{Venue: "raydium", InputMint: "USDC", OutputMint: "SOL"},
		},
	}
}

func noSleep(time.Duration) {}

func TestExecute_Bundle_AcceptedYieldsRealizedProfit(t *testing.T) {
	bundle := &fakeBundle{status: arb.BundleAccepted, realized: decimal.NewFromFloat(0.01)}
	e := NewEngine(DefaultConfig(), fakeSigner{}, bundle, fakePrivate{}, fakeNormal{}, nil, noSleep, 1, zerolog.Nop())

	plan := arb.ProtectedExecutionPlan{Strategy: arb.StrategyBundle, Bundle: &arb.BundleParams{Tip: decimal.NewFromFloat(0.0001), MaxWaitMs: 1000}, DeadlineMs: 1000}
	res, err := e.Execute(context.Background(), plan, oneLegCandidate("c1", 0.01, 1, 0.01))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.RealizedProfit.Equal(decimal.NewFromFloat(0.01)))
}

func TestExecute_Bundle_RejectedYieldsNegativeProtectionCost(t *testing.T) {
	bundle := &fakeBundle{status: arb.BundleRejected}
	e := NewEngine(DefaultConfig(), fakeSigner{}, bundle, fakePrivate{}, fakeNormal{}, nil, noSleep, 1, zerolog.Nop())

	cost := decimal.NewFromFloat(0.0002)
	plan := arb.ProtectedExecutionPlan{Strategy: arb.StrategyBundle, Bundle: &arb.BundleParams{Tip: decimal.NewFromFloat(0.0001), MaxWaitMs: 1000}, ProtectionCostEstimate: cost, DeadlineMs: 1000}
	res, err := e.Execute(context.Background(), plan, oneLegCandidate("c1", 0.01, 1, 0.01))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.RealizedProfit.Equal(cost.Neg()))
}

func TestExecute_Bundle_StaleOpportunityAbortsBeforeSubmission(t *testing.T) {
	bundle := &fakeBundle{status: arb.BundleAccepted}
	e := NewEngine(DefaultConfig(), fakeSigner{}, bundle, fakePrivate{}, fakeNormal{}, fakeFreshness{currentBps: 1}, noSleep, 1, zerolog.Nop())

	plan := arb.ProtectedExecutionPlan{Strategy: arb.StrategyBundle, Bundle: &arb.BundleParams{Tip: decimal.NewFromFloat(0.0001), MaxWaitMs: 1000}, DeadlineMs: 1000}
	c := oneLegCandidate("c1", 0.01, 1, 0.01) // expected spread 100bps, current 1bps << 0.8*100
	res, err := e.Execute(context.Background(), plan, c)
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.ErrorIs(t, err, arb.ErrStaleOpportunity)
}

func TestExecute_Private_MultiLegSubmitsWholeLegSet(t *testing.T) {
	var legsSeen int
	private := fakePrivate{legsSeen: &legsSeen}
	e := NewEngine(DefaultConfig(), fakeSigner{}, &fakeBundle{}, private, fakeNormal{}, fakeFreshness{currentBps: 1000}, noSleep, 1, zerolog.Nop())

	plan := arb.ProtectedExecutionPlan{Strategy: arb.StrategyPrivate, Private: &arb.PrivateParams{PriorityFee: decimal.NewFromFloat(0.0001)}, DeadlineMs: 1000}
	c := twoLegCandidate("c1", 0.01, 1, 0.01)
	res, err := e.Execute(context.Background(), plan, c)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, len(c.Legs), legsSeen)
}

func TestExecute_Delayed_MultiLegSubmitsWholeLegSet(t *testing.T) {
	var legsSeen int
	normal := fakeNormal{legsSeen: &legsSeen}
	e := NewEngine(DefaultConfig(), fakeSigner{}, &fakeBundle{}, fakePrivate{}, normal, fakeFreshness{currentBps: 1000}, noSleep, 1, zerolog.Nop())

	plan := arb.ProtectedExecutionPlan{Strategy: arb.StrategyDelayed, Delayed: &arb.DelayedParams{DelayMs: 100}, DeadlineMs: 1000}
	c := twoLegCandidate("c1", 0.01, 1, 0.01)
	res, err := e.Execute(context.Background(), plan, c)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, len(c.Legs), legsSeen)
}

func TestExecute_Split_MultiLegSubmitsWholeLegSetEachRepetition(t *testing.T) {
	var legsSeen int
	normal := fakeNormal{legsSeen: &legsSeen}
	e := NewEngine(DefaultConfig(), fakeSigner{}, &fakeBundle{}, fakePrivate{}, normal, fakeFreshness{currentBps: 1000}, noSleep, 1, zerolog.Nop())

	plan := arb.ProtectedExecutionPlan{Strategy: arb.StrategySplit, Split: &arb.SplitParams{NTrades: 2, SpacingMs: 10}, ProtectionCostEstimate: decimal.NewFromFloat(0.0002), DeadlineMs: 1000}
	c := twoLegCandidate("c1", 0.02, 1, 0.02)
	res, err := e.Execute(context.Background(), plan, c)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, len(c.Legs), legsSeen) // each repetition signs and submits the whole leg set
}

func TestExecute_Delayed_StaleOpportunityAborts(t *testing.T) {
	e := NewEngine(DefaultConfig(), fakeSigner{}, &fakeBundle{}, fakePrivate{}, fakeNormal{}, fakeFreshness{currentBps: 1}, noSleep, 1, zerolog.Nop())

	plan := arb.ProtectedExecutionPlan{Strategy: arb.StrategyDelayed, Delayed: &arb.DelayedParams{DelayMs: 100}, DeadlineMs: 1000}
	c := oneLegCandidate("c1", 0.01, 1, 0.01) // expected spread 100bps, current 1bps << 0.8*100
	res, err := e.Execute(context.Background(), plan, c)
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.ErrorIs(t, err, arb.ErrStaleOpportunity)
}

func TestExecute_Split_MajoritySuccessIsOverallSuccess(t *testing.T) {
	e := NewEngine(DefaultConfig(), fakeSigner{}, &fakeBundle{}, fakePrivate{}, fakeNormal{}, nil, noSleep, 1, zerolog.Nop())

	plan := arb.ProtectedExecutionPlan{Strategy: arb.StrategySplit, Split: &arb.SplitParams{NTrades: 2, SpacingMs: 10}, ProtectionCostEstimate: decimal.NewFromFloat(0.0002), DeadlineMs: 1000}
	res, err := e.Execute(context.Background(), plan, oneLegCandidate("c1", 0.02, 1, 0.02))
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestExecute_RejectsConcurrentExecutionOfSameCandidate(t *testing.T) {
	bundle := &fakeBundle{status: arb.BundlePending}
	e := NewEngine(DefaultConfig(), fakeSigner{}, bundle, fakePrivate{}, fakeNormal{}, nil, noSleep, 1, zerolog.Nop())

	e.mu.Lock()
	e.inFlight["dup"] = true
	e.mu.Unlock()

	plan := arb.ProtectedExecutionPlan{Strategy: arb.StrategyBundle, Bundle: &arb.BundleParams{Tip: decimal.NewFromFloat(0.0001), MaxWaitMs: 100}, DeadlineMs: 100}
	_, err := e.Execute(context.Background(), plan, oneLegCandidate("dup", 0.01, 1, 0.01))
	assert.ErrorIs(t, err, arb.ErrInFlight)
}

func TestExecute_SigningFailure_ReturnsFailedResultNotPanic(t *testing.T) {
	e := NewEngine(DefaultConfig(), fakeSigner{err: errors.New("hsm unavailable")}, &fakeBundle{}, fakePrivate{}, fakeNormal{}, nil, noSleep, 1, zerolog.Nop())

	plan := arb.ProtectedExecutionPlan{Strategy: arb.StrategyBundle, Bundle: &arb.BundleParams{Tip: decimal.NewFromFloat(0.0001), MaxWaitMs: 100}, DeadlineMs: 100}
	res, err := e.Execute(context.Background(), plan, oneLegCandidate("c1", 0.01, 1, 0.01))
	require.Error(t, err)
	assert.False(t, res.Success)
}
