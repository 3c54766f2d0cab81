package execution

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/engine/internal/arb"
)

func TestPaperEndpoints_SignAndSubmitNormal(t *testing.T) {
	p := NewPaperEndpoints(DefaultPaperConfig(), 1, zerolog.Nop())
	tx, err := p.Sign(context.Background(), arb.Leg{Venue: "jupiter"})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.Raw)

	ref, err := p.SubmitNormal(context.Background(), []SignedTx{tx})
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
}

func TestPaperEndpoints_BundlePendingThenSettles(t *testing.T) {
	cfg := DefaultPaperConfig()
	cfg.BundleSettleDelay = 10 * time.Millisecond
	cfg.BundleAcceptRate = 1.0
	p := NewPaperEndpoints(cfg, 1, zerolog.Nop())

	tx := SignedTx{Leg: arb.Leg{ExpectedAmountIn: decimal.NewFromFloat(1), ExpectedAmountOut: decimal.NewFromFloat(1.1)}}
	id, err := p.SubmitBundle(context.Background(), []SignedTx{tx}, decimal.NewFromFloat(0.001))
	require.NoError(t, err)

	status, _, err := p.PollBundleStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, arb.BundlePending, status)

	time.Sleep(15 * time.Millisecond)
	status, profit, err := p.PollBundleStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, arb.BundleAccepted, status)
	assert.True(t, profit.GreaterThan(decimal.Zero))
}

func TestPaperEndpoints_PollUnknownBundleIsRejected(t *testing.T) {
	p := NewPaperEndpoints(DefaultPaperConfig(), 1, zerolog.Nop())
	status, _, err := p.PollBundleStatus(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, arb.BundleRejected, status)
}

func TestPaperEndpoints_CurrentSpreadBps(t *testing.T) {
	p := NewPaperEndpoints(DefaultPaperConfig(), 1, zerolog.Nop())
	// Real candidates are never single-leg (CrossVenuePair is 2, Triangular
	// is 3); the spread derivation is leg-count independent since it reads
	// only the candidate's aggregate NotionalIn/ExpectedNetProfit.
	c := arb.OpportunityCandidate{
		Legs:              []arb.Leg{{Venue: "orca"}, {Venue: "raydium"}},
		NotionalIn:        decimal.NewFromFloat(1),
		ExpectedNetProfit: decimal.NewFromFloat(0.01),
	}
	bps, err := p.CurrentSpreadBps(context.Background(), c)
	require.NoError(t, err)
	assert.InDelta(t, 95.0, bps, 0.001)
}
