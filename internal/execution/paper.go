package execution

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/solarb/engine/internal/arb"
)

// PaperConfig tunes the simulated fill behavior of PaperEndpoints:
// signing, bundle/private/normal submission, and freshness, all without
// touching a real signer or RPC endpoint. Grounded on cryptofunk's
// internal/exchange/mock.go MockExchange, which plays the same role for
// CEX order placement (paper trading mode) — generalized here from order
// fills to leg submission and bundle settlement.
type PaperConfig struct {
	BaseSlippageBps   int           // widening applied to the reported realized profit
	BundleSettleDelay time.Duration // simulated confirmation latency
	BundleAcceptRate  float64       // 0..1, fraction of bundles that land
}

func DefaultPaperConfig() PaperConfig {
	return PaperConfig{BaseSlippageBps: 5, BundleSettleDelay: 200 * time.Millisecond, BundleAcceptRate: 0.9}
}

// PaperEndpoints implements Signer, BundleEndpoint, PrivateEndpoint,
// NormalEndpoint and FreshnessChecker entirely in memory, standing in for
// the real signing/submission boundary the spec's non-goals exclude. It
// is the default wiring for cmd/solarb-engine until a real signer and
// submission RPC are attached.
type PaperEndpoints struct {
	cfg PaperConfig
	rng *rand.Rand
	log zerolog.Logger

	mu      sync.Mutex
	bundles map[string]*paperBundle
}

type paperBundle struct {
	txs       []SignedTx
	tip       decimal.Decimal
	submitted time.Time
}

func NewPaperEndpoints(cfg PaperConfig, seed int64, log zerolog.Logger) *PaperEndpoints {
	return &PaperEndpoints{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		log:     log.With().Str("component", "paper_endpoints").Logger(),
		bundles: make(map[string]*paperBundle),
	}
}

// Sign stamps an opaque signature in place of a real wallet signature.
func (p *PaperEndpoints) Sign(ctx context.Context, leg arb.Leg) (SignedTx, error) {
	return SignedTx{Leg: leg, Raw: []byte(uuid.NewString())}, nil
}

// SubmitBundle records the bundle for later PollBundleStatus resolution.
func (p *PaperEndpoints) SubmitBundle(ctx context.Context, txs []SignedTx, tip decimal.Decimal) (string, error) {
	id := uuid.NewString()
	p.mu.Lock()
	p.bundles[id] = &paperBundle{txs: txs, tip: tip, submitted: time.Now()}
	p.mu.Unlock()
	p.log.Debug().Str("bundle_id", id).Int("legs", len(txs)).Msg("paper bundle submitted")
	return id, nil
}

// PollBundleStatus resolves a bundle as accepted or dropped once
// BundleSettleDelay has elapsed, per BundleAcceptRate.
func (p *PaperEndpoints) PollBundleStatus(ctx context.Context, bundleID string) (arb.BundleStatus, decimal.Decimal, error) {
	p.mu.Lock()
	b, ok := p.bundles[bundleID]
	p.mu.Unlock()
	if !ok {
		return arb.BundleRejected, decimal.Zero, nil
	}
	if time.Since(b.submitted) < p.cfg.BundleSettleDelay {
		return arb.BundlePending, decimal.Zero, nil
	}
	if p.rng.Float64() > p.cfg.BundleAcceptRate {
		return arb.BundleRejected, decimal.Zero, nil
	}

	profit := p.legProfit(b.txs)
	return arb.BundleAccepted, profit, nil
}

// SubmitPrivate simulates immediate acceptance, the private-relay
// strategy's defining property.
func (p *PaperEndpoints) SubmitPrivate(ctx context.Context, txs []SignedTx, priorityFee decimal.Decimal) (string, error) {
	return uuid.NewString(), nil
}

// SubmitNormal simulates public submission; Delayed/Split callers treat
// the returned ref as a confirmed fill.
func (p *PaperEndpoints) SubmitNormal(ctx context.Context, txs []SignedTx) (string, error) {
	return uuid.NewString(), nil
}

// CurrentSpreadBps derives the spread from the candidate's aggregate
// ExpectedNetProfit/NotionalIn, narrowed by BaseSlippageBps, standing in
// for a live re-quote.
func (p *PaperEndpoints) CurrentSpreadBps(ctx context.Context, c arb.OpportunityCandidate) (float64, error) {
	if len(c.Legs) == 0 || c.NotionalIn.IsZero() {
		return 0, nil
	}
	expected := c.ExpectedNetProfit.Div(c.NotionalIn)
	expectedBps, _ := expected.Mul(decimal.NewFromInt(10_000)).Float64()
	return expectedBps - float64(p.cfg.BaseSlippageBps), nil
}

func (p *PaperEndpoints) legProfit(txs []SignedTx) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Leg.ExpectedAmountOut.Sub(tx.Leg.ExpectedAmountIn))
	}
	slip := total.Mul(decimal.NewFromInt(int64(p.cfg.BaseSlippageBps))).Div(decimal.NewFromInt(10_000))
	return total.Sub(slip)
}
