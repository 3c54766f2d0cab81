// Package execution implements the Execution Engine (C6): per-strategy
// submission behavior, just-in-time freshness validation, and the
// one-in-flight-plan-per-candidate invariant, grounded on cryptofunk's
// internal/exchange/{service,retry,mock}.go request/response shape and
// retry discipline, generalized from CEX order placement to signed
// on-chain submission across Bundle/Private/Delayed/Split strategies.
package execution

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/solarb/engine/internal/arb"
)

// SignedTx is an opaque signed-transaction handle returned by the signing
// boundary (§6); the engine never inspects its contents.
type SignedTx struct {
	Leg arb.Leg
	Raw []byte
}

// Signer requests a signed transaction for one leg from the signing
// boundary. Implementations own key custody; this package never sees a
// private key.
type Signer interface {
	Sign(ctx context.Context, leg arb.Leg) (SignedTx, error)
}

// BundleEndpoint submits a batch of signed legs as one atomic unit and
// reports terminal or still-pending status.
type BundleEndpoint interface {
	SubmitBundle(ctx context.Context, txs []SignedTx, tip decimal.Decimal) (bundleID string, err error)
	PollBundleStatus(ctx context.Context, bundleID string) (arb.BundleStatus, decimal.Decimal, error) // status, realized profit if settled
}

// PrivateEndpoint submits a candidate's signed legs directly via a
// priority-fee relay, bypassing the public mempool.
type PrivateEndpoint interface {
	SubmitPrivate(ctx context.Context, txs []SignedTx, priorityFee decimal.Decimal) (txRef string, err error)
}

// NormalEndpoint submits a candidate's signed legs as ordinary
// transactions to the public network, used by Delayed and Split
// strategies.
type NormalEndpoint interface {
	SubmitNormal(ctx context.Context, txs []SignedTx) (txRef string, err error)
}

// FreshnessChecker re-queries a candidate's current spread bypassing the
// quote cache, for the just-in-time validation gate.
type FreshnessChecker interface {
	CurrentSpreadBps(ctx context.Context, c arb.OpportunityCandidate) (float64, error)
}

// Config holds C6's tunables.
type Config struct {
	FreshnessFloor float64 // 0.8: abort if current_spread < FreshnessFloor * expected_spread
}

func DefaultConfig() Config { return Config{FreshnessFloor: 0.8} }

// Engine executes ProtectedExecutionPlans against the signing and
// submission boundaries, enforcing the spec's one-in-flight-plan rule.
type Engine struct {
	cfg       Config
	signer    Signer
	bundle    BundleEndpoint
	private   PrivateEndpoint
	normal    NormalEndpoint
	freshness FreshnessChecker
	sleep     func(time.Duration)
	rng       *rand.Rand
	log       zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewEngine(cfg Config, signer Signer, bundle BundleEndpoint, private PrivateEndpoint, normal NormalEndpoint, freshness FreshnessChecker, sleep func(time.Duration), seed int64, log zerolog.Logger) *Engine {
	return &Engine{
		cfg: cfg, signer: signer, bundle: bundle, private: private, normal: normal,
		freshness: freshness, sleep: sleep, rng: rand.New(rand.NewSource(seed)), log: log,
		inFlight: make(map[string]bool),
	}
}

// Execute runs one candidate's plan to completion. A second call for the
// same candidate ID while the first is still in flight is rejected
// immediately with arb.ErrInFlight — concurrent multi-bundle execution of
// one candidate is explicitly forbidden.
func (e *Engine) Execute(ctx context.Context, plan arb.ProtectedExecutionPlan, c arb.OpportunityCandidate) (arb.ExecutionResult, error) {
	if !e.claim(c.ID) {
		return arb.ExecutionResult{}, arb.ErrInFlight
	}
	defer e.release(c.ID)

	start := time.Now()
	if plan.DeadlineMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(plan.DeadlineMs)*time.Millisecond)
		defer cancel()
	}

	var result arb.ExecutionResult
	var err error
	switch plan.Strategy {
	case arb.StrategyBundle:
		result, err = e.executeBundle(ctx, plan, c)
	case arb.StrategyPrivate:
		result, err = e.executePrivate(ctx, plan, c)
	case arb.StrategyDelayed:
		result, err = e.executeDelayed(ctx, plan, c)
	case arb.StrategySplit:
		result, err = e.executeSplit(ctx, plan, c)
	default:
		return arb.ExecutionResult{}, fmt.Errorf("%w: unknown strategy %q", arb.ErrConfiguration, plan.Strategy)
	}
	result.Elapsed = time.Since(start)

	if ctx.Err() != nil {
		result.Success = false
		result.BundleStatus = arb.BundleTimeout
		result.Error = ctx.Err().Error()
	}
	return result, err
}

func (e *Engine) claim(candidateID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[candidateID] {
		return false
	}
	e.inFlight[candidateID] = true
	return true
}

func (e *Engine) release(candidateID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, candidateID)
}

// checkFreshness is the just-in-time validation guard common to all four
// strategies: a correctness check, not an optimization.
func (e *Engine) checkFreshness(ctx context.Context, c arb.OpportunityCandidate) error {
	if e.freshness == nil {
		return nil
	}
	expectedBps := spreadBps(c)
	current, err := e.freshness.CurrentSpreadBps(ctx, c)
	if err != nil {
		return fmt.Errorf("%w: freshness recheck failed: %v", arb.ErrDataError, err)
	}
	if current < e.cfg.FreshnessFloor*expectedBps {
		return fmt.Errorf("%w: current spread %.2fbps below %.0f%% of expected %.2fbps", arb.ErrStaleOpportunity, current, e.cfg.FreshnessFloor*100, expectedBps)
	}
	return nil
}

func spreadBps(c arb.OpportunityCandidate) float64 {
	notional, _ := c.NotionalIn.Float64()
	gross, _ := c.ExpectedGrossProfit.Float64()
	if notional <= 0 {
		return 0
	}
	return gross / notional * 10_000
}

func (e *Engine) signLegs(ctx context.Context, legs []arb.Leg) ([]SignedTx, error) {
	out := make([]SignedTx, 0, len(legs))
	for _, l := range legs {
		tx, err := e.signer.Sign(ctx, l)
		if err != nil {
			return nil, fmt.Errorf("%w: signing leg %s->%s: %v", arb.ErrDataError, l.InputMint, l.OutputMint, err)
		}
		out = append(out, tx)
	}
	return out, nil
}
