package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solarb/engine/internal/arb"
)

// executeBundle re-validates freshness just before submission, signs all
// legs, submits them as one atomic bundle, and polls status until a
// terminal state or max_wait_ms elapses.
func (e *Engine) executeBundle(ctx context.Context, plan arb.ProtectedExecutionPlan, c arb.OpportunityCandidate) (arb.ExecutionResult, error) {
	if err := e.checkFreshness(ctx, c); err != nil {
		return arb.ExecutionResult{Success: false, Error: err.Error()}, err
	}

	txs, err := e.signLegs(ctx, c.Legs)
	if err != nil {
		return arb.ExecutionResult{Success: false, Error: err.Error()}, err
	}

	bundleID, err := e.bundle.SubmitBundle(ctx, txs, plan.Bundle.Tip)
	if err != nil {
		return arb.ExecutionResult{
			Success:              false,
			ProtectionCostActual: plan.ProtectionCostEstimate,
			Error:                err.Error(),
		}, nil
	}

	deadline := time.Duration(plan.Bundle.MaxWaitMs) * time.Millisecond
	pollCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	for {
		status, realized, pollErr := e.bundle.PollBundleStatus(pollCtx, bundleID)
		if pollErr != nil {
			return arb.ExecutionResult{
				Success:              false,
				SubmissionID:         bundleID,
				ProtectionCostActual: plan.ProtectionCostEstimate,
				BundleStatus:         arb.BundleFailed,
				Error:                pollErr.Error(),
			}, nil
		}

		switch status {
		case arb.BundleAccepted:
			return arb.ExecutionResult{
				Success:              true,
				SubmissionID:         bundleID,
				RealizedProfit:       realized,
				ProtectionCostActual: plan.ProtectionCostEstimate,
				BundleStatus:         status,
			}, nil
		case arb.BundleRejected, arb.BundleTimeout, arb.BundleFailed:
			return arb.ExecutionResult{
				Success:              false,
				SubmissionID:         bundleID,
				RealizedProfit:       plan.ProtectionCostEstimate.Neg(),
				ProtectionCostActual: plan.ProtectionCostEstimate,
				BundleStatus:         status,
			}, nil
		case arb.BundlePending:
			select {
			case <-pollCtx.Done():
				return arb.ExecutionResult{
					Success:              false,
					SubmissionID:         bundleID,
					RealizedProfit:       plan.ProtectionCostEstimate.Neg(),
					ProtectionCostActual: plan.ProtectionCostEstimate,
					BundleStatus:         arb.BundleTimeout,
				}, nil
			case <-time.After(200 * time.Millisecond):
			}
		}
	}
}

// executePrivate submits the candidate's full leg set through the
// priority-fee relay; lower latency, lower assurance than a bundle.
func (e *Engine) executePrivate(ctx context.Context, plan arb.ProtectedExecutionPlan, c arb.OpportunityCandidate) (arb.ExecutionResult, error) {
	if err := e.checkFreshness(ctx, c); err != nil {
		return arb.ExecutionResult{Success: false, Error: err.Error()}, err
	}

	txs, err := e.signLegs(ctx, c.Legs)
	if err != nil {
		return arb.ExecutionResult{Success: false, Error: err.Error()}, err
	}

	ref, err := e.private.SubmitPrivate(ctx, txs, plan.Private.PriorityFee)
	if err != nil {
		return arb.ExecutionResult{
			Success:              false,
			ProtectionCostActual: plan.ProtectionCostEstimate,
			Error:                err.Error(),
		}, nil
	}

	return arb.ExecutionResult{
		Success:              true,
		SubmissionID:         ref,
		TxRefs:               []string{ref},
		RealizedProfit:       c.ExpectedNetProfit,
		ProtectionCostActual: plan.ProtectionCostEstimate,
	}, nil
}

// executeDelayed sleeps delay_ms (with optional randomization), re-checks
// freshness, then submits the candidate's full leg set as a normal
// transaction set.
func (e *Engine) executeDelayed(ctx context.Context, plan arb.ProtectedExecutionPlan, c arb.OpportunityCandidate) (arb.ExecutionResult, error) {
	delay := time.Duration(plan.Delayed.DelayMs) * time.Millisecond
	if plan.Delayed.Randomize {
		jitter := time.Duration(e.rng.Int63n(int64(delay) + 1))
		delay = delay/2 + jitter/2
	}
	e.sleep(delay)

	if err := e.checkFreshness(ctx, c); err != nil {
		return arb.ExecutionResult{Success: false, Error: err.Error()}, err
	}

	txs, err := e.signLegs(ctx, c.Legs)
	if err != nil {
		return arb.ExecutionResult{Success: false, Error: err.Error()}, err
	}

	ref, err := e.normal.SubmitNormal(ctx, txs)
	if err != nil {
		return arb.ExecutionResult{
			Success:              false,
			ProtectionCostActual: plan.ProtectionCostEstimate,
			Error:                err.Error(),
		}, nil
	}

	return arb.ExecutionResult{
		Success:              true,
		SubmissionID:         ref,
		TxRefs:               []string{ref},
		RealizedProfit:       c.ExpectedNetProfit,
		ProtectionCostActual: plan.ProtectionCostEstimate,
	}, nil
}

// executeSplit runs the whole arbitrage n times serially with spacing_ms
// between repetitions; success requires at least ceil(n/2) of them to
// succeed.
func (e *Engine) executeSplit(ctx context.Context, plan arb.ProtectedExecutionPlan, c arb.OpportunityCandidate) (arb.ExecutionResult, error) {
	n := plan.Split.NTrades
	spacing := time.Duration(plan.Split.SpacingMs) * time.Millisecond
	needed := (n + 1) / 2

	var succeeded int
	var refs []string
	totalRealized := decimal.Zero
	totalCost := decimal.Zero
	perTradeCost := plan.ProtectionCostEstimate.Div(decimal.NewFromInt(int64(n)))
	perTradeProfit := c.ExpectedNetProfit.Div(decimal.NewFromInt(int64(n)))

	for i := 0; i < n; i++ {
		if i > 0 {
			e.sleep(spacing)
		}

		if err := e.checkFreshness(ctx, c); err != nil {
			totalCost = totalCost.Add(perTradeCost)
			continue
		}

		txs, err := e.signLegs(ctx, c.Legs)
		if err != nil {
			totalCost = totalCost.Add(perTradeCost)
			continue
		}

		ref, err := e.normal.SubmitNormal(ctx, txs)
		if err != nil {
			totalCost = totalCost.Add(perTradeCost)
			continue
		}

		succeeded++
		refs = append(refs, ref)
		totalRealized = totalRealized.Add(perTradeProfit)
		totalCost = totalCost.Add(perTradeCost)
	}

	return arb.ExecutionResult{
		Success:              succeeded >= needed,
		TxRefs:               refs,
		RealizedProfit:       totalRealized,
		ProtectionCostActual: totalCost,
	}, nil
}
