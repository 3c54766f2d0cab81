package quote

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/solarb/engine/internal/arb"
)

// ActorConfig is one registry entry's declared policy, per §4.1's
// "Providers" contract: endpoint template, rate-limit policy, retry
// policy, and a fallback provider chain.
type ActorConfig struct {
	Name              string
	Client            ProviderClient
	RequestsPerSecond float64
	Burst             int
	MaxConcurrent     int // concurrent requests permitted for this provider

	BaseDelay         time.Duration
	ExponentialFactor float64
	JitterRangeMs     int
	MaxRetries        int

	DegradeAfter int           // consecutive failures before Degraded
	Cooldown     time.Duration // time spent Degraded before a retry is allowed

	FallbackChain []string // provider names to try next, in order
	Timeout       time.Duration
}

// Health is a provider's externally-visible state, feeding C9's
// "provider degradation states" gauge.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
)

// actor owns one provider's rate-limit and circuit-breaker state
// exclusively; concurrent callers send requests to it and await, per §5's
// "Per-provider rate-limit state: exclusively owned by a per-provider
// actor."
type actor struct {
	cfg     ActorConfig
	limiter *rate.Limiter
	sem     chan struct{}
	breaker *gobreaker.CircuitBreaker

	mu               sync.Mutex
	consecutiveFails int
	health           Health
	degradedSince    time.Time
}

func newActor(cfg ActorConfig) *actor {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(max(cfg.DegradeAfter, 1))
		},
	}
	return &actor{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		breaker: gobreaker.NewCircuitBreaker(settings),
		health:  HealthHealthy,
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (a *actor) Health() Health {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.health
}

// fetch acquires the rate-limit permit and concurrency slot, then retries
// through jitter+exponential backoff, mirroring the shape of
// cryptofunk/internal/exchange/retry.go's WithRetry but driven by
// jpillora/backoff and gated by the provider's own gobreaker state.
func (a *actor) fetch(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal) (arb.PriceQuote, error) {
	select {
	case a.sem <- struct{}{}:
		defer func() { <-a.sem }()
	case <-ctx.Done():
		return arb.PriceQuote{}, ctx.Err()
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return arb.PriceQuote{}, fmt.Errorf("%w: %v", arb.ErrRateLimited, err)
	}

	b := &backoff.Backoff{
		Min:    a.cfg.BaseDelay,
		Factor: a.cfg.ExponentialFactor,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if jr := a.cfg.JitterRangeMs; jr > 0 {
			time.Sleep(time.Duration(rand.Intn(jr)) * time.Millisecond)
		}

		result, err := a.breaker.Execute(func() (interface{}, error) {
			fctx := ctx
			var cancel context.CancelFunc
			if a.cfg.Timeout > 0 {
				fctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
				defer cancel()
			}
			return a.cfg.Client.FetchQuote(fctx, inputMint, outputMint, amount)
		})
		if err == nil {
			a.recordSuccess()
			return result.(arb.PriceQuote), nil
		}

		lastErr = err
		a.recordFailure()

		if !isRetryable(err) || attempt == a.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(b.Duration()):
		case <-ctx.Done():
			return arb.PriceQuote{}, ctx.Err()
		}
	}
	return arb.PriceQuote{}, fmt.Errorf("provider %s: %w", a.cfg.Name, lastErr)
}

func (a *actor) recordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveFails = 0
	a.health = HealthHealthy
}

func (a *actor) recordFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveFails++
	if a.consecutiveFails >= max(a.cfg.DegradeAfter, 1) {
		a.health = HealthDegraded
		a.degradedSince = time.Now()
	}
}

func isRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	default:
		// Transient provider errors and rate limits are retried; data and
		// pair-shape errors are not (§7: "Data error ... quote discarded").
		return !isTerminal(err)
	}
}

func isTerminal(err error) bool {
	return errors.Is(err, arb.ErrInvalidPair) || errors.Is(err, arb.ErrDataError)
}
