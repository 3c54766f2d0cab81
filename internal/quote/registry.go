package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/solarb/engine/internal/arb"
	"github.com/solarb/engine/internal/clock"
)

// Registry is the extensible provider registry keyed by provider tag,
// per §4.1, fronting a shared Cache.
type Registry struct {
	cache  *Cache
	clock  clock.Clock
	actors map[string]*actor
	order  []string // declared provider names, for fallback resolution order
}

// NewRegistry builds a registry over the given cache and clock; actors are
// registered with Register.
func NewRegistry(cache *Cache, clk clock.Clock) *Registry {
	return &Registry{cache: cache, clock: clk, actors: make(map[string]*actor)}
}

// Register adds a provider actor to the registry.
func (r *Registry) Register(cfg ActorConfig) {
	r.actors[cfg.Name] = newActor(cfg)
	r.order = append(r.order, cfg.Name)
}

// Health reports a provider's current state for C9.
func (r *Registry) Health(provider string) Health {
	a, ok := r.actors[provider]
	if !ok {
		return HealthDegraded
	}
	return a.Health()
}

// Providers returns the declared provider names in registration order.
func (r *Registry) Providers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// CacheLen reports the shared cache's current entry count, for C9's
// resource-status surface.
func (r *Registry) CacheLen() int {
	return r.cache.Len()
}

// CacheEvict removes expired cache entries as of now, bounding memory
// growth between ticks; called from the learning-cadence housekeeping
// pass rather than every tick.
func (r *Registry) CacheEvict(now time.Duration) int {
	return r.cache.Evict(now)
}

// FetchQuote is C1's fetch_quote contract: calls the named provider
// directly, no fallback, no cache write.
func (r *Registry) FetchQuote(ctx context.Context, provider, inputMint, outputMint string, amount decimal.Decimal) (arb.PriceQuote, error) {
	a, ok := r.actors[provider]
	if !ok {
		return arb.PriceQuote{}, fmt.Errorf("%w: unknown provider %q", arb.ErrProviderUnavailable, provider)
	}
	q, err := a.fetch(ctx, inputMint, outputMint, amount)
	if err != nil {
		return arb.PriceQuote{}, err
	}
	q.Provider = provider
	q.ObservedAt = r.clock.Now()
	return q, nil
}

// GetCachedOrFetch is C1's get_cached_or_fetch contract: returns the cache
// entry if unexpired, otherwise fetches (walking the provider's declared
// fallback chain on failure) and writes the cache on success.
func (r *Registry) GetCachedOrFetch(ctx context.Context, provider, inputMint, outputMint string, amount decimal.Decimal) (arb.PriceQuote, error) {
	if q, ok := r.cache.Get(provider, inputMint, outputMint, r.clock.Now()); ok {
		return q, nil
	}

	chain := append([]string{provider}, r.actors[provider].cfg.FallbackChain...)
	var lastErr error
	for _, name := range chain {
		a, ok := r.actors[name]
		if !ok {
			continue
		}
		q, err := a.fetch(ctx, inputMint, outputMint, amount)
		if err != nil {
			lastErr = err
			continue
		}
		q.Provider = name
		q.ObservedAt = r.clock.Now()
		r.cache.Put(q)
		return q, nil
	}
	if lastErr == nil {
		lastErr = arb.ErrProviderUnavailable
	}
	return arb.PriceQuote{}, lastErr
}

// RefreshAll fans out get_cached_or_fetch across every registered provider
// for one pair within a bounded concurrency budget, using
// golang.org/x/sync/errgroup in place of the raw goroutine+WaitGroup
// fan-out cryptofunk's arbitrage-agent main.go hand-rolls for fetchPrices.
// It collects quotes within the consistency window (deadline); providers
// that do not answer in time are simply absent from the result, per §4.1's
// "older quotes are refreshed before candidate creation."
func (r *Registry) RefreshAll(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal, consistencyWindow time.Duration) []arb.PriceQuote {
	ctx, cancel := context.WithTimeout(ctx, consistencyWindow)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	results := make([]arb.PriceQuote, len(r.order))
	ok := make([]bool, len(r.order))

	for i, name := range r.order {
		i, name := i, name
		g.Go(func() error {
			q, err := r.GetCachedOrFetch(gctx, name, inputMint, outputMint, amount)
			if err != nil {
				return nil // a missing leg is surfaced to C2 as an absence, not a group failure
			}
			results[i] = q
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]arb.PriceQuote, 0, len(results))
	for i, present := range ok {
		if present {
			out = append(out, results[i])
		}
	}
	return out
}
