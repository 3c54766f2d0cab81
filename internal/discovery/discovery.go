// Package discovery implements Opportunity Discovery (C2): enumerating
// candidate arbitrages from a QuoteCache snapshot, grounded on
// cryptofunk/cmd/agents/arbitrage-agent/main.go's calculateSpreads /
// calculateOpportunity, generalized from a single-exchange-pair
// comparison into the pairwise cross-venue and triangular enumerations
// §4.2 requires.
package discovery

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solarb/engine/internal/arb"
)

// Config holds C2's tunables, sourced from config.ProfitConfig and
// config.PipelineConfig.
type Config struct {
	MinProfitBps         int
	MinProfitAbsolute    decimal.Decimal
	MaxCandidatesPerTick int
	TriangularBaseTokens []string
	WatchedPairs         [][2]string // (input, output)
	MinPlausibleProtectionCost decimal.Decimal
}

// Discover enumerates CrossVenuePair and Triangular candidates from one
// QuoteCache snapshot, per §4.2. now and executionDeadline bound leg
// freshness: a leg whose validity would expire before the candidate's
// estimated execution deadline is rejected.
func Discover(quotes []arb.PriceQuote, cfg Config, now time.Duration, executionDeadline time.Duration) []arb.OpportunityCandidate {
	byPair := indexByPair(quotes)

	var candidates []arb.OpportunityCandidate
	candidates = append(candidates, discoverPairwise(byPair, cfg, now, executionDeadline)...)
	candidates = append(candidates, discoverTriangular(byPair, cfg, now, executionDeadline)...)

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if !ci.ExpectedNetProfit.Equal(cj.ExpectedNetProfit) {
			return ci.ExpectedNetProfit.GreaterThan(cj.ExpectedNetProfit)
		}
		return legLatency(ci) < legLatency(cj)
	})

	if len(candidates) > cfg.MaxCandidatesPerTick {
		candidates = candidates[:cfg.MaxCandidatesPerTick]
	}
	return candidates
}

type pairKey struct{ input, output string }

func indexByPair(quotes []arb.PriceQuote) map[pairKey][]arb.PriceQuote {
	idx := make(map[pairKey][]arb.PriceQuote)
	for _, q := range quotes {
		k := pairKey{q.InputMint, q.OutputMint}
		idx[k] = append(idx[k], q)
	}
	return idx
}

func legLatency(c arb.OpportunityCandidate) int {
	total := 0
	for range c.Legs {
		total++ // proxy: leg count as a latency ordering tie-break input
	}
	return total
}

func legExpiresBeforeDeadline(q arb.PriceQuote, now, executionDeadline time.Duration) bool {
	return q.ExpiresAt() < now+executionDeadline
}

// discoverPairwise implements: "for every (input, output) with quotes from
// >= 2 providers, compare best buy price ... and best sell price ...  If
// their relative spread > min_profit_bps, create a CrossVenuePair
// candidate using those two legs."
func discoverPairwise(byPair map[pairKey][]arb.PriceQuote, cfg Config, now, deadline time.Duration) []arb.OpportunityCandidate {
	var out []arb.OpportunityCandidate
	for k, qs := range byPair {
		if len(qs) < 2 {
			continue
		}
		best, worst := bestAndWorstRate(qs)
		if best.Provider == worst.Provider {
			continue
		}
		if legExpiresBeforeDeadline(best, now, deadline) || legExpiresBeforeDeadline(worst, now, deadline) {
			continue
		}

		spreadBps := spreadBpsBetween(worst, best) // buy at worst (cheapest input/output), sell at best
		if spreadBps <= cfg.MinProfitBps {
			continue
		}

		cand := buildPairCandidate(k, worst, best, now)
		if cand.ExpectedNetProfit.LessThanOrEqual(cfg.MinProfitAbsolute) {
			continue
		}
		if cand.ExpectedNetProfit.Sub(cfg.MinPlausibleProtectionCost).LessThanOrEqual(decimal.Zero) {
			continue // "negative after subtracting minimum plausible protection cost" rejection
		}
		out = append(out, cand)
	}
	return out
}

// bestAndWorstRate returns the quote with the highest Rate() (best sell)
// and the one with the lowest Rate() (best buy / cheapest).
func bestAndWorstRate(qs []arb.PriceQuote) (best, worst arb.PriceQuote) {
	best, worst = qs[0], qs[0]
	for _, q := range qs[1:] {
		if q.Rate() > best.Rate() {
			best = q
		}
		if q.Rate() < worst.Rate() {
			worst = q
		}
	}
	return best, worst
}

func spreadBpsBetween(buy, sell arb.PriceQuote) int {
	buyRate, sellRate := buy.Rate(), sell.Rate()
	if buyRate <= 0 {
		return 0
	}
	return int((sellRate - buyRate) / buyRate * 10_000)
}

func buildPairCandidate(k pairKey, buy, sell arb.PriceQuote, now time.Duration) arb.OpportunityCandidate {
	notional := buy.InputAmount
	grossOut := notional.Mul(decimal.NewFromFloat(sell.Rate()))
	fees := notional.Mul(decimal.NewFromFloat(float64(buy.FeeBps+sell.FeeBps) / 10_000))
	net := grossOut.Sub(notional).Sub(fees)

	return arb.OpportunityCandidate{
		ID:         arb.NewCandidateID(),
		Kind:       arb.KindCrossVenuePair,
		Path:       []string{k.input, k.output},
		NotionalIn: notional,
		Legs: []arb.Leg{
			legFromQuote(buy),
			legFromQuote(sell),
		},
		ExpectedGrossProfit: grossOut.Sub(notional),
		ExpectedFeesTotal:   fees,
		ExpectedNetProfit:   net,
		CreatedAt:           now,
	}
}

func legFromQuote(q arb.PriceQuote) arb.Leg {
	return arb.Leg{
		Venue:              q.Venue,
		InputMint:          q.InputMint,
		OutputMint:         q.OutputMint,
		ExpectedAmountIn:   q.InputAmount,
		ExpectedAmountOut:  q.OutputAmount,
		SourceQuoteID:      quoteID(q),
		Liquidity24h:       q.Volume24h,
		EstimatedLatencyMs: q.EstimatedLatencyMs,
		QuoteObservedAt:    q.ObservedAt,
		QuoteExpiresAt:     q.ExpiresAt(),
	}
}

// quoteID is a stable synthetic identifier for a quote, since PriceQuote
// itself has no ID field in the data model (it is addressed by its cache
// key); candidates reference it for the "source_quote_id non-expired at
// creation" invariant check, using provider+pair+observed_at.
func quoteID(q arb.PriceQuote) string {
	return q.Provider + "|" + q.InputMint + "|" + q.OutputMint + "|" + q.ObservedAt.String()
}

// discoverTriangular implements: "for every ordered triple (A, B, C) with
// A = start token from triangular_base_tokens, with all three legs
// quotable, compute the product of leg rates; if it exceeds 1 by more than
// min_profit_bps + all_fees, create a Triangular candidate."
//
// Path length is fixed at exactly three legs — see DESIGN.md's Open
// Question decision; this is a deliberate choice, not a missing
// generalization.
func discoverTriangular(byPair map[pairKey][]arb.PriceQuote, cfg Config, now, deadline time.Duration) []arb.OpportunityCandidate {
	var out []arb.OpportunityCandidate
	mints := distinctMints(byPair)

	for _, a := range cfg.TriangularBaseTokens {
		for _, b := range mints {
			if b == a {
				continue
			}
			legAB, ok := bestQuote(byPair, a, b)
			if !ok || legExpiresBeforeDeadline(legAB, now, deadline) {
				continue
			}
			for _, c := range mints {
				if c == a || c == b {
					continue
				}
				legBC, ok := bestQuote(byPair, b, c)
				if !ok || legExpiresBeforeDeadline(legBC, now, deadline) {
					continue
				}
				legCA, ok := bestQuote(byPair, c, a)
				if !ok || legExpiresBeforeDeadline(legCA, now, deadline) {
					continue
				}

				product := legAB.Rate() * legBC.Rate() * legCA.Rate()
				allFeesRatio := float64(legAB.FeeBps+legBC.FeeBps+legCA.FeeBps) / 10_000
				threshold := 1 + float64(cfg.MinProfitBps)/10_000 + allFeesRatio
				if product <= threshold {
					continue
				}

				cand := buildTriangularCandidate([]string{a, b, c, a}, []arb.PriceQuote{legAB, legBC, legCA}, now)
				if cand.ExpectedNetProfit.LessThanOrEqual(cfg.MinProfitAbsolute) {
					continue
				}
				if cand.ExpectedNetProfit.Sub(cfg.MinPlausibleProtectionCost).LessThanOrEqual(decimal.Zero) {
					continue
				}
				out = append(out, cand)
			}
		}
	}
	return out
}

func distinctMints(byPair map[pairKey][]arb.PriceQuote) []string {
	seen := make(map[string]bool)
	var out []string
	for k := range byPair {
		if !seen[k.input] {
			seen[k.input] = true
			out = append(out, k.input)
		}
		if !seen[k.output] {
			seen[k.output] = true
			out = append(out, k.output)
		}
	}
	sort.Strings(out)
	return out
}

// bestQuote returns the best-priced provider's quote for (input, output),
// per "use the best-priced provider per leg."
func bestQuote(byPair map[pairKey][]arb.PriceQuote, input, output string) (arb.PriceQuote, bool) {
	qs, ok := byPair[pairKey{input, output}]
	if !ok || len(qs) == 0 {
		return arb.PriceQuote{}, false
	}
	best := qs[0]
	for _, q := range qs[1:] {
		if q.Rate() > best.Rate() {
			best = q
		}
	}
	return best, true
}

func buildTriangularCandidate(path []string, legs []arb.PriceQuote, now time.Duration) arb.OpportunityCandidate {
	notional := legs[0].InputAmount
	product := decimal.NewFromFloat(legs[0].Rate() * legs[1].Rate() * legs[2].Rate())
	grossOut := notional.Mul(product)

	fees := decimal.Zero
	arbLegs := make([]arb.Leg, len(legs))
	for i, q := range legs {
		fees = fees.Add(notional.Mul(decimal.NewFromFloat(float64(q.FeeBps) / 10_000)))
		arbLegs[i] = legFromQuote(q)
	}

	return arb.OpportunityCandidate{
		ID:                  arb.NewCandidateID(),
		Kind:                arb.KindTriangular,
		Path:                path,
		Legs:                arbLegs,
		NotionalIn:          notional,
		ExpectedGrossProfit: grossOut.Sub(notional),
		ExpectedFeesTotal:   fees,
		ExpectedNetProfit:   grossOut.Sub(notional).Sub(fees),
		CreatedAt:           now,
	}
}
