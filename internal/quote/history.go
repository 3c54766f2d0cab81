package quote

import "sync"

// RollingHistory keeps a bounded window of recently observed mid-prices
// per (input, output) pair, fed by Engine.Tick with the rate of each
// refreshed quote.
// It exists to satisfy internal/decision.PriceHistory: C7's
// market_volatility and trend_strength features need a rolling price
// series, and the quote cache is the pipeline's only place that already
// observes a rate per tick.
type historyKey struct{ input, output string }

type RollingHistory struct {
	mu      sync.Mutex
	window  int
	samples map[historyKey][]float64
}

// NewRollingHistory builds a history keeping up to window samples per
// pair, oldest evicted first.
func NewRollingHistory(window int) *RollingHistory {
	if window <= 0 {
		window = 20
	}
	return &RollingHistory{window: window, samples: make(map[historyKey][]float64)}
}

// Record appends one observed mid-price (rate) for a pair.
func (h *RollingHistory) Record(inputMint, outputMint string, rate float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := historyKey{inputMint, outputMint}
	s := append(h.samples[k], rate)
	if len(s) > h.window {
		s = s[len(s)-h.window:]
	}
	h.samples[k] = s
}

// RecentMidPrices returns up to the last n recorded prices for a pair,
// oldest first, satisfying internal/decision.PriceHistory.
func (h *RollingHistory) RecentMidPrices(inputMint, outputMint string, n int) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.samples[historyKey{inputMint, outputMint}]
	if len(s) <= n {
		out := make([]float64, len(s))
		copy(out, s)
		return out
	}
	out := make([]float64, n)
	copy(out, s[len(s)-n:])
	return out
}
