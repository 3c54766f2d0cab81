package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollingHistory_RecordAndRetrieve(t *testing.T) {
	h := NewRollingHistory(3)
	h.Record("SOL", "USDC", 100)
	h.Record("SOL", "USDC", 101)
	h.Record("SOL", "USDC", 102)
	h.Record("SOL", "USDC", 103)

	got := h.RecentMidPrices("SOL", "USDC", 3)
	assert.Equal(t, []float64{101, 102, 103}, got)
}

func TestRollingHistory_UnknownPairIsEmpty(t *testing.T) {
	h := NewRollingHistory(3)
	assert.Empty(t, h.RecentMidPrices("SOL", "USDC", 5))
}

func TestRollingHistory_FewerSamplesThanRequested(t *testing.T) {
	h := NewRollingHistory(5)
	h.Record("SOL", "USDC", 1)
	h.Record("SOL", "USDC", 2)
	assert.Equal(t, []float64{1, 2}, h.RecentMidPrices("SOL", "USDC", 5))
}
