package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/engine/internal/arb"
)

func TestPoolScannerClient_FetchQuote_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pairs":[{"priceNative":"105.0","liquidity":{"usd":500000},"volume":{"h24":120000}}]}`))
	}))
	defer srv.Close()

	pairs := map[[2]string]string{{"SOL", "USDC"}: "pool-abc"}
	c := NewPoolScannerClient(srv.URL, pairs)
	q, err := c.FetchQuote(context.Background(), "SOL", "USDC", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, "pool-abc", q.Venue)
	assert.True(t, q.OutputAmount.Equal(decimal.NewFromFloat(105.0)))
	assert.True(t, q.Volume24h.Equal(decimal.NewFromFloat(120000)))
}

func TestPoolScannerClient_FetchQuote_UnknownPairIsInvalid(t *testing.T) {
	c := NewPoolScannerClient("https://example.invalid", map[[2]string]string{})
	_, err := c.FetchQuote(context.Background(), "SOL", "USDC", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, arb.ErrInvalidPair)
}

func TestPoolScannerClient_FetchQuote_EmptyPairsIsDataError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pairs":[]}`))
	}))
	defer srv.Close()

	pairs := map[[2]string]string{{"SOL", "USDC"}: "pool-abc"}
	c := NewPoolScannerClient(srv.URL, pairs)
	_, err := c.FetchQuote(context.Background(), "SOL", "USDC", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, arb.ErrDataError)
}

func TestPoolScannerClient_FetchQuote_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	pairs := map[[2]string]string{{"SOL", "USDC"}: "pool-abc"}
	c := NewPoolScannerClient(srv.URL, pairs)
	_, err := c.FetchQuote(context.Background(), "SOL", "USDC", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, arb.ErrRateLimited)
}
