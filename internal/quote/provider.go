package quote

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/solarb/engine/internal/arb"
)

// ProviderClient is the adapter boundary a concrete provider family
// (aggregator-style quote API, spot-price API, on-chain pool scanner)
// implements. The core never assumes a particular wire schema; each
// adapter translates its provider's response into a PriceQuote, per §6.
//
// Implementations must not retry internally — retry/backoff/circuit
// breaking is owned by the actor wrapping the client, per the design note
// isolating non-determinism and network effects behind one seam.
type ProviderClient interface {
	// FetchQuote performs exactly one network call and returns a PriceQuote
	// or one of arb.ErrProviderUnavailable, arb.ErrRateLimited,
	// arb.ErrInvalidPair, arb.ErrDataError.
	FetchQuote(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal) (arb.PriceQuote, error)
}

// ProviderClientFunc adapts a function to ProviderClient.
type ProviderClientFunc func(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal) (arb.PriceQuote, error)

func (f ProviderClientFunc) FetchQuote(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal) (arb.PriceQuote, error) {
	return f(ctx, inputMint, outputMint, amount)
}
