package quote

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/solarb/engine/internal/arb"
)

// BinanceSpotClient adapts the "spot-price API" provider family (§6.2) to
// ProviderClient, grounded on cryptofunk's and tommy-ca-opensqt's shared use
// of adshao/go-binance/v2. It quotes the book ticker's bid price scaled
// linearly by amount (1 unit when amount is zero); the spot endpoint does
// not do amount-aware routing the way an aggregator does.
type BinanceSpotClient struct {
	api     *binance.Client
	symbols map[[2]string]string // (inputMint, outputMint) -> Binance symbol
}

// NewBinanceSpotClient builds a client over the given mint-pair-to-symbol
// map (e.g. {"SOL","USDC"}: "SOLUSDC").
func NewBinanceSpotClient(apiKey, secretKey string, symbols map[[2]string]string) *BinanceSpotClient {
	return &BinanceSpotClient{
		api:     binance.NewClient(apiKey, secretKey),
		symbols: symbols,
	}
}

func (c *BinanceSpotClient) FetchQuote(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal) (arb.PriceQuote, error) {
	symbol, ok := c.symbols[[2]string{inputMint, outputMint}]
	if !ok {
		return arb.PriceQuote{}, fmt.Errorf("%w: no binance symbol for %s/%s", arb.ErrInvalidPair, inputMint, outputMint)
	}

	tickers, err := c.api.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return arb.PriceQuote{}, fmt.Errorf("%w: %v", arb.ErrProviderUnavailable, err)
	}
	if len(tickers) == 0 {
		return arb.PriceQuote{}, fmt.Errorf("%w: empty book ticker for %s", arb.ErrDataError, symbol)
	}

	bidPrice, err := decimal.NewFromString(tickers[0].BidPrice)
	if err != nil {
		return arb.PriceQuote{}, fmt.Errorf("%w: unparseable bid price %q: %v", arb.ErrDataError, tickers[0].BidPrice, err)
	}
	if bidPrice.IsZero() || bidPrice.IsNegative() {
		return arb.PriceQuote{}, fmt.Errorf("%w: implausible bid price %s", arb.ErrDataError, bidPrice)
	}

	in := amount
	if in.IsZero() {
		in = decimal.NewFromInt(1)
	}

	return arb.PriceQuote{
		Venue:              "binance",
		InputMint:          inputMint,
		OutputMint:         outputMint,
		InputAmount:        in,
		OutputAmount:       in.Mul(bidPrice),
		FeeBps:             10,
		EstimatedLatencyMs: 150,
		ValidityDurationMs: 5_000,
	}, nil
}
