package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solarb/engine/internal/arb"
)

const defaultPoolScannerTimeout = 10 * time.Second

// PoolScannerClient adapts the "on-chain pool scanner" provider family
// (§6.2, DexScreener-like: queries an indexed on-chain pool for a mint
// pair and derives a quote from the pool's reported priceNative) to
// ProviderClient, grounded on cryptofunk's CoinGeckoClient net/http+
// encoding/json shape.
type PoolScannerClient struct {
	baseURL    string
	httpClient *http.Client
	pairs      map[[2]string]string // (inputMint, outputMint) -> pool/pair address
}

// NewPoolScannerClient builds a client against baseURL (e.g.
// "https://api.dexscreener.com/latest/dex") over the given mint-pair-to-
// pool-address map.
func NewPoolScannerClient(baseURL string, pairs map[[2]string]string) *PoolScannerClient {
	return &PoolScannerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultPoolScannerTimeout},
		pairs:      pairs,
	}
}

type poolScannerResponse struct {
	Pairs []struct {
		PriceNative string `json:"priceNative"`
		Liquidity   struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
		Volume struct {
			H24 float64 `json:"h24"`
		} `json:"volume"`
	} `json:"pairs"`
}

func (c *PoolScannerClient) FetchQuote(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal) (arb.PriceQuote, error) {
	pairAddr, ok := c.pairs[[2]string{inputMint, outputMint}]
	if !ok {
		return arb.PriceQuote{}, fmt.Errorf("%w: no indexed pool for %s/%s", arb.ErrInvalidPair, inputMint, outputMint)
	}

	reqURL := fmt.Sprintf("%s/pairs/solana/%s", c.baseURL, pairAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return arb.PriceQuote{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return arb.PriceQuote{}, fmt.Errorf("%w: %v", arb.ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return arb.PriceQuote{}, fmt.Errorf("%w: pool scanner rate limited", arb.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return arb.PriceQuote{}, fmt.Errorf("%w: pool scanner returned status %d: %s", arb.ErrProviderUnavailable, resp.StatusCode, string(body))
	}

	var out poolScannerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return arb.PriceQuote{}, fmt.Errorf("%w: decode pool scanner response: %v", arb.ErrDataError, err)
	}
	if len(out.Pairs) == 0 {
		return arb.PriceQuote{}, fmt.Errorf("%w: pool %s has no indexed pair data", arb.ErrDataError, pairAddr)
	}
	pair := out.Pairs[0]

	rate, err := strconv.ParseFloat(pair.PriceNative, 64)
	if err != nil {
		return arb.PriceQuote{}, fmt.Errorf("%w: unparseable priceNative %q: %v", arb.ErrDataError, pair.PriceNative, err)
	}
	if rate <= 0 {
		return arb.PriceQuote{}, fmt.Errorf("%w: implausible pool rate %v", arb.ErrDataError, rate)
	}

	in := amount
	if in.IsZero() {
		in = decimal.NewFromInt(1)
	}

	return arb.PriceQuote{
		Venue:              pairAddr,
		InputMint:          inputMint,
		OutputMint:         outputMint,
		InputAmount:        in,
		OutputAmount:       in.Mul(decimal.NewFromFloat(rate)),
		Volume24h:          decimal.NewFromFloat(pair.Volume.H24),
		FeeBps:             25,
		EstimatedLatencyMs: 250,
		ValidityDurationMs: 3_000,
	}, nil
}
