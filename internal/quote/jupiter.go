package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solarb/engine/internal/arb"
)

const defaultAggregatorTimeout = 10 * time.Second

// AggregatorClient adapts the "aggregator-style quote API" provider family
// (§6.2, Jupiter-like: a single endpoint that returns a best-route quote for
// an input/output mint pair and amount) to ProviderClient, grounded on
// cryptofunk's CoinGeckoClient net/http+encoding/json shape.
type AggregatorClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAggregatorClient builds a client against baseURL (e.g.
// "https://quote-api.jup.ag/v6").
func NewAggregatorClient(baseURL string) *AggregatorClient {
	return &AggregatorClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultAggregatorTimeout},
	}
}

type aggregatorQuoteResponse struct {
	InAmount             string `json:"inAmount"`
	OutAmount            string `json:"outAmount"`
	PriceImpactPct       string `json:"priceImpactPct"`
	SlippageBps          int    `json:"slippageBps"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
}

func (c *AggregatorClient) FetchQuote(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal) (arb.PriceQuote, error) {
	if amount.IsZero() {
		amount = decimal.NewFromInt(1)
	}

	params := url.Values{}
	params.Add("inputMint", inputMint)
	params.Add("outputMint", outputMint)
	params.Add("amount", amount.Shift(9).Truncate(0).String()) // lamports-scale units
	params.Add("slippageBps", "50")

	reqURL := fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode())

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
		return arb.PriceQuote{}, fmt.Errorf("%w: aggregator rate limited", arb.ErrRateLimited)
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return arb.PriceQuote{}, fmt.Errorf("%w: aggregator has no route for %s/%s", arb.ErrInvalidPair, inputMint, outputMint)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return arb.PriceQuote{}, fmt.Errorf("%w: aggregator returned status %d: %s", arb.ErrProviderUnavailable, resp.StatusCode, string(body))
	}

	var out aggregatorQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return arb.PriceQuote{}, fmt.Errorf("%w: decode aggregator response: %v", arb.ErrDataError, err)
	}

	inAmt, err := decimal.NewFromString(out.InAmount)
	if err != nil {
		return arb.PriceQuote{}, fmt.Errorf("%w: unparseable inAmount %q: %v", arb.ErrDataError, out.InAmount, err)
	}
	outAmt, err := decimal.NewFromString(out.OutAmount)
	if err != nil {
		return arb.PriceQuote{}, fmt.Errorf("%w: unparseable outAmount %q: %v", arb.ErrDataError, out.OutAmount, err)
	}
	if inAmt.IsZero() || inAmt.IsNegative() || outAmt.IsNegative() {
		return arb.PriceQuote{}, fmt.Errorf("%w: implausible aggregator amounts", arb.ErrDataError)
	}

	impact, _ := strconv.ParseFloat(out.PriceImpactPct, 64)

	return arb.PriceQuote{
		Venue:              "jupiter",
		InputMint:          inputMint,
		OutputMint:         outputMint,
		InputAmount:        inAmt.Shift(-9),
		OutputAmount:       outAmt.Shift(-9),
		FeeBps:             out.SlippageBps,
		PriceImpact:        impact,
		EstimatedLatencyMs: 400,
		ValidityDurationMs: 15_000,
	}, nil
}
