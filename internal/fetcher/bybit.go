package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	bybitTickersPath = "/v5/market/tickers"

	bybitCategorySpot   = "spot"
	bybitCategoryLinear = "linear"
)

var dec100 = decimal.NewFromInt(100)

// BybitOptions parameterise the Bybit fetcher.
type BybitOptions struct {
	BaseURL string
	Timeout time.Duration
}

// Bybit fetches crypto tickers, trying the spot market before linear perpetuals.
type Bybit struct {
	up     upstream
	logger zerolog.Logger
}

// NewBybit constructs a Bybit fetcher.
func NewBybit(opts BybitOptions, logger zerolog.Logger) *Bybit {
	return &Bybit{
		up:     newUpstream("bybit", opts.BaseURL, "https://api.bybit.com", "", opts.Timeout),
		logger: logger.With().Str("component", "bybit_fetcher").Logger(),
	}
}

// Name implements QuoteFetcher.
func (b *Bybit) Name() string { return "bybit" }

// FetchQuote returns the spot ticker, or the linear ticker when spot yields no data.
// Any other spot failure is returned as is.
func (b *Bybit) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	q, spotErr := b.fetchCategory(ctx, bybitCategorySpot, symbol)
	if spotErr == nil {
		return q, nil
	}
	if CauseOf(spotErr) != CauseNoData {
		return Quote{}, spotErr
	}
	b.logger.Debug().Err(spotErr).Str("symbol", symbol).Msg("spot ticker unavailable, trying linear")

	q, err := b.fetchCategory(ctx, bybitCategoryLinear, symbol)
	if err != nil {
		return Quote{}, err
	}
	return q, nil
}

func (b *Bybit) fetchCategory(ctx context.Context, category, symbol string) (Quote, error) {
	query := url.Values{}
	query.Set("category", category)
	query.Set("symbol", symbol)
	endpoint := b.up.baseURL + bybitTickersPath + "?" + query.Encode()

	body, err := b.up.get(ctx, symbol, endpoint)
	if err != nil {
		return Quote{}, err
	}

	var res bybitTickersResponse
	if err := b.up.decode(symbol, body, &res); err != nil {
		return Quote{}, err
	}
	if res.RetCode != 0 {
		return Quote{}, noData(b.up.provider, symbol, body, "%s retCode %d: %s", category, res.RetCode, res.RetMsg)
	}
	if len(res.Result.List) == 0 {
		return Quote{}, noData(b.up.provider, symbol, body, "%s ticker list empty", category)
	}

	ticker := res.Result.List[0]
	price, err := decimal.NewFromString(ticker.LastPrice)
	if err != nil || !price.IsPositive() {
		return Quote{}, noData(b.up.provider, symbol, body, "%s lastPrice %q unusable", category, ticker.LastPrice)
	}

	change := decimal.Zero
	if ticker.Price24hPcnt != "" {
		pct, err := decimal.NewFromString(ticker.Price24hPcnt)
		if err != nil {
			return Quote{}, &FetchError{
				Provider: b.up.provider,
				Symbol:   symbol,
				Cause:    CauseDecode,
				Err:      fmt.Errorf("parse price24hPcnt: %w", err),
				Payload:  rawPayload(body),
			}
		}
		change = pct.Mul(dec100)
	}

	source := SourceBybitSpot
	if category == bybitCategoryLinear {
		source = SourceBybitLinear
	}

	return Quote{
		Price:      price,
		Change24h:  change,
		ObservedAt: time.Now().UTC(),
		Source:     source,
	}, nil
}

type bybitTickersResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string `json:"category"`
		List     []struct {
			Symbol       string `json:"symbol"`
			LastPrice    string `json:"lastPrice"`
			Price24hPcnt string `json:"price24hPcnt"`
		} `json:"list"`
	} `json:"result"`
}

var _ QuoteFetcher = (*Bybit)(nil)
