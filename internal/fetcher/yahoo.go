package fetcher

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// YahooOptions parameterise the Yahoo Finance chart fetcher.
type YahooOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Yahoo fetches forex and commodity quotes from the Yahoo Finance chart API.
type Yahoo struct {
	up     upstream
	logger zerolog.Logger
}

// NewYahoo constructs a Yahoo fetcher.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	ua := opts.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (compatible; signalfeed/1.0)"
	}
	return &Yahoo{
		up:     newUpstream("yahoo", opts.BaseURL, "https://query1.finance.yahoo.com", ua, opts.Timeout),
		logger: logger.With().Str("component", "yahoo_fetcher").Logger(),
	}
}

// Name implements QuoteFetcher.
func (y *Yahoo) Name() string { return "yahoo" }

// FetchQuote derives the 24h change from the previous close reported in chart metadata.
func (y *Yahoo) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	query := url.Values{}
	query.Set("interval", "1d")
	query.Set("range", "2d")
	endpoint := y.up.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + query.Encode()

	body, err := y.up.get(ctx, symbol, endpoint)
	if err != nil {
		return Quote{}, err
	}

	var res yahooChartResponse
	if err := y.up.decode(symbol, body, &res); err != nil {
		return Quote{}, err
	}
	if res.Chart.Error != nil {
		return Quote{}, noData(y.up.provider, symbol, body, "chart error %s: %s", res.Chart.Error.Code, res.Chart.Error.Description)
	}
	if len(res.Chart.Result) == 0 {
		return Quote{}, noData(y.up.provider, symbol, body, "chart result empty")
	}

	meta := res.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil || *meta.RegularMarketPrice <= 0 {
		return Quote{}, noData(y.up.provider, symbol, body, "regularMarketPrice missing")
	}
	price := decimal.NewFromFloat(*meta.RegularMarketPrice)

	change := decimal.Zero
	prev := meta.ChartPreviousClose
	if prev == nil {
		prev = meta.PreviousClose
	}
	if prev != nil && *prev > 0 {
		prevClose := decimal.NewFromFloat(*prev)
		change = price.Sub(prevClose).Div(prevClose).Mul(dec100).Round(4)
	}

	observed := time.Now().UTC()
	if meta.RegularMarketTime > 0 {
		observed = time.Unix(meta.RegularMarketTime, 0).UTC()
	}

	return Quote{
		Price:      price,
		Change24h:  change,
		ObservedAt: observed,
		Source:     SourceYahoo,
	}, nil
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string   `json:"symbol"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				ChartPreviousClose *float64 `json:"chartPreviousClose"`
				PreviousClose      *float64 `json:"previousClose"`
				RegularMarketTime  int64    `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

var _ QuoteFetcher = (*Yahoo)(nil)
