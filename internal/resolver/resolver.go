package resolver

import (
	"context"

	"github.com/rs/zerolog"

	"signal-feed/internal/fetcher"
	"signal-feed/internal/instrument"
	"signal-feed/internal/metrics"
)

// Resolver walks an instrument's candidates in order and falls back to a mock quote.
type Resolver struct {
	fetchers map[string]fetcher.QuoteFetcher
	mock     *MockSource
	metrics  *metrics.Recorder
	logger   zerolog.Logger
}

// New constructs a resolver over the given fetchers, keyed by QuoteFetcher.Name.
func New(fetchers []fetcher.QuoteFetcher, mock *MockSource, rec *metrics.Recorder, logger zerolog.Logger) *Resolver {
	byName := make(map[string]fetcher.QuoteFetcher, len(fetchers))
	for _, f := range fetchers {
		byName[f.Name()] = f
	}
	if mock == nil {
		mock = NewMockSource(defaultPerturbationPct, 0)
	}
	return &Resolver{
		fetchers: byName,
		mock:     mock,
		metrics:  rec,
		logger:   logger.With().Str("component", "resolver").Logger(),
	}
}

// GetQuote always returns a quote. Degraded data is visible through Source == "mock".
func (r *Resolver) GetQuote(ctx context.Context, inst instrument.Instrument) fetcher.Quote {
	for _, c := range inst.Candidates {
		f, ok := r.fetchers[c.Provider]
		if !ok {
			r.logger.Warn().Str("instrument", inst.Name).Str("provider", c.Provider).Msg("no fetcher registered for provider")
			continue
		}

		q, err := f.FetchQuote(ctx, c.Symbol)
		if err == nil {
			if q.Price.IsPositive() {
				r.record(inst, q)
				return q
			}
			err = &fetcher.FetchError{Provider: c.Provider, Symbol: c.Symbol, Cause: fetcher.CauseNoData}
		}

		cause := fetcher.CauseOf(err)
		if cause == "" {
			cause = fetcher.CauseNetwork
		}
		r.metrics.RecordFetchFailure(c.Provider, string(cause))
		r.logger.Warn().Err(err).
			Str("instrument", inst.Name).
			Str("provider", c.Provider).
			Str("symbol", c.Symbol).
			Str("cause", string(cause)).
			Msg("fetch failed")
	}

	q := r.mock.Quote(inst)
	r.logger.Info().Str("instrument", inst.Name).Str("price", q.Price.String()).Msg("serving mock quote")
	r.record(inst, q)
	return q
}

func (r *Resolver) record(inst instrument.Instrument, q fetcher.Quote) {
	r.metrics.RecordQuote(inst.Key(), q.Source, q.Price.InexactFloat64())
}
