package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-feed/internal/fetcher"
	"signal-feed/internal/instrument"
)

type stubFetcher struct {
	name  string
	quote fetcher.Quote
	err   error
	calls []string
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) FetchQuote(ctx context.Context, symbol string) (fetcher.Quote, error) {
	s.calls = append(s.calls, symbol)
	if s.err != nil {
		return fetcher.Quote{}, s.err
	}
	return s.quote, nil
}

func failing(name string) *stubFetcher {
	return &stubFetcher{name: name, err: &fetcher.FetchError{Provider: name, Cause: fetcher.CauseTimeout, Err: errors.New("deadline")}}
}

func eurusd() instrument.Instrument {
	return instrument.Instrument{
		Name:           "EUR/USD",
		Category:       instrument.CategoryForex,
		Candidates:     []instrument.Candidate{{Provider: "yahoo", Symbol: "EURUSD=X"}},
		ReferencePrice: decimal.RequireFromString("1.08"),
	}
}

func TestGetQuoteReturnsFirstSuccess(t *testing.T) {
	primary := failing("primary")
	secondary := &stubFetcher{name: "secondary", quote: fetcher.Quote{Price: decimal.NewFromInt(5), Source: "secondary"}}
	inst := instrument.Instrument{
		Name: "A/B",
		Candidates: []instrument.Candidate{
			{Provider: "primary", Symbol: "AB1"},
			{Provider: "secondary", Symbol: "AB2"},
			{Provider: "never", Symbol: "AB3"},
		},
		ReferencePrice: decimal.NewFromInt(1),
	}
	never := &stubFetcher{name: "never"}

	r := New([]fetcher.QuoteFetcher{primary, secondary, never}, NewMockSource(2, 1), nil, zerolog.Nop())
	q := r.GetQuote(context.Background(), inst)

	assert.Equal(t, "secondary", q.Source)
	assert.Equal(t, []string{"AB1"}, primary.calls)
	assert.Equal(t, []string{"AB2"}, secondary.calls)
	assert.Empty(t, never.calls)
}

func TestGetQuoteFallsBackToMock(t *testing.T) {
	yahoo := failing("yahoo")
	r := New([]fetcher.QuoteFetcher{yahoo}, NewMockSource(2, 42), nil, zerolog.Nop())

	for i := 0; i < 200; i++ {
		q := r.GetQuote(context.Background(), eurusd())
		require.Equal(t, fetcher.SourceMock, q.Source)
		require.True(t, q.Price.IsPositive())

		low := decimal.RequireFromString("1.08").Mul(decimal.RequireFromString("0.98"))
		high := decimal.RequireFromString("1.08").Mul(decimal.RequireFromString("1.02"))
		require.True(t, q.Price.GreaterThanOrEqual(low) && q.Price.LessThanOrEqual(high), q.Price.String())
		require.True(t, q.Change24h.Abs().LessThanOrEqual(decimal.NewFromInt(2)), q.Change24h.String())
	}
}

func TestGetQuoteUnknownProviderFallsBackToMock(t *testing.T) {
	r := New(nil, nil, nil, zerolog.Nop())
	q := r.GetQuote(context.Background(), eurusd())
	assert.Equal(t, fetcher.SourceMock, q.Source)
	assert.True(t, q.Price.IsPositive())
}

func TestGetQuoteRejectsNonPositivePrice(t *testing.T) {
	zero := &stubFetcher{name: "yahoo", quote: fetcher.Quote{Price: decimal.Zero, Source: fetcher.SourceYahoo}}
	r := New([]fetcher.QuoteFetcher{zero}, NewMockSource(2, 7), nil, zerolog.Nop())

	q := r.GetQuote(context.Background(), eurusd())
	assert.Equal(t, fetcher.SourceMock, q.Source)
}

func TestMockChangeMatchesPerturbation(t *testing.T) {
	m := NewMockSource(2, 99)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	inst := eurusd()
	q := m.Quote(inst)

	want := inst.ReferencePrice.Mul(decimal.NewFromInt(1).Add(q.Change24h.Div(decimal.NewFromInt(100))))
	assert.True(t, q.Price.Equal(want), "price %s want %s", q.Price, want)
	assert.Equal(t, fixed, q.ObservedAt)
}

func TestMockSeedIsReproducible(t *testing.T) {
	a := NewMockSource(2, 5).Quote(eurusd())
	b := NewMockSource(2, 5).Quote(eurusd())
	assert.True(t, a.Price.Equal(b.Price))
	assert.True(t, a.Change24h.Equal(b.Change24h))
}
