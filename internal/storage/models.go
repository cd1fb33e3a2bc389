package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"signal-feed/internal/fetcher"
)

// QuoteRecord is the mirrored form of one cached quote.
type QuoteRecord struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Change24h  decimal.Decimal `json:"change_24h"`
	ObservedAt time.Time       `json:"observed_at"`
	Source     string          `json:"source"`
}

// NewQuoteRecord converts a quote for symbol into its mirrored form.
func NewQuoteRecord(symbol string, q fetcher.Quote) QuoteRecord {
	return QuoteRecord{
		Symbol:     symbol,
		Price:      q.Price,
		Change24h:  q.Change24h,
		ObservedAt: q.ObservedAt.UTC(),
		Source:     q.Source,
	}
}

// Quote converts the record back into a quote.
func (r QuoteRecord) Quote() fetcher.Quote {
	return fetcher.Quote{
		Price:      r.Price,
		Change24h:  r.Change24h,
		ObservedAt: r.ObservedAt,
		Source:     r.Source,
	}
}
