package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/shopspring/decimal"
)

// Quote sources.
const (
	SourceBybitSpot   = "bybit-spot"
	SourceBybitLinear = "bybit-linear"
	SourceYahoo       = "yahoo"
	SourceMock        = "mock"
)

const defaultTimeout = 10 * time.Second

// Quote is a normalized price observation. A Quote always has a positive price.
type Quote struct {
	Price      decimal.Decimal
	Change24h  decimal.Decimal
	ObservedAt time.Time
	Source     string
}

// QuoteFetcher retrieves the latest quote for one provider symbol.
type QuoteFetcher interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// Cause classifies why a fetch failed.
type Cause string

const (
	CauseTimeout    Cause = "timeout"
	CauseNetwork    Cause = "network"
	CauseNoData     Cause = "no_data"
	CauseHTTPStatus Cause = "http_status"
	CauseDecode     Cause = "decode"
)

// FetchError is the only error kind returned by QuoteFetcher implementations.
type FetchError struct {
	Provider string
	Symbol   string
	Cause    Cause
	Err      error
	// Payload holds the raw upstream body when one was received.
	Payload json.RawMessage
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Symbol, e.Cause, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Symbol, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CauseOf extracts the failure cause of err, or "" when err is not a FetchError.
func CauseOf(err error) Cause {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Cause
	}
	return ""
}

func transportError(provider, symbol string, err error) *FetchError {
	cause := CauseNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		cause = CauseTimeout
	}
	return &FetchError{Provider: provider, Symbol: symbol, Cause: cause, Err: err}
}

func noData(provider, symbol string, payload []byte, format string, args ...any) *FetchError {
	return &FetchError{
		Provider: provider,
		Symbol:   symbol,
		Cause:    CauseNoData,
		Err:      fmt.Errorf(format, args...),
		Payload:  rawPayload(payload),
	}
}
