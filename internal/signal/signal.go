// Package signal derives the pseudo-RSI and the tiered trade signal from a quote.
//
// The RSI here is an approximation computed from the 24h percent change alone.
// It is not a real relative-strength index and is not meant to be one.
package signal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tier classifies signal confidence.
type Tier string

const (
	TierForte    Tier = "FORTE"
	TierModerado Tier = "MODERADO"
	TierFraco    Tier = "FRACO"
)

// Direction is the suggested trade side. DirectionNone means no trade.
type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
	DirectionNone Direction = ""
)

// Expiration is the fixed option expiry, in minutes, attached to every actionable signal.
const Expiration = 5

// AwaitConfirmation is attached to MODERADO signals.
const AwaitConfirmation = "awaiting confirmation"

var (
	rsiMid        = decimal.NewFromInt(50)
	rsiMax        = decimal.NewFromInt(100)
	rsiOversold   = decimal.NewFromInt(30)
	rsiOverbought = decimal.NewFromInt(70)
	two           = decimal.NewFromInt(2)
	one           = decimal.NewFromInt(1)
)

// Signal is the derived view of one quote. It is recomputed on demand and never stored.
type Signal struct {
	RSI        decimal.Decimal
	Confluence float64
	Tier       Tier
	Direction  Direction
	Entry      decimal.Decimal
	Expiration int
	Reasons    []string
	Note       string
}

// Actionable reports whether the signal carries a trade direction.
func (s Signal) Actionable() bool {
	return s.Direction != DirectionNone
}

// PseudoRSI returns clamp(50 - 2*change24h, 0, 100).
func PseudoRSI(change24h decimal.Decimal) decimal.Decimal {
	rsi := rsiMid.Sub(two.Mul(change24h))
	if rsi.IsNegative() {
		return decimal.Zero
	}
	if rsi.GreaterThan(rsiMax) {
		return rsiMax
	}
	return rsi
}

// TierFor maps a confluence score to its tier.
func TierFor(confluence float64) Tier {
	switch {
	case confluence >= 2:
		return TierForte
	case confluence >= 1:
		return TierModerado
	default:
		return TierFraco
	}
}

// Generate computes the signal for a price and its 24h percent change. It is deterministic.
func Generate(price, change24h decimal.Decimal) Signal {
	rsi := PseudoRSI(change24h)

	var (
		confluence float64
		reasons    []string
	)

	switch {
	case rsi.LessThan(rsiOversold):
		confluence++
		reasons = append(reasons, "RSI oversold (<30)")
	case rsi.GreaterThan(rsiOverbought):
		confluence++
		reasons = append(reasons, "RSI overbought (>70)")
	}

	move := change24h.Abs()
	switch {
	case move.GreaterThan(two):
		confluence++
		reasons = append(reasons, fmt.Sprintf("strong 24h move (%s%%)", signedPct(change24h)))
	case move.GreaterThan(one):
		confluence += 0.5
		reasons = append(reasons, fmt.Sprintf("moderate 24h move (%s%%)", signedPct(change24h)))
	}

	sig := Signal{
		RSI:        rsi,
		Confluence: confluence,
		Tier:       TierFor(confluence),
		Direction:  DirectionNone,
		Entry:      price,
		Reasons:    reasons,
	}
	if sig.Reasons == nil {
		sig.Reasons = []string{}
	}
	if sig.Tier == TierFraco {
		return sig
	}

	sig.Direction = DirectionPut
	if rsi.LessThan(rsiMid) {
		sig.Direction = DirectionCall
	}
	sig.Expiration = Expiration
	if sig.Tier == TierModerado {
		sig.Note = AwaitConfirmation
	}
	return sig
}

func signedPct(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsPositive() {
		return "+" + s
	}
	return s
}
