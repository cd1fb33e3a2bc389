package instrument

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Category groups instruments by market.
type Category string

const (
	CategoryCrypto    Category = "crypto"
	CategoryForex     Category = "forex"
	CategoryCommodity Category = "commodity"
)

// Provider names referenced by registry candidates.
const (
	ProviderBybit = "bybit"
	ProviderYahoo = "yahoo"
)

// Candidate is one upstream (provider, symbol) pair to try for an instrument.
type Candidate struct {
	Provider string
	Symbol   string
}

// Instrument is a user-facing tradable symbol and the upstream symbols that serve it.
type Instrument struct {
	Name       string
	Category   Category
	Candidates []Candidate

	// ReferencePrice seeds synthetic quotes when every candidate fails.
	ReferencePrice decimal.Decimal
}

// Key returns the canonical provider symbol, used to key cached quotes.
func (i Instrument) Key() string {
	if len(i.Candidates) == 0 {
		return Normalize(i.Name)
	}
	return i.Candidates[0].Symbol
}

// UnknownError reports an unregistered instrument along with the valid names.
type UnknownError struct {
	Asset     string
	Available []string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("ativo %s não suportado (unknown instrument)", e.Asset)
}

var slashReplacer = strings.NewReplacer("/", "", "%2F", "", "%2f", "", "%252F", "", "%252f", "")

// Normalize builds the lookup key for an instrument name: uppercase with slashes removed.
func Normalize(name string) string {
	return strings.ToUpper(slashReplacer.Replace(strings.TrimSpace(name)))
}

// Registry is an immutable lookup table of instruments.
type Registry struct {
	byKey map[string]Instrument
	order []string
}

// NewRegistry builds a registry; duplicate normalized names are rejected.
func NewRegistry(instruments []Instrument) (*Registry, error) {
	r := &Registry{byKey: make(map[string]Instrument, len(instruments))}
	for _, inst := range instruments {
		if len(inst.Candidates) == 0 {
			return nil, fmt.Errorf("instrument %s has no provider candidates", inst.Name)
		}
		if !inst.ReferencePrice.IsPositive() {
			return nil, fmt.Errorf("instrument %s needs a positive reference price", inst.Name)
		}
		key := Normalize(inst.Name)
		if _, dup := r.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate instrument %s", inst.Name)
		}
		candidates := make([]Candidate, len(inst.Candidates))
		copy(candidates, inst.Candidates)
		inst.Candidates = candidates
		r.byKey[key] = inst
		r.order = append(r.order, inst.Name)
	}
	return r, nil
}

// Resolve looks up an instrument, ignoring case and slash separators.
func (r *Registry) Resolve(name string) (Instrument, error) {
	if inst, ok := r.byKey[Normalize(name)]; ok {
		return inst, nil
	}
	return Instrument{}, &UnknownError{Asset: name, Available: r.Names()}
}

// Names lists the registered instrument names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns every instrument in registration order.
func (r *Registry) All() []Instrument {
	out := make([]Instrument, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byKey[Normalize(name)])
	}
	return out
}

// ByCategory returns the instruments of one category sorted by name.
func (r *Registry) ByCategory(c Category) []Instrument {
	var out []Instrument
	for _, inst := range r.All() {
		if inst.Category == c {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
