package resolver

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"signal-feed/internal/fetcher"
	"signal-feed/internal/instrument"
)

const defaultPerturbationPct = 2.0

// MockSource synthesises degraded quotes around an instrument's reference price.
type MockSource struct {
	pct float64

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewMockSource builds a mock source perturbing prices uniformly by ±pct percent.
// A zero seed draws one from the runtime.
func NewMockSource(pct float64, seed uint64) *MockSource {
	if pct <= 0 || pct >= 100 {
		pct = defaultPerturbationPct
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &MockSource{
		pct: pct,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Quote returns a mock-tagged quote; its change equals the applied perturbation.
func (m *MockSource) Quote(inst instrument.Instrument) fetcher.Quote {
	m.mu.Lock()
	u := m.rng.Float64()
	m.mu.Unlock()

	perturbation := decimal.NewFromFloat((u*2 - 1) * m.pct).Round(4)
	factor := decimal.NewFromInt(1).Add(perturbation.Div(decimal.NewFromInt(100)))
	price := inst.ReferencePrice.Mul(factor)

	return fetcher.Quote{
		Price:      price,
		Change24h:  perturbation,
		ObservedAt: m.now(),
		Source:     fetcher.SourceMock,
	}
}
