package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"signal-feed/internal/cache"
	"signal-feed/internal/fetcher"
	"signal-feed/internal/instrument"
	"signal-feed/internal/signal"
)

// QuoteResolver returns a quote for an instrument and never fails.
type QuoteResolver interface {
	GetQuote(ctx context.Context, inst instrument.Instrument) fetcher.Quote
}

// PollerStatus exposes the poller's state for status reporting.
type PollerStatus interface {
	LastCycle() time.Time
}

// SubscriberCounter reports live subscribers.
type SubscriberCounter interface {
	Len() int
}

// Analysis is the answer to an on-demand query for one instrument.
type Analysis struct {
	Instrument instrument.Instrument
	Quote      fetcher.Quote
	Signal     signal.Signal

	// Cached is true when the quote came from the price cache rather than a fresh fetch.
	Cached bool
}

// Status summarises the running service.
type Status struct {
	Service     string
	Instruments []string
	Cached      int
	Subscribers int
	LastPoll    time.Time
}

// Service answers instrument queries from the price cache, resolving fresh quotes on a miss.
// It never writes to the cache.
type Service struct {
	name        string
	registry    *instrument.Registry
	cache       *cache.PriceCache
	resolver    QuoteResolver
	poller      PollerStatus
	subscribers SubscriberCounter
	logger      zerolog.Logger
}

// New constructs the query service. poller and subscribers may be nil.
func New(name string, registry *instrument.Registry, pc *cache.PriceCache, resolver QuoteResolver, poller PollerStatus, subscribers SubscriberCounter, logger zerolog.Logger) *Service {
	return &Service{
		name:        name,
		registry:    registry,
		cache:       pc,
		resolver:    resolver,
		poller:      poller,
		subscribers: subscribers,
		logger:      logger.With().Str("component", "service").Logger(),
	}
}

// Analyze returns the signal for asset. Unknown assets yield *instrument.UnknownError.
func (s *Service) Analyze(ctx context.Context, asset string) (Analysis, error) {
	inst, err := s.registry.Resolve(asset)
	if err != nil {
		return Analysis{}, err
	}

	var (
		q      fetcher.Quote
		cached bool
	)
	if s.cache != nil {
		q, cached = s.cache.Get(inst.Key())
	}
	if !cached {
		q = s.resolver.GetQuote(ctx, inst)
		s.logger.Debug().Str("instrument", inst.Name).Str("source", q.Source).Msg("cache miss, resolved fresh quote")
	}

	return Analysis{
		Instrument: inst,
		Quote:      q,
		Signal:     signal.Generate(q.Price, q.Change24h),
		Cached:     cached,
	}, nil
}

// Instruments lists the registered instrument names.
func (s *Service) Instruments() []string {
	return s.registry.Names()
}

// Status reports the service status.
func (s *Service) Status() Status {
	st := Status{
		Service:     s.name,
		Instruments: s.registry.Names(),
	}
	if s.cache != nil {
		st.Cached = s.cache.Len()
	}
	if s.subscribers != nil {
		st.Subscribers = s.subscribers.Len()
	}
	if s.poller != nil {
		st.LastPoll = s.poller.LastCycle()
	}
	return st
}
