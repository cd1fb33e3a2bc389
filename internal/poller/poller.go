package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"signal-feed/internal/alerting"
	"signal-feed/internal/broadcast"
	"signal-feed/internal/cache"
	"signal-feed/internal/fetcher"
	"signal-feed/internal/instrument"
	"signal-feed/internal/metrics"
	"signal-feed/internal/scheduler"
	"signal-feed/internal/signal"
)

// ErrCycleInProgress is returned by Cycle when the previous round has not finished.
var ErrCycleInProgress = errors.New("poll cycle already in progress")

// State is the poller's position in its IDLE/POLLING state machine.
type State int32

const (
	StateIdle State = iota
	StatePolling
)

func (s State) String() string {
	if s == StatePolling {
		return "POLLING"
	}
	return "IDLE"
}

// QuoteResolver returns a quote for an instrument and never fails.
type QuoteResolver interface {
	GetQuote(ctx context.Context, inst instrument.Instrument) fetcher.Quote
}

// Publisher receives the encoded payload of each completed snapshot.
type Publisher interface {
	PushRaw(payload []byte) broadcast.PushResult
}

// Mirror persists each completed snapshot outside the process.
type Mirror interface {
	Write(ctx context.Context, snap cache.Snapshot, payload []byte) error
}

// AlertDispatcher forwards actionable signals.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, note alerting.Notification) (bool, error)
}

// Options configure a Poller.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	Concurrency  int
	Align        bool
}

// Poller refreshes the price cache for every registered instrument on a fixed interval
// and hands each snapshot to the publisher. It is the cache's only writer.
type Poller struct {
	opts      Options
	registry  *instrument.Registry
	resolver  QuoteResolver
	cache     *cache.PriceCache
	publisher Publisher
	mirror    Mirror
	alerts    AlertDispatcher
	metrics   *metrics.Recorder
	logger    zerolog.Logger

	state     atomic.Int32
	mu        sync.RWMutex
	lastCycle time.Time
}

// New constructs a poller. mirror and alerts may be nil.
func New(opts Options, registry *instrument.Registry, resolver QuoteResolver, pc *cache.PriceCache, publisher Publisher, mirror Mirror, alerts AlertDispatcher, rec *metrics.Recorder, logger zerolog.Logger) *Poller {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Poller{
		opts:      opts,
		registry:  registry,
		resolver:  resolver,
		cache:     pc,
		publisher: publisher,
		mirror:    mirror,
		alerts:    alerts,
		metrics:   rec,
		logger:    logger.With().Str("component", "poller").Logger(),
	}
}

// State reports whether a cycle is running.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// LastCycle returns the completion time of the most recent cycle.
func (p *Poller) LastCycle() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastCycle
}

// Run polls once immediately and then on every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p.opts.Interval <= 0 {
		return errors.New("poller interval must be positive")
	}
	sched := scheduler.New(scheduler.Options{
		Interval:     p.opts.Interval,
		AlignToStart: p.opts.Align,
		StartupDelay: p.opts.StartupDelay,
		Immediate:    true,
	}, p.logger)

	return sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		_, err := p.Cycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
}

// Cycle runs one polling round. When a round is already running it returns
// ErrCycleInProgress without doing anything. When ctx is cancelled mid-round the
// cache keeps its previous quotes, nothing is published and ctx.Err() is returned.
func (p *Poller) Cycle(ctx context.Context) (cache.Snapshot, error) {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StatePolling)) {
		p.metrics.RecordPollCycle("skipped", 0)
		return nil, ErrCycleInProgress
	}
	defer p.state.Store(int32(StateIdle))

	start := time.Now()
	instruments := p.registry.All()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, inst := range instruments {
		g.Go(func() error {
			q := p.resolver.GetQuote(gctx, inst)
			// A cancelled fetch resolves to a mock quote; keep the last real one.
			if gctx.Err() != nil {
				return nil
			}
			p.cache.Update(inst.Key(), q)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		p.metrics.RecordPollCycle("cancelled", 0)
		p.logger.Debug().Err(err).Msg("poll cycle cancelled before publish")
		return nil, err
	}

	snap := p.cache.Snapshot()
	payload, err := broadcast.EncodeSnapshot(snap)
	if err != nil {
		p.metrics.RecordPollCycle("failed", 0)
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	res := p.publisher.PushRaw(payload)

	if p.mirror != nil {
		if err := p.mirror.Write(ctx, snap, payload); err != nil {
			p.logger.Error().Err(err).Msg("mirror snapshot")
		}
	}

	if p.alerts != nil {
		p.dispatchAlerts(ctx, instruments, snap)
	}

	elapsed := time.Since(start)
	p.mu.Lock()
	p.lastCycle = time.Now().UTC()
	p.mu.Unlock()

	p.metrics.RecordPollCycle("completed", elapsed.Seconds())
	p.logger.Debug().
		Int("instruments", len(instruments)).
		Int("delivered", res.Delivered).
		Int("pruned", res.Pruned).
		Dur("elapsed", elapsed).
		Msg("poll cycle completed")

	return snap, nil
}

func (p *Poller) dispatchAlerts(ctx context.Context, instruments []instrument.Instrument, snap cache.Snapshot) {
	for _, inst := range instruments {
		q, ok := snap[inst.Key()]
		if !ok || q.Source == fetcher.SourceMock {
			continue
		}
		sig := signal.Generate(q.Price, q.Change24h)
		if sig.Tier != signal.TierForte {
			continue
		}

		sent, err := p.alerts.Dispatch(ctx, alerting.Notification{
			Asset:      inst.Name,
			Tier:       string(sig.Tier),
			Direction:  string(sig.Direction),
			Price:      q.Price,
			Change24h:  q.Change24h,
			RSI:        sig.RSI,
			Expiration: sig.Expiration,
			Reasons:    sig.Reasons,
			Source:     q.Source,
			ObservedAt: q.ObservedAt,
		})
		switch {
		case err != nil:
			p.metrics.RecordAlert("failed")
			p.logger.Error().Err(err).Str("instrument", inst.Name).Msg("dispatch alert")
		case sent:
			p.metrics.RecordAlert("sent")
		default:
			p.metrics.RecordAlert("suppressed")
		}
	}
}
