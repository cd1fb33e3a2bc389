package broadcast

import (
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"signal-feed/internal/cache"
	"signal-feed/internal/metrics"
)

// maxParallelSends bounds concurrent sends in one round, so a stalled
// subscriber holds up at most one slot for its write timeout.
const maxParallelSends = 32

// Conn is one subscriber channel.
type Conn interface {
	// Send delivers a text payload. Implementations bound the write with a deadline.
	Send(payload []byte) error
	Close() error
}

// PushResult summarises one broadcast round.
type PushResult struct {
	Delivered int
	Pruned    int
}

// Hub tracks live subscribers and fans snapshots out to them.
type Hub struct {
	mu    sync.RWMutex
	conns map[Conn]struct{}

	metrics *metrics.Recorder
	logger  zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(rec *metrics.Recorder, logger zerolog.Logger) *Hub {
	return &Hub{
		conns:   make(map[Conn]struct{}),
		metrics: rec,
		logger:  logger.With().Str("component", "broadcast").Logger(),
	}
}

// Register adds a subscriber.
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	h.logger.Info().Int("subscribers", n).Msg("subscriber connected")
}

// Unregister removes a subscriber. Removing an unknown subscriber is a no-op.
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	n := len(h.conns)
	h.mu.Unlock()

	if ok {
		h.metrics.SetSubscribers(n)
		h.logger.Info().Int("subscribers", n).Msg("subscriber disconnected")
	}
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Push sends the snapshot once to every subscriber. Subscribers whose send fails
// are removed and closed after the round; they are not retried.
func (h *Hub) Push(snap cache.Snapshot) PushResult {
	payload, err := EncodeSnapshot(snap)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode snapshot")
		return PushResult{}
	}
	return h.PushRaw(payload)
}

// PushRaw fans out an already encoded payload. Sends run concurrently, so the
// round lasts about as long as the slowest single send.
func (h *Hub) PushRaw(payload []byte) PushResult {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var (
		mu   sync.Mutex
		res  PushResult
		dead []Conn
		g    errgroup.Group
	)
	g.SetLimit(maxParallelSends)
	for _, c := range targets {
		g.Go(func() error {
			err := c.Send(payload)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				h.logger.Debug().Err(err).Msg("send failed, pruning subscriber")
				dead = append(dead, c)
				return nil
			}
			res.Delivered++
			return nil
		})
	}
	_ = g.Wait()

	if len(dead) == 0 {
		return res
	}

	h.mu.Lock()
	for _, c := range dead {
		if _, ok := h.conns[c]; ok {
			delete(h.conns, c)
			res.Pruned++
		}
	}
	n := len(h.conns)
	h.mu.Unlock()

	for _, c := range dead {
		_ = c.Close()
	}

	h.metrics.SetSubscribers(n)
	h.metrics.RecordPruned(res.Pruned)
	h.logger.Info().Int("pruned", res.Pruned).Int("subscribers", n).Msg("pruned failed subscribers")
	return res
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[Conn]struct{})
	h.mu.Unlock()

	for c := range conns {
		_ = c.Close()
	}
	h.metrics.SetSubscribers(0)
}
