package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher forwards notifications, suppressing repeats for the same asset and
// direction inside the cooldown window.
type Dispatcher struct {
	notifier Notifier
	cooldown time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewDispatcher wraps notifier with a per-asset cooldown.
func NewDispatcher(notifier Notifier, cooldown time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		cooldown: cooldown,
		logger:   logger.With().Str("component", "alert_dispatcher").Logger(),
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Dispatch sends note unless an alert for the same asset and direction went out
// within the cooldown. It reports whether the notification was sent.
func (d *Dispatcher) Dispatch(ctx context.Context, note Notification) (bool, error) {
	key := note.Asset + "|" + note.Direction
	now := d.now()

	d.mu.Lock()
	if at, ok := d.last[key]; ok && d.cooldown > 0 && now.Sub(at) < d.cooldown {
		d.mu.Unlock()
		d.logger.Debug().Str("asset", note.Asset).Msg("alert suppressed by cooldown")
		return false, nil
	}
	d.last[key] = now
	d.mu.Unlock()

	if err := d.notifier.Notify(ctx, note); err != nil {
		d.mu.Lock()
		delete(d.last, key)
		d.mu.Unlock()
		return false, err
	}
	return true, nil
}
