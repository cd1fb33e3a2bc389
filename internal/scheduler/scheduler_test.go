package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFiresImmediatelyAndOnInterval(t *testing.T) {
	s := New(Options{Interval: 20 * time.Millisecond, Immediate: true}, zerolog.Nop())

	var ticks atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, func(ctx context.Context, at time.Time) error {
		ticks.Add(1)
		return nil
	})
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.GreaterOrEqual(t, ticks.Load(), int32(3))
}

func TestRunDoesNotWaitForSlowTicks(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	var started atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	_ = s.Run(ctx, func(ctx context.Context, at time.Time) error {
		started.Add(1)
		<-ctx.Done()
		return nil
	})
	assert.GreaterOrEqual(t, started.Load(), int32(2), "timer kept firing while earlier ticks were blocked")
}

func TestRunStopsDuringStartupDelay(t *testing.T) {
	s := New(Options{Interval: time.Second, StartupDelay: time.Hour, Immediate: true}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Run(ctx, func(ctx context.Context, at time.Time) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: 5 * time.Second, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2026, 1, 1, 0, 0, 3, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC), s.nextTick(now))

	onBoundary := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 15, 0, time.UTC), s.nextTick(onBoundary))
}

func TestNewPanicsOnInvalidInterval(t *testing.T) {
	assert.Panics(t, func() { New(Options{}, zerolog.Nop()) })
}
