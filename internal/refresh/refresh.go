// Package refresh drives the chart refresh cadence.
package refresh

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/logger"
)

const ErrInvalidInterval = errors.ErrInvalidInterval

// State is the scheduler's position in its two-state cycle.
type State int32

const (
	Sleeping State = iota
	Signaling
)

func (s State) String() string {
	switch s {
	case Sleeping:
		return "sleeping"
	case Signaling:
		return "signaling"
	default:
		return "unknown"
	}
}

// Stats counts signal outcomes since the scheduler was created.
type Stats struct {
	Delivered uint64
	Dropped   uint64
}

// Scheduler emits one payload-free signal per interval to a single consumer.
//
// Delivery is a non-blocking send on an unbuffered channel: a tick is
// delivered only if the consumer is parked on Signals() at that moment,
// otherwise it is dropped. The timer is re-armed for a full interval after
// every attempt, so two deliveries are never closer than the interval and
// missed ticks never pile up.
type Scheduler struct {
	interval time.Duration
	signals  chan struct{}
	state    atomic.Int32

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a scheduler. It does nothing until Run is called.
func New(interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New().WithData(ErrInvalidInterval, interval)
	}

	return &Scheduler{
		interval: interval,
		signals:  make(chan struct{}),
	}, nil
}

// Signals returns the channel the consumer listens on.
func (s *Scheduler) Signals() <-chan struct{} {
	return s.signals
}

// Interval returns the configured refresh interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// State returns the current state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Stats returns the delivered and dropped counts.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
	}
}

// Run loops until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	logger.Debug().Dur("interval", s.interval).Msg("Refresh scheduler started")

	for {
		s.state.Store(int32(Sleeping))

		select {
		case <-ctx.Done():
			logger.Debug().
				Uint64("delivered", s.delivered.Load()).
				Uint64("dropped", s.dropped.Load()).
				Msg("Refresh scheduler stopped")
			return
		case <-timer.C:
			s.state.Store(int32(Signaling))
			s.signal()
			timer.Reset(s.interval)
		}
	}
}

func (s *Scheduler) signal() {
	select {
	case s.signals <- struct{}{}:
		s.delivered.Add(1)
	default:
		s.dropped.Add(1)
		logger.Debug().Msg("Refresh consumer busy, tick dropped")
	}
}
