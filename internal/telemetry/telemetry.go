package telemetry

import (
	"sync"
	"time"

	"codeberg.org/mutker/vitalsd/internal/errors"
)

// Store holds the measurement sequences of a fixed set of channels.
//
// Every mutation and the copy-out step of Snapshot go through mu, and mu is
// held for nothing else. A critical section that does not run to completion
// poisons the store; any later operation panics with ErrStorePoisoned.
type Store struct {
	// Immutable after NewStore.
	order []Channel
	known map[Channel]struct{}
	now   func() time.Time

	mu       sync.Mutex
	series   map[Channel][]Measurement
	poisoned bool
}

type StoreOption func(*Store)

// WithClock replaces time.Now as the source of receipt timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store for the given channel names.
func NewStore(channels []Channel, opts ...StoreOption) (*Store, error) {
	errFactory := errors.New()

	if len(channels) == 0 {
		return nil, errFactory.WithMessage(ErrInvalidChannelSet, "at least one channel is required")
	}

	s := &Store{
		order:  make([]Channel, 0, len(channels)),
		known:  make(map[Channel]struct{}, len(channels)),
		series: make(map[Channel][]Measurement, len(channels)),
		now:    time.Now,
	}

	for _, ch := range channels {
		if ch == "" {
			return nil, errFactory.WithMessage(ErrInvalidChannelSet, "channel names must not be empty")
		}
		if _, dup := s.known[ch]; dup {
			return nil, errFactory.WithData(ErrInvalidChannelSet, ch)
		}
		s.known[ch] = struct{}{}
		s.order = append(s.order, ch)
		s.series[ch] = nil
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Channels returns the fixed channel set in construction order.
func (s *Store) Channels() []Channel {
	out := make([]Channel, len(s.order))
	copy(out, s.order)
	return out
}

// Append adds one measurement to the named channel.
func (s *Store) Append(channel Channel, value float64, timestamp time.Time) error {
	if err := s.check(channel); err != nil {
		return err
	}

	m := Measurement{Timestamp: timestamp, Value: value}
	s.locked(func() {
		s.series[channel] = append(s.series[channel], m)
	})

	return nil
}

// Record appends value to the named channel, stamped with the store clock
// while the lock is held. Timestamps within a channel are therefore
// non-decreasing in append order.
func (s *Store) Record(channel Channel, value float64) (Measurement, error) {
	if err := s.check(channel); err != nil {
		return Measurement{}, err
	}

	var m Measurement
	s.locked(func() {
		m = Measurement{Timestamp: s.now(), Value: value}
		s.series[channel] = append(s.series[channel], m)
	})

	return m, nil
}

// Snapshot copies out the whole store. The lock covers the copy only.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		order:  s.order,
		series: make(map[Channel][]Measurement, len(s.order)),
	}

	s.locked(func() {
		snap.Taken = s.now()
		for ch, series := range s.series {
			cp := make([]Measurement, len(series))
			copy(cp, series)
			snap.series[ch] = cp
		}
	})

	return snap
}

func (s *Store) check(channel Channel) error {
	if _, ok := s.known[channel]; !ok {
		return errors.New().WithData(ErrUnknownChannel, channel)
	}
	return nil
}

// locked runs fn under the store lock. Defers run in reverse order, so the
// poison flag is set before the lock is released.
func (s *Store) locked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		panic(errors.New().New(ErrStorePoisoned))
	}

	completed := false
	defer func() {
		if !completed {
			s.poisoned = true
		}
	}()

	fn()
	completed = true
}
