package archive

import (
	"context"

	"codeberg.org/mutker/vitalsd/internal/telemetry"
)

// Recorder keeps a write-only copy of accepted measurements. Nothing is ever
// read back into the live store.
type Recorder interface {
	Record(ctx context.Context, channel telemetry.Channel, m telemetry.Measurement) error
	Close() error
	Enabled() bool
}

// Repository is the storage behind an enabled Recorder.
type Repository interface {
	Insert(r Reading) error
	Close() error
}

// Reading is one archived row.
type Reading struct {
	Channel   telemetry.Channel
	Timestamp int64 // Unix nanoseconds
	Value     float64
}

func newReading(channel telemetry.Channel, m telemetry.Measurement) Reading {
	return Reading{
		Channel:   channel,
		Timestamp: m.Timestamp.UnixNano(),
		Value:     m.Value,
	}
}
