package telemetry

import "time"

// Appender is the ingestion side of the store.
type Appender interface {
	Append(channel Channel, value float64, timestamp time.Time) error
	Record(channel Channel, value float64) (Measurement, error)
	Channels() []Channel
}

// Snapshotter is the read side of the store.
type Snapshotter interface {
	Snapshot() Snapshot
}

// Channel names one time series of a sensor quantity.
type Channel string

// Measurement is one timestamped reading. It is a value type and never
// changes once created.
type Measurement struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Snapshot is an independent copy of every channel at one point in the
// sequence of appends. It shares no memory with the store.
type Snapshot struct {
	Taken  time.Time
	order  []Channel
	series map[Channel][]Measurement
}

// Channels returns the channel names in store order.
func (s Snapshot) Channels() []Channel {
	out := make([]Channel, len(s.order))
	copy(out, s.order)
	return out
}

// Channel returns the measurements of one channel in append order.
func (s Snapshot) Channel(name Channel) []Measurement {
	return s.series[name]
}

// Len returns the number of measurements in one channel.
func (s Snapshot) Len(name Channel) int {
	return len(s.series[name])
}

// Total returns the number of measurements across all channels.
func (s Snapshot) Total() int {
	n := 0
	for _, series := range s.series {
		n += len(series)
	}
	return n
}
