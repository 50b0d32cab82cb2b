package render

import (
	"math"

	"codeberg.org/mutker/vitalsd/internal/telemetry"
)

// Point is one plotted coordinate: seconds since the first measurement of
// the series, and the measured value.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Points converts a channel's measurements into plot coordinates. Non-finite
// values are skipped; the origin is still the first measurement.
func Points(measurements []telemetry.Measurement) []Point {
	if len(measurements) == 0 {
		return nil
	}

	t0 := measurements[0].Timestamp
	points := make([]Point, 0, len(measurements))
	for _, m := range measurements {
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			continue
		}
		points = append(points, Point{
			X: m.Timestamp.Sub(t0).Seconds(),
			Y: m.Value,
		})
	}

	return points
}
