package render

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/telemetry"
)

const (
	DefaultWidth  = 600
	DefaultHeight = 600
	DefaultXMax   = 1200.0
	DefaultYMax   = 120.0
)

// Options fixes the size and the axis ranges of a chart.
type Options struct {
	Width  int
	Height int
	XMax   float64
	YMax   float64
}

func DefaultOptions() Options {
	return Options{
		Width:  DefaultWidth,
		Height: DefaultHeight,
		XMax:   DefaultXMax,
		YMax:   DefaultYMax,
	}
}

func (o Options) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return errors.New().WithData(ErrInvalidOptions, fmt.Sprintf("size %dx%d", o.Width, o.Height))
	}
	if o.XMax <= 0 || o.YMax <= 0 {
		return errors.New().WithData(ErrInvalidOptions, fmt.Sprintf("range %gx%g", o.XMax, o.YMax))
	}
	return nil
}

// Series is the plotted form of one channel.
type Series struct {
	Channel telemetry.Channel `json:"channel"`
	Color   string            `json:"color"`
	Points  []Point           `json:"points"`

	rgba color.RGBA
}

// Last returns the most recent point of the series.
func (s Series) Last() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Chart is everything needed to draw one frame. It is derived from a single
// snapshot and never refers back to the store.
type Chart struct {
	Title   string    `json:"title"`
	Taken   time.Time `json:"taken"`
	Options Options   `json:"-"`
	Series  []Series  `json:"series"`
}

var (
	red    = color.RGBA{R: 0xff, A: 0xff}
	green  = color.RGBA{G: 0xb0, A: 0xff}
	blue   = color.RGBA{B: 0xff, A: 0xff}
	purple = color.RGBA{R: 0x80, B: 0x80, A: 0xff}
	orange = color.RGBA{R: 0xff, G: 0x8c, A: 0xff}
	teal   = color.RGBA{G: 0x80, B: 0x80, A: 0xff}
)

// Vital signs keep their usual colours; other channels take the fallback
// palette in store order.
var (
	channelColors = map[telemetry.Channel]color.RGBA{
		"bpm":         red,
		"oximetry":    green,
		"temperature": blue,
	}
	fallbackPalette = []color.RGBA{purple, orange, teal}
)

// NewChart builds a chart from a snapshot, one series per channel in store
// order.
func NewChart(snap telemetry.Snapshot, opts Options) Chart {
	channels := snap.Channels()

	chart := Chart{
		Taken:   snap.Taken,
		Options: opts,
		Series:  make([]Series, 0, len(channels)),
	}

	captions := make([]string, 0, len(channels))
	next := 0
	for _, ch := range channels {
		c, ok := channelColors[ch]
		if !ok {
			c = fallbackPalette[next%len(fallbackPalette)]
			next++
		}

		chart.Series = append(chart.Series, Series{
			Channel: ch,
			Color:   hex(c),
			Points:  Points(snap.Channel(ch)),
			rgba:    c,
		})
		captions = append(captions, fmt.Sprintf("%s (%s)", ch, colorName(c)))
	}
	chart.Title = strings.Join(captions, " & ")

	return chart
}

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func colorName(c color.RGBA) string {
	switch c {
	case red:
		return "red"
	case green:
		return "green"
	case blue:
		return "blue"
	case purple:
		return "purple"
	case orange:
		return "orange"
	case teal:
		return "teal"
	default:
		return hex(c)
	}
}
