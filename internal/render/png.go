package render

import (
	"bytes"
	"fmt"
	"strconv"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Renderer turns a chart into an encoded image.
type Renderer interface {
	Render(chart Chart) ([]byte, error)
}

// dpi is the resolution of the raster canvas; sizes in Options are pixels.
const dpi = 96

// PNGRenderer draws charts as PNG images.
type PNGRenderer struct{}

func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{}
}

// Render draws every series as a line with point markers and labels the last
// point of each series with its coordinates. Axes are fixed to the chart
// options regardless of the data.
func (r *PNGRenderer) Render(chart Chart) ([]byte, error) {
	errFactory := errors.New()

	if err := chart.Options.Validate(); err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = chart.Title
	p.X.Label.Text = "seconds"
	p.Y.Tick.Marker = oneDecimalTicks{}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for _, s := range chart.Series {
		style := plotter.DefaultLineStyle
		style.Color = s.rgba
		style.Width = vg.Points(1.5)

		p.Legend.Add(string(s.Channel), &plotter.Line{LineStyle: style})

		last, ok := s.Last()
		if !ok {
			continue
		}

		xys := make(plotter.XYs, len(s.Points))
		for i, pt := range s.Points {
			xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, errFactory.Wrap(ErrDrawFailed, err)
		}
		line.LineStyle = style

		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, errFactory.Wrap(ErrDrawFailed, err)
		}
		scatter.GlyphStyle.Color = s.rgba
		scatter.GlyphStyle.Radius = vg.Points(2.5)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}

		labels, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    plotter.XYs{{X: last.X, Y: last.Y}},
			Labels: []string{fmt.Sprintf("(%.1f, %.1f)", last.X, last.Y)},
		})
		if err != nil {
			return nil, errFactory.Wrap(ErrDrawFailed, err)
		}
		labels.Offset = vg.Point{X: vg.Points(6)}

		p.Add(line, scatter, labels)
	}

	// Set after Add, which widens the axes to the data.
	p.X.Min, p.X.Max = 0, chart.Options.XMax
	p.Y.Min, p.Y.Max = 0, chart.Options.YMax

	w := vg.Length(chart.Options.Width) * vg.Inch / dpi
	h := vg.Length(chart.Options.Height) * vg.Inch / dpi

	canvas := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(dpi))
	p.Draw(draw.New(canvas))

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(&buf); err != nil {
		return nil, errFactory.Wrap(ErrEncodeFailed, err)
	}

	return buf.Bytes(), nil
}

// oneDecimalTicks labels major ticks with one decimal place.
type oneDecimalTicks struct{}

func (oneDecimalTicks) Ticks(lo, hi float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(lo, hi)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = strconv.FormatFloat(ticks[i].Value, 'f', 1, 64)
		}
	}
	return ticks
}
