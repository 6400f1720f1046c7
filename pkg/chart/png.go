package chart

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	pngWidth  = 6 * vg.Inch
	pngHeight = 4 * vg.Inch
	barWidth  = 24
)

// WritePNG renders a histogram spec as grouped bars
func WritePNG(w io.Writer, spec HistogramSpec) error {
	p := plot.New()
	p.Title.Text = spec.Title
	p.X.Label.Text = spec.XAxis
	p.Y.Label.Text = spec.YAxis
	p.Y.Min = 0
	p.Legend.Top = true

	width := vg.Points(barWidth)
	n := len(spec.Series)
	for i, series := range spec.Series {
		values := make(plotter.Values, len(series.Values))
		copy(values, series.Values)

		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return fmt.Errorf("building %s bars: %w", series.Name, err)
		}
		bars.Color = parseHex(series.Color)
		bars.LineStyle.Width = vg.Length(0)
		// Centre the group of bars on each category tick
		bars.Offset = width * vg.Length(2*i-n+1) / 2

		p.Add(bars)
		p.Legend.Add(series.Name, bars)
	}

	if len(spec.Categories) > 0 {
		p.NominalX(spec.Categories...)
	}

	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("rendering %s: %w", spec.Title, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// parseHex reads #RRGGBB, falling back to grey
func parseHex(s string) color.Color {
	if len(s) != 7 || s[0] != '#' {
		return color.Gray{Y: 128}
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.Gray{Y: 128}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
