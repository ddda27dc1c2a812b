package viz

import (
	"fmt"
	"io"

	"github.com/guptarohit/asciigraph"
	"github.com/milosgajdos/go-bsp/belief"
	"github.com/milosgajdos/go-bsp/trajectory"
)

// seriesColors are colors of mean component graphs; legends need one color per series
var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Blue,
	asciigraph.Red,
	asciigraph.Green,
	asciigraph.Yellow,
	asciigraph.Magenta,
	asciigraph.Cyan,
}

// ASCII renders trajectory means and uncertainty as terminal graphs
type ASCII struct {
	// W is graph output
	W io.Writer
	// Height is graph height in lines
	Height int
	// Width is graph width in columns; zero keeps one column per step
	Width int
}

// NewASCII creates new ASCII visualizer writing to w and returns it.
func NewASCII(w io.Writer) *ASCII {
	return &ASCII{
		W:      w,
		Height: 10,
	}
}

// Show writes graphs of belief means and covariance trace of trajectory tr.
func (a *ASCII) Show(tr *trajectory.Trajectory) error {
	if tr == nil {
		return fmt.Errorf("invalid trajectory supplied")
	}

	if err := tr.Validate(); err != nil {
		return err
	}

	T := tr.Len()
	means := make([][]float64, tr.Nx)
	legends := make([]string, tr.Nx)
	colors := make([]asciigraph.AnsiColor, tr.Nx)
	for i := range means {
		means[i] = make([]float64, T)
		legends[i] = fmt.Sprintf("x%d", i)
		colors[i] = seriesColors[i%len(seriesColors)]
	}

	traces := make([]float64, T)
	for t := 0; t < T; t++ {
		b, err := belief.FromVec(tr.Nx, tr.Beliefs[t])
		if err != nil {
			return err
		}
		mean := b.Mean()
		for i := range means {
			means[i][t] = mean.AtVec(i)
		}
		traces[t] = b.Trace()
	}

	opts := []asciigraph.Option{asciigraph.Height(a.Height)}
	if a.Width > 0 {
		opts = append(opts, asciigraph.Width(a.Width))
	}

	meanOpts := append([]asciigraph.Option{
		asciigraph.Caption("belief mean"),
		asciigraph.SeriesLegends(legends...),
		asciigraph.SeriesColors(colors...),
	}, opts...)
	if _, err := fmt.Fprintln(a.W, asciigraph.PlotMany(means, meanOpts...)); err != nil {
		return err
	}

	traceOpts := append([]asciigraph.Option{asciigraph.Caption("covariance trace")}, opts...)
	if _, err := fmt.Fprintln(a.W, asciigraph.Plot(traces, traceOpts...)); err != nil {
		return err
	}

	return nil
}
