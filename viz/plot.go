package viz

import (
	"fmt"
	"image/color"
	"math"

	"github.com/milosgajdos/go-bsp/belief"
	"github.com/milosgajdos/go-bsp/trajectory"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Time selects time step as plot axis
const Time = -1

// Plot saves trajectory plots to image files
type Plot struct {
	// Path is output file path; its extension selects the image format
	Path string
	// X is mean component plotted on X axis, or Time
	X int
	// Y is mean component plotted on Y axis
	Y int
	// Width is image width
	Width vg.Length
	// Height is image height
	Height vg.Length
}

// NewPlotter creates new Plot visualizer which saves plots to path and returns it.
func NewPlotter(path string, x, y int) *Plot {
	return &Plot{
		Path:   path,
		X:      x,
		Y:      y,
		Width:  6 * vg.Inch,
		Height: 6 * vg.Inch,
	}
}

// Show saves the plot of trajectory tr.
func (p *Plot) Show(tr *trajectory.Trajectory) error {
	plt, err := New2DPlot(tr, p.X, p.Y)
	if err != nil {
		return err
	}

	return plt.Save(p.Width, p.Height, p.Path)
}

// New2DPlot creates new plot of belief trajectory tr with mean component x on X axis
// and mean component y on Y axis. Belief standard deviations are drawn as error bars.
// It returns error if the plot fails to be created. This can be due to either of the following conditions:
// * tr is nil or invalid
// * x or y is not a valid mean component
// * gonum plot fails to be created
func New2DPlot(tr *trajectory.Trajectory, x, y int) (*plot.Plot, error) {
	if tr == nil {
		return nil, fmt.Errorf("Invalid trajectory supplied")
	}

	if err := tr.Validate(); err != nil {
		return nil, err
	}

	if x < Time || x >= tr.Nx || y < 0 || y >= tr.Nx {
		return nil, fmt.Errorf("Invalid plot axes: %d, %d", x, y)
	}

	pts, err := makePoints(tr, x, y)
	if err != nil {
		return nil, err
	}

	p := plot.New()

	p.Title.Text = "Belief trajectory"
	p.X.Label.Text = axisLabel(x)
	p.Y.Label.Text = axisLabel(y)

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	// Make a line plotter for the mean path
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Color = color.RGBA{R: 169, G: 169, B: 169, A: 255}
	p.Add(line)
	p.Legend.Add("path", line)

	// Make a scatter plotter for belief means
	meanScatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	meanScatter.GlyphStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	meanScatter.Shape = draw.PyramidGlyph{}
	meanScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(meanScatter)
	p.Legend.Add("mean", meanScatter)

	// Make error bars for belief uncertainty
	yErrs, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return nil, fmt.Errorf("Failed to create error bars: %v", err)
	}
	yErrs.LineStyle.Color = color.RGBA{G: 255, A: 128}
	p.Add(yErrs)

	if x != Time {
		xErrs, err := plotter.NewXErrorBars(pts)
		if err != nil {
			return nil, fmt.Errorf("Failed to create error bars: %v", err)
		}
		xErrs.LineStyle.Color = color.RGBA{G: 255, A: 128}
		p.Add(xErrs)
	}

	return p, nil
}

// points are belief means with their standard deviations
type points struct {
	plotter.XYs
	plotter.XErrors
	plotter.YErrors
}

func makePoints(tr *trajectory.Trajectory, x, y int) (*points, error) {
	T := tr.Len()
	pts := &points{
		XYs:     make(plotter.XYs, T),
		XErrors: make(plotter.XErrors, T),
		YErrors: make(plotter.YErrors, T),
	}

	for t := 0; t < T; t++ {
		b, err := belief.FromVec(tr.Nx, tr.Beliefs[t])
		if err != nil {
			return nil, err
		}
		mean, cov := b.Mean(), b.Cov()

		pts.XYs[t].X = float64(t)
		if x != Time {
			pts.XYs[t].X = mean.AtVec(x)
			sx := math.Sqrt(math.Max(cov.At(x, x), 0))
			pts.XErrors[t].Low, pts.XErrors[t].High = -sx, sx
		}

		pts.XYs[t].Y = mean.AtVec(y)
		sy := math.Sqrt(math.Max(cov.At(y, y), 0))
		pts.YErrors[t].Low, pts.YErrors[t].High = -sy, sy
	}

	return pts, nil
}

func axisLabel(i int) string {
	if i == Time {
		return "t"
	}

	return fmt.Sprintf("x%d", i)
}
