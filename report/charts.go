package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/andrewhamaty/qqq-voo-monte-carlo/core"
	"github.com/andrewhamaty/qqq-voo-monte-carlo/models"
)

const (
	DefaultMaxPaths  = 1_000
	DefaultPathAlpha = 0.1
	DefaultFillAlpha = 0.35

	defaultWidth  = 10 * vg.Inch
	defaultHeight = 6 * vg.Inch
)

var (
	ErrNothingToPlot = errors.New("nothing to plot")

	defaultPathColor = color.NRGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
)

// ChartOptions are shared by every chart kind. Empty fields fall back to defaults.
type ChartOptions struct {
	Title  string
	XLabel string
	YLabel string
	Width  vg.Length
	Height vg.Length
}

type PathChartOptions struct {
	ChartOptions
	MaxPaths int
	Color    color.Color
	Alpha    float64 // 0..1
}

type DensityChartOptions struct {
	ChartOptions
	FillAlpha float64 // 0..1
}

// Chart is a rendered plot ready to be written out.
type Chart struct {
	plot   *plot.Plot
	width  vg.Length
	height vg.Length
	Series int // number of lines drawn
}

// PathChart overlays up to MaxPaths simulated paths of e over the day axis, one translucent line each.
func PathChart(e *core.Ensemble, opts PathChartOptions) (*Chart, error) {
	sims, days := e.Dims()
	if sims == 0 || days == 0 {
		return nil, fmt.Errorf("%w: empty ensemble", ErrNothingToPlot)
	}

	maxPaths := opts.MaxPaths
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}
	alpha := opts.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultPathAlpha
	}
	base := opts.Color
	if base == nil {
		base = defaultPathColor
	}

	p := plot.New()
	applyLabels(p, opts.ChartOptions,
		fmt.Sprintf("%s: %d simulated paths", e.Ticker, min(sims, maxPaths)),
		"Trading day",
		"Price",
	)

	lineColor := withAlpha(base, alpha)
	n := min(sims, maxPaths)
	for sim := range n {
		path := e.Path(sim)
		xys := make(plotter.XYs, len(path))
		for day, price := range path {
			xys[day].X = float64(day)
			xys[day].Y = price
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("error building path %d: %w", sim, err)
		}
		line.Color = lineColor
		line.Width = vg.Points(0.5)
		p.Add(line)
	}

	return newChart(p, opts.ChartOptions, n), nil
}

// DensityChart draws one filled density curve per instrument over the terminal value axis.
func DensityChart(curves []models.DensityCurve, opts DensityChartOptions) (*Chart, error) {
	if len(curves) == 0 {
		return nil, fmt.Errorf("%w: no density curves", ErrNothingToPlot)
	}

	fillAlpha := opts.FillAlpha
	if fillAlpha <= 0 || fillAlpha > 1 {
		fillAlpha = DefaultFillAlpha
	}

	labels := make([]string, 0, len(curves))
	for _, c := range curves {
		labels = append(labels, c.Label)
	}

	p := plot.New()
	applyLabels(p, opts.ChartOptions,
		"Terminal value density: "+strings.Join(labels, " vs "),
		"Terminal value",
		"Density",
	)
	p.Legend.Top = true

	for i, c := range curves {
		if len(c.X) != len(c.Y) || len(c.X) == 0 {
			return nil, fmt.Errorf("%w: curve %s has %d x and %d y values", ErrNothingToPlot, c.Label, len(c.X), len(c.Y))
		}

		xys := make(plotter.XYs, len(c.X))
		for j := range c.X {
			xys[j].X = c.X[j]
			xys[j].Y = c.Y[j]
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("error building density for %s: %w", c.Label, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		line.FillColor = withAlpha(plotutil.Color(i), fillAlpha)

		p.Add(line)
		p.Legend.Add(c.Label, line)
	}

	return newChart(p, opts.ChartOptions, len(curves)), nil
}

// Save writes the chart to path, the extension picks the format (png, svg, pdf, jpg).
func (c *Chart) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating chart directory: %w", err)
		}
	}

	if err := c.plot.Save(c.width, c.height, path); err != nil {
		return fmt.Errorf("error saving chart %s: %w", path, err)
	}
	return nil
}

// Render writes the chart in format to w.
func (c *Chart) Render(w io.Writer, format string) (int64, error) {
	wt, err := c.plot.WriterTo(c.width, c.height, format)
	if err != nil {
		return 0, fmt.Errorf("error rendering chart as %s: %w", format, err)
	}
	return wt.WriteTo(w)
}

func newChart(p *plot.Plot, opts ChartOptions, series int) *Chart {
	c := &Chart{plot: p, width: opts.Width, height: opts.Height, Series: series}
	if c.width <= 0 {
		c.width = defaultWidth
	}
	if c.height <= 0 {
		c.height = defaultHeight
	}
	return c
}

func applyLabels(p *plot.Plot, opts ChartOptions, title, xLabel, yLabel string) {
	p.Title.Text = pick(opts.Title, title)
	p.X.Label.Text = pick(opts.XLabel, xLabel)
	p.Y.Label.Text = pick(opts.YLabel, yLabel)
	p.Add(plotter.NewGrid())
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func withAlpha(c color.Color, alpha float64) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(alpha * 255)
	return n
}
