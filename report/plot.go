package report

import (
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/poissonmle/pkg/errors"
)

const (
	plotWidth  = 6 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// CoefficientPlot draws grouped bars per covariate: the true value (when
// known), the hand-rolled estimate and the reference estimate.
func (c *Comparison) CoefficientPlot() (*plot.Plot, error) {
	if len(c.Rows) == 0 {
		return nil, errors.NewValueError("CoefficientPlot", "no coefficients to plot")
	}

	type series struct {
		label  string
		values plotter.Values
	}
	var groups []series
	if c.HasTrue() {
		groups = append(groups, series{label: "true"})
	}
	groups = append(groups, series{label: "estimate"}, series{label: "reference"})

	names := make([]string, len(c.Rows))
	for j, r := range c.Rows {
		names[j] = r.Name
		i := 0
		if r.True != nil {
			groups[i].values = append(groups[i].values, float64(*r.True))
			i++
		}
		groups[i].values = append(groups[i].values, float64(r.Estimate))
		groups[i+1].values = append(groups[i+1].values, float64(r.Reference))
	}

	p := plot.New()
	p.Title.Text = "Coefficients"
	p.Y.Label.Text = "value"

	width := vg.Points(12)
	for i, g := range groups {
		bars, err := plotter.NewBarChart(g.values, width)
		if err != nil {
			return nil, errors.Wrapf(err, "bar chart %s", g.label)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = vg.Length(float64(i)-float64(len(groups)-1)/2) * width
		p.Add(bars)
		p.Legend.Add(g.label, bars)
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.NominalX(names...)
	return p, nil
}

// TracePlot draws the objective value against the optimizer iteration.
func (c *Comparison) TracePlot() (*plot.Plot, error) {
	if len(c.Trace) == 0 {
		return nil, errors.NewValueError("TracePlot", "no optimizer trace recorded")
	}

	pts := make(plotter.XYs, len(c.Trace))
	for i, tp := range c.Trace {
		pts[i].X = float64(tp.Iteration)
		pts[i].Y = tp.F
	}

	p := plot.New()
	p.Title.Text = "Objective trace"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "mean negative log-likelihood"
	p.Add(plotter.NewGrid())
	if err := plotutil.AddLinePoints(p, "objective", pts); err != nil {
		return nil, errors.Wrap(err, "trace line")
	}
	return p, nil
}

// SavePlot writes p to path; the format follows the file extension
// (png, svg, pdf, ...).
func SavePlot(p *plot.Plot, path string) error {
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return errors.Wrapf(err, "save plot %s", filepath.Base(path))
	}
	return nil
}

// WritePlot renders p in the given format ("png", "svg", ...) to w.
func WritePlot(p *plot.Plot, w io.Writer, format string) error {
	wt, err := p.WriterTo(plotWidth, plotHeight, strings.ToLower(format))
	if err != nil {
		return errors.Wrapf(err, "render %s", format)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write plot")
	}
	return nil
}
