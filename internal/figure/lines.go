package figure

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// XYs pairs xs and ys, dropping points where either is not finite.
func XYs(xs, ys []float64) plotter.XYs {
	n := min(len(xs), len(ys))
	out := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		if finite(xs[i]) && finite(ys[i]) {
			out = append(out, plotter.XY{X: xs[i], Y: ys[i]})
		}
	}
	return out
}

// AddLine draws ys against xs in the i-th cycle colour and adds it to the
// legend when label is not empty.
func AddLine(p *plot.Plot, xs, ys []float64, i int, label string) (*plotter.Line, error) {
	l, err := plotter.NewLine(XYs(xs, ys))
	if err != nil {
		return nil, fmt.Errorf("figure: %w", err)
	}
	l.Color = Color(i)
	l.Width = vg.Points(1.5)
	p.Add(l)
	if label != "" {
		p.Legend.Add(label, l)
	}
	return l, nil
}

// AddStep draws a histogram-style line centred on each x, like
// matplotlib's steps-mid.
func AddStep(p *plot.Plot, xs, ys []float64, i int, label string) (*plotter.Line, error) {
	l, err := AddLine(p, xs, ys, i, label)
	if err != nil {
		return nil, err
	}
	l.StepStyle = plotter.MidStep
	return l, nil
}

// AddDashed draws a dashed line.
func AddDashed(p *plot.Plot, xs, ys []float64, i int, label string) (*plotter.Line, error) {
	l, err := AddLine(p, xs, ys, i, label)
	if err != nil {
		return nil, err
	}
	l.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
	return l, nil
}

// AddPoints draws markers with shape glyph.
func AddPoints(p *plot.Plot, xs, ys []float64, i int, glyph draw.GlyphDrawer, label string) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(XYs(xs, ys))
	if err != nil {
		return nil, fmt.Errorf("figure: %w", err)
	}
	s.GlyphStyle.Color = Color(i)
	s.GlyphStyle.Radius = vg.Points(2.5)
	if glyph != nil {
		s.GlyphStyle.Shape = glyph
	}
	p.Add(s)
	if label != "" {
		p.Legend.Add(label, s)
	}
	return s, nil
}

type errPoints struct {
	plotter.XYs
	plotter.YErrors
}

// AddErrorBars draws points joined by a line with symmetric y errors.
func AddErrorBars(p *plot.Plot, xs, ys, errs []float64, i int, label string) error {
	n := min(len(xs), len(ys), len(errs))
	var pts errPoints
	for j := 0; j < n; j++ {
		if !finite(xs[j]) || !finite(ys[j]) {
			continue
		}
		e := errs[j]
		if !finite(e) {
			e = 0
		}
		pts.XYs = append(pts.XYs, plotter.XY{X: xs[j], Y: ys[j]})
		pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{e, e})
	}
	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	bars.Color = Color(i)
	l, s, err := plotter.NewLinePoints(pts.XYs)
	if err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	l.Color = Color(i)
	s.GlyphStyle.Color = Color(i)
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(l, s, bars)
	if label != "" {
		p.Legend.Add(label, l, s)
	}
	return nil
}

// AddFunction plots f across the x range of the plot.
func AddFunction(p *plot.Plot, f func(float64) float64, i int, label string) *plotter.Function {
	fn := plotter.NewFunction(f)
	fn.Color = Color(i)
	fn.Width = vg.Points(1.5)
	fn.Samples = 200
	p.Add(fn)
	if label != "" {
		p.Legend.Add(label, fn)
	}
	return fn
}

func guide(p *plot.Plot, pts plotter.XYs, c color.Color) error {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	l.Color = c
	l.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(l)
	return nil
}

// VLine draws a dashed vertical line between ylo and yhi.
func VLine(p *plot.Plot, x, ylo, yhi float64, c color.Color) error {
	return guide(p, plotter.XYs{{X: x, Y: ylo}, {X: x, Y: yhi}}, c)
}

// HLine draws a dashed horizontal line between xlo and xhi.
func HLine(p *plot.Plot, y, xlo, xhi float64, c color.Color) error {
	return guide(p, plotter.XYs{{X: xlo, Y: y}, {X: xhi, Y: y}}, c)
}

// Annotate writes text at (x, y) in data coordinates.
func Annotate(p *plot.Plot, x, y float64, text string) error {
	l, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: x, Y: y}},
		Labels: []string{text},
	})
	if err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	p.Add(l)
	return nil
}

// AddGrid draws major grid lines.
func AddGrid(p *plot.Plot) {
	g := plotter.NewGrid()
	g.Vertical.Color = color.Gray{Y: 210}
	g.Horizontal.Color = color.Gray{Y: 210}
	p.Add(g)
}

type xyErrPoints struct {
	plotter.XYs
	plotter.XErrors
	plotter.YErrors
}

func symmetric(e float64) struct{ Low, High float64 } {
	if !finite(e) {
		e = 0
	}
	return struct{ Low, High float64 }{e, e}
}

// AddStepErrors draws a steps-mid line with y error bars at each point.
func AddStepErrors(p *plot.Plot, xs, ys, errs []float64, i int, label string) error {
	l, err := AddStep(p, xs, ys, i, label)
	if err != nil {
		return err
	}
	var pts errPoints
	for j := 0; j < min(len(xs), len(ys), len(errs)); j++ {
		if finite(xs[j]) && finite(ys[j]) {
			pts.XYs = append(pts.XYs, plotter.XY{X: xs[j], Y: ys[j]})
			pts.YErrors = append(pts.YErrors, symmetric(errs[j]))
		}
	}
	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	bars.Color = l.Color
	p.Add(bars)
	return nil
}

// AddXYErrors draws markers with error bars on both axes.
func AddXYErrors(p *plot.Plot, xs, ys, xerrs, yerrs []float64, i int, glyph draw.GlyphDrawer, label string) error {
	var pts xyErrPoints
	n := min(len(xs), len(ys), len(xerrs), len(yerrs))
	for j := 0; j < n; j++ {
		if !finite(xs[j]) || !finite(ys[j]) {
			continue
		}
		pts.XYs = append(pts.XYs, plotter.XY{X: xs[j], Y: ys[j]})
		pts.XErrors = append(pts.XErrors, symmetric(xerrs[j]))
		pts.YErrors = append(pts.YErrors, symmetric(yerrs[j]))
	}
	s, err := plotter.NewScatter(pts.XYs)
	if err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	s.GlyphStyle.Color = Color(i)
	s.GlyphStyle.Radius = vg.Points(2.5)
	if glyph != nil {
		s.GlyphStyle.Shape = glyph
	}
	xb, err := plotter.NewXErrorBars(pts)
	if err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	yb, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	xb.Color = Color(i)
	yb.Color = Color(i)
	p.Add(s, xb, yb)
	if label != "" {
		p.Legend.Add(label, s)
	}
	return nil
}

// Log10 returns log10 of every value; non-positive values give NaN.
func Log10(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if x > 0 {
			out[i] = math.Log10(x)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}
