package figure

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/cwbudde/m33-lines/astro/beam"
)

// Stretch maps a value normalised to [0, 1] onto the display range.
type Stretch func(float64) float64

// Linear is the identity stretch.
func Linear(x float64) float64 { return x }

// Asinh returns the asinh stretch asinh(x/a)/asinh(1/a).
func Asinh(a float64) Stretch {
	if a <= 0 {
		a = 0.1
	}
	norm := math.Asinh(1 / a)
	return func(x float64) float64 { return math.Asinh(x/a) / norm }
}

// Grid is a row-major image on pixel coordinates, with x fastest.
type Grid struct {
	Nx, Ny int
	Data   []float64
}

// Dims implements plotter.GridXYZ.
func (g Grid) Dims() (c, r int) { return g.Nx, g.Ny }

// Z implements plotter.GridXYZ.
func (g Grid) Z(c, r int) float64 { return g.Data[r*g.Nx+c] }

// X implements plotter.GridXYZ.
func (g Grid) X(c int) float64 { return float64(c) }

// Y implements plotter.GridXYZ.
func (g Grid) Y(r int) float64 { return float64(r) }

// ImageConfig controls Image.
type ImageConfig struct {
	Min, Max  float64 // NaN means data range
	Stretch   Stretch
	ColorMap  palette.ColorMap
	Label     string // colour bar label
	NaNColor  color.Color
	ShowColor bool
}

// ImageOption mutates an ImageConfig.
type ImageOption func(*ImageConfig)

// WithRange fixes the display limits.
func WithRange(lo, hi float64) ImageOption {
	return func(c *ImageConfig) { c.Min, c.Max = lo, hi }
}

// WithStretch sets the display stretch.
func WithStretch(s Stretch) ImageOption {
	return func(c *ImageConfig) { c.Stretch = s }
}

// WithColorMap sets the colour map.
func WithColorMap(cm palette.ColorMap) ImageOption {
	return func(c *ImageConfig) { c.ColorMap = cm }
}

// WithColorBar adds a labelled colour bar.
func WithColorBar(label string) ImageOption {
	return func(c *ImageConfig) {
		c.ShowColor = true
		c.Label = label
	}
}

// ImageFigure is an image plot with an optional colour bar.
type ImageFigure struct {
	Plot *plot.Plot
	Bar  *plot.Plot
}

// Image renders g as a heat map. Pixels outside [Min, Max] are clipped
// before the stretch is applied.
func Image(s Style, g Grid, opts ...ImageOption) (*ImageFigure, error) {
	cfg := ImageConfig{
		Min:      math.NaN(),
		Max:      math.NaN(),
		Stretch:  Linear,
		ColorMap: moreland.Kindlmann(),
		NaNColor: color.White,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if len(g.Data) != g.Nx*g.Ny {
		return nil, fmt.Errorf("figure: grid %dx%d has %d values", g.Nx, g.Ny, len(g.Data))
	}

	lo, hi := dataRange(g.Data)
	if !math.IsNaN(cfg.Min) {
		lo = cfg.Min
	}
	if !math.IsNaN(cfg.Max) {
		hi = cfg.Max
	}
	if !(hi > lo) {
		hi = lo + 1
	}

	stretched := Grid{Nx: g.Nx, Ny: g.Ny, Data: make([]float64, len(g.Data))}
	for i, v := range g.Data {
		if !finite(v) {
			stretched.Data[i] = math.NaN()
			continue
		}
		x := (v - lo) / (hi - lo)
		x = math.Max(0, math.Min(1, x))
		stretched.Data[i] = cfg.Stretch(x)
	}

	cfg.ColorMap.SetMin(0)
	cfg.ColorMap.SetMax(1)
	hm := plotter.NewHeatMap(stretched, cfg.ColorMap.Palette(255))
	hm.Min, hm.Max = 0, 1
	hm.NaN = cfg.NaNColor
	hm.Rasterized = true

	p := s.New("RA (pixel)", "Dec (pixel)")
	p.Add(hm)
	p.X.Min, p.X.Max = -0.5, float64(g.Nx)-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(g.Ny)-0.5

	fig := &ImageFigure{Plot: p}
	if cfg.ShowColor {
		bar := s.New("", cfg.Label)
		bar.HideX()
		bar.Add(&plotter.ColorBar{ColorMap: cfg.ColorMap, Vertical: true})
		bar.Y.Min, bar.Y.Max = 0, 1
		bar.Y.Tick.Marker = stretchTicks{lo: lo, hi: hi, stretch: cfg.Stretch}
		fig.Bar = bar
	}
	return fig, nil
}

// Save writes the image with its colour bar on the right.
func (f *ImageFigure) Save(s Style, base string) error {
	if f.Bar == nil {
		return SaveAll(f.Plot, s, base)
	}
	barWidth := s.Width / 6
	return render(s, base, func(dc draw.Canvas) {
		f.Plot.Draw(draw.Crop(dc, 0, -barWidth, 0, 0))
		f.Bar.Draw(draw.Crop(dc, dc.Max.X-dc.Min.X-barWidth, 0, 0, 0))
	})
}

// stretchTicks labels stretched colour-bar positions with data values.
type stretchTicks struct {
	lo, hi  float64
	stretch Stretch
}

func (t stretchTicks) Ticks(_, _ float64) []plot.Tick {
	raw := plot.DefaultTicks{}.Ticks(t.lo, t.hi)
	out := make([]plot.Tick, 0, len(raw))
	for _, tk := range raw {
		x := (tk.Value - t.lo) / (t.hi - t.lo)
		if x < 0 || x > 1 {
			continue
		}
		tk.Value = t.stretch(x)
		out = append(out, tk)
	}
	return out
}

func dataRange(data []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if !finite(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	return lo, hi
}

// AddBeam outlines the beam in the lower left corner of an image, offset by
// 5% of the image size. pixScale is in degrees.
func AddBeam(p *plot.Plot, b beam.Beam, nx, ny int, pixScale float64) error {
	cx := 0.05 * float64(nx)
	cy := 0.05 * float64(ny)
	r := b.Major / pixScale / 2
	cx = math.Max(cx, r)
	cy = math.Max(cy, r)
	xs, ys := b.EllipsePoints(cx, cy, pixScale, 64)
	poly, err := plotter.NewPolygon(XYs(xs, ys))
	if err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	poly.Color = color.Black
	poly.LineStyle.Color = color.Black
	poly.LineStyle.Width = vg.Points(0.5)
	p.Add(poly)
	return nil
}

// AddMarkers plots pixel positions with a glyph and legend label.
func AddMarkers(p *plot.Plot, xs, ys []float64, i int, glyph draw.GlyphDrawer, label string) error {
	_, err := AddPoints(p, xs, ys, i, glyph, label)
	return err
}

// Glyph returns the i-th marker shape: diamond, square, circle, triangle.
func Glyph(i int) draw.GlyphDrawer {
	switch i % 4 {
	case 0:
		return diamondGlyph{}
	case 1:
		return draw.BoxGlyph{}
	case 2:
		return draw.CircleGlyph{}
	default:
		return draw.TriangleGlyph{}
	}
}

type diamondGlyph struct{}

func (diamondGlyph) DrawGlyph(c *draw.Canvas, sty draw.GlyphStyle, pt vg.Point) {
	c.SetColor(sty.Color)
	r := sty.Radius
	var path vg.Path
	path.Move(vg.Point{X: pt.X, Y: pt.Y + r})
	path.Line(vg.Point{X: pt.X + r, Y: pt.Y})
	path.Line(vg.Point{X: pt.X, Y: pt.Y - r})
	path.Line(vg.Point{X: pt.X - r, Y: pt.Y})
	path.Close()
	c.Fill(path)
}

// PercentLabel formats a percentile threshold for a legend.
func PercentLabel(value float64, perc float64) string {
	return "> " + strconv.FormatFloat(math.Round(value*10)/10, 'f', -1, 64) +
		" km/s (" + strconv.FormatFloat(perc, 'f', -1, 64) + "%)"
}
