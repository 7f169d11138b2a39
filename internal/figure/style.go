// Package figure wraps gonum/plot with the presets and plot types used by
// the analysis figures.
package figure

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Style sets the figure size and base font size.
type Style struct {
	Width    vg.Length
	Height   vg.Length
	FontSize vg.Length
}

const (
	baseFont     = 10
	columnWidth  = 4.2 // inches
	twoColWidth  = 8.4 // inches
	defaultRatio = 0.75
)

// Default is the stand-alone figure preset.
func Default() Style {
	return Style{Width: 8 * vg.Inch, Height: 6 * vg.Inch, FontSize: vg.Points(baseFont)}
}

// OneColumn fits a single journal column. ratio is height/width.
func OneColumn(ratio, fontScale float64) Style {
	return column(columnWidth, ratio, fontScale)
}

// TwoColumn spans the full page width.
func TwoColumn(ratio, fontScale float64) Style {
	return column(twoColWidth, ratio, fontScale)
}

func column(width, ratio, fontScale float64) Style {
	if ratio <= 0 {
		ratio = defaultRatio
	}
	if fontScale <= 0 {
		fontScale = 1
	}
	w := vg.Length(width) * vg.Inch
	return Style{Width: w, Height: w * vg.Length(ratio), FontSize: vg.Points(baseFont * fontScale)}
}

// New returns an empty plot with the style's fonts and a grid-free white
// background.
func (s Style) New(xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.BackgroundColor = color.White
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel

	p.Title.TextStyle.Font.Size = s.FontSize * 1.2
	p.X.Label.TextStyle.Font.Size = s.FontSize
	p.Y.Label.TextStyle.Font.Size = s.FontSize
	p.X.Tick.Label.Font.Size = s.FontSize * 0.9
	p.Y.Tick.Label.Font.Size = s.FontSize * 0.9
	p.Legend.TextStyle.Font.Size = s.FontSize * 0.9
	p.Legend.Top = true
	return p
}

// Color returns the i-th colour of the plot cycle.
func Color(i int) color.Color {
	return plotutil.Color(i)
}

// Dashes returns the i-th dash pattern of the plot cycle.
func Dashes(i int) []vg.Length {
	return plotutil.Dashes(i)
}

// Guide and emphasis colours.
var (
	Red   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	Grey  = color.Gray{Y: 128}
	Black = color.Black
)

// SetXRange fixes the x axis limits.
func SetXRange(p *plot.Plot, lo, hi float64) {
	p.X.Min, p.X.Max = lo, hi
}

// SetYRange fixes the y axis limits.
func SetYRange(p *plot.Plot, lo, hi float64) {
	p.Y.Min, p.Y.Max = lo, hi
}

// LogX switches the x axis to a log scale.
func LogX(p *plot.Plot) {
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
}

// LogY switches the y axis to a log scale.
func LogY(p *plot.Plot) {
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
}
