package veloffset

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/internal/figure"
)

const (
	histBins   = 16
	maxOffset  = 25.0 // km/s
	peakMargin = 1.05
	imageMin   = -0.001 // K km/s
)

var offsetLabels = map[string]string{
	"centroid": "|V_cent,CO - V_cent,HI| (km/s)",
	"peakvel":  "|V_peak,CO - V_peak,HI| (km/s)",
}

// histogram bins the offsets at good pixels against a peak temperature map.
func histogram(o Offsets, peak *cube.Map) (*figure.Hist2D, error) {
	x := Select(o.Diff, o.Good)
	y := Select(peak.Data, o.Good)
	top := peakMargin * floats.Max(y)
	return figure.NewHist2D(x, y, histBins, [2]float64{0, maxOffset}, [2]float64{0, top})
}

// Figures writes the offset histograms and outlier maps. name maps a
// figure name to an output path without extension. mom0 is the HI
// integrated intensity in K km/s.
func Figures(name func(string) string, m Maps, offsets []Offsets, mom0 *cube.Map) error {
	one := figure.OneColumn(0, 1.1)
	for _, o := range offsets {
		for _, h := range []struct {
			line  string
			peak  *cube.Map
			label string
			cut   bool
		}{
			{"co21", m.COPeakTemp, "T_peak,CO (K)", true},
			{"hi", m.HIPeakTemp, "T_peak,HI (K)", false},
		} {
			hist, err := histogram(o, h.peak)
			if err != nil {
				return err
			}
			p := hist.Plot(one, offsetLabels[o.Name], h.label)
			figure.AddGrid(p)
			if h.cut {
				if err := figure.HLine(p, COPeakCut, 0, maxOffset, figure.Red); err != nil {
					return err
				}
			}
			base := name(h.line + "_Tpeak_" + o.Name + "_velocity_offset")
			if err := figure.SaveAll(p, one, base); err != nil {
				return err
			}
		}
	}

	if mom0 == nil {
		return nil
	}
	two := figure.TwoColumn(0.95, 1.2)
	outName := map[string]string{
		"centroid": "co21_HI_centroid_offset_outliers",
		"peakvel":  "co21_HI_peakvels_offset_outliers",
	}
	for _, o := range offsets {
		img, err := figure.Image(two, figure.Grid{Nx: mom0.Nx, Ny: mom0.Ny, Data: mom0.Data},
			figure.WithRange(imageMin, mom0.Max()),
			figure.WithStretch(figure.Asinh(0.1)),
			figure.WithColorBar("Integrated Intensity (K km/s)"))
		if err != nil {
			return err
		}
		img.Plot.X.Label.Text = "RA (pixel)"
		img.Plot.Y.Label.Text = "Dec (pixel)"
		for i, thr := range o.Thresholds {
			if math.IsNaN(thr) {
				continue
			}
			xs, ys := Outliers(o.Diff, o.Good, mom0.Nx, thr)
			if len(xs) == 0 {
				continue
			}
			label := figure.PercentLabel(thr, Percentiles[i])
			if err := figure.AddMarkers(img.Plot, xs, ys, i, figure.Glyph(i), label); err != nil {
				return err
			}
		}
		img.Plot.Legend.Left = true
		img.Plot.Legend.Top = false
		if err := img.Save(two, name(outName[o.Name])); err != nil {
			return err
		}
	}
	return nil
}
