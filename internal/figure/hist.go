package figure

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
)

// Hist2D is a 2-D histogram on regular bins.
type Hist2D struct {
	NX, NY     int
	XMin, XMax float64
	YMin, YMax float64
	Counts     []float64 // [iy*NX+ix]
}

// NewHist2D bins (x, y) pairs. The upper edges are inclusive and points
// outside the ranges or not finite are dropped.
func NewHist2D(x, y []float64, bins int, xr, yr [2]float64) (*Hist2D, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("figure: hist2d length mismatch %d != %d", len(x), len(y))
	}
	if bins <= 0 || !(xr[1] > xr[0]) || !(yr[1] > yr[0]) {
		return nil, fmt.Errorf("figure: invalid hist2d bins %d or range %v %v", bins, xr, yr)
	}
	h := &Hist2D{
		NX: bins, NY: bins,
		XMin: xr[0], XMax: xr[1],
		YMin: yr[0], YMax: yr[1],
		Counts: make([]float64, bins*bins),
	}
	for i := range x {
		ix, ok := bin(x[i], xr, bins)
		if !ok {
			continue
		}
		iy, ok := bin(y[i], yr, bins)
		if !ok {
			continue
		}
		h.Counts[iy*bins+ix]++
	}
	return h, nil
}

func bin(v float64, r [2]float64, n int) (int, bool) {
	if !finite(v) || v < r[0] || v > r[1] {
		return 0, false
	}
	i := int(math.Floor((v - r[0]) / (r[1] - r[0]) * float64(n)))
	if i == n {
		i--
	}
	return i, true
}

// Total returns the number of binned points.
func (h *Hist2D) Total() float64 {
	var s float64
	for _, c := range h.Counts {
		s += c
	}
	return s
}

// Dims implements plotter.GridXYZ.
func (h *Hist2D) Dims() (c, r int) { return h.NX, h.NY }

// Z implements plotter.GridXYZ. Empty bins are NaN so they stay blank.
func (h *Hist2D) Z(c, r int) float64 {
	v := h.Counts[r*h.NX+c]
	if v == 0 {
		return math.NaN()
	}
	return v
}

// X implements plotter.GridXYZ.
func (h *Hist2D) X(c int) float64 {
	return h.XMin + (float64(c)+0.5)*(h.XMax-h.XMin)/float64(h.NX)
}

// Y implements plotter.GridXYZ.
func (h *Hist2D) Y(r int) float64 {
	return h.YMin + (float64(r)+0.5)*(h.YMax-h.YMin)/float64(h.NY)
}

// Plot returns a density plot of the histogram.
func (h *Hist2D) Plot(s Style, xlabel, ylabel string) *plot.Plot {
	cm := moreland.ExtendedBlackBody()
	cm.SetMin(0)
	cm.SetMax(1)
	hm := plotter.NewHeatMap(h, cm.Palette(64))
	hm.Min = 0
	_, hm.Max = dataRange(h.Counts)
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}
	hm.NaN = nil

	p := s.New(xlabel, ylabel)
	AddGrid(p)
	p.Add(hm)
	SetXRange(p, h.XMin, h.XMax)
	SetYRange(p, h.YMin, h.YMax)
	return p
}
