// Package veloffset compares CO(2-1) and HI velocities pixel by pixel.
//
// Offsets between the CO and HI centroids (and peak velocities) are binned
// against the peak brightness of each line, and the largest offsets are
// located on the HI integrated intensity map.
package veloffset

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/m33-lines/astro/cube"
)

// COPeakCut is the CO peak brightness (K) below which pixels are dropped,
// about three times the noise.
const COPeakCut = 0.06

// MinCOChannels is the number of CO source-mask channels a pixel needs.
const MinCOChannels = 2

// Percentiles locate the offset outliers.
var Percentiles = []float64{85, 95, 99, 99.5}

var (
	// ErrShape is returned when the maps are not on one grid.
	ErrShape = errors.New("veloffset: maps do not share a grid")
	// ErrNoPoints is returned when no pixel passes the cuts.
	ErrNoPoints = errors.New("veloffset: no pixel passes the cuts")
)

// Maps are the inputs, velocities in km/s and temperatures in K.
type Maps struct {
	HICentroid, HIPeakVel, HIPeakTemp *cube.Map
	COCentroid, COPeakVel, COPeakTemp *cube.Map
	COMaskCount                       *cube.Map // source-mask channels per pixel
}

func (m Maps) all() []*cube.Map {
	return []*cube.Map{m.HICentroid, m.HIPeakVel, m.HIPeakTemp, m.COCentroid, m.COPeakVel, m.COPeakTemp, m.COMaskCount}
}

func (m Maps) check() error {
	ref := m.HICentroid
	for _, o := range m.all() {
		if o == nil {
			return fmt.Errorf("%w: missing map", ErrShape)
		}
		if o.Nx != ref.Nx || o.Ny != ref.Ny {
			return fmt.Errorf("%w: %dx%d and %dx%d", ErrShape, ref.Nx, ref.Ny, o.Nx, o.Ny)
		}
	}
	return nil
}

// Good reports which pixels have a finite HI centroid, at least
// MinCOChannels CO mask channels and a CO peak above COPeakCut.
func (m Maps) Good() ([]bool, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	good := make([]bool, len(m.HICentroid.Data))
	for i := range good {
		hi := m.HICentroid.Data[i]
		good[i] = !math.IsNaN(hi) && !math.IsInf(hi, 0) &&
			m.COMaskCount.Data[i] >= MinCOChannels &&
			m.COPeakTemp.Data[i] > COPeakCut
	}
	return good, nil
}

// AbsDiff returns |a - b| per pixel.
func AbsDiff(a, b *cube.Map) []float64 {
	out := make([]float64, len(a.Data))
	for i := range out {
		out[i] = math.Abs(a.Data[i] - b.Data[i])
	}
	return out
}

// Select returns the values of v at good pixels.
func Select(v []float64, good []bool) []float64 {
	var out []float64
	for i, ok := range good {
		if ok {
			out = append(out, v[i])
		}
	}
	return out
}

// Percentile returns the p-th percentile (0-100) of the finite values of v.
// It interpolates linearly between the sorted values around rank
// p/100*(n-1), the default numpy convention.
func Percentile(v []float64, p float64) float64 {
	var x []float64
	for _, f := range v {
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			x = append(x, f)
		}
	}
	if len(x) == 0 {
		return math.NaN()
	}
	sort.Float64s(x)
	pos := math.Min(math.Max(p/100, 0), 1) * float64(len(x)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return x[lo] + (pos-float64(lo))*(x[hi]-x[lo])
}

// Outliers lists the pixels, as x and y coordinates, whose offset exceeds
// threshold and that pass the cuts. Non-finite offsets never qualify.
func Outliers(diff []float64, good []bool, nx int, threshold float64) (xs, ys []float64) {
	for i, d := range diff {
		if good[i] && d > threshold {
			xs = append(xs, float64(i%nx))
			ys = append(ys, float64(i/nx))
		}
	}
	return xs, ys
}

// Offsets holds one comparison of CO and HI velocities at the good pixels.
type Offsets struct {
	Name       string    // "centroid" or "peakvel"
	Diff       []float64 // |CO - HI| per pixel, km/s
	Good       []bool
	Thresholds []float64 // one per Percentiles entry
}

// Compare computes the centroid and peak velocity offsets.
func Compare(m Maps) ([]Offsets, error) {
	good, err := m.Good()
	if err != nil {
		return nil, err
	}
	if countTrue(good) == 0 {
		return nil, ErrNoPoints
	}
	var out []Offsets
	for _, c := range []struct {
		name   string
		co, hi *cube.Map
	}{
		{"centroid", m.COCentroid, m.HICentroid},
		{"peakvel", m.COPeakVel, m.HIPeakVel},
	} {
		o := Offsets{Name: c.name, Diff: AbsDiff(c.co, c.hi), Good: good}
		sel := Select(o.Diff, good)
		for _, p := range Percentiles {
			o.Thresholds = append(o.Thresholds, Percentile(sel, p))
		}
		out = append(out, o)
	}
	return out, nil
}

func countTrue(b []bool) int {
	n := 0
	for _, v := range b {
		if v {
			n++
		}
	}
	return n
}
