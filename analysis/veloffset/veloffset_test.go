package veloffset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/internal/testutil"
)

const n = 10

func newMap(f func(i int) float64) *cube.Map {
	m := cube.NewMap(nil, n, n)
	for i := range m.Data {
		m.Data[i] = f(i)
	}
	return m
}

// testMaps offsets CO from HI by i/10 km/s at pixel i.
func testMaps() Maps {
	return Maps{
		HICentroid:  newMap(func(i int) float64 { return -150 }),
		HIPeakVel:   newMap(func(i int) float64 { return -150 }),
		HIPeakTemp:  newMap(func(i int) float64 { return 50 + float64(i%7) }),
		COCentroid:  newMap(func(i int) float64 { return -150 + float64(i)/10 }),
		COPeakVel:   newMap(func(i int) float64 { return -150 - float64(i)/5 }),
		COPeakTemp:  newMap(func(i int) float64 { return 0.1 + float64(i)/100 }),
		COMaskCount: newMap(func(i int) float64 { return 3 }),
	}
}

func TestGoodCuts(t *testing.T) {
	m := testMaps()
	m.HICentroid.Data[0] = math.NaN()
	m.COMaskCount.Data[1] = 1
	m.COPeakTemp.Data[2] = COPeakCut

	good, err := m.Good()
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []bool{false, false, false, true} {
		if good[i] != want {
			t.Fatalf("good[%d] = %v, want %v", i, good[i], want)
		}
	}
}

func TestShapeMismatch(t *testing.T) {
	m := testMaps()
	m.COPeakVel = cube.NewMap(nil, 3, 3)
	if _, err := m.Good(); !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}
}

func TestPercentile(t *testing.T) {
	v := make([]float64, 100)
	for i := range v {
		v[i] = float64(i + 1)
	}
	v = append(v, math.NaN())
	p := Percentile(v, 85)
	if math.Abs(p-85.15) > 1e-9 {
		t.Fatalf("85th percentile = %v", p)
	}

	// numpy.percentile values
	five := []float64{5, 3, 1, 4, 2}
	for _, tt := range []struct{ p, want float64 }{
		{0, 1}, {50, 3}, {85, 4.4}, {99.5, 4.98}, {100, 5},
	} {
		if got := Percentile(five, tt.p); math.Abs(got-tt.want) > 1e-12 {
			t.Fatalf("Percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := Percentile([]float64{7}, 95); got != 7 {
		t.Fatalf("single value percentile = %v", got)
	}
	if !math.IsNaN(Percentile([]float64{math.NaN()}, 50)) {
		t.Fatal("percentile of no finite value should be NaN")
	}
}

func TestCompare(t *testing.T) {
	offsets, err := Compare(testMaps())
	if err != nil {
		t.Fatal(err)
	}
	if len(offsets) != 2 || offsets[0].Name != "centroid" || offsets[1].Name != "peakvel" {
		t.Fatalf("offsets %+v", offsets)
	}
	c := offsets[0]
	testutil.RequireNear(t, "diff", c.Diff[42], 4.2, 1e-9)
	for i := 1; i < len(c.Thresholds); i++ {
		if c.Thresholds[i] < c.Thresholds[i-1] {
			t.Fatalf("thresholds not increasing: %v", c.Thresholds)
		}
	}
	xs, ys := Outliers(c.Diff, c.Good, n, c.Thresholds[0])
	if len(xs) == 0 || len(xs) > 16 {
		t.Fatalf("%d outliers above the 85th percentile", len(xs))
	}
	for i := range xs {
		if c.Diff[int(ys[i])*n+int(xs[i])] <= c.Thresholds[0] {
			t.Fatal("outlier below threshold")
		}
	}
}

func TestCompareNoPoints(t *testing.T) {
	m := testMaps()
	m.COMaskCount = newMap(func(int) float64 { return 0 })
	if _, err := Compare(m); !errors.Is(err, ErrNoPoints) {
		t.Fatalf("err = %v, want ErrNoPoints", err)
	}
}

func TestMaskCount(t *testing.T) {
	im := fitsfile.NewImage(nil, 2, 1, 3)
	copy(im.Data, []float64{1, 0, 1, math.NaN(), 1, 1})
	m, err := MaskCount(im)
	if err != nil {
		t.Fatal(err)
	}
	if m.Data[0] != 3 || m.Data[1] != 1 {
		t.Fatalf("counts %v", m.Data)
	}
}

func TestFigures(t *testing.T) {
	m := testMaps()
	offsets, err := Compare(m)
	if err != nil {
		t.Fatal(err)
	}
	mom0 := newMap(func(i int) float64 { return float64(i) })
	dir := t.TempDir()
	name := func(s string) string { return filepath.Join(dir, "co_vs_hi", s) }
	if err := Figures(name, m, offsets, mom0); err != nil {
		t.Fatal(err)
	}
	for _, base := range []string{
		"co21_Tpeak_centroid_velocity_offset",
		"hi_Tpeak_centroid_velocity_offset",
		"co21_Tpeak_peakvel_velocity_offset",
		"hi_Tpeak_peakvel_velocity_offset",
		"co21_HI_centroid_offset_outliers",
		"co21_HI_peakvels_offset_outliers",
	} {
		for _, ext := range []string{".pdf", ".png"} {
			if _, err := os.Stat(name(base) + ext); err != nil {
				t.Errorf("missing %s%s", base, ext)
			}
		}
	}
}
