package beam

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/internal/testutil"
)

func TestSolidAngle(t *testing.T) {
	b := Circular(20.0 / 3600)
	want := math.Pi / (4 * math.Ln2) * math.Pow(20.0/206264.806, 2)
	testutil.RequireNear(t, "omega", b.SolidAngle(), want, want*1e-6)
}

func TestJyToK(t *testing.T) {
	// A 20" beam at 1.42 GHz converts 1 Jy/beam to roughly 1.5e3 K.
	b := Circular(20.0 / 3600)
	got := b.JyToK(HIRestFrequency)
	if got < 1450 || got > 1600 {
		t.Fatalf("JyToK = %v, want ~1.5e3", got)
	}

	// Scales inversely with the beam area.
	b2 := Circular(40.0 / 3600)
	testutil.RequireNear(t, "ratio", got/b2.JyToK(HIRestFrequency), 4, 1e-9)
}

func TestFromHeader(t *testing.T) {
	h := fitsfile.NewHeader(
		fitsfile.Card{Name: "BMAJ", Value: 0.005},
		fitsfile.Card{Name: "BMIN", Value: 0.004},
		fitsfile.Card{Name: "BPA", Value: 30.0},
	)
	b, err := FromHeader(h)
	if err != nil {
		t.Fatal(err)
	}
	if b.Major != 0.005 || b.Minor != 0.004 || b.PA != 30 {
		t.Fatalf("beam = %+v", b)
	}

	if _, err := FromHeader(fitsfile.NewHeader()); !errors.Is(err, ErrNoBeam) {
		t.Fatalf("err = %v, want ErrNoBeam", err)
	}
}

func TestAverage(t *testing.T) {
	b, err := Average([]Beam{{Major: 2, Minor: 1, PA: 10}, {Major: 4, Minor: 3, PA: 170}})
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireNear(t, "major", b.Major, 3, 1e-12)
	testutil.RequireNear(t, "minor", b.Minor, 2, 1e-12)
	testutil.RequireNear(t, "pa", math.Abs(b.PA), 0, 1e-9)

	if _, err := Average(nil); !errors.Is(err, ErrNoBeam) {
		t.Fatalf("err = %v", err)
	}
}

func TestFromImageMultiBeam(t *testing.T) {
	im := fitsfile.NewImage(nil, 2, 2, 2)
	im.Beams = []fitsfile.BeamRow{
		{Chan: 0, Major: 0.006, Minor: 0.004, PA: 20},
		{Chan: 0, Pol: 1, Major: 0.1, Minor: 0.1, PA: 80},
		{Chan: 1, Major: 0.008, Minor: 0.006, PA: 40},
	}

	chans := Channels(im.Beams)
	if len(chans) != 2 || chans[1].Major != 0.008 {
		t.Fatalf("channels = %+v", chans)
	}
	rows := Rows(chans)
	if len(rows) != 2 || rows[1].Chan != 1 || rows[1].PA != 40 {
		t.Fatalf("rows = %+v", rows)
	}

	b, err := FromImage(im)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireNear(t, "major", b.Major, 0.007, 1e-12)
	testutil.RequireNear(t, "minor", b.Minor, 0.005, 1e-12)
	testutil.RequireNear(t, "pa", b.PA, 30, 1e-9)

	// A header beam wins over the table.
	im.Header.Set("BMAJ", 0.002, "")
	im.Header.Set("BMIN", 0.001, "")
	if b, _ := FromImage(im); b.Major != 0.002 {
		t.Fatalf("beam = %+v", b)
	}

	if _, err := FromImage(fitsfile.NewImage(nil, 2, 2)); !errors.Is(err, ErrNoBeam) {
		t.Fatalf("err = %v, want ErrNoBeam", err)
	}
}

func TestKernelUnitSum(t *testing.T) {
	b := Beam{Major: 30.0 / 3600, Minor: 15.0 / 3600, PA: 45}
	k := b.Kernel(3.0/3600, 33, 33)
	sum := 0.0
	peak, at := 0.0, -1
	for i, v := range k {
		sum += v
		if v > peak {
			peak, at = v, i
		}
	}
	testutil.RequireNear(t, "sum", sum, 1, 1e-12)
	if at != 16*33+16 {
		t.Fatalf("peak at %d, want centre", at)
	}
}

func TestKernelWidth(t *testing.T) {
	// The half-maximum point of a round 10-pixel FWHM beam lies 5 pixels out.
	b := Circular(30.0 / 3600)
	k := b.Kernel(3.0/3600, 41, 41)
	centre := k[20*41+20]
	testutil.RequireNear(t, "half max", k[20*41+25]/centre, 0.5, 1e-9)
}

func TestEllipsePoints(t *testing.T) {
	b := Beam{Major: 6.0 / 3600, Minor: 6.0 / 3600}
	xs, ys := b.EllipsePoints(10, 20, 3.0/3600, 16)
	if len(xs) != 17 || len(ys) != 17 {
		t.Fatalf("len = %d", len(xs))
	}
	for i := range xs {
		testutil.RequireNear(t, "radius", math.Hypot(xs[i]-10, ys[i]-20), 1, 1e-12)
	}
}
