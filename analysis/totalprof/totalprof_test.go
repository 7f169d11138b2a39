package totalprof

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/m33-lines/astro/beam"
	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/astro/galaxy"
	"github.com/cwbudde/m33-lines/internal/table"
	"github.com/cwbudde/m33-lines/internal/testutil"
	"github.com/cwbudde/m33-lines/spectral/fit"
)

// 10 pc pixels at 1 Mpc.
var pix = 1e-5 * 180 / math.Pi

const (
	size  = 21
	nchan = 201 // -100..100 km/s
)

func faceOn() galaxy.Params {
	return galaxy.Params{RA: 10, Dec: 0, Inclination: 0, Distance: 1e6}
}

func gauss(v, amp, sigma float64) float64 {
	return amp * math.Exp(-0.5*v*v/(sigma*sigma))
}

// testCube fills every pixel with the same profile(v km/s).
func testCube(t *testing.T, unit string, profile func(v float64) float64) *cube.Cube {
	t.Helper()
	h := fitsfile.NewHeader(
		fitsfile.Card{Name: "CTYPE1", Value: "RA---TAN"},
		fitsfile.Card{Name: "CRVAL1", Value: 10.0},
		fitsfile.Card{Name: "CDELT1", Value: -pix},
		fitsfile.Card{Name: "CRPIX1", Value: 11.0},
		fitsfile.Card{Name: "CTYPE2", Value: "DEC--TAN"},
		fitsfile.Card{Name: "CRVAL2", Value: 0.0},
		fitsfile.Card{Name: "CDELT2", Value: pix},
		fitsfile.Card{Name: "CRPIX2", Value: 11.0},
		fitsfile.Card{Name: "CTYPE3", Value: "VRAD"},
		fitsfile.Card{Name: "CRVAL3", Value: -100000.0},
		fitsfile.Card{Name: "CDELT3", Value: 1000.0},
		fitsfile.Card{Name: "CRPIX3", Value: 1.0},
		fitsfile.Card{Name: "CUNIT3", Value: "m/s"},
		fitsfile.Card{Name: "BMAJ", Value: 3 * pix},
		fitsfile.Card{Name: "BMIN", Value: 3 * pix},
		fitsfile.Card{Name: "BPA", Value: 0.0},
		fitsfile.Card{Name: "BUNIT", Value: unit},
	)
	plane := size * size
	data := make([]float64, nchan*plane)
	for k := 0; k < nchan; k++ {
		v := profile(-100 + float64(k))
		for p := 0; p < plane; p++ {
			data[k*plane+p] = v
		}
	}
	// A blank pixel.
	for k := 0; k < nchan; k++ {
		data[k*plane] = math.NaN()
	}
	c, err := cube.New(h, size, size, nchan, data)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func hiProfile(v float64) float64 { return gauss(v, 1, 5) + gauss(v, 0.25, 20) }
func coProfile(v float64) float64 { return gauss(v, 0.1, 9) }

func testProfiles(t *testing.T) *Profiles {
	t.Helper()
	hi := testCube(t, "K", hiProfile)
	co := testCube(t, "K", coProfile)
	p, err := Build(faceOn(), hi, co, WithBinWidth(40), WithMaxRadius(80))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRings(t *testing.T) {
	rings := Rings(500, 6000)
	if len(rings) != 12 {
		t.Fatalf("got %d rings", len(rings))
	}
	if rings[0].Name() != "0.0-500.0 pc" || rings[11].Name() != "5500.0-6000.0 pc" {
		t.Fatalf("names %q %q", rings[0].Name(), rings[11].Name())
	}
}

func TestBuild(t *testing.T) {
	p := testProfiles(t)
	if len(p.Rings) != 2 || len(p.HIRadial) != 2 || len(p.CORadial) != 2 {
		t.Fatalf("rings %d", len(p.Rings))
	}
	testutil.RequireNear(t, "vel[0]", p.HIVels[0], -100, 1e-9)
	testutil.RequireNear(t, "vel[100]", p.HIVels[100], 0, 1e-9)

	// Every finite pixel counts toward the total.
	testutil.RequireNear(t, "HI total", p.HITotal[100], float64(size*size-1)*hiProfile(0), 1e-6)

	// CO total is the sum of the rings; the HI total covers more area.
	for k := range p.COTotal {
		testutil.RequireNear(t, "CO total", p.COTotal[k], p.CORadial[0][k]+p.CORadial[1][k], 1e-9)
	}
	if p.HITotal[100] <= p.HIRadial[0][100]+p.HIRadial[1][100] {
		t.Fatal("HI total should include pixels beyond the last ring")
	}
	norm := Normalize(p.HITotal)
	testutil.RequireNear(t, "normalized peak", norm[100], 1, 1e-12)
}

func TestBuildJyConversion(t *testing.T) {
	k := testCube(t, "K", hiProfile)
	jy := testCube(t, "Jy/beam", hiProfile)
	co := testCube(t, "K", coProfile)

	a, err := Build(faceOn(), k, co, WithBinWidth(40), WithMaxRadius(80))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(faceOn(), jy, co, WithBinWidth(40), WithMaxRadius(80))
	if err != nil {
		t.Fatal(err)
	}
	want := jy.Beam.JyToK(1.420405751786e9)
	testutil.RequireNear(t, "factor", b.HITotal[100]/a.HITotal[100], want, want*1e-9)

	bad := testCube(t, "erg", hiProfile)
	if _, err := Build(faceOn(), bad, co); err == nil {
		t.Fatal("expected a unit error")
	}
}

func TestBuildPerChannelBeams(t *testing.T) {
	k := testCube(t, "K", hiProfile)
	jy := testCube(t, "Jy/beam", hiProfile)
	co := testCube(t, "K", coProfile)
	jy.Beams = make([]beam.Beam, jy.NChan)
	for i := range jy.Beams {
		jy.Beams[i] = beam.Circular(float64(3+i%2) * pix)
	}

	a, err := Build(faceOn(), k, co, WithBinWidth(40), WithMaxRadius(80))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(faceOn(), jy, co, WithBinWidth(40), WithMaxRadius(80))
	if err != nil {
		t.Fatal(err)
	}
	// Channels convert with their own beam, not the cube average.
	for _, ch := range []int{99, 100} {
		want := jy.Beams[ch].JyToK(beam.HIRestFrequency)
		testutil.RequireNear(t, "factor", b.HITotal[ch]/a.HITotal[ch], want, want*1e-9)
	}
	if b.HITotal[100]/a.HITotal[100] <= b.HITotal[99]/a.HITotal[99] {
		t.Fatal("the smaller beam of channel 100 should give the larger factor")
	}
}

func TestMolecularMass(t *testing.T) {
	got := MolecularMass([]float64{-1, 2, 3}, -2.6, 10, 6.7, 0.75)
	testutil.RequireNear(t, "mass", got, 5*2.6*100*6.7/0.75, 1e-9)
}

func TestFit(t *testing.T) {
	p := testProfiles(t)
	f, err := p.Fit()
	if err != nil {
		t.Fatal(err)
	}
	mean, _, _ := f.CO.Param("mean")
	sd, _, _ := f.CO.Param("stddev")
	testutil.RequireNear(t, "CO mean", mean, 0, 1e-3)
	testutil.RequireNear(t, "CO stddev", sd, 9, 1e-3)

	narrow, _, _ := f.HI.Param("stddev_0")
	wide, _, _ := f.HI.Param("stddev_1")
	testutil.RequireNear(t, "HI narrow", narrow, 5, 1e-2)
	testutil.RequireNear(t, "HI wide", wide, 20, 1e-2)

	if len(f.HIRings) != 2 || len(f.CORings) != 2 {
		t.Fatalf("ring fits %d/%d", len(f.HIRings), len(f.CORings))
	}
	ringSD, _, _ := f.CORings[1].Param("stddev")
	testutil.RequireNear(t, "ring CO stddev", ringSD, 9, 1e-3)
}

func TestTables(t *testing.T) {
	p := testProfiles(t)
	f, err := p.Fit()
	if err != nil {
		t.Fatal(err)
	}

	pt, err := ParamTable(f.CO)
	if err != nil {
		t.Fatal(err)
	}
	if len(pt.Index) != 3 || pt.Columns[0] != "Params" || pt.Columns[1] != "Errors" {
		t.Fatalf("table layout %v %v", pt.Index, pt.Columns)
	}

	rt, err := RingTable(p.Rings, f.HIRings)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"amplitude", "amplitude_stderr", "mean", "mean_stderr", "stddev", "stddev_stderr"}
	if strings.Join(rt.Columns, ",") != strings.Join(want, ",") {
		t.Fatalf("columns %v", rt.Columns)
	}
	var buf bytes.Buffer
	if err := rt.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "40.0-80.0 pc,") {
		t.Fatalf("csv:\n%s", buf.String())
	}

	// Ring fits must share the first fit's parameters.
	mixed := []*fit.Result{f.HIRings[0], f.HILorentz}
	if _, err := RingTable(p.Rings, mixed); !errors.Is(err, table.ErrNoColumn) {
		t.Fatalf("mixed ring fits: err = %v, want ErrNoColumn", err)
	}
	if _, err := RingTable(p.Rings[:1], f.HIRings); err == nil {
		t.Fatal("expected error for more fits than rings")
	}
}

func TestFigures(t *testing.T) {
	p := testProfiles(t)
	f, err := p.Fit()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	name := func(n string) string { return filepath.Join(dir, n) }
	if err := p.Figures(name, f); err != nil {
		t.Fatal(err)
	}
	for _, base := range []string{
		"total_profile_corrected_velocity_rotsub_hi",
		"total_profile_corrected_velocity_rotsub_HI_CO21",
		"total_profile_corrected_velocity_rotsub_hi_fit",
		"total_profile_corrected_velocity_rotsub_hi_fit_lorentz",
		"total_profile_corrected_velocity_rotsub_co21_fit",
		"total_profile_velocity_rotsub_hi_co_radial",
	} {
		if _, err := os.Stat(name(base) + ".png"); err != nil {
			t.Errorf("missing %s: %v", base, err)
		}
	}
}
