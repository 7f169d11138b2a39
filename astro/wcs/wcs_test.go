package wcs

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/internal/testutil"
)

// m33Header mimics the 14B-088 HI cube: 3" pixels centred on M33.
func m33Header(proj string) *fitsfile.Header {
	return fitsfile.NewHeader(
		fitsfile.Card{Name: "NAXIS", Value: 3},
		fitsfile.Card{Name: "NAXIS1", Value: 101},
		fitsfile.Card{Name: "NAXIS2", Value: 101},
		fitsfile.Card{Name: "NAXIS3", Value: 20},
		fitsfile.Card{Name: "CTYPE1", Value: "RA---" + proj},
		fitsfile.Card{Name: "CTYPE2", Value: "DEC--" + proj},
		fitsfile.Card{Name: "CRVAL1", Value: 23.462100},
		fitsfile.Card{Name: "CRVAL2", Value: 30.659942},
		fitsfile.Card{Name: "CRPIX1", Value: 51.0},
		fitsfile.Card{Name: "CRPIX2", Value: 51.0},
		fitsfile.Card{Name: "CDELT1", Value: -3.0 / 3600},
		fitsfile.Card{Name: "CDELT2", Value: 3.0 / 3600},
		fitsfile.Card{Name: "CTYPE3", Value: "VRAD"},
		fitsfile.Card{Name: "CRVAL3", Value: -180000.0},
		fitsfile.Card{Name: "CDELT3", Value: -1000.0},
		fitsfile.Card{Name: "CRPIX3", Value: 1.0},
		fitsfile.Card{Name: "CUNIT3", Value: "m/s"},
	)
}

func TestReferencePixel(t *testing.T) {
	for _, proj := range []string{"TAN", "SIN"} {
		c, err := FromHeader(m33Header(proj))
		if err != nil {
			t.Fatalf("%s: %v", proj, err)
		}
		ra, dec := c.PixelToWorld(50, 50)
		testutil.RequireNear(t, proj+" ra", ra, 23.4621, 1e-9)
		testutil.RequireNear(t, proj+" dec", dec, 30.659942, 1e-9)
	}
}

func TestPixelOffsets(t *testing.T) {
	c, err := FromHeader(m33Header("TAN"))
	if err != nil {
		t.Fatal(err)
	}
	// One pixel north is 3" in declination.
	_, dec := c.PixelToWorld(50, 51)
	testutil.RequireNear(t, "dec step", (dec-30.659942)*3600, 3, 1e-6)

	// One pixel east (RA increases to the left) is 3"/cos(dec) in RA.
	ra, _ := c.PixelToWorld(49, 50)
	want := 3 / math.Cos(30.659942*math.Pi/180)
	testutil.RequireNear(t, "ra step", (ra-23.4621)*3600, want, 1e-4)
}

func TestWorldToPixelInverts(t *testing.T) {
	for _, proj := range []string{"TAN", "SIN"} {
		c, _ := FromHeader(m33Header(proj))
		for _, p := range [][2]float64{{0, 0}, {12.5, 80}, {100, 3}} {
			ra, dec := c.PixelToWorld(p[0], p[1])
			x, y := c.WorldToPixel(ra, dec)
			testutil.RequireNear(t, proj+" x", x, p[0], 1e-7)
			testutil.RequireNear(t, proj+" y", y, p[1], 1e-7)
		}
	}
}

func TestPixelScale(t *testing.T) {
	c, _ := FromHeader(m33Header("TAN"))
	testutil.RequireNear(t, "scale", c.PixelScale()*3600, 3, 1e-12)
}

func TestCDMatrix(t *testing.T) {
	h := m33Header("TAN")
	h.Delete("CDELT1")
	h.Delete("CDELT2")
	h.Set("CD1_1", -3.0/3600, "")
	h.Set("CD2_2", 3.0/3600, "")
	c, err := FromHeader(h)
	if err != nil {
		t.Fatal(err)
	}
	_, dec := c.PixelToWorld(50, 52)
	testutil.RequireNear(t, "dec", (dec-30.659942)*3600, 6, 1e-6)
}

func TestUnsupportedProjection(t *testing.T) {
	h := m33Header("TAN")
	h.Set("CTYPE1", "RA---CAR", "")
	if _, err := FromHeader(h); !errors.Is(err, ErrProjection) {
		t.Fatalf("err = %v, want ErrProjection", err)
	}
}

func TestSpectralVelocityAxis(t *testing.T) {
	s, err := SpectralFromHeader(m33Header("TAN"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Axis != 3 || !s.IsVelocity() {
		t.Fatalf("axis %d velocity %v", s.Axis, s.IsVelocity())
	}
	vals := s.Values()
	if len(vals) != 20 {
		t.Fatalf("len = %d", len(vals))
	}
	testutil.RequireNear(t, "v0", vals[0], -180000, 1e-9)
	testutil.RequireNear(t, "v19", vals[19], -199000, 1e-9)
	testutil.RequireNear(t, "width", s.ChannelWidth(), -1000, 1e-9)

	crval, err := s.ShiftCRVAL(-180000)
	if err != nil || crval != 0 {
		t.Fatalf("ShiftCRVAL = %v, %v", crval, err)
	}
}

func TestSpectralKilometres(t *testing.T) {
	h := m33Header("TAN")
	h.Set("CRVAL3", -180.0, "")
	h.Set("CDELT3", 2.6, "")
	h.Set("CUNIT3", "km/s", "")
	s, err := SpectralFromHeader(h)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireNear(t, "v1", s.Velocity(1), -177400, 1e-6)
	crval, _ := s.ShiftCRVAL(-180000)
	testutil.RequireNear(t, "crval", crval, 0, 1e-12)
}

func TestSpectralFrequencyAxis(t *testing.T) {
	const rest = 1.420405751786e9
	h := m33Header("TAN")
	h.Set("CTYPE3", "FREQ", "")
	h.Set("CRVAL3", rest, "")
	h.Set("CDELT3", 1000.0, "")
	h.Set("CUNIT3", "Hz", "")
	h.Set("RESTFRQ", rest, "")

	s, err := SpectralFromHeader(h)
	if err != nil {
		t.Fatal(err)
	}
	if s.IsVelocity() {
		t.Fatal("frequency axis reported as velocity")
	}
	testutil.RequireNear(t, "v0", s.Velocity(0), 0, 1e-6)
	testutil.RequireNear(t, "v1", s.Velocity(1), -SpeedOfLight*1000/rest, 1e-6)
	if _, err := s.ShiftCRVAL(0); err == nil {
		t.Fatal("ShiftCRVAL should reject frequency axes")
	}
}

func TestNoSpectralAxis(t *testing.T) {
	h := m33Header("TAN")
	h.Set("NAXIS", 2, "")
	if _, err := SpectralFromHeader(h); !errors.Is(err, ErrNoSpectralAxis) {
		t.Fatalf("err = %v", err)
	}
}
