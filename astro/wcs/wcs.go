// Package wcs maps pixel positions of M33 maps and cubes to world
// coordinates.
//
// Only what the line analysis needs is covered: the TAN and SIN celestial
// projections with a CDELT, PC or CD linear part, and a linear spectral axis
// in velocity (VRAD, VELO, VOPT) or frequency (FREQ, converted with the
// radio convention through RESTFRQ).
package wcs

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/m33-lines/astro/fitsfile"
)

// SpeedOfLight in m/s.
const SpeedOfLight = 299792458.0

var (
	// ErrProjection is returned for unsupported celestial projections.
	ErrProjection = errors.New("wcs: unsupported projection")
	// ErrNoSpectralAxis is returned when a header has no spectral axis.
	ErrNoSpectralAxis = errors.New("wcs: no spectral axis")
)

const deg = math.Pi / 180

// Celestial is the celestial part of a header's WCS.
type Celestial struct {
	Projection string // "TAN" or "SIN"
	CRVAL      [2]float64
	CRPIX      [2]float64
	M          [2][2]float64 // pixel offset to intermediate degrees
	Nx, Ny     int
}

// FromHeader reads the celestial axes 1 and 2.
func FromHeader(h *fitsfile.Header) (*Celestial, error) {
	ctype1 := h.StringOr("CTYPE1", "")
	proj := ""
	if len(ctype1) >= 8 {
		proj = strings.TrimSpace(ctype1[5:8])
	}
	switch proj {
	case "TAN", "SIN":
	default:
		return nil, fmt.Errorf("%w: %q", ErrProjection, ctype1)
	}

	c := &Celestial{Projection: proj}
	c.CRVAL[0] = h.FloatOr("CRVAL1", 0)
	c.CRVAL[1] = h.FloatOr("CRVAL2", 0)
	c.CRPIX[0] = h.FloatOr("CRPIX1", 0)
	c.CRPIX[1] = h.FloatOr("CRPIX2", 0)
	c.Nx = int(h.FloatOr("NAXIS1", 0))
	c.Ny = int(h.FloatOr("NAXIS2", 0))

	if h.Has("CD1_1") {
		c.M = [2][2]float64{
			{h.FloatOr("CD1_1", 0), h.FloatOr("CD1_2", 0)},
			{h.FloatOr("CD2_1", 0), h.FloatOr("CD2_2", 0)},
		}
		return c, nil
	}

	cdelt1, err := h.Float("CDELT1")
	if err != nil {
		return nil, fmt.Errorf("wcs: %w", err)
	}
	cdelt2, err := h.Float("CDELT2")
	if err != nil {
		return nil, fmt.Errorf("wcs: %w", err)
	}
	pc := [2][2]float64{
		{h.FloatOr("PC1_1", h.FloatOr("PC001001", 1)), h.FloatOr("PC1_2", 0)},
		{h.FloatOr("PC2_1", 0), h.FloatOr("PC2_2", h.FloatOr("PC002002", 1))},
	}
	if crota := h.FloatOr("CROTA2", 0); crota != 0 && !h.Has("PC1_1") {
		s, co := math.Sincos(crota * deg)
		pc = [2][2]float64{{co, -s * cdelt2 / cdelt1}, {s * cdelt1 / cdelt2, co}}
	}
	c.M = [2][2]float64{
		{cdelt1 * pc[0][0], cdelt1 * pc[0][1]},
		{cdelt2 * pc[1][0], cdelt2 * pc[1][1]},
	}
	return c, nil
}

// PixelToWorld converts 0-based pixel (x, y) to (ra, dec) in degrees.
func (c *Celestial) PixelToWorld(x, y float64) (ra, dec float64) {
	dx := x + 1 - c.CRPIX[0]
	dy := y + 1 - c.CRPIX[1]
	ix := c.M[0][0]*dx + c.M[0][1]*dy
	iy := c.M[1][0]*dx + c.M[1][1]*dy

	r := math.Hypot(ix, iy)
	phi := 0.0
	if r != 0 {
		phi = math.Atan2(ix, -iy)
	}
	var theta float64
	switch c.Projection {
	case "SIN":
		v := r * deg
		if v > 1 {
			return math.NaN(), math.NaN()
		}
		theta = math.Acos(v)
	default:
		if r == 0 {
			theta = math.Pi / 2
		} else {
			theta = math.Atan(1 / (r * deg))
		}
	}

	// Native to celestial with the native pole at phi_p = 180 deg.
	a0 := c.CRVAL[0] * deg
	d0 := c.CRVAL[1] * deg
	sinT, cosT := math.Sincos(theta)
	sinD0, cosD0 := math.Sincos(d0)
	dphi := phi - math.Pi
	sinP, cosP := math.Sincos(dphi)

	dec = math.Asin(sinT*sinD0 + cosT*cosD0*cosP)
	ra = a0 + math.Atan2(-cosT*sinP, sinT*cosD0-cosT*sinD0*cosP)
	ra = math.Mod(ra/deg+360, 360)
	return ra, dec / deg
}

// WorldToPixel converts (ra, dec) in degrees to 0-based pixel coordinates.
func (c *Celestial) WorldToPixel(ra, dec float64) (x, y float64) {
	a0 := c.CRVAL[0] * deg
	d0 := c.CRVAL[1] * deg
	a := ra * deg
	d := dec * deg
	sinD, cosD := math.Sincos(d)
	sinD0, cosD0 := math.Sincos(d0)
	sinDA, cosDA := math.Sincos(a - a0)

	phi := math.Pi + math.Atan2(-cosD*sinDA, sinD*cosD0-cosD*sinD0*cosDA)
	theta := math.Asin(sinD*sinD0 + cosD*cosD0*cosDA)

	var r float64
	switch c.Projection {
	case "SIN":
		r = math.Cos(theta) / deg
	default:
		r = 1 / (math.Tan(theta) * deg)
	}
	ix := r * math.Sin(phi)
	iy := -r * math.Cos(phi)

	det := c.M[0][0]*c.M[1][1] - c.M[0][1]*c.M[1][0]
	dx := (c.M[1][1]*ix - c.M[0][1]*iy) / det
	dy := (-c.M[1][0]*ix + c.M[0][0]*iy) / det
	return dx + c.CRPIX[0] - 1, dy + c.CRPIX[1] - 1
}

// PixelArea returns the projected pixel area in square degrees.
func (c *Celestial) PixelArea() float64 {
	return math.Abs(c.M[0][0]*c.M[1][1] - c.M[0][1]*c.M[1][0])
}

// PixelScale returns the geometric mean pixel size in degrees.
func (c *Celestial) PixelScale() float64 {
	return math.Sqrt(c.PixelArea())
}
