// Package beam describes elliptical Gaussian telescope beams and the unit
// conversions that depend on them.
package beam

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/m33-lines/astro/fitsfile"
)

// Physical constants in SI units.
const (
	speedOfLight = 299792458.0
	boltzmann    = 1.380649e-23
	jansky       = 1e-26 // W m^-2 Hz^-1
)

// HIRestFrequency is the 21-cm line rest frequency in Hz.
const HIRestFrequency = 1.420405751786e9

const deg = math.Pi / 180

// fwhmToSigma converts a Gaussian FWHM to its standard deviation.
var fwhmToSigma = 1 / math.Sqrt(8*math.Ln2)

// ErrNoBeam is returned when a header carries no BMAJ/BMIN.
var ErrNoBeam = errors.New("beam: header has no beam")

// Beam is an elliptical Gaussian with FWHM axes and position angle in degrees.
type Beam struct {
	Major float64
	Minor float64
	PA    float64
}

// FromHeader reads BMAJ, BMIN and BPA.
func FromHeader(h *fitsfile.Header) (Beam, error) {
	bmaj, err := h.Float("BMAJ")
	if err != nil {
		return Beam{}, fmt.Errorf("%w: %v", ErrNoBeam, err)
	}
	bmin, err := h.Float("BMIN")
	if err != nil {
		return Beam{}, fmt.Errorf("%w: %v", ErrNoBeam, err)
	}
	return Beam{Major: bmaj, Minor: bmin, PA: h.FloatOr("BPA", 0)}, nil
}

// FromImage returns the beam of im. Multi-beam cubes without BMAJ in the
// header get the average of their per-channel beams.
func FromImage(im *fitsfile.Image) (Beam, error) {
	b, err := FromHeader(im.Header)
	if err == nil || len(im.Beams) == 0 {
		return b, err
	}
	return Average(Channels(im.Beams))
}

// Channels converts a per-plane beam table to one beam per channel,
// keeping the first polarization listed for each channel.
func Channels(rows []fitsfile.BeamRow) []Beam {
	var out []Beam
	seen := map[int]bool{}
	for _, r := range rows {
		if seen[r.Chan] {
			continue
		}
		seen[r.Chan] = true
		out = append(out, Beam{Major: r.Major, Minor: r.Minor, PA: r.PA})
	}
	return out
}

// Rows is the inverse of [Channels]: one table row per channel.
func Rows(beams []Beam) []fitsfile.BeamRow {
	out := make([]fitsfile.BeamRow, len(beams))
	for k, b := range beams {
		out[k] = fitsfile.BeamRow{Chan: k, Major: b.Major, Minor: b.Minor, PA: b.PA}
	}
	return out
}

// Circular returns a round beam of the given FWHM in degrees.
func Circular(fwhm float64) Beam {
	return Beam{Major: fwhm, Minor: fwhm}
}

// SolidAngle returns the beam solid angle in steradians.
func (b Beam) SolidAngle() float64 {
	return math.Pi / (4 * math.Ln2) * (b.Major * deg) * (b.Minor * deg)
}

// AverageFWHM returns sqrt(major*minor) in degrees.
func (b Beam) AverageFWHM() float64 {
	return math.Sqrt(b.Major * b.Minor)
}

// JyToK returns the Rayleigh-Jeans brightness temperature in K of 1 Jy/beam
// at freq (Hz).
func (b Beam) JyToK(freq float64) float64 {
	omega := b.SolidAngle()
	if omega == 0 || freq == 0 {
		return math.NaN()
	}
	return jansky * speedOfLight * speedOfLight / (2 * boltzmann * freq * freq * omega)
}

// Average returns the beam whose axes are the mean of the inputs'. Position
// angles are averaged on the doubled circle so 0 and 180 agree.
func Average(beams []Beam) (Beam, error) {
	if len(beams) == 0 {
		return Beam{}, ErrNoBeam
	}
	var out Beam
	var s, c float64
	for _, b := range beams {
		out.Major += b.Major
		out.Minor += b.Minor
		s += math.Sin(2 * b.PA * deg)
		c += math.Cos(2 * b.PA * deg)
	}
	n := float64(len(beams))
	out.Major /= n
	out.Minor /= n
	out.PA = math.Atan2(s, c) / 2 / deg
	return out, nil
}

// Kernel samples the beam on an nx by ny grid of pixScale-degree pixels,
// centred on (nx/2, ny/2), normalized to unit sum. The result is row major.
func (b Beam) Kernel(pixScale float64, nx, ny int) []float64 {
	out := make([]float64, nx*ny)
	if pixScale <= 0 || nx == 0 || ny == 0 {
		return out
	}
	sMaj := b.Major * fwhmToSigma / pixScale
	sMin := b.Minor * fwhmToSigma / pixScale
	// PA is east of north; image x grows west for standard headers, so the
	// major axis direction in pixels is (-sin PA, cos PA).
	sinPA, cosPA := math.Sincos(b.PA * deg)
	cx := float64(nx / 2)
	cy := float64(ny / 2)

	var sum float64
	for y := 0; y < ny; y++ {
		dy := float64(y) - cy
		for x := 0; x < nx; x++ {
			dx := float64(x) - cx
			u := -dx*sinPA + dy*cosPA
			v := dx*cosPA + dy*sinPA
			val := math.Exp(-0.5 * (u*u/(sMaj*sMaj) + v*v/(sMin*sMin)))
			out[y*nx+x] = val
			sum += val
		}
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return out
}

// EllipsePoints returns n points on the FWHM ellipse around (cx, cy) in
// pixel units.
func (b Beam) EllipsePoints(cx, cy, pixScale float64, n int) (xs, ys []float64) {
	if n < 3 {
		n = 3
	}
	a := b.Major / 2 / pixScale
	c := b.Minor / 2 / pixScale
	sinPA, cosPA := math.Sincos(b.PA * deg)
	xs = make([]float64, n+1)
	ys = make([]float64, n+1)
	for i := 0; i <= n; i++ {
		t := 2 * math.Pi * float64(i) / float64(n)
		u := a * math.Cos(t)
		v := c * math.Sin(t)
		xs[i] = cx - u*sinPA + v*cosPA
		ys[i] = cy + u*cosPA + v*sinPA
	}
	return xs, ys
}

// String formats the beam in arcseconds.
func (b Beam) String() string {
	return fmt.Sprintf("%.2f\" x %.2f\" PA %.1f deg", b.Major*3600, b.Minor*3600, b.PA)
}
