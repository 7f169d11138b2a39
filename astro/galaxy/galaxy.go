// Package galaxy deprojects sky positions onto the plane of an inclined
// disk galaxy.
package galaxy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cwbudde/m33-lines/astro/wcs"
)

const deg = math.Pi / 180

// Params describes a galaxy disk. Angles are in degrees, the distance in pc
// and the systemic velocity in m/s.
type Params struct {
	RA          float64
	Dec         float64
	PA          float64 // major axis position angle, east of north
	Inclination float64
	Distance    float64
	Vsys        float64
}

// M33 returns the disk parameters used throughout the M33 analysis.
func M33() Params {
	ra, _ := ParseRA("01h33m50.904s")
	dec, _ := ParseDec("+30d39m35.79s")
	return Params{
		RA:          ra,
		Dec:         dec,
		PA:          201.1,
		Inclination: 55.08,
		Distance:    840e3,
		Vsys:        -180e3,
	}
}

// CosInclination returns cos(i).
func (p Params) CosInclination() float64 {
	return math.Cos(p.Inclination * deg)
}

// Offsets returns the angular offsets (radians) of (ra, dec) from the
// centre along the major axis and along the minor axis in the sky plane.
func (p Params) Offsets(ra, dec float64) (major, minor float64) {
	a := (ra - p.RA) * deg
	d := dec * deg
	d0 := p.Dec * deg
	sinD, cosD := math.Sincos(d)
	sinD0, cosD0 := math.Sincos(d0)
	sinA, cosA := math.Sincos(a)

	// Offsets in a frame centred on the galaxy, east and north.
	x := cosD * sinA
	y := sinD*cosD0 - cosD*sinD0*cosA
	z := sinD*sinD0 + cosD*cosD0*cosA
	east := math.Atan2(x, z)
	north := math.Asin(y)

	sinPA, cosPA := math.Sincos(p.PA * deg)
	major = east*sinPA + north*cosPA
	minor = -east*cosPA + north*sinPA
	return major, minor
}

// DiskCoords returns the deprojected disk-plane position in pc, the x axis
// along the major axis.
func (p Params) DiskCoords(ra, dec float64) (x, y float64) {
	major, minor := p.Offsets(ra, dec)
	return major * p.Distance, minor / p.CosInclination() * p.Distance
}

// Radius returns the galactocentric radius (pc) in the disk plane.
func (p Params) Radius(ra, dec float64) float64 {
	return math.Hypot(p.DiskCoords(ra, dec))
}

// Angle returns the azimuth (radians, in (-pi, pi]) in the disk plane,
// zero along the major axis direction given by PA.
func (p Params) Angle(ra, dec float64) float64 {
	x, y := p.DiskCoords(ra, dec)
	return math.Atan2(y, x)
}

// RadiusMap returns the radius (pc) of every pixel of an nx by ny grid.
func (p Params) RadiusMap(c *wcs.Celestial, nx, ny int) []float64 {
	out := make([]float64, nx*ny)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			ra, dec := c.PixelToWorld(float64(x), float64(y))
			out[y*nx+x] = p.Radius(ra, dec)
		}
	}
	return out
}

// AngleMap returns the disk azimuth (radians) of every pixel.
func (p Params) AngleMap(c *wcs.Celestial, nx, ny int) []float64 {
	out := make([]float64, nx*ny)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			ra, dec := c.PixelToWorld(float64(x), float64(y))
			out[y*nx+x] = p.Angle(ra, dec)
		}
	}
	return out
}

// WrapAngle wraps a to (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// AngleRange selects disk azimuths from Lo towards Hi counterclockwise. When
// Lo > Hi after wrapping, the range passes through pi.
type AngleRange struct {
	Lo, Hi float64
}

// North and South split M33 along its minor axis.
var (
	North = AngleRange{Lo: math.Pi / 2, Hi: -math.Pi / 2}
	South = AngleRange{Lo: -math.Pi / 2, Hi: math.Pi / 2}
)

// Contains reports whether angle a lies in [Lo, Hi).
func (r AngleRange) Contains(a float64) bool {
	lo, hi, a := WrapAngle(r.Lo), WrapAngle(r.Hi), WrapAngle(a)
	if lo > hi {
		return a >= lo || a < hi
	}
	return a >= lo && a < hi
}

// ParseRA parses "HHhMMmSS.Ss" (or colon separated) into degrees.
func ParseRA(s string) (float64, error) {
	v, err := parseSexagesimal(s, "hms")
	if err != nil {
		return 0, fmt.Errorf("galaxy: right ascension %q: %w", s, err)
	}
	return v * 15, nil
}

// ParseDec parses "+DDdMMmSS.Ss" (or colon separated) into degrees.
func ParseDec(s string) (float64, error) {
	v, err := parseSexagesimal(s, "dms")
	if err != nil {
		return 0, fmt.Errorf("galaxy: declination %q: %w", s, err)
	}
	return v, nil
}

func parseSexagesimal(s, units string) (float64, error) {
	s = strings.TrimSpace(s)
	sign := 1.0
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	} else {
		s = strings.TrimPrefix(s, "+")
	}
	s = strings.TrimRight(s, string(units[2]))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ':' || r == ' ' || r == rune(units[0]) || r == rune(units[1])
	})
	if len(fields) == 0 || len(fields) > 3 {
		return 0, fmt.Errorf("want 1 to 3 fields, got %d", len(fields))
	}
	var v float64
	scale := 1.0
	for _, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, err
		}
		v += x / scale
		scale *= 60
	}
	return sign * v, nil
}
