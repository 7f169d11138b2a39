package profile

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/galaxy"
	"github.com/cwbudde/m33-lines/stats/line"
)

// ErrUnit is returned for moment-0 maps in an unsupported unit.
var ErrUnit = errors.New("profile: unsupported moment 0 unit")

// Profile is a radial surface-density profile.
type Profile struct {
	Radius []float64 // mean radius of each annulus, kpc
	SD     []float64 // Msun pc^-2
	Sigma  []float64 // Msun pc^-2
	NPix   []int
}

// Len returns the number of annuli.
func (p *Profile) Len() int { return len(p.Radius) }

// Scale divides the surface density and its error by f, as used for beam
// efficiency corrections.
func (p *Profile) Scale(f float64) *Profile {
	out := &Profile{
		Radius: append([]float64(nil), p.Radius...),
		SD:     make([]float64, len(p.SD)),
		Sigma:  make([]float64, len(p.Sigma)),
		NPix:   append([]int(nil), p.NPix...),
	}
	for i := range p.SD {
		out.SD[i] = p.SD[i] * f
		out.Sigma[i] = p.Sigma[i] * f
	}
	return out
}

// toKkms returns the factor converting mom0's unit to K km/s.
func toKkms(mom0 *cube.Map, cfg Config) (float64, error) {
	unit := strings.ToLower(mom0.Unit)
	unit = strings.Join(strings.Fields(strings.ReplaceAll(unit, ".", " ")), " ")
	unit = strings.ReplaceAll(unit, " s-1", "/s")
	switch unit {
	case "k km/s":
		return 1, nil
	case "k m/s":
		return 1e-3, nil
	case "jy/beam m/s", "jy m/s", "jy/beam km/s", "jy km/s":
		if cfg.Beam == nil {
			return 0, fmt.Errorf("%w: %q needs a beam", ErrUnit, mom0.Unit)
		}
		f := cfg.Beam.JyToK(cfg.RestFreq)
		if strings.HasSuffix(unit, " m/s") {
			f /= 1000
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnit, mom0.Unit)
}

// SurfaceDensity averages a moment-0 map in deprojected annuli.
//
// Each annulus [r0, r1) contributes the summed finite moment 0 divided by its
// pixel count (area weighting) or sum(m^2)/sum(m) (mass weighting). The
// uncertainty is the standard deviation over the square root of the number
// of beams in the annulus. Both are corrected for inclination and converted
// with the mass conversion factor.
func SurfaceDensity(gal galaxy.Params, mom0 *cube.Map, opts ...Option) (*Profile, error) {
	cfg := ApplyOptions(opts...)
	cel, err := mom0.Celestial()
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if cfg.Beam == nil {
		if b, err := mom0.Beam(); err == nil {
			cfg.Beam = &b
		} else {
			return nil, fmt.Errorf("profile: %w", err)
		}
	}
	conv, err := toKkms(mom0, cfg)
	if err != nil {
		return nil, err
	}

	radius := gal.RadiusMap(cel, mom0.Nx, mom0.Ny)
	var angle []float64
	if cfg.PA != nil {
		angle = gal.AngleMap(cel, mom0.Nx, mom0.Ny)
	}

	pixArea := cel.PixelArea()
	pixPerBeam := cfg.Beam.SolidAngle() / (pixArea * deg * deg)

	nbins := int(math.Floor(cfg.MaxRadius / cfg.BinWidth))
	bins := make([]*line.StreamingStats, nbins)
	radii := make([]*line.StreamingStats, nbins)
	for i := range bins {
		bins[i] = line.NewStreamingStats()
		radii[i] = line.NewStreamingStats()
	}
	for i, r := range radius {
		if math.IsNaN(r) {
			continue
		}
		b := int(math.Floor(r / cfg.BinWidth))
		if b < 0 || b >= nbins {
			continue
		}
		if angle != nil && !cfg.PA.Contains(angle[i]) {
			continue
		}
		bins[b].Add(mom0.Data[i] * conv)
		radii[b].Add(r)
	}

	cosi := gal.CosInclination()
	p := &Profile{
		Radius: make([]float64, nbins),
		SD:     make([]float64, nbins),
		Sigma:  make([]float64, nbins),
		NPix:   make([]int, nbins),
	}
	for i := range bins {
		rs := radii[i].Result()
		st := bins[i].Result()
		n := rs.Finite
		p.NPix[i] = n
		p.Radius[i] = rs.Mean / 1000
		if n == 0 {
			p.SD[i] = math.NaN()
			p.Sigma[i] = math.NaN()
			continue
		}
		var sd float64
		switch cfg.Weighting {
		case MassWeighted:
			sd = st.MassWeightedMean()
		default:
			sd = st.Sum / float64(n)
		}
		sigma := st.StdDev() / math.Sqrt(float64(n)/pixPerBeam)
		p.SD[i] = sd * cosi * cfg.MassConversion
		p.Sigma[i] = sigma * cosi * cfg.MassConversion
	}
	return p, nil
}

const deg = math.Pi / 180
