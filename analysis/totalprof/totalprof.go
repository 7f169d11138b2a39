// Package totalprof builds total HI and CO(2-1) spectra of rotation
// subtracted cubes, overall and in galactocentric rings, and fits their
// line shapes.
package totalprof

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/m33-lines/astro/beam"
	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/galaxy"
)

var (
	// ErrNoWCS is returned for a cube without a celestial WCS.
	ErrNoWCS = errors.New("totalprof: cube has no celestial WCS")
	// ErrUnit is returned for cube units that cannot be put in K.
	ErrUnit = errors.New("totalprof: unsupported cube unit")
)

// Config controls the radial binning.
type Config struct {
	BinWidth  float64 // pc
	MaxRadius float64 // pc
	RestFreq  float64 // Hz, for Jy/beam cubes
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns 500 pc rings out to 6 kpc.
func DefaultConfig() Config {
	return Config{BinWidth: 500, MaxRadius: 6000, RestFreq: beam.HIRestFrequency}
}

// WithBinWidth sets the ring width in pc.
func WithBinWidth(dr float64) Option {
	return func(cfg *Config) {
		if dr > 0 {
			cfg.BinWidth = dr
		}
	}
}

// WithMaxRadius sets the outer edge of the last ring in pc.
func WithMaxRadius(r float64) Option {
	return func(cfg *Config) {
		if r > 0 {
			cfg.MaxRadius = r
		}
	}
}

// WithRestFreq sets the frequency used for the Jy/beam to K conversion.
func WithRestFreq(f float64) Option {
	return func(cfg *Config) {
		if f > 0 {
			cfg.RestFreq = f
		}
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Ring is a radial bin [Inner, Outer) in pc.
type Ring struct {
	Inner, Outer float64
}

// Name labels the ring like "0.0-500.0 pc".
func (r Ring) Name() string {
	return fmt.Sprintf("%.1f-%.1f pc", r.Inner, r.Outer)
}

// Rings returns floor(maxRadius/dr) consecutive rings starting at zero.
func Rings(dr, maxRadius float64) []Ring {
	n := int(math.Floor(maxRadius / dr))
	rings := make([]Ring, n)
	for i := range rings {
		rings[i] = Ring{Inner: float64(i) * dr, Outer: float64(i+1) * dr}
	}
	return rings
}

// Profiles holds summed spectra in K.
type Profiles struct {
	Rings    []Ring
	HIVels   []float64 // km/s
	COVels   []float64 // km/s
	HIRadial [][]float64
	CORadial [][]float64
	HITotal  []float64 // whole cube
	COTotal  []float64 // sum of the rings
}

// kelvin returns, per channel, the factor putting c's unit in K. Jy/beam
// cubes convert each channel with its own beam when the cube has a
// per-channel beam table.
func kelvin(c *cube.Cube, restFreq float64) ([]float64, error) {
	out := make([]float64, c.NChan)
	switch u := c.Unit; u {
	case "K", "k":
		for k := range out {
			out[k] = 1
		}
		return out, nil
	case "Jy/beam", "JY/BEAM", "Jy/Beam", "beam-1 Jy":
		for k := range out {
			b, ok := c.ChannelBeam(k)
			if !ok {
				return nil, fmt.Errorf("%w: %q without a beam", ErrUnit, u)
			}
			out[k] = b.JyToK(restFreq)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnit, c.Unit)
}

// ringSums sums the finite values of every channel of c over each ring.
// The last row holds the sum over the whole map.
func ringSums(gal galaxy.Params, c *cube.Cube, rings []Ring) ([][]float64, error) {
	if c.Celestial == nil {
		return nil, ErrNoWCS
	}
	radius := gal.RadiusMap(c.Celestial, c.Nx, c.Ny)
	bin := make([]int, len(radius))
	for i, r := range radius {
		bin[i] = -1
		for j, ring := range rings {
			if r >= ring.Inner && r < ring.Outer {
				bin[i] = j
				break
			}
		}
	}

	sums := make([][]float64, len(rings)+1)
	for i := range sums {
		sums[i] = make([]float64, c.NChan)
	}
	all := len(rings)
	for k := 0; k < c.NChan; k++ {
		for p, v := range c.Channel(k) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			sums[all][k] += v
			if bin[p] >= 0 {
				sums[bin[p]][k] += v
			}
		}
	}
	return sums, nil
}

func kms(vels []float64) []float64 {
	out := make([]float64, len(vels))
	vecmath.ScaleBlock(out, vels, 1e-3)
	return out
}

// Build sums the HI and CO cubes in rings. The HI cube is converted to K
// with its beam; the CO cube must already be in K.
func Build(gal galaxy.Params, hi, co *cube.Cube, opts ...Option) (*Profiles, error) {
	cfg := ApplyOptions(opts...)
	rings := Rings(cfg.BinWidth, cfg.MaxRadius)

	hiK, err := kelvin(hi, cfg.RestFreq)
	if err != nil {
		return nil, err
	}
	coK, err := kelvin(co, cfg.RestFreq)
	if err != nil {
		return nil, err
	}

	hiSums, err := ringSums(gal, hi, rings)
	if err != nil {
		return nil, err
	}
	coSums, err := ringSums(gal, co, rings)
	if err != nil {
		return nil, err
	}
	for _, s := range hiSums {
		vecmath.MulBlockInPlace(s, hiK)
	}
	for _, s := range coSums {
		vecmath.MulBlockInPlace(s, coK)
	}

	p := &Profiles{
		Rings:    rings,
		HIVels:   kms(hi.SpectralAxis()),
		COVels:   kms(co.SpectralAxis()),
		HIRadial: hiSums[:len(rings)],
		CORadial: coSums[:len(rings)],
		HITotal:  hiSums[len(rings)],
		COTotal:  make([]float64, co.NChan),
	}
	for _, s := range p.CORadial {
		vecmath.AddBlockInPlace(p.COTotal, s)
	}
	return p, nil
}

// Normalize divides spec by its maximum.
func Normalize(spec []float64) []float64 {
	out := make([]float64, len(spec))
	if len(spec) == 0 {
		return out
	}
	m := floats.Max(spec)
	if m == 0 {
		return out
	}
	vecmath.ScaleBlock(out, spec, 1/m)
	return out
}

// MolecularMass returns the H2 mass (Msun) traced by a total CO spectrum in
// K summed over pixels: positive channels times the channel width (km/s)
// and pixel area (pc^2), converted with conv and corrected for the beam
// efficiency.
func MolecularMass(total []float64, chanWidth, pixScale, conv, beamEff float64) float64 {
	var sum float64
	for _, v := range total {
		if v > 0 {
			sum += v
		}
	}
	return sum * math.Abs(chanWidth) * pixScale * pixScale * conv / beamEff
}
