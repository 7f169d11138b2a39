package profile

import (
	"github.com/cwbudde/m33-lines/astro/beam"
	"github.com/cwbudde/m33-lines/astro/galaxy"
)

// Weighting selects how pixels in an annulus are averaged.
type Weighting int

const (
	// AreaWeighted divides the summed surface density by the pixel count.
	AreaWeighted Weighting = iota
	// MassWeighted weights every pixel by its own surface density.
	MassWeighted
)

// String returns "area" or "mass".
func (w Weighting) String() string {
	if w == MassWeighted {
		return "mass"
	}
	return "area"
}

// HIMassConversion converts HI K km/s to Msun pc^-2.
const HIMassConversion = 0.0196

// Config controls [SurfaceDensity].
type Config struct {
	BinWidth       float64 // pc
	MaxRadius      float64 // pc
	PA             *galaxy.AngleRange
	Weighting      Weighting
	MassConversion float64 // Msun pc^-2 per K km/s
	Beam           *beam.Beam
	RestFreq       float64 // Hz, for Jy/beam maps
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns 100 pc bins out to 10 kpc with the HI conversion.
func DefaultConfig() Config {
	return Config{
		BinWidth:       100,
		MaxRadius:      10e3,
		MassConversion: HIMassConversion,
		RestFreq:       beam.HIRestFrequency,
	}
}

// WithBinWidth sets the annulus width in pc.
func WithBinWidth(dr float64) Option {
	return func(cfg *Config) {
		if dr > 0 {
			cfg.BinWidth = dr
		}
	}
}

// WithMaxRadius sets the outer edge of the last annulus in pc.
func WithMaxRadius(r float64) Option {
	return func(cfg *Config) {
		if r > 0 {
			cfg.MaxRadius = r
		}
	}
}

// WithPA restricts the profile to a range of disk azimuths.
func WithPA(r galaxy.AngleRange) Option {
	return func(cfg *Config) {
		cfg.PA = &r
	}
}

// WithWeighting selects area or mass weighting.
func WithWeighting(w Weighting) Option {
	return func(cfg *Config) {
		cfg.Weighting = w
	}
}

// WithMassConversion sets the K km/s to Msun pc^-2 factor.
func WithMassConversion(f float64) Option {
	return func(cfg *Config) {
		if f > 0 {
			cfg.MassConversion = f
		}
	}
}

// WithBeam overrides the beam read from the map header.
func WithBeam(b beam.Beam) Option {
	return func(cfg *Config) {
		cfg.Beam = &b
	}
}

// WithRestFreq sets the frequency used to convert Jy/beam to K.
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
