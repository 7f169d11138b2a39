// Package feather combines interferometric and single-dish images in the
// Fourier domain and compares their angular power spectra.
package feather

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/m33-lines/astro/beam"
	"github.com/cwbudde/m33-lines/spectral/spectrum"
)

// ErrShape is returned when an image does not match the grid.
var ErrShape = errors.New("feather: image shape mismatch")

// Config scales the two halves of the combination.
type Config struct {
	LowScale  float64
	HighScale float64
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig weights both images by one.
func DefaultConfig() Config {
	return Config{LowScale: 1, HighScale: 1}
}

// ApplyOptions applies opts on top of DefaultConfig.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLowScale multiplies the single-dish image, e.g. to correct a flux
// calibration mismatch.
func WithLowScale(f float64) Option {
	return func(c *Config) { c.LowScale = f }
}

// WithHighScale multiplies the interferometric image.
func WithHighScale(f float64) Option {
	return func(c *Config) { c.HighScale = f }
}

// KernelWeights returns |FFT(kernel)| of b sampled on the nx by ny grid in
// unshifted frequency order. The zero-frequency weight is one.
func KernelWeights(b beam.Beam, pixScale float64, nx, ny int) ([]float64, error) {
	k, err := spectrum.FFT2(b.Kernel(pixScale, nx, ny), nx, ny)
	if err != nil {
		return nil, err
	}
	w := spectrum.Magnitude(k)
	if dc := w[0]; dc > 0 {
		for i := range w {
			w[i] /= dc
		}
	}
	return w, nil
}

// Feather combines hi (interferometer, beam hiBeam) with lo (single dish
// regridded onto the same grid, beam loBeam). Both images are in Jy/beam
// of their own beam. The single-dish transform is rescaled to the
// interferometer beam and the interferometer transform is weighted by
// one minus the single-dish kernel. Non-finite pixels count as zero.
func Feather(hi, lo []float64, nx, ny int, hiBeam, loBeam beam.Beam, pixScale float64, opts ...Option) ([]float64, error) {
	if len(hi) != nx*ny || len(lo) != nx*ny {
		return nil, fmt.Errorf("%w: %d and %d pixels for %dx%d", ErrShape, len(hi), len(lo), nx, ny)
	}
	cfg := ApplyOptions(opts...)

	fhi, err := spectrum.FFT2(hi, nx, ny)
	if err != nil {
		return nil, err
	}
	flo, err := spectrum.FFT2(lo, nx, ny)
	if err != nil {
		return nil, err
	}
	w, err := KernelWeights(loBeam, pixScale, nx, ny)
	if err != nil {
		return nil, err
	}

	ratio := 1.0
	if sd := loBeam.SolidAngle(); sd > 0 {
		ratio = hiBeam.SolidAngle() / sd
	}
	low := complex(cfg.LowScale*ratio, 0)
	sum := make([]complex128, nx*ny)
	for i := range sum {
		sum[i] = flo[i]*low + fhi[i]*complex((1-w[i])*cfg.HighScale, 0)
	}
	out, err := spectrum.IFFT2(sum, nx, ny)
	if err != nil {
		return nil, err
	}
	return spectrum.Real(out), nil
}

// PowerSpectrum returns the azimuthally averaged |FT| of image, with the
// zero frequency at the grid centre. radii are in pixels of the
// frequency plane.
func PowerSpectrum(image []float64, nx, ny int) (radii, amp []float64, err error) {
	f, err := spectrum.FFT2(image, nx, ny)
	if err != nil {
		return nil, nil, err
	}
	mag, err := spectrum.CentredMagnitude(f, nx, ny)
	if err != nil {
		return nil, nil, err
	}
	radii, amp = spectrum.AzimuthalAverage(mag, nx, ny, 0)
	return radii, amp, nil
}

// AngularScale converts frequency-plane radii to angular scales,
// size*pixScale/r, in the units of pixScale. The zero radius maps to +Inf.
func AngularScale(radii []float64, size int, pixScale float64) []float64 {
	out := make([]float64, len(radii))
	for i, r := range radii {
		out[i] = pixScale * float64(size) / r
		if r == 0 {
			out[i] = math.Inf(1)
		}
	}
	return out
}
