// Package rotsub removes a disk rotation model from a spectral-line cube.
//
// Every spectrum is shifted so that the model velocity at its pixel lands
// on the systemic velocity. The source mask is shifted the same way, and
// the output cube is labelled so the systemic velocity sits at zero.
package rotsub

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/spectral/shift"
	"github.com/cwbudde/m33-lines/stats/line"
)

// DefaultFlushEvery is the number of spectra written between flushes.
const DefaultFlushEvery = 10000

// maskThreshold keeps shifted mask channels whose ringing-free value is
// above one half.
const maskThreshold = 0.5

var (
	// ErrShape is returned when the model or mask does not match the cube.
	ErrShape = errors.New("rotsub: model or mask does not match the cube")
	// ErrNoVsys is returned when the parameter table has no Vsys value.
	ErrNoVsys = errors.New("rotsub: no systemic velocity")
)

// Config controls a rotation subtraction.
type Config struct {
	FlushEvery int
	Workers    int // 0 shifts serially
	Logger     *zap.Logger
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig flushes every DefaultFlushEvery spectra and runs serially.
func DefaultConfig() Config {
	return Config{FlushEvery: DefaultFlushEvery}
}

// WithFlushEvery sets the flush interval in spectra.
func WithFlushEvery(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.FlushEvery = n
		}
	}
}

// WithWorkers sets the number of goroutines shifting spectra.
func WithWorkers(n int) Option {
	return func(cfg *Config) {
		if n >= 0 {
			cfg.Workers = n
		}
	}
}

// WithLogger reports progress to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = logger
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
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

// Positions returns every pixel with a finite model velocity, in reverse
// row-major order.
func Positions(model *cube.Map) []shift.Position {
	var posns []shift.Position
	for y := model.Ny - 1; y >= 0; y-- {
		for x := model.Nx - 1; x >= 0; x-- {
			v := model.At(y, x)
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				posns = append(posns, shift.Position{Y: y, X: x})
			}
		}
	}
	return posns
}

// Header returns the cube header relabelled so vsys (m/s) becomes zero.
func Header(c *cube.Cube, vsys float64) (*fitsfile.Header, error) {
	crval, err := c.Spectral.ShiftCRVAL(vsys)
	if err != nil {
		return nil, fmt.Errorf("rotsub: %w", err)
	}
	h := c.Header.Clone()
	h.Set("CRVAL3", crval, "")
	return h, nil
}

// Subtract writes the rotation-subtracted cube to out and returns the
// shifted mask. The model map is in m/s and vsys in m/s. mask may be nil;
// otherwise it holds one value per voxel, positive where the source is.
//
// out must not exist. Pixels outside the model and spectra without any
// finite value keep the zeros of the preallocated file.
func Subtract(ctx context.Context, c *cube.Cube, mask []float64, model *cube.Map, vsys float64,
	out string, opts ...Option,
) ([]float64, error) {
	cfg := ApplyOptions(opts...)
	log := cfg.Logger

	if model.Nx != c.Nx || model.Ny != c.Ny {
		return nil, fmt.Errorf("%w: model %dx%d, cube %dx%d", ErrShape, model.Nx, model.Ny, c.Nx, c.Ny)
	}
	if mask != nil && len(mask) != len(c.Data) {
		return nil, fmt.Errorf("%w: mask has %d values, cube %d", ErrShape, len(mask), len(c.Data))
	}
	if !c.Spectral.IsVelocity() {
		return nil, fmt.Errorf("%w: cube axis is %s", shift.ErrUnitMismatch, c.Spectral.CType)
	}

	header, err := Header(c, vsys)
	if err != nil {
		return nil, err
	}
	if err := fitsfile.CreateHuge(out, header, []int{c.Nx, c.Ny, c.NChan}); err != nil {
		return nil, err
	}
	hf, err := fitsfile.OpenHuge(out)
	if err != nil {
		return nil, err
	}
	defer hf.Close()

	var shifted []float64
	if mask != nil {
		shifted = make([]float64, len(mask))
		copy(shifted, mask)
	}

	posns := Positions(model)
	cdelt := c.ChannelWidth()
	workers := max(cfg.Workers, 1)
	shifters := make([]*shift.Shifter, workers)
	for i := range shifters {
		shifters[i] = shift.NewShifter(c.NChan)
	}
	plane := c.Nx * c.Ny

	log.Info("subtracting rotation",
		zap.Int("spectra", len(posns)),
		zap.Float64("vsys", vsys),
		zap.Int("workers", cfg.Workers))

	for lo := 0; lo < len(posns); lo += cfg.FlushEvery {
		chunk := posns[lo:min(lo+cfg.FlushEvery, len(posns))]
		specs := make([][]float64, len(chunk))

		work := func(ctx context.Context, sh *shift.Shifter, start, step int) error {
			for j := start; j < len(chunk); j += step {
				if err := ctx.Err(); err != nil {
					return err
				}
				p := chunk[j]
				spec := c.Spectrum(p.Y, p.X)
				if !line.AnyFinite(spec) {
					continue
				}
				s := shift.PixelShift(vsys, model.At(p.Y, p.X), cdelt)
				res, err := sh.Shift(nil, spec, s)
				if err != nil {
					return err
				}
				specs[j] = res
				if shifted == nil {
					continue
				}
				m := make([]float64, c.NChan)
				for k := range m {
					m[k] = mask[k*plane+p.Y*c.Nx+p.X]
				}
				sm, err := sh.Shift(nil, m, s)
				if err != nil {
					return err
				}
				// Distinct pixels write disjoint voxels.
				for k, v := range sm {
					if v > maskThreshold {
						shifted[k*plane+p.Y*c.Nx+p.X] = 1
					} else {
						shifted[k*plane+p.Y*c.Nx+p.X] = 0
					}
				}
			}
			return nil
		}

		if workers == 1 {
			if err := work(ctx, shifters[0], 0, 1); err != nil {
				return nil, err
			}
		} else {
			g, gctx := errgroup.WithContext(ctx)
			for w, sh := range shifters {
				g.Go(func() error {
					return work(gctx, sh, w, workers)
				})
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
		}

		for j, p := range chunk {
			if specs[j] == nil {
				continue
			}
			if err := hf.WriteSpectrum(p.Y, p.X, specs[j]); err != nil {
				return nil, err
			}
		}
		if err := hf.Flush(); err != nil {
			return nil, err
		}
		log.Debug("flushed", zap.Int("done", lo+len(chunk)), zap.Int("of", len(posns)))
	}

	if err := hf.Close(); err != nil {
		return nil, err
	}
	return shifted, nil
}
