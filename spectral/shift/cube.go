package shift

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/astro/wcs"
)

// Result holds the shifted spectra in the order of their positions.
type Result struct {
	Header    *fitsfile.Header
	V0        float64 // m/s
	Spectra   [][]float64
	Positions []Position
}

// PixelShift returns the shift in channels that moves emission at vcent to
// v0 on an axis with signed channel width cdelt.
func PixelShift(v0, vcent, cdelt float64) float64 {
	return (v0 - vcent) / cdelt
}

// ShiftSpectrum moves a spectrum centred at vcent to v0 (both m/s) along
// axis.
func ShiftSpectrum(spectrum []float64, axis *wcs.Spectral, v0, vcent float64) []float64 {
	return FourierShift(spectrum, PixelShift(v0, vcent, axis.ChannelWidth()))
}

// velocityScale returns the factor converting unit to m/s.
func velocityScale(unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "m/s", "m s-1", "m.s-1":
		return 1, nil
	case "km/s", "km s-1", "km.s-1":
		return 1000, nil
	}
	return 0, fmt.Errorf("%w: %q is not a velocity", ErrUnitMismatch, unit)
}

func newSpectral(n int, padded bool) (Spectral, error) {
	if padded {
		return NewPaddedShifter(n)
	}
	return NewShifter(n), nil
}

// Shift moves every selected spectrum of c so that the velocity given by
// surface at its pixel lands on v0.
//
// The surface shares the cube's celestial grid and is in m/s unless its unit
// says km/s. v0 defaults to the velocity of the middle channel. The returned
// header has CRVAL3 reduced by v0, so aligned emission sits at zero
// velocity.
//
// Spectra are processed in chunks of Config.ChunkSize. Each chunk is shifted
// by Config.Workers goroutines, then written to the output file by the
// calling goroutine in position order, and the file is flushed.
func Shift(ctx context.Context, c *cube.Cube, surface *cube.Map, opts ...Option) (*Result, error) {
	cfg := ApplyOptions(opts...)
	log := cfg.Logger

	if cfg.OutputPath == "" && !cfg.ReturnSpectra {
		return nil, ErrNoOutput
	}
	if surface.Nx != c.Nx || surface.Ny != c.Ny {
		return nil, fmt.Errorf("%w: surface %dx%d, cube %dx%d", ErrShape, surface.Nx, surface.Ny, c.Nx, c.Ny)
	}
	if math.IsNaN(surface.Max()) {
		return nil, ErrNoFiniteVelocities
	}
	if !c.Spectral.IsVelocity() {
		return nil, fmt.Errorf("%w: cube axis is %s", ErrUnitMismatch, c.Spectral.CType)
	}
	surfScale, err := velocityScale(surface.Unit)
	if err != nil {
		return nil, err
	}

	posns := cfg.Positions
	if posns == nil {
		posns = finitePositions(surface)
	}

	axis := c.SpectralAxis()
	v0 := axis[c.NChan/2]
	if cfg.HasV0 {
		scale, err := velocityScale(cfg.V0Unit)
		if err != nil {
			return nil, err
		}
		v0 = cfg.V0 * scale
	}
	cdelt := c.ChannelWidth()

	header := c.Header.Clone()
	crval, err := c.Spectral.ShiftCRVAL(v0)
	if err != nil {
		return nil, err
	}
	header.Set("CRVAL3", crval, "")

	var out *fitsfile.HugeFile
	if cfg.OutputPath != "" {
		if err := fitsfile.CreateHuge(cfg.OutputPath, header, []int{c.Nx, c.Ny, c.NChan}); err != nil {
			return nil, err
		}
		out, err = fitsfile.OpenHuge(cfg.OutputPath)
		if err != nil {
			return nil, err
		}
		defer out.Close()
	}

	res := &Result{Header: header, V0: v0}
	if cfg.ReturnSpectra {
		res.Spectra = make([][]float64, 0, len(posns))
		res.Positions = make([]Position, 0, len(posns))
	}

	workers := max(cfg.Workers, 1)
	shifters := make([]Spectral, workers)
	for i := range shifters {
		if shifters[i], err = newSpectral(c.NChan, cfg.Padded); err != nil {
			return nil, err
		}
	}

	nchunks := 1 + len(posns)/cfg.ChunkSize
	log.Debug("shifting cube",
		zap.Int("spectra", len(posns)),
		zap.Int("chunks", nchunks),
		zap.Int("workers", cfg.Workers),
		zap.Float64("v0", v0))

	for i := 0; i < nchunks; i++ {
		lo := min(i*cfg.ChunkSize, len(posns))
		hi := min((i+1)*cfg.ChunkSize, len(posns))
		chunk := posns[lo:hi]

		shifted, err := shiftChunk(ctx, c, surface, surfScale, v0, cdelt, chunk, shifters)
		if err != nil {
			return nil, err
		}

		if out != nil {
			for j, p := range chunk {
				if err := out.WriteSpectrum(p.Y, p.X, shifted[j]); err != nil {
					return nil, err
				}
			}
			if err := out.Flush(); err != nil {
				return nil, err
			}
		}
		if cfg.ReturnSpectra {
			res.Spectra = append(res.Spectra, shifted...)
			res.Positions = append(res.Positions, chunk...)
		}
		log.Debug("shifted chunk", zap.Int("chunk", i+1), zap.Int("of", nchunks))
	}

	if out != nil {
		if err := out.Close(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// shiftChunk shifts the spectra at chunk, splitting the work across one
// goroutine per shifter. Results keep the order of chunk.
func shiftChunk(ctx context.Context, c *cube.Cube, surface *cube.Map, surfScale, v0, cdelt float64,
	chunk []Position, shifters []Spectral,
) ([][]float64, error) {
	results := make([][]float64, len(chunk))
	work := func(ctx context.Context, sh Spectral, start, step int) error {
		for j := start; j < len(chunk); j += step {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := chunk[j]
			vcent := surface.At(p.Y, p.X) * surfScale
			spec := c.Spectrum(p.Y, p.X)
			if math.IsNaN(vcent) || math.IsInf(vcent, 0) {
				results[j] = spec
				continue
			}
			out, err := sh.Shift(nil, spec, PixelShift(v0, vcent, cdelt))
			if err != nil {
				return err
			}
			results[j] = out
		}
		return nil
	}

	if len(shifters) == 1 {
		if err := work(ctx, shifters[0], 0, 1); err != nil {
			return nil, err
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for w, sh := range shifters {
		g.Go(func() error {
			return work(gctx, sh, w, len(shifters))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func finitePositions(m *cube.Map) []Position {
	var posns []Position
	for y := 0; y < m.Ny; y++ {
		for x := 0; x < m.Nx; x++ {
			v := m.At(y, x)
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				posns = append(posns, Position{Y: y, X: x})
			}
		}
	}
	return posns
}
