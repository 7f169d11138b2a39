// Package moments makes moment maps of an HI cube and the figures that show
// them for the VLA-only and feathered VLA+GBT data.
package moments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gonum.org/v1/plot/palette/moreland"

	"github.com/cwbudde/m33-lines/astro/beam"
	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/internal/config"
	"github.com/cwbudde/m33-lines/internal/figure"
)

// Display limits.
const (
	mom0Min      = -0.001 // K km/s
	centroidMin  = -300.0 // km/s
	centroidMax  = -70.0
	diffLimit    = 20.0 // km/s
	asinhSoften  = 0.1
	beamFraction = 0.05
)

// Set is one moment map product set.
type Set struct {
	Moment0  *cube.Map // Jy/beam m/s
	Moment1  *cube.Map // m/s
	PeakTemp *cube.Map
	PeakVels *cube.Map // m/s
}

// Compute derives the moment maps from c.
func Compute(c *cube.Cube) Set {
	return Set{
		Moment0:  c.Moment0(),
		Moment1:  c.Moment1(),
		PeakTemp: c.PeakTemperature(),
		PeakVels: c.PeakVelocity(),
	}
}

// Write saves the set under the product names of prod, resolved with
// locate. Existing files are replaced only when overwrite is set.
func (s Set) Write(locate func(string) string, prod config.Products, overwrite bool) error {
	for _, m := range []struct {
		m    *cube.Map
		name string
	}{
		{s.Moment0, prod.Moment0},
		{s.Moment1, prod.Moment1},
		{s.PeakTemp, prod.PeakTemp},
		{s.PeakVels, prod.PeakVels},
	} {
		path := locate(m.name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("moments: %w", err)
		}
		if err := m.m.Write(path, overwrite); err != nil {
			return err
		}
	}
	return nil
}

// Read loads a set written by Write.
func Read(locate func(string) string, prod config.Products) (Set, error) {
	var s Set
	for _, r := range []struct {
		dst  **cube.Map
		name string
	}{
		{&s.Moment0, prod.Moment0},
		{&s.Moment1, prod.Moment1},
		{&s.PeakTemp, prod.PeakTemp},
		{&s.PeakVels, prod.PeakVels},
	} {
		m, err := cube.ReadMap(locate(r.name))
		if err != nil {
			return Set{}, err
		}
		*r.dst = m
	}
	return s, nil
}

// Intensity converts a Jy/beam m/s moment 0 to K km/s.
func Intensity(mom0 *cube.Map, b beam.Beam, restFreq float64) *cube.Map {
	return mom0.Scale(b.JyToK(restFreq)/1000, "K km/s")
}

// ColumnDensity converts K km/s to optically thin HI column density.
func ColumnDensity(kkms *cube.Map, factor float64) *cube.Map {
	return kkms.Scale(factor, "cm-2")
}

func imageOf(m *cube.Map) figure.Grid {
	return figure.Grid{Nx: m.Nx, Ny: m.Ny, Data: m.Data}
}

func saveImage(s figure.Style, m *cube.Map, b *beam.Beam, base string, opts ...figure.ImageOption) error {
	img, err := figure.Image(s, imageOf(m), opts...)
	if err != nil {
		return err
	}
	if b != nil {
		cel, err := m.Celestial()
		if err != nil {
			return err
		}
		if err := figure.AddBeam(img.Plot, *b, m.Nx, m.Ny, cel.PixelScale()); err != nil {
			return err
		}
	}
	return img.Save(s, base)
}

// Figures writes the moment figures for the VLA and feathered sets. The
// VLA moment 0 beam is used for both intensity conversions. name maps a
// figure name to an output path without extension.
func Figures(name func(string) string, vla, feathered Set, consts config.Constants) error {
	b, err := vla.Moment0.Beam()
	if err != nil {
		return fmt.Errorf("moments: %w", err)
	}
	s := figure.TwoColumn(0.95, 1.2)
	asinh := figure.WithStretch(figure.Asinh(asinhSoften))

	for _, set := range []struct {
		set    Set
		suffix string
	}{
		{vla, ""},
		{feathered, "_feather"},
	} {
		kkms := Intensity(set.set.Moment0, b, consts.HIRestFreq)
		if err := saveImage(s, kkms, &b, name("zeroth_moment_map_14B088"+set.suffix),
			figure.WithRange(mom0Min, kkms.Max()), asinh,
			figure.WithColorBar("Integrated Intensity (K km/s)")); err != nil {
			return err
		}

		cd := ColumnDensity(kkms, consts.HIColumnFactor)
		if err := saveImage(s, cd, &b, name("coldens_map_14B088"+set.suffix),
			figure.WithRange(mom0Min*consts.HIColumnFactor, cd.Max()), asinh,
			figure.WithColorBar("HI Column Density (cm^-2)")); err != nil {
			return err
		}

		pt := set.set.PeakTemp
		if err := saveImage(s, pt, &b, name("peaktemps_map_14B088"+set.suffix),
			figure.WithRange(0, pt.Max()), asinh,
			figure.WithColorBar("HI Peak Temperature (K)")); err != nil {
			return err
		}

		cent := set.set.Moment1.Scale(1e-3, "km/s")
		if err := saveImage(s, cent, nil, name("centroid_map_14B088"+set.suffix),
			figure.WithRange(centroidMin, centroidMax),
			figure.WithColorMap(moreland.ExtendedKindlmann()),
			figure.WithColorBar("Centroid Velocity (km/s)")); err != nil {
			return err
		}
	}

	diff, err := feathered.Moment1.Sub(vla.Moment1)
	if err != nil {
		return fmt.Errorf("moments: %w", err)
	}
	return saveImage(s, diff.Scale(1e-3, "km/s"), nil, name("centroid_map_14B088_feather_diff"),
		figure.WithRange(-diffLimit, diffLimit),
		figure.WithColorMap(moreland.SmoothBlueRed()),
		figure.WithColorBar("Difference in Centroid Velocity (km/s)"))
}

// Run writes the moment figures. With compute set, the VLA moment maps are
// first derived from the cube, masked by the source mask when one exists,
// and saved.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger, compute bool) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths, prod := cfg.Paths, cfg.Products

	if compute {
		c, err := cube.Read(paths.FourteenBHI(prod.Cube))
		if err != nil {
			return err
		}
		if mask, err := fitsfile.ReadImage(paths.FourteenBHI(prod.Mask)); err == nil {
			if c, err = c.WithMaskImage(mask); err != nil {
				return err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		set := Compute(c)
		if err := set.Write(paths.FourteenBHI, prod, true); err != nil {
			return err
		}
		logger.Info("wrote moment maps", zap.String("cube", prod.Cube))
	}

	vla, err := Read(paths.FourteenBHI, prod)
	if err != nil {
		return err
	}
	feathered, err := Read(paths.FourteenBWithGBT, prod)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Figures(paths.AllFigures, vla, feathered, cfg.Constants); err != nil {
		return err
	}
	logger.Info("wrote moment figures", zap.String("dir", paths.AllFigures("")))
	return nil
}
