package rotsub

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/astro/wcs"
	"github.com/cwbudde/m33-lines/internal/config"
	"github.com/cwbudde/m33-lines/internal/table"
)

// ReadVsys returns the systemic velocity (m/s) from the Vsys column (km/s)
// of a DiskFit parameter table.
func ReadVsys(path string) (float64, error) {
	t, err := table.ReadCSV(path)
	if err != nil {
		return 0, err
	}
	col, err := t.Float("Vsys")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNoVsys, err)
	}
	if len(col) == 0 || math.IsNaN(col[0]) {
		return 0, fmt.Errorf("%w: %s", ErrNoVsys, path)
	}
	return col[0] * 1000, nil
}

// Run subtracts the DiskFit rotation model from the HI cube and writes the
// rotation-subtracted cube and mask next to it. The beam table of the input
// cube is appended to the output, and the mask header is relabelled like
// the cube's.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths, prod := cfg.Paths, cfg.Products

	cubePath := paths.FourteenBHI(prod.Cube)
	logger.Info("reading cube", zap.String("path", cubePath))
	c, err := cube.Read(cubePath)
	if err != nil {
		return err
	}
	maskPath := paths.FourteenBHI(prod.Mask)
	maskIm, err := fitsfile.ReadImage(maskPath)
	if err != nil {
		return err
	}
	maskIm.Squeeze()
	model, err := cube.ReadMap(paths.FourteenBHI(prod.DiskfitModel))
	if err != nil {
		return err
	}
	vsys, err := ReadVsys(paths.FourteenBHI(prod.DiskfitParams))
	if err != nil {
		return err
	}

	out := paths.FourteenBHI(prod.RotsubCube)
	shifted, err := Subtract(ctx, c, maskIm.Data, model, vsys, out,
		WithWorkers(cfg.Shift.Workers), WithLogger(logger))
	if err != nil {
		return err
	}

	maskOut := paths.FourteenBHI(prod.RotsubMask)
	maskIm.Data = shifted
	if spec, err := wcs.SpectralFromHeader(maskIm.Header); err == nil {
		if crval, err := spec.ShiftCRVAL(vsys); err == nil {
			maskIm.Header.Set("CRVAL3", crval, "")
		}
	}
	if err := fitsfile.WriteImage(maskOut, maskIm, true); err != nil {
		return err
	}

	hf, err := fitsfile.OpenHuge(out)
	if err != nil {
		return err
	}
	if err := hf.AppendExtensions(cubePath); err != nil {
		hf.Close()
		return err
	}
	if err := hf.Close(); err != nil {
		return err
	}
	logger.Info("wrote rotation-subtracted cube",
		zap.String("cube", out),
		zap.String("mask", maskOut))
	return nil
}
