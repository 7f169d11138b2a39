package totalprof

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/internal/config"
	"github.com/cwbudde/m33-lines/internal/table"
)

// Run builds the rotation-subtracted total profiles, fits them, and writes
// the figures and parameter tables.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	gal, err := cfg.GalaxyParams()
	if err != nil {
		return err
	}
	paths, prod := cfg.Paths, cfg.Products

	co, err := cube.Read(paths.IRAMCO21(prod.CORotsubCube))
	if err != nil {
		return err
	}
	hi, err := cube.Read(paths.FourteenBHI(prod.RotsubCube))
	if err != nil {
		return err
	}
	mask, err := fitsfile.ReadImage(paths.FourteenBHI(prod.RotsubMask))
	if err != nil {
		return err
	}
	if hi, err = hi.WithMaskImage(mask); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	prof, err := Build(gal, hi, co, WithRestFreq(cfg.Constants.HIRestFreq))
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pixScale := gal.Distance * math.Abs(co.Celestial.PixelScale()) * math.Pi / 180
	mass := MolecularMass(prof.COTotal, co.ChannelWidth()/1000, pixScale,
		cfg.Constants.COMassConversion, cfg.Constants.IRAMBeamEfficiency)
	logger.Info("total H2 mass from CO", zap.Float64("msun", mass))

	fits, err := prof.Fit()
	if err != nil {
		return err
	}
	for _, r := range []struct {
		label string
		names []string
		vals  []float64
		errs  []float64
	}{
		{"HI", fits.HI.Names, fits.HI.Params, fits.HI.Errors},
		{"HI Lorentzian", fits.HILorentz.Names, fits.HILorentz.Params, fits.HILorentz.Errors},
		{"CO(2-1)", fits.CO.Names, fits.CO.Params, fits.CO.Errors},
	} {
		fields := []zap.Field{zap.String("fit", r.label)}
		for i, n := range r.names {
			fields = append(fields, zap.Float64(n, r.vals[i]), zap.Float64(n+"_err", r.errs[i]))
		}
		logger.Info("fitted total profile", fields...)
	}

	if err := prof.Figures(paths.Paper1Figures, fits); err != nil {
		return err
	}

	hiTable, err := ParamTable(fits.HI)
	if err != nil {
		return err
	}
	lorentzTable, err := ParamTable(fits.HILorentz)
	if err != nil {
		return err
	}
	coTable, err := ParamTable(fits.CO)
	if err != nil {
		return err
	}
	coRings, err := RingTable(prof.Rings, fits.CORings)
	if err != nil {
		return err
	}
	hiRings, err := RingTable(prof.Rings, fits.HIRings)
	if err != nil {
		return err
	}

	tables := []struct {
		t    *table.ParamTable
		path string
	}{
		{hiTable, paths.Paper1Tables("hi_gaussian_totalprof_fits.tex")},
		{hiTable, paths.FourteenBHI("tables/hi_gaussian_totalprof_fits.csv")},
		{lorentzTable, paths.Paper1Tables("hi_gaussian_totalprof_fits_lorentz.tex")},
		{lorentzTable, paths.FourteenBHI("tables/hi_gaussian_totalprof_fits_lorentz.csv")},
		{coTable, paths.Paper1Tables("co_gaussian_totalprof_fits.tex")},
		{coTable, paths.IRAMCO21("tables/co_gaussian_totalprof_fits.csv")},
		{coRings, paths.Paper1Tables("co_gaussian_totalprof_fits_radial.tex")},
		{coRings, paths.IRAMCO21("tables/co_gaussian_totalprof_fits_radial.csv")},
		{hiRings, paths.Paper1Tables("hi_gaussian_totalprof_fits_radial.tex")},
		{hiRings, paths.FourteenBHI("tables/hi_gaussian_totalprof_fits_radial.csv")},
	}
	for _, t := range tables {
		if err := t.t.Save(t.path); err != nil {
			return err
		}
		logger.Debug("wrote table", zap.String("path", t.path))
	}
	return nil
}
