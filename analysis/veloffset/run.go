package veloffset

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/internal/config"
)

// MaskCount sums a source-mask cube along the spectral axis.
func MaskCount(im *fitsfile.Image) (*cube.Map, error) {
	im.Squeeze()
	if len(im.Axes) != 3 {
		return nil, fmt.Errorf("%w: mask axes %v", ErrShape, im.Axes)
	}
	nx, ny, nchan := im.Axes[0], im.Axes[1], im.Axes[2]
	m := cube.NewMap(nil, nx, ny)
	plane := nx * ny
	for p := 0; p < plane; p++ {
		var n float64
		for k := 0; k < nchan; k++ {
			if v := im.Data[k*plane+p]; !math.IsNaN(v) {
				n += v
			}
		}
		m.Data[p] = n
	}
	return m, nil
}

func readKms(path string) (*cube.Map, error) {
	m, err := cube.ReadMap(path)
	if err != nil {
		return nil, err
	}
	return m.Scale(1e-3, "km/s"), nil
}

// Run compares the CO(2-1) and feathered HI velocity fields and writes the
// figures to the co_vs_hi directory of the figure tree.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths, prod := cfg.Paths, cfg.Products

	var m Maps
	var err error
	for _, r := range []struct {
		dst  **cube.Map
		path string
		kms  bool
	}{
		{&m.HICentroid, paths.FourteenBWithGBT(prod.Moment1), true},
		{&m.HIPeakVel, paths.FourteenBWithGBT(prod.PeakVels), true},
		{&m.HIPeakTemp, paths.FourteenBWithGBT(prod.PeakTemp), false},
		{&m.COCentroid, paths.IRAMCO21On14B(prod.COMoment1), true},
		{&m.COPeakVel, paths.IRAMCO21On14B(prod.COPeakVels), true},
		{&m.COPeakTemp, paths.IRAMCO21On14B(prod.COPeakTemp), false},
	} {
		if r.kms {
			*r.dst, err = readKms(r.path)
		} else {
			*r.dst, err = cube.ReadMap(r.path)
		}
		if err != nil {
			return err
		}
	}
	maskIm, err := fitsfile.ReadImage(paths.IRAMCO21On14B(prod.COMask))
	if err != nil {
		return err
	}
	if m.COMaskCount, err = MaskCount(maskIm); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	offsets, err := Compare(m)
	if err != nil {
		return err
	}
	for _, o := range offsets {
		logger.Info("velocity offset percentiles",
			zap.String("offset", o.Name),
			zap.Int("pixels", countTrue(o.Good)),
			zap.Float64s("percentiles", Percentiles),
			zap.Float64s("thresholds_kms", o.Thresholds))
	}

	mom0, err := cube.ReadMap(paths.FourteenBWithGBT(prod.Moment0))
	if err != nil {
		return err
	}
	b, err := mom0.Beam()
	if err != nil {
		return err
	}
	mom0 = mom0.Scale(b.JyToK(cfg.Constants.HIRestFreq)/1000, "K km/s")

	name := func(n string) string { return paths.AllFigures("co_vs_hi/" + n) }
	return Figures(name, m, offsets, mom0)
}
