package feather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"
	"gonum.org/v1/plot"

	"github.com/cwbudde/m33-lines/astro/beam"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/internal/figure"
	"github.com/cwbudde/m33-lines/spectral/spectrum"
)

// Channel-test inputs.
const (
	MaskFile  = "M33_14B-088_HI_mask_channel_330.fits"
	ModelFile = "M33_14B-088_HI_model_channel_330.fits"

	testPrefix = "14B-088_HI_LSRK.ms.contsub_channel_1000.CASAVer_440.Model_%s.Mask_%s.AllFields_%s.MScale_%s.Tclean_F"
)

// DefaultPixScale is the channel-test grid spacing in degrees (3 arcsec).
const DefaultPixScale = 3.0 / 3600

// FigureName is the base name of the power-spectrum figure.
const FigureName = "channel_1000_power_spectra_kernel_weights"

// Axis limits of the two panels.
var (
	scaleRange  = [2]float64{10, 1.2e4}
	powerRange  = [2]float64{1e-4, 2.5e3}
	weightRange = [2]float64{1e-5, 1.1}
)

// TestName returns the directory and image prefix of one channel-1000
// clean test.
func TestName(model, mask, allFields, mscale bool) string {
	return fmt.Sprintf(testPrefix, tf(model), tf(mask), tf(allFields), tf(mscale))
}

func tf(b bool) string {
	if b {
		return "T"
	}
	return "F"
}

// Spectra holds azimuthally averaged spectra against angular scale in
// arcsec. Only scales where the single-dish kernel average is finite are
// kept.
type Spectra struct {
	Scale        []float64
	VLA          []float64
	SingleDish   []float64
	Feathered    []float64
	SDKernel     []float64
	InterfKernel []float64

	SDBeam     beam.Beam
	InterfBeam beam.Beam
}

// Inputs are the channel images on a common nx by ny grid.
type Inputs struct {
	Nx, Ny     int
	Mask       []bool
	Model      []float64
	VLA        []float64
	Feathered  []float64
	SDBeam     beam.Beam
	InterfBeam beam.Beam
	PixScale   float64 // deg
}

// ComputeSpectra masks the VLA and feathered images, transforms all three
// images and both beam kernels, and averages them in annuli. The
// single-dish spectrum is divided by the beam area ratio.
func ComputeSpectra(in Inputs) (*Spectra, error) {
	n := in.Nx * in.Ny
	if len(in.Mask) != n || len(in.Model) != n || len(in.VLA) != n || len(in.Feathered) != n {
		return nil, fmt.Errorf("%w: inputs do not match %dx%d", ErrShape, in.Nx, in.Ny)
	}
	pix := in.PixScale
	if pix <= 0 {
		pix = DefaultPixScale
	}

	rad, sd, err := PowerSpectrum(in.Model, in.Nx, in.Ny)
	if err != nil {
		return nil, err
	}
	if f := in.SDBeam.SolidAngle() / in.InterfBeam.SolidAngle(); f > 0 && !math.IsInf(f, 0) {
		for i := range sd {
			sd[i] /= f
		}
	}
	_, vla, err := PowerSpectrum(applyMask(in.VLA, in.Mask), in.Nx, in.Ny)
	if err != nil {
		return nil, err
	}
	_, fea, err := PowerSpectrum(applyMask(in.Feathered, in.Mask), in.Nx, in.Ny)
	if err != nil {
		return nil, err
	}

	ksd, err := KernelWeights(in.SDBeam, pix, in.Nx, in.Ny)
	if err != nil {
		return nil, err
	}
	kint, err := KernelWeights(in.InterfBeam, pix, in.Nx, in.Ny)
	if err != nil {
		return nil, err
	}
	for i := range kint {
		kint[i] = math.Abs(1 - kint[i])
	}
	_, sdK := spectrum.AzimuthalAverage(spectrum.FFTShift2(ksd, in.Nx, in.Ny), in.Nx, in.Ny, 0)
	_, intK := spectrum.AzimuthalAverage(spectrum.FFTShift2(kint, in.Nx, in.Ny), in.Nx, in.Ny, 0)

	scale := AngularScale(rad, in.Nx, pix*3600)
	out := &Spectra{SDBeam: in.SDBeam, InterfBeam: in.InterfBeam}
	for i := range scale {
		if math.IsNaN(sdK[i]) || math.IsInf(sdK[i], 0) {
			continue
		}
		out.Scale = append(out.Scale, scale[i])
		out.VLA = append(out.VLA, vla[i])
		out.SingleDish = append(out.SingleDish, sd[i])
		out.Feathered = append(out.Feathered, fea[i])
		out.SDKernel = append(out.SDKernel, sdK[i])
		out.InterfKernel = append(out.InterfKernel, intK[i])
	}
	return out, nil
}

// applyMask zeroes pixels outside mask.
func applyMask(data []float64, mask []bool) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		if mask[i] {
			out[i] = v
		}
	}
	return out
}

// positive keeps the pairs drawable on log axes.
func positive(xs, ys []float64) (px, py []float64) {
	for i := range xs {
		if xs[i] > 0 && ys[i] > 0 && !math.IsInf(xs[i], 0) && !math.IsNaN(ys[i]) {
			px = append(px, xs[i])
			py = append(py, ys[i])
		}
	}
	return px, py
}

func logPanel(s figure.Style, ylabel, xlabel string, yr [2]float64, sd, interf float64) (*plot.Plot, error) {
	p := s.New(xlabel, ylabel)
	figure.LogX(p)
	figure.LogY(p)
	figure.SetXRange(p, scaleRange[0], scaleRange[1])
	figure.SetYRange(p, yr[0], yr[1])
	figure.AddGrid(p)
	p.Legend.Top = false
	for _, fwhm := range []float64{sd, interf} {
		if err := figure.VLine(p, fwhm, yr[0], yr[1], figure.Grey); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Figure writes the two-panel comparison: power spectra on top and the
// feathering kernel weights below.
func (s *Spectra) Figure(base string) error {
	sdFWHM := s.SDBeam.AverageFWHM() * 3600
	intFWHM := s.InterfBeam.AverageFWHM() * 3600
	st := figure.OneColumn(1.5, 1)

	top, err := logPanel(st, "Power spectrum |FT|", "", powerRange, sdFWHM, intFWHM)
	if err != nil {
		return err
	}
	xs, ys := positive(s.Scale, s.VLA)
	l, err := figure.AddLine(top, xs, ys, 1, "VLA")
	if err != nil {
		return err
	}
	l.Dashes = figure.Dashes(3)
	xs, ys = positive(s.Scale, s.SingleDish)
	if _, err := figure.AddDashed(top, xs, ys, 0, "Arecibo"); err != nil {
		return err
	}
	xs, ys = positive(s.Scale, s.Feathered)
	l, err = figure.AddLine(top, xs, ys, 2, "VLA + Arecibo")
	if err != nil {
		return err
	}
	l.Color = figure.Black

	bottom, err := logPanel(st, "Kernel Weight", "Angular scale (arcsec)", weightRange, sdFWHM, intFWHM)
	if err != nil {
		return err
	}
	xs, ys = positive(s.Scale, s.SDKernel)
	if _, err := figure.AddLine(bottom, xs, ys, 1, "Arecibo beam"); err != nil {
		return err
	}
	xs, ys = positive(s.Scale, s.InterfKernel)
	if _, err := figure.AddLine(bottom, xs, ys, 0, "VLA beam"); err != nil {
		return err
	}

	return figure.SaveGrid([][]*plot.Plot{{top}, {bottom}}, st, base)
}

// readPlane loads the first plane of a FITS image.
func readPlane(path string) (*fitsfile.Image, int, int, error) {
	im, err := fitsfile.ReadImage(path)
	if err != nil {
		return nil, 0, 0, err
	}
	im.Squeeze()
	if len(im.Axes) < 2 {
		return nil, 0, 0, fmt.Errorf("%w: %s has %d axes", ErrShape, path, len(im.Axes))
	}
	nx, ny := im.Axes[0], im.Axes[1]
	im.Data = im.Data[:nx*ny]
	return im, nx, ny, nil
}

// flipped reverses both image axes.
func flipped(data []float64) []float64 {
	out := slices.Clone(data)
	slices.Reverse(out)
	return out
}

// RunPowerSpectrumFigure reads the channel-test images from dataDir and
// writes the power-spectrum figure to outBase. The mask and single-dish
// model are stored with both axes reversed relative to the clean images.
// When the feathered image of the model-seeded test is missing it is
// computed from its clean image.
func RunPowerSpectrumFigure(ctx context.Context, dataDir, outBase string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	at := func(name string) string { return filepath.Join(dataDir, name) }

	maskIm, nx, ny, err := readPlane(at(MaskFile))
	if err != nil {
		return err
	}
	mask := make([]bool, nx*ny)
	for i, v := range flipped(maskIm.Data) {
		mask[i] = v == 1
	}

	modelIm, mx, my, err := readPlane(at(ModelFile))
	if err != nil {
		return err
	}
	if mx != nx || my != ny {
		return fmt.Errorf("%w: model %dx%d, mask %dx%d", ErrShape, mx, my, nx, ny)
	}
	sdBeam, err := beam.FromImage(modelIm)
	if err != nil {
		return fmt.Errorf("feather: %s: %w", ModelFile, err)
	}
	model := flipped(modelIm.Data)

	woModel := TestName(false, true, true, true)
	vlaIm, vx, vy, err := readPlane(at(filepath.Join(woModel, woModel+".clean.image.fits")))
	if err != nil {
		return err
	}
	if vx != nx || vy != ny {
		return fmt.Errorf("%w: %s is %dx%d", ErrShape, woModel, vx, vy)
	}
	interf, err := beam.FromImage(vlaIm)
	if err != nil {
		return fmt.Errorf("feather: %s: %w", woModel, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	wModel := TestName(true, true, true, true)
	feathered, err := featheredImage(at(wModel), wModel, model, sdBeam, nx, ny, logger)
	if err != nil {
		return err
	}

	sp, err := ComputeSpectra(Inputs{
		Nx: nx, Ny: ny,
		Mask:       mask,
		Model:      model,
		VLA:        vlaIm.Data,
		Feathered:  feathered,
		SDBeam:     sdBeam,
		InterfBeam: interf,
		PixScale:   DefaultPixScale,
	})
	if err != nil {
		return err
	}
	logger.Info("power spectra",
		zap.Int("scales", len(sp.Scale)),
		zap.Float64("sd_fwhm_arcsec", sdBeam.AverageFWHM()*3600),
		zap.Float64("interf_fwhm_arcsec", interf.AverageFWHM()*3600))
	return sp.Figure(outBase)
}

func featheredImage(dir, name string, model []float64, sdBeam beam.Beam, nx, ny int, logger *zap.Logger) ([]float64, error) {
	im, fx, fy, err := readPlane(filepath.Join(dir, name+".clean.image.feathered.fits"))
	if err == nil {
		if fx != nx || fy != ny {
			return nil, fmt.Errorf("%w: %s feathered is %dx%d", ErrShape, name, fx, fy)
		}
		return im.Data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	clean, cx, cy, err := readPlane(filepath.Join(dir, name+".clean.image.fits"))
	if err != nil {
		return nil, err
	}
	if cx != nx || cy != ny {
		return nil, fmt.Errorf("%w: %s is %dx%d", ErrShape, name, cx, cy)
	}
	hiBeam, err := beam.FromImage(clean)
	if err != nil {
		return nil, fmt.Errorf("feather: %s: %w", name, err)
	}
	logger.Warn("feathered image missing, combining clean image with model", zap.String("test", name))
	return Feather(clean.Data, model, nx, ny, hiBeam, sdBeam, DefaultPixScale)
}
