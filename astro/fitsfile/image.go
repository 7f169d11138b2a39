package fitsfile

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/astrogo/fitsio"
)

// Image is an n-dimensional float image with its header.
type Image struct {
	Header *Header
	Axes   []int // NAXIS1, NAXIS2, ...
	Data   []float64
	Beams  []BeamRow // per-plane beams of multi-beam cubes, if any
}

// NewImage returns a blank (NaN-filled) image with the given axes.
func NewImage(h *Header, axes ...int) *Image {
	n := 1
	for _, a := range axes {
		n *= a
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = math.NaN()
	}
	if h == nil {
		h = NewHeader()
	}
	return &Image{Header: h, Axes: append([]int(nil), axes...), Data: data}
}

// Len returns the number of pixels.
func (im *Image) Len() int { return len(im.Data) }

// Squeeze drops trailing degenerate axes (such as a Stokes axis of length
// one) down to at least two dimensions.
func (im *Image) Squeeze() {
	for len(im.Axes) > 2 && im.Axes[len(im.Axes)-1] == 1 {
		im.Axes = im.Axes[:len(im.Axes)-1]
	}
}

// ReadImage loads the first image HDU carrying data from path, along with
// the BEAMS table of multi-beam cubes.
func ReadImage(path string) (*Image, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fitsfile: %w", err)
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("fitsfile: open %s: %w", path, err)
	}
	defer f.Close()

	for _, hdu := range f.HDUs() {
		img, ok := hdu.(fitsio.Image)
		if !ok {
			continue
		}
		axes := img.Header().Axes()
		if len(axes) == 0 {
			continue
		}
		data, err := readPixels(img)
		if err != nil {
			return nil, fmt.Errorf("fitsfile: read %s: %w", path, err)
		}
		h := fromFitsio(img.Header())
		physical(data, h, img.Header().Bitpix())
		out := &Image{
			Header: h,
			Axes:   append([]int(nil), axes...),
			Data:   data,
		}
		if tbl, ok := f.Get(BeamTableName).(*fitsio.Table); ok {
			if out.Beams, err = readBeamTable(tbl); err != nil {
				return nil, fmt.Errorf("fitsfile: read %s: %w", path, err)
			}
		}
		out.Squeeze()
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoImage, path)
}

func readPixels(img fitsio.Image) ([]float64, error) {
	n := 1
	for _, a := range img.Header().Axes() {
		n *= a
	}
	out := make([]float64, n)

	switch img.Header().Bitpix() {
	case 8:
		raw := make([]byte, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 16:
		raw := make([]int16, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 32:
		raw := make([]int32, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 64:
		raw := make([]int64, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -32:
		raw := make([]float32, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -64:
		if err := img.Read(&out); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported BITPIX %d", img.Header().Bitpix())
	}
	return out, nil
}

// physical converts stored values in place to BSCALE*raw + BZERO. For
// integer images, pixels equal to BLANK become NaN.
func physical(data []float64, h *Header, bitpix int) {
	if bitpix > 0 {
		if blank, err := h.Int("BLANK"); err == nil {
			b := float64(blank)
			for i, v := range data {
				if v == b {
					data[i] = math.NaN()
				}
			}
		}
	}
	bscale := h.FloatOr("BSCALE", 1)
	bzero := h.FloatOr("BZERO", 0)
	if bscale == 1 && bzero == 0 {
		return
	}
	for i, v := range data {
		data[i] = v*bscale + bzero
	}
}

// WriteImage stores im as a BITPIX -32 primary HDU of physical values, so
// BSCALE, BZERO and BLANK are not carried over. Per-plane beams follow in a
// BEAMS table. Existing files are replaced only when overwrite is set.
func WriteImage(path string, im *Image, overwrite bool) (err error) {
	n := 1
	for _, a := range im.Axes {
		n *= a
	}
	if n != len(im.Data) {
		return fmt.Errorf("%w: %v holds %d values, got %d", ErrShape, im.Axes, n, len(im.Data))
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_EXCL
	if overwrite {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	w, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrFileExists, path)
		}
		return fmt.Errorf("fitsfile: %w", err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("fitsfile: close %s: %w", path, cerr)
		}
	}()

	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("fitsfile: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("fitsfile: close %s: %w", path, cerr)
		}
	}()

	hdu := fitsio.NewImage(-32, im.Axes)
	defer hdu.Close()

	if im.Header != nil {
		if err := hdu.Header().Append(im.Header.withoutStructural()...); err != nil {
			return fmt.Errorf("fitsfile: header for %s: %w", path, err)
		}
	}

	raw := make([]float32, len(im.Data))
	for i, v := range im.Data {
		raw[i] = float32(v)
	}
	if err := hdu.Write(raw); err != nil {
		return fmt.Errorf("fitsfile: write %s: %w", path, err)
	}
	if err := f.Write(hdu); err != nil {
		return fmt.Errorf("fitsfile: write %s: %w", path, err)
	}
	if len(im.Beams) == 0 {
		return nil
	}

	tbl, err := beamTable(im.Beams)
	if err != nil {
		return fmt.Errorf("fitsfile: beams for %s: %w", path, err)
	}
	defer tbl.Close()
	if err := f.Write(tbl); err != nil {
		return fmt.Errorf("fitsfile: write beams to %s: %w", path, err)
	}
	return nil
}
