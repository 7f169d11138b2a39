package fitsfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
)

// CreateHuge writes the header for a BITPIX -32 image of the given shape
// and extends the file so the whole (padded) data segment exists, without
// materialising the data in memory. When shape is nil it is taken from the
// NAXISn keywords of h. Existing files are never replaced.
func CreateHuge(path string, h *Header, shape []int) error {
	if shape == nil {
		var err error
		shape, err = h.Shape()
		if err != nil {
			return fmt.Errorf("fitsfile: header has no NAXIS keywords, a shape is required: %w", err)
		}
	}
	hdr, err := encodeHeader(h, shape)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrFileExists, path)
		}
		return fmt.Errorf("fitsfile: %w", err)
	}
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return fmt.Errorf("fitsfile: write header %s: %w", path, err)
	}

	n := int64(4)
	for _, a := range shape {
		n *= int64(a)
	}
	// Blank data read back as zeros, as for any freshly allocated FITS file.
	end := int64(len(hdr)) + padded(n)
	if _, err := f.WriteAt([]byte{0}, end-1); err != nil {
		f.Close()
		return fmt.Errorf("fitsfile: extend %s: %w", path, err)
	}
	return f.Close()
}

// HugeFile is an open, preallocated FITS cube updated in place.
//
// Writes at distinct positions may come from several goroutines.
type HugeFile struct {
	path    string
	f       *os.File
	header  *Header
	shape   []int
	dataOff int64
	dataEnd int64

	mu     sync.Mutex
	closed bool
}

// OpenHuge opens a file made by [CreateHuge] for update.
func OpenHuge(path string) (*HugeFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("fitsfile: %w", err)
	}
	h, dataOff, err := readHeaderAt(f, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("fitsfile: header of %s: %w", path, err)
	}
	if bitpix, err := h.Int("BITPIX"); err != nil || bitpix != -32 {
		f.Close()
		return nil, fmt.Errorf("fitsfile: %s: only BITPIX -32 cubes can be updated", path)
	}
	shape, err := h.Shape()
	if err != nil {
		f.Close()
		return nil, err
	}
	size, err := dataSize(h)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &HugeFile{
		path:    path,
		f:       f,
		header:  h,
		shape:   shape,
		dataOff: dataOff,
		dataEnd: dataOff + padded(size),
	}, nil
}

// Header returns the parsed primary header.
func (hf *HugeFile) Header() *Header { return hf.header }

// Shape returns NAXIS1..NAXISn.
func (hf *HugeFile) Shape() []int { return append([]int(nil), hf.shape...) }

func (hf *HugeFile) dims() (nx, ny, nchan int, err error) {
	if len(hf.shape) < 3 {
		return 0, 0, 0, fmt.Errorf("%w: %v is not a cube", ErrShape, hf.shape)
	}
	return hf.shape[0], hf.shape[1], hf.shape[2], nil
}

// WriteSpectrum stores the spectrum at pixel (y, x), one value per channel.
func (hf *HugeFile) WriteSpectrum(y, x int, spectrum []float64) error {
	nx, ny, nchan, err := hf.dims()
	if err != nil {
		return err
	}
	if len(spectrum) != nchan || y < 0 || y >= ny || x < 0 || x >= nx {
		return fmt.Errorf("%w: spectrum of %d channels at (%d, %d) for %v", ErrShape, len(spectrum), y, x, hf.shape)
	}
	var buf [4]byte
	plane := int64(nx) * int64(ny)
	for k, v := range spectrum {
		binary.BigEndian.PutUint32(buf[:], math.Float32bits(float32(v)))
		off := hf.dataOff + 4*(int64(k)*plane+int64(y)*int64(nx)+int64(x))
		if _, err := hf.f.WriteAt(buf[:], off); err != nil {
			return fmt.Errorf("fitsfile: write %s: %w", hf.path, err)
		}
	}
	return nil
}

// WriteChannel stores a whole channel plane (ny*nx values).
func (hf *HugeFile) WriteChannel(k int, plane []float64) error {
	nx, ny, nchan, err := hf.dims()
	if err != nil {
		return err
	}
	if len(plane) != nx*ny || k < 0 || k >= nchan {
		return fmt.Errorf("%w: plane of %d values at channel %d for %v", ErrShape, len(plane), k, hf.shape)
	}
	buf := make([]byte, 4*len(plane))
	for i, v := range plane {
		binary.BigEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
	}
	off := hf.dataOff + 4*int64(k)*int64(nx*ny)
	if _, err := hf.f.WriteAt(buf, off); err != nil {
		return fmt.Errorf("fitsfile: write %s: %w", hf.path, err)
	}
	return nil
}

// ReadSpectrum reads back the spectrum at (y, x).
func (hf *HugeFile) ReadSpectrum(y, x int) ([]float64, error) {
	nx, ny, nchan, err := hf.dims()
	if err != nil {
		return nil, err
	}
	if y < 0 || y >= ny || x < 0 || x >= nx {
		return nil, fmt.Errorf("%w: (%d, %d) outside %v", ErrShape, y, x, hf.shape)
	}
	out := make([]float64, nchan)
	var buf [4]byte
	plane := int64(nx) * int64(ny)
	for k := range out {
		off := hf.dataOff + 4*(int64(k)*plane+int64(y)*int64(nx)+int64(x))
		if _, err := hf.f.ReadAt(buf[:], off); err != nil {
			return nil, fmt.Errorf("fitsfile: read %s: %w", hf.path, err)
		}
		out[k] = float64(math.Float32frombits(binary.BigEndian.Uint32(buf[:])))
	}
	return out, nil
}

// Flush commits written data to stable storage.
func (hf *HugeFile) Flush() error {
	if err := hf.f.Sync(); err != nil {
		return fmt.Errorf("fitsfile: flush %s: %w", hf.path, err)
	}
	return nil
}

// AppendExtensions copies every extension HDU of src (for example the
// per-channel beam table of a cube) verbatim after the primary data.
// Extensions already present in the file are replaced.
func (hf *HugeFile) AppendExtensions(src string) error {
	r, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("fitsfile: %w", err)
	}
	defer r.Close()

	st, err := r.Stat()
	if err != nil {
		return fmt.Errorf("fitsfile: %w", err)
	}
	hdus, err := scanHDUs(r, st.Size())
	if err != nil {
		return fmt.Errorf("fitsfile: scan %s: %w", src, err)
	}
	if len(hdus) < 2 {
		return nil
	}

	hf.mu.Lock()
	defer hf.mu.Unlock()

	if err := hf.f.Truncate(hf.dataEnd); err != nil {
		return fmt.Errorf("fitsfile: truncate %s: %w", hf.path, err)
	}
	start := hdus[1].offset
	end := hdus[len(hdus)-1].end()
	if end > st.Size() {
		end = st.Size()
	}
	if _, err := hf.f.Seek(hf.dataEnd, io.SeekStart); err != nil {
		return fmt.Errorf("fitsfile: %w", err)
	}
	if _, err := io.Copy(hf.f, io.NewSectionReader(r, start, end-start)); err != nil {
		return fmt.Errorf("fitsfile: copy extensions from %s: %w", src, err)
	}
	// Keep the file a whole number of blocks when the source was short.
	if pad := padded(end-start) - (end - start); pad > 0 {
		if _, err := hf.f.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("fitsfile: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the file.
func (hf *HugeFile) Close() error {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	if hf.closed {
		return nil
	}
	hf.closed = true
	if err := hf.f.Sync(); err != nil {
		hf.f.Close()
		return fmt.Errorf("fitsfile: flush %s: %w", hf.path, err)
	}
	return hf.f.Close()
}

// WriteHuge streams a cube to path channel by channel. The file is created
// with [CreateHuge] when it does not exist yet.
func WriteHuge(im *Image, path string) error {
	if len(im.Axes) != 3 {
		return fmt.Errorf("%w: only 3-D cubes can be streamed, got %v", ErrShape, im.Axes)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := CreateHuge(path, im.Header, im.Axes); err != nil {
			return err
		}
	}
	hf, err := OpenHuge(path)
	if err != nil {
		return err
	}
	nx, ny, nchan := im.Axes[0], im.Axes[1], im.Axes[2]
	plane := nx * ny
	for k := 0; k < nchan; k++ {
		if err := hf.WriteChannel(k, im.Data[k*plane:(k+1)*plane]); err != nil {
			hf.Close()
			return err
		}
		if err := hf.Flush(); err != nil {
			hf.Close()
			return err
		}
	}
	return hf.Close()
}
