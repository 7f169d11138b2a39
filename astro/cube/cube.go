// Package cube holds spectral-line cubes and the 2-D maps derived from them.
//
// Data are kept in FITS order: channel-major with x fastest, so the value at
// channel k and pixel (y, x) lives at Data[(k*Ny+y)*Nx+x].
package cube

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/m33-lines/astro/beam"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/astro/wcs"
	"github.com/cwbudde/m33-lines/stats/line"
)

var (
	// ErrNotCube is returned for images with fewer than three axes.
	ErrNotCube = errors.New("cube: image is not a cube")
	// ErrMaskShape is returned when a mask does not match the cube.
	ErrMaskShape = errors.New("cube: mask shape mismatch")
)

// Cube is a spectral-line cube.
type Cube struct {
	Header    *fitsfile.Header
	Nx        int
	Ny        int
	NChan     int
	Data      []float64
	Mask      []bool // nil includes every pixel
	Celestial *wcs.Celestial
	Spectral  *wcs.Spectral
	Beam      beam.Beam
	HasBeam   bool
	Beams     []beam.Beam // per channel for multi-beam cubes, else nil
	Unit      string
}

// Read loads a cube from a FITS file.
func Read(path string) (*Cube, error) {
	im, err := fitsfile.ReadImage(path)
	if err != nil {
		return nil, err
	}
	c, err := FromImage(im)
	if err != nil {
		return nil, fmt.Errorf("cube: %s: %w", path, err)
	}
	return c, nil
}

// FromImage wraps a 3-D image (a trailing Stokes axis of length one is
// dropped) without copying its data.
func FromImage(im *fitsfile.Image) (*Cube, error) {
	im.Squeeze()
	if len(im.Axes) != 3 {
		return nil, fmt.Errorf("%w: axes %v", ErrNotCube, im.Axes)
	}
	c := &Cube{
		Header: im.Header,
		Nx:     im.Axes[0],
		Ny:     im.Axes[1],
		NChan:  im.Axes[2],
		Data:   im.Data,
		Unit:   im.Header.StringOr("BUNIT", ""),
	}
	var err error
	c.Spectral, err = wcs.SpectralFromHeader(im.Header)
	if err != nil {
		return nil, err
	}
	if c.Spectral.Axis != 3 {
		return nil, fmt.Errorf("%w: spectral axis is %d", ErrNotCube, c.Spectral.Axis)
	}
	// Celestial WCS is optional for synthetic and test cubes.
	if cel, err := wcs.FromHeader(im.Header); err == nil {
		c.Celestial = cel
	}
	if b, err := beam.FromImage(im); err == nil {
		c.Beam, c.HasBeam = b, true
	}
	if chans := beam.Channels(im.Beams); len(chans) == c.NChan {
		c.Beams = chans
	}
	return c, nil
}

// ChannelBeam returns the beam of channel k: its own beam for multi-beam
// cubes, the common beam otherwise.
func (c *Cube) ChannelBeam(k int) (beam.Beam, bool) {
	if k >= 0 && k < len(c.Beams) {
		return c.Beams[k], true
	}
	return c.Beam, c.HasBeam
}

// New builds a cube from a header and channel-major data.
func New(h *fitsfile.Header, nx, ny, nchan int, data []float64) (*Cube, error) {
	if len(data) != nx*ny*nchan {
		return nil, fmt.Errorf("cube: %d values for %dx%dx%d", len(data), nx, ny, nchan)
	}
	h = h.Clone()
	h.Set("NAXIS", 3, "")
	h.Set("NAXIS1", nx, "")
	h.Set("NAXIS2", ny, "")
	h.Set("NAXIS3", nchan, "")
	return FromImage(&fitsfile.Image{Header: h, Axes: []int{nx, ny, nchan}, Data: data})
}

// Image returns the cube as a FITS image sharing the data. Masked voxels
// are not blanked; use [Cube.Filled] for that.
func (c *Cube) Image() *fitsfile.Image {
	im := &fitsfile.Image{Header: c.Header, Axes: []int{c.Nx, c.Ny, c.NChan}, Data: c.Data}
	if len(c.Beams) > 0 {
		im.Beams = beam.Rows(c.Beams)
	}
	return im
}

// Filled returns a copy of the data with masked voxels set to NaN.
func (c *Cube) Filled() []float64 {
	out := make([]float64, len(c.Data))
	copy(out, c.Data)
	if c.Mask != nil {
		for i, ok := range c.Mask {
			if !ok {
				out[i] = math.NaN()
			}
		}
	}
	return out
}

// WithMask returns a shallow copy of c using mask. The mask is either a full
// voxel mask or a single plane applied to every channel.
func (c *Cube) WithMask(mask []bool) (*Cube, error) {
	plane := c.Nx * c.Ny
	var full []bool
	switch len(mask) {
	case len(c.Data):
		full = mask
	case plane:
		full = make([]bool, len(c.Data))
		for k := 0; k < c.NChan; k++ {
			copy(full[k*plane:(k+1)*plane], mask)
		}
	default:
		return nil, fmt.Errorf("%w: %d values for %dx%dx%d", ErrMaskShape, len(mask), c.Nx, c.Ny, c.NChan)
	}
	out := *c
	out.Mask = full
	return &out, nil
}

// WithMaskImage applies a mask cube or plane whose positive values select
// voxels.
func (c *Cube) WithMaskImage(m *fitsfile.Image) (*Cube, error) {
	mask := make([]bool, len(m.Data))
	for i, v := range m.Data {
		mask[i] = v > 0
	}
	return c.WithMask(mask)
}

func (c *Cube) index(k, y, x int) int {
	return (k*c.Ny+y)*c.Nx + x
}

func (c *Cube) value(i int) float64 {
	if c.Mask != nil && !c.Mask[i] {
		return math.NaN()
	}
	return c.Data[i]
}

// Spectrum returns a copy of the masked spectrum at pixel (y, x).
func (c *Cube) Spectrum(y, x int) []float64 {
	out := make([]float64, c.NChan)
	for k := range out {
		out[k] = c.value(c.index(k, y, x))
	}
	return out
}

// RawSpectrum returns the spectrum at (y, x) ignoring the mask.
func (c *Cube) RawSpectrum(y, x int) []float64 {
	out := make([]float64, c.NChan)
	for k := range out {
		out[k] = c.Data[c.index(k, y, x)]
	}
	return out
}

// Channel returns a copy of the masked plane k.
func (c *Cube) Channel(k int) []float64 {
	plane := c.Nx * c.Ny
	out := make([]float64, plane)
	for p := range out {
		out[p] = c.value(k*plane + p)
	}
	return out
}

// SpectralAxis returns the channel velocities in m/s.
func (c *Cube) SpectralAxis() []float64 {
	return c.Spectral.Values()
}

// ChannelWidth returns the signed channel width in m/s.
func (c *Cube) ChannelWidth() float64 {
	return c.Spectral.ChannelWidth()
}

// PlaneHeader returns a 2-D header carrying the celestial WCS and beam.
func (c *Cube) PlaneHeader() *fitsfile.Header {
	h := c.Header.Clone()
	for _, key := range []string{"NAXIS3", "CTYPE3", "CRVAL3", "CDELT3", "CRPIX3", "CUNIT3", "CROTA3",
		"NAXIS4", "CTYPE4", "CRVAL4", "CDELT4", "CRPIX4", "CUNIT4", "CROTA4"} {
		h.Delete(key)
	}
	h.Set("NAXIS", 2, "")
	return h
}

func (c *Cube) newMap(unit string) *Map {
	m := NewMap(c.PlaneHeader(), c.Nx, c.Ny)
	m.Unit = unit
	m.Header.Set("BUNIT", unit, "")
	return m
}

// Moment0 integrates each spectrum over velocity. The unit is the cube unit
// times m/s. Spectra with no unmasked finite value are NaN.
func (c *Cube) Moment0() *Map {
	dv := math.Abs(c.ChannelWidth())
	m := c.newMap(c.Unit + " m/s")
	for y := 0; y < c.Ny; y++ {
		for x := 0; x < c.Nx; x++ {
			spec := c.Spectrum(y, x)
			if !line.AnyFinite(spec) {
				continue
			}
			m.Data[y*c.Nx+x] = line.NaNSum(spec) * dv
		}
	}
	return m
}

// Moment1 returns the intensity-weighted mean velocity in m/s.
func (c *Cube) Moment1() *Map {
	vels := c.SpectralAxis()
	m := c.newMap("m/s")
	for y := 0; y < c.Ny; y++ {
		for x := 0; x < c.Nx; x++ {
			spec := c.Spectrum(y, x)
			var num, den float64
			n := 0
			for k, v := range spec {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				num += v * vels[k]
				den += v
				n++
			}
			if n == 0 || den == 0 {
				continue
			}
			m.Data[y*c.Nx+x] = num / den
		}
	}
	return m
}

// PeakTemperature returns the per-pixel maximum in the cube unit.
func (c *Cube) PeakTemperature() *Map {
	m := c.newMap(c.Unit)
	for y := 0; y < c.Ny; y++ {
		for x := 0; x < c.Nx; x++ {
			v, _ := line.NaNMax(c.Spectrum(y, x))
			m.Data[y*c.Nx+x] = v
		}
	}
	return m
}

// PeakVelocity returns the velocity (m/s) of the per-pixel maximum.
func (c *Cube) PeakVelocity() *Map {
	vels := c.SpectralAxis()
	m := c.newMap("m/s")
	for y := 0; y < c.Ny; y++ {
		for x := 0; x < c.Nx; x++ {
			if _, k := line.NaNMax(c.Spectrum(y, x)); k >= 0 {
				m.Data[y*c.Nx+x] = vels[k]
			}
		}
	}
	return m
}

// MaskCount returns, per pixel, the number of unmasked channels.
func (c *Cube) MaskCount() *Map {
	m := c.newMap("")
	plane := c.Nx * c.Ny
	for p := 0; p < plane; p++ {
		n := 0
		for k := 0; k < c.NChan; k++ {
			if c.Mask == nil || c.Mask[k*plane+p] {
				n++
			}
		}
		m.Data[p] = float64(n)
	}
	return m
}
