package cube

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/m33-lines/astro/beam"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/astro/wcs"
)

// Map is a 2-D image, row major with x fastest.
type Map struct {
	Header *fitsfile.Header
	Nx     int
	Ny     int
	Data   []float64
	Unit   string

	beams []fitsfile.BeamRow
}

// NewMap returns a NaN-filled map.
func NewMap(h *fitsfile.Header, nx, ny int) *Map {
	if h == nil {
		h = fitsfile.NewHeader()
	}
	data := make([]float64, nx*ny)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Map{Header: h, Nx: nx, Ny: ny, Data: data, Unit: h.StringOr("BUNIT", "")}
}

// ReadMap loads a 2-D image. Degenerate trailing axes are dropped.
func ReadMap(path string) (*Map, error) {
	im, err := fitsfile.ReadImage(path)
	if err != nil {
		return nil, err
	}
	return MapFromImage(im)
}

// MapFromImage wraps a 2-D image without copying.
func MapFromImage(im *fitsfile.Image) (*Map, error) {
	im.Squeeze()
	if len(im.Axes) != 2 {
		return nil, fmt.Errorf("cube: map has axes %v", im.Axes)
	}
	return &Map{
		Header: im.Header,
		Nx:     im.Axes[0],
		Ny:     im.Axes[1],
		Data:   im.Data,
		Unit:   im.Header.StringOr("BUNIT", ""),
		beams:  im.Beams,
	}, nil
}

// Image returns the map as a FITS image sharing the data.
func (m *Map) Image() *fitsfile.Image {
	h := m.Header.Clone()
	if m.Unit != "" {
		h.Set("BUNIT", m.Unit, "")
	}
	return &fitsfile.Image{Header: h, Axes: []int{m.Nx, m.Ny}, Data: m.Data}
}

// Write saves the map as a BITPIX -32 FITS file.
func (m *Map) Write(path string, overwrite bool) error {
	return fitsfile.WriteImage(path, m.Image(), overwrite)
}

// At returns the value at (y, x).
func (m *Map) At(y, x int) float64 { return m.Data[y*m.Nx+x] }

// Clone returns a deep copy.
func (m *Map) Clone() *Map {
	out := &Map{Header: m.Header.Clone(), Nx: m.Nx, Ny: m.Ny, Unit: m.Unit, beams: m.beams}
	out.Data = append([]float64(nil), m.Data...)
	return out
}

// Scale returns a copy multiplied by f with the given unit.
func (m *Map) Scale(f float64, unit string) *Map {
	out := m.Clone()
	vecmath.ScaleBlock(out.Data, m.Data, f)
	out.Unit = unit
	return out
}

// Sub returns m - o. Both maps must have the same shape.
func (m *Map) Sub(o *Map) (*Map, error) {
	if m.Nx != o.Nx || m.Ny != o.Ny {
		return nil, fmt.Errorf("cube: map shapes %dx%d and %dx%d differ", m.Nx, m.Ny, o.Nx, o.Ny)
	}
	out := m.Clone()
	neg := make([]float64, len(o.Data))
	vecmath.ScaleBlock(neg, o.Data, -1)
	vecmath.AddBlockInPlace(out.Data, neg)
	return out, nil
}

// Finite reports, per pixel, whether the value is finite.
func (m *Map) Finite() []bool {
	out := make([]bool, len(m.Data))
	for i, v := range m.Data {
		out[i] = !math.IsNaN(v) && !math.IsInf(v, 0)
	}
	return out
}

// Max returns the largest finite value, NaN if none.
func (m *Map) Max() float64 {
	best := math.NaN()
	for _, v := range m.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if math.IsNaN(best) || v > best {
			best = v
		}
	}
	return best
}

// Celestial returns the map's celestial WCS.
func (m *Map) Celestial() (*wcs.Celestial, error) {
	return wcs.FromHeader(m.Header)
}

// Beam returns the map's beam, falling back to the average of a per-plane
// beam table.
func (m *Map) Beam() (beam.Beam, error) {
	return beam.FromImage(&fitsfile.Image{Header: m.Header, Beams: m.beams})
}
