package shift

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectral shifts one spectrum. Implementations keep internal buffers and
// are not safe for concurrent use.
type Spectral interface {
	Shift(dst, x []float64, shift float64) ([]float64, error)
	Len() int
}

// Shifter shifts spectra of a fixed length with a circular Fourier shift.
type Shifter struct {
	n      int
	fft    *fourier.FFT
	coeff  []complex128
	values []float64
	mask   []float64
	blank  []bool
}

// NewShifter returns a Shifter for spectra of n channels.
func NewShifter(n int) *Shifter {
	return &Shifter{
		n:      n,
		fft:    fourier.NewFFT(n),
		coeff:  make([]complex128, n/2+1),
		values: make([]float64, n),
		mask:   make([]float64, n),
		blank:  make([]bool, n),
	}
}

// Len returns the spectrum length.
func (s *Shifter) Len() int { return s.n }

// Shift writes x shifted by shift channels into dst (allocated when nil).
//
// Non-finite channels are zero-filled for the transform. Their positions are
// shifted the same way and blanked again wherever the shifted blank mask
// exceeds one half. A spectrum without any finite value is copied as-is.
func (s *Shifter) Shift(dst, x []float64, shift float64) ([]float64, error) {
	if len(x) != s.n {
		return nil, fmt.Errorf("shift: spectrum of %d channels, shifter built for %d", len(x), s.n)
	}
	if dst == nil {
		dst = make([]float64, s.n)
	}
	anyBlank, allBlank := prepare(x, s.values, s.mask)
	if allBlank {
		copy(dst, x)
		return dst, nil
	}
	s.apply(dst, s.values, shift)
	if anyBlank {
		s.apply(s.values, s.mask, shift)
		blankWhere(dst, s.values)
	}
	return dst, nil
}

func (s *Shifter) apply(dst, src []float64, shift float64) {
	s.fft.Coefficients(s.coeff, src)
	n := float64(s.n)
	for k := range s.coeff {
		s.coeff[k] *= cmplx.Exp(complex(0, -2*math.Pi*float64(k)/n*shift))
	}
	// The Nyquist term of an even-length transform only keeps its real part.
	if s.n%2 == 0 {
		last := len(s.coeff) - 1
		s.coeff[last] = complex(real(s.coeff[last]), 0)
	}
	s.fft.Sequence(dst, s.coeff)
	inv := 1 / n
	for i := range dst {
		dst[i] *= inv
	}
}

// PaddedShifter shifts spectra zero-padded to the next power of two that is
// at least twice their length.
type PaddedShifter struct {
	n     int
	size  int
	plan  *algofft.Plan[complex128]
	buf   []complex128
	freq  []complex128
	mask  []float64
	vals  []float64
	blank []float64
}

// NewPaddedShifter returns a PaddedShifter for spectra of n channels.
func NewPaddedShifter(n int) (*PaddedShifter, error) {
	size := nextPowerOf2(2 * n)
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("shift: failed to create FFT plan: %w", err)
	}
	return &PaddedShifter{
		n:     n,
		size:  size,
		plan:  plan,
		buf:   make([]complex128, size),
		freq:  make([]complex128, size),
		mask:  make([]float64, n),
		vals:  make([]float64, n),
		blank: make([]float64, n),
	}, nil
}

// Len returns the spectrum length.
func (p *PaddedShifter) Len() int { return p.n }

// Shift writes x shifted by shift channels into dst. Blank channels are
// handled as in [Shifter.Shift].
func (p *PaddedShifter) Shift(dst, x []float64, shift float64) ([]float64, error) {
	if len(x) != p.n {
		return nil, fmt.Errorf("shift: spectrum of %d channels, shifter built for %d", len(x), p.n)
	}
	if dst == nil {
		dst = make([]float64, p.n)
	}
	anyBlank, allBlank := prepare(x, p.vals, p.mask)
	if allBlank {
		copy(dst, x)
		return dst, nil
	}
	if err := p.apply(dst, p.vals, shift); err != nil {
		return nil, err
	}
	if anyBlank {
		if err := p.apply(p.blank, p.mask, shift); err != nil {
			return nil, err
		}
		blankWhere(dst, p.blank)
	}
	return dst, nil
}

func (p *PaddedShifter) apply(dst, src []float64, shift float64) error {
	for i := range p.buf {
		p.buf[i] = 0
	}
	for i, v := range src {
		p.buf[i] = complex(v, 0)
	}
	if err := p.plan.Forward(p.freq, p.buf); err != nil {
		return fmt.Errorf("shift: forward FFT: %w", err)
	}
	n := float64(p.size)
	half := p.size / 2
	for k := range p.freq {
		f := float64(k)
		if k >= half && half > 0 {
			f -= n
		}
		p.freq[k] *= cmplx.Exp(complex(0, -2*math.Pi*f/n*shift))
	}
	if err := p.plan.Inverse(p.buf, p.freq); err != nil {
		return fmt.Errorf("shift: inverse FFT: %w", err)
	}
	for i := range dst {
		dst[i] = real(p.buf[i])
	}
	return nil
}

// prepare copies x into vals with blanks zeroed and marks blanks in mask.
func prepare(x, vals, mask []float64) (anyBlank, allBlank bool) {
	allBlank = true
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vals[i] = 0
			mask[i] = 1
			anyBlank = true
			continue
		}
		vals[i] = v
		mask[i] = 0
		allBlank = false
	}
	return anyBlank, allBlank
}

func blankWhere(dst, shiftedMask []float64) {
	for i, m := range shiftedMask {
		if m > 0.5 {
			dst[i] = math.NaN()
		}
	}
}

// FourierShift returns x circularly shifted by shift channels.
func FourierShift(x []float64, shift float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	out, _ := NewShifter(len(x)).Shift(nil, x, shift)
	return out
}

// PaddedFourierShift returns x shifted by shift channels without wrapping
// emission across the band edges.
func PaddedFourierShift(x []float64, shift float64) ([]float64, error) {
	if len(x) == 0 {
		return nil, nil
	}
	p, err := NewPaddedShifter(len(x))
	if err != nil {
		return nil, err
	}
	return p.Shift(nil, x, shift)
}

// nextPowerOf2 returns the next power of 2 >= n.
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
