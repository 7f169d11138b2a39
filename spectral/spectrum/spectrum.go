package spectrum

import (
	"fmt"

	"github.com/cwbudde/algo-vecmath"
)

// planes splits bins into separate real and imaginary slices.
func planes(bins []complex128) (re, im []float64) {
	buf := make([]float64, 2*len(bins))
	re, im = buf[:len(bins)], buf[len(bins):]
	for i, c := range bins {
		re[i], im[i] = real(c), imag(c)
	}
	return re, im
}

// Magnitude returns |X| for each bin of a transformed image.
func Magnitude(bins []complex128) []float64 {
	if len(bins) == 0 {
		return nil
	}
	out := make([]float64, len(bins))
	re, im := planes(bins)
	vecmath.Magnitude(out, re, im)
	return out
}

// CentredMagnitude returns |X| of an nx by ny transform with the zero
// frequency moved to (nx/2, ny/2), ready for [AzimuthalAverage].
func CentredMagnitude(coeff []complex128, nx, ny int) ([]float64, error) {
	if len(coeff) != nx*ny {
		return nil, fmt.Errorf("spectrum: %d values for a %dx%d grid", len(coeff), nx, ny)
	}
	if len(coeff) == 0 {
		return nil, nil
	}
	return FFTShift2(Magnitude(coeff), nx, ny), nil
}

// Real returns the real part of each bin.
func Real(in []complex128) []float64 {
	out := make([]float64, len(in))
	for i, c := range in {
		out[i] = real(c)
	}
	return out
}
