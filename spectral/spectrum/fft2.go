package spectrum

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ToComplex converts a real row-major image to complex values. Non-finite
// pixels become zero.
func ToComplex(data []float64) []complex128 {
	out := make([]complex128, len(data))
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = complex(v, 0)
	}
	return out
}

// FFT2 returns the 2-D discrete Fourier transform of a row-major nx by ny
// image. Non-finite pixels are treated as zero.
func FFT2(data []float64, nx, ny int) ([]complex128, error) {
	if len(data) != nx*ny {
		return nil, fmt.Errorf("spectrum: %d values for a %dx%d image", len(data), nx, ny)
	}
	out := ToComplex(data)
	transform2(out, nx, ny, false)
	return out, nil
}

// IFFT2 returns the normalized inverse 2-D transform of coeff.
func IFFT2(coeff []complex128, nx, ny int) ([]complex128, error) {
	if len(coeff) != nx*ny {
		return nil, fmt.Errorf("spectrum: %d values for a %dx%d grid", len(coeff), nx, ny)
	}
	out := append([]complex128(nil), coeff...)
	transform2(out, nx, ny, true)
	scale := complex(1/float64(nx*ny), 0)
	for i := range out {
		out[i] *= scale
	}
	return out, nil
}

// transform2 transforms rows then columns in place.
func transform2(data []complex128, nx, ny int, inverse bool) {
	if nx == 0 || ny == 0 {
		return
	}
	rows := fourier.NewCmplxFFT(nx)
	row := make([]complex128, nx)
	for y := 0; y < ny; y++ {
		line := data[y*nx : (y+1)*nx]
		if inverse {
			rows.Sequence(row, line)
		} else {
			rows.Coefficients(row, line)
		}
		copy(line, row)
	}

	cols := fourier.NewCmplxFFT(ny)
	col := make([]complex128, ny)
	res := make([]complex128, ny)
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			col[y] = data[y*nx+x]
		}
		if inverse {
			cols.Sequence(res, col)
		} else {
			cols.Coefficients(res, col)
		}
		for y := 0; y < ny; y++ {
			data[y*nx+x] = res[y]
		}
	}
}

// FFTShift2 moves the zero-frequency bin to (nx/2, ny/2).
func FFTShift2[T any](data []T, nx, ny int) []T {
	return roll2(data, nx, ny, nx/2, ny/2)
}

// IFFTShift2 undoes [FFTShift2].
func IFFTShift2[T any](data []T, nx, ny int) []T {
	return roll2(data, nx, ny, -(nx / 2), -(ny / 2))
}

func roll2[T any](data []T, nx, ny, sx, sy int) []T {
	out := make([]T, len(data))
	for y := 0; y < ny; y++ {
		yy := ((y+sy)%ny + ny) % ny
		for x := 0; x < nx; x++ {
			xx := ((x+sx)%nx + nx) % nx
			out[yy*nx+xx] = data[y*nx+x]
		}
	}
	return out
}
