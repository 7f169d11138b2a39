package testutil

import (
	"math"
	"math/rand"
)

// GaussianLine samples amp*exp(-(x-center)^2/(2 sigma^2)) on channels 0..n-1.
func GaussianLine(n int, amp, center, sigma float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		d := (float64(i) - center) / sigma
		out[i] = amp * math.Exp(-0.5*d*d)
	}
	return out
}

// GaussianProfile samples a Gaussian on arbitrary abscissae.
func GaussianProfile(x []float64, amp, mean, stddev float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		d := (v - mean) / stddev
		out[i] = amp * math.Exp(-0.5*d*d)
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse generates a unit impulse at the given channel.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// Constant generates a constant-valued spectrum.
func Constant(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// NaNs returns a slice of length n filled with NaN.
func NaNs(n int) []float64 {
	return Constant(math.NaN(), n)
}

// LineCube builds a channel-major cube ([chan][y][x] flattened) where the
// spectrum at (y, x) is a Gaussian centred on centers[y*nx+x]. A NaN centre
// produces a fully blank spectrum.
func LineCube(nchan, ny, nx int, amp, sigma float64, centers []float64) []float64 {
	data := make([]float64, nchan*ny*nx)
	plane := ny * nx
	for p := 0; p < plane; p++ {
		c := centers[p]
		for k := 0; k < nchan; k++ {
			if math.IsNaN(c) {
				data[k*plane+p] = math.NaN()
				continue
			}
			d := (float64(k) - c) / sigma
			data[k*plane+p] = amp * math.Exp(-0.5*d*d)
		}
	}
	return data
}
