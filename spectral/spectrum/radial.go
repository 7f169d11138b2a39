package spectrum

import (
	"math"
)

// DefaultBinSize is the radial bin width, in pixels, of [AzimuthalAverage].
const DefaultBinSize = 0.5

// AzimuthalAverage averages a row-major image in annuli about its geometric
// centre ((nx-1)/2, (ny-1)/2). It returns the bin centres in pixels and the
// mean of each annulus; empty annuli are NaN and non-finite pixels are
// ignored. binSize <= 0 selects [DefaultBinSize].
func AzimuthalAverage(image []float64, nx, ny int, binSize float64) (radii, means []float64) {
	if binSize <= 0 {
		binSize = DefaultBinSize
	}
	if nx == 0 || ny == 0 {
		return nil, nil
	}
	cx := float64(nx-1) / 2
	cy := float64(ny-1) / 2
	rmax := math.Hypot(cx, cy)

	nbins := int(math.Round(rmax/binSize)) + 1
	sums := make([]float64, nbins)
	counts := make([]float64, nbins)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			v := image[y*nx+x]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			r := math.Hypot(float64(x)-cx, float64(y)-cy)
			b := int(r / binSize)
			if b >= nbins {
				continue
			}
			sums[b] += v
			counts[b]++
		}
	}

	radii = make([]float64, nbins)
	means = make([]float64, nbins)
	for b := range radii {
		radii[b] = (float64(b) + 0.5) * binSize
		if counts[b] == 0 {
			means[b] = math.NaN()
			continue
		}
		means[b] = sums[b] / counts[b]
	}
	return radii, means
}
