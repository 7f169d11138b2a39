package profile

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// KrumholzRatio returns the H2-to-HI surface density ratio predicted by
// Krumholz, McKee & Tumlinson (2009) for a total gas surface density sd
// (Msun pc^-2), clumping factor c and metallicity Z in solar units.
func KrumholzRatio(sd, c, z float64) float64 {
	f := krumholzFraction(sd, c, z)
	if f <= 0 {
		return 0
	}
	return f / (1 - f)
}

func krumholzFraction(sd, c, z float64) float64 {
	chi := 0.77 * (1 + 3.1*math.Pow(z, 0.365))
	tauc := 0.066 * c * sd * z
	s := math.Log(1+0.6*chi+0.01*chi*chi) / (0.6 * tauc)
	if s >= 2 {
		return 0
	}
	return 1 - 0.75*s/(1+0.25*s)
}

// KrumholzCurve evaluates the log10 ratio model over sds.
func KrumholzCurve(sds []float64, c, z float64) []float64 {
	out := make([]float64, len(sds))
	for i, sd := range sds {
		out[i] = math.Log10(KrumholzRatio(sd, c, z))
	}
	return out
}

// ClumpFactors fits a clumping factor to every (sd, ratio) pair by
// minimising |model - ratio| from cInit. Non-finite pairs give NaN.
func ClumpFactors(sd, ratio, z []float64, cInit float64) []float64 {
	out := make([]float64, len(sd))
	for i := range sd {
		if math.IsNaN(sd[i]) || math.IsNaN(ratio[i]) || math.IsInf(ratio[i], 0) {
			out[i] = math.NaN()
			continue
		}
		s, r, zi := sd[i], ratio[i], z[i]
		p := optimize.Problem{
			Func: func(x []float64) float64 {
				if x[0] <= 0 {
					return math.Inf(1)
				}
				return math.Abs(KrumholzRatio(s, x[0], zi) - r)
			},
		}
		res, err := optimize.Minimize(p, []float64{cInit}, nil, &optimize.NelderMead{})
		if err != nil || res == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = res.X[0]
	}
	return out
}

// ConstantZ returns n copies of z.
func ConstantZ(n int, z float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = z
	}
	return out
}

// RosolowskySimonZ is the M33 metallicity gradient of Rosolowsky & Simon
// (2008) in solar units at galactocentric radius r (kpc).
func RosolowskySimonZ(r float64) float64 {
	return math.Pow(10, 8.36-0.027*r-8.8)
}

// BresolinZ is the M33 metallicity gradient of Bresolin (2011).
func BresolinZ(r float64) float64 {
	return math.Pow(10, 8.82-0.03*r-8.8)
}

// MetallicityProfile evaluates a gradient at each radius.
func MetallicityProfile(radius []float64, grad func(float64) float64) []float64 {
	out := make([]float64, len(radius))
	for i, r := range radius {
		out[i] = grad(r)
	}
	return out
}
