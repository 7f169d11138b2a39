package profile

import "math"

// LogError converts a linear uncertainty to dex for error bars.
func LogError(v, sigma float64) float64 {
	return 0.434 * sigma / v
}

// GasRatio is the H2-to-HI ratio of two profiles with its propagated error
// in linear and log units.
type GasRatio struct {
	Radius   []float64
	Ratio    []float64
	Sigma    []float64
	LogSigma []float64
}

// Ratio divides the molecular profile by the atomic one bin by bin.
func Ratio(h2, hi *Profile) GasRatio {
	n := min(h2.Len(), hi.Len())
	g := GasRatio{
		Radius:   append([]float64(nil), h2.Radius[:n]...),
		Ratio:    make([]float64, n),
		Sigma:    make([]float64, n),
		LogSigma: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		r := h2.SD[i] / hi.SD[i]
		g.Ratio[i] = r
		g.Sigma[i] = r * quadRel(h2.SD[i], h2.Sigma[i], hi.SD[i], hi.Sigma[i])
		g.LogSigma[i] = g.Sigma[i] / (r * math.Ln10)
	}
	return g
}

// Total sums two profiles. The error combines the relative errors.
func Total(h2, hi *Profile) *Profile {
	n := min(h2.Len(), hi.Len())
	t := &Profile{
		Radius: append([]float64(nil), h2.Radius[:n]...),
		SD:     make([]float64, n),
		Sigma:  make([]float64, n),
		NPix:   append([]int(nil), h2.NPix[:n]...),
	}
	for i := 0; i < n; i++ {
		t.SD[i] = h2.SD[i] + hi.SD[i]
		t.Sigma[i] = t.SD[i] * quadRel(h2.SD[i], h2.Sigma[i], hi.SD[i], hi.Sigma[i])
	}
	return t
}

// AddDark adds a constant dark-gas surface density, scaling the error to
// keep the relative error of p.
func AddDark(p *Profile, dark float64) *Profile {
	out := p.Scale(1)
	for i := range out.SD {
		out.SD[i] = p.SD[i] + dark
		out.Sigma[i] = out.SD[i] * p.Sigma[i] / p.SD[i]
	}
	return out
}

func quadRel(a, sa, b, sb float64) float64 {
	return math.Hypot(sa/a, sb/b)
}
