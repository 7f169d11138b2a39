package line

import "math"

// Stats holds NaN-aware statistics of a spectrum or a set of pixels.
type Stats struct {
	Length   int
	Finite   int
	Sum      float64
	SumSq    float64
	Mean     float64
	Max      float64
	MaxPos   int
	Min      float64
	MinPos   int
	Variance float64 // population variance
	Skewness float64
	Kurtosis float64 // excess kurtosis
}

// StdDev returns the population standard deviation.
func (s Stats) StdDev() float64 {
	return math.Sqrt(s.Variance)
}

// MassWeightedMean returns sum(x^2)/sum(x), the mean of x weighted by
// itself. NaN when the sum is zero.
func (s Stats) MassWeightedMean() float64 {
	if s.Sum == 0 {
		return math.NaN()
	}
	return s.SumSq / s.Sum
}

func emptyStats(n int) Stats {
	nan := math.NaN()
	return Stats{
		Length:   n,
		Mean:     nan,
		Max:      nan,
		MaxPos:   -1,
		Min:      nan,
		MinPos:   -1,
		Variance: nan,
		Skewness: nan,
		Kurtosis: nan,
	}
}

// welford holds the running central moments.
type welford struct {
	n              int
	mean           float64
	m2, m3, m4     float64
	sum, sumSq, c  float64
	maxVal, minVal float64
	maxPos, minPos int
}

func (w *welford) add(x float64, pos int) {
	w.n++
	ni := float64(w.n)
	delta := x - w.mean
	deltaN := delta / ni
	deltaN2 := deltaN * deltaN
	term1 := delta * deltaN * float64(w.n-1)

	// M4 must be updated before M3, and M3 before M2.
	w.m4 += term1*deltaN2*(ni*ni-3*ni+3) + 6*deltaN2*w.m2 - 4*deltaN*w.m3
	w.m3 += term1*deltaN*(float64(w.n-1)-1) - 3*deltaN*w.m2
	w.m2 += term1
	w.mean += deltaN

	// Kahan summation for the total.
	y := x - w.c
	t := w.sum + y
	w.c = (t - w.sum) - y
	w.sum = t
	w.sumSq += x * x

	if w.n == 1 || x > w.maxVal {
		w.maxVal = x
		w.maxPos = pos
	}
	if w.n == 1 || x < w.minVal {
		w.minVal = x
		w.minPos = pos
	}
}

func (w *welford) result(length int) Stats {
	if w.n == 0 {
		return emptyStats(length)
	}

	nf := float64(w.n)
	variance := w.m2 / nf

	var skewness, kurtosis float64
	if variance > 0 {
		skewness = (w.m3 / nf) / (variance * math.Sqrt(variance))
		kurtosis = (w.m4/nf)/(variance*variance) - 3
	}

	return Stats{
		Length:   length,
		Finite:   w.n,
		Sum:      w.sum,
		SumSq:    w.sumSq,
		Mean:     w.mean,
		Max:      w.maxVal,
		MaxPos:   w.maxPos,
		Min:      w.minVal,
		MinPos:   w.minPos,
		Variance: variance,
		Skewness: skewness,
		Kurtosis: kurtosis,
	}
}

// Calculate computes all statistics in a single pass using Welford's online
// algorithm. Non-finite samples are skipped.
func Calculate(values []float64) Stats {
	var w welford
	for i, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		w.add(x, i)
	}
	return w.result(len(values))
}

// NaNSum returns the sum of the finite samples, 0 when there are none.
func NaNSum(values []float64) float64 {
	var sum, c float64
	for _, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		y := x - c
		t := sum + y
		c = (t - sum) - y
		sum = t
	}
	return sum
}

// NaNMax returns the largest finite sample and its index, or (NaN, -1) when
// there is none.
func NaNMax(values []float64) (float64, int) {
	best, pos := math.NaN(), -1
	for i, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		if pos < 0 || x > best {
			best, pos = x, i
		}
	}
	return best, pos
}

// AnyFinite reports whether at least one sample is finite.
func AnyFinite(values []float64) bool {
	for _, x := range values {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			return true
		}
	}
	return false
}

// StreamingStats accumulates statistics incrementally across blocks of
// samples. Feeding the same samples in any block split gives the same
// result as [Calculate].
type StreamingStats struct {
	w      welford
	length int
}

// NewStreamingStats creates a new StreamingStats accumulator.
func NewStreamingStats() *StreamingStats {
	return &StreamingStats{}
}

// Update adds a block of samples to the running statistics.
func (s *StreamingStats) Update(samples []float64) {
	for _, x := range samples {
		s.Add(x)
	}
}

// Add adds a single sample.
func (s *StreamingStats) Add(x float64) {
	pos := s.length
	s.length++
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return
	}
	s.w.add(x, pos)
}

// Result computes the final statistics from accumulated data.
func (s *StreamingStats) Result() Stats {
	return s.w.result(s.length)
}

// Reset clears all accumulated data, allowing the StreamingStats to be reused.
func (s *StreamingStats) Reset() {
	*s = StreamingStats{}
}
