package line_test

import (
	"fmt"
	"math"

	"github.com/cwbudde/m33-lines/stats/line"
)

func ExampleCalculate() {
	s := line.Calculate([]float64{math.NaN(), 0.5, 2, 1.5})
	fmt.Printf("finite=%d peak=%.1f at %d\n", s.Finite, s.Max, s.MaxPos)

	// Output:
	// finite=3 peak=2.0 at 2
}

func ExampleStreamingStats() {
	s := line.NewStreamingStats()
	s.Update([]float64{1, 3})
	s.Update([]float64{math.NaN()})
	r := s.Result()
	fmt.Printf("len=%d mean=%.1f mass-weighted=%.1f\n", r.Length, r.Mean, r.MassWeightedMean())

	// Output:
	// len=3 mean=2.0 mass-weighted=2.5
}
