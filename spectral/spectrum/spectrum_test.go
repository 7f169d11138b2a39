package spectrum

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/cwbudde/m33-lines/internal/testutil"
)

func TestMagnitude(t *testing.T) {
	bins := []complex128{3 + 4i, -1 - 1i, 0}

	mag := Magnitude(bins)
	if len(mag) != len(bins) {
		t.Fatalf("Magnitude length mismatch: got=%d want=%d", len(mag), len(bins))
	}
	testutil.RequireSliceNearlyEqual(t, mag, []float64{5, math.Sqrt2, 0}, 1e-12)
	if Magnitude(nil) != nil {
		t.Fatal("empty input should give nil")
	}
}

func TestCentredMagnitude(t *testing.T) {
	// A constant image has all its amplitude in the zero-frequency bin,
	// which lands at (nx/2, ny/2).
	const nx, ny = 6, 5
	coeff, err := FFT2(testutil.Constant(1, nx*ny), nx, ny)
	if err != nil {
		t.Fatal(err)
	}
	mag, err := CentredMagnitude(coeff, nx, ny)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range mag {
		want := 0.0
		if i == (ny/2)*nx+nx/2 {
			want = nx * ny
		}
		testutil.RequireNear(t, "bin", v, want, 1e-9)
	}
	if _, err := CentredMagnitude(coeff, nx, ny+1); err == nil {
		t.Fatal("expected shape error")
	}
}

func TestFFT2Constant(t *testing.T) {
	const nx, ny = 6, 5
	coeff, err := FFT2(testutil.Constant(2, nx*ny), nx, ny)
	if err != nil {
		t.Fatal(err)
	}
	if cmplx.Abs(coeff[0]-complex(2*nx*ny, 0)) > 1e-9 {
		t.Fatalf("DC = %v", coeff[0])
	}
	for i := 1; i < len(coeff); i++ {
		if cmplx.Abs(coeff[i]) > 1e-9 {
			t.Fatalf("bin %d = %v, want 0", i, coeff[i])
		}
	}
}

func TestFFT2RoundTrip(t *testing.T) {
	const nx, ny = 8, 7
	img := testutil.DeterministicNoise(7, 1, nx*ny)
	img[3] = math.NaN()

	coeff, err := FFT2(img, nx, ny)
	if err != nil {
		t.Fatal(err)
	}
	back, err := IFFT2(coeff, nx, ny)
	if err != nil {
		t.Fatal(err)
	}
	want := append([]float64(nil), img...)
	want[3] = 0
	testutil.RequireSliceNearlyEqual(t, Real(back), want, 1e-12)
}

func TestFFT2PlaneWave(t *testing.T) {
	// A cosine along x with one cycle across the image puts power in bins
	// (1, 0) and (nx-1, 0) only.
	const nx, ny = 8, 4
	img := make([]float64, nx*ny)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			img[y*nx+x] = math.Cos(2 * math.Pi * float64(x) / nx)
		}
	}
	coeff, _ := FFT2(img, nx, ny)
	mag := Magnitude(coeff)
	testutil.RequireNear(t, "bin 1", mag[1], nx*ny/2, 1e-9)
	testutil.RequireNear(t, "bin nx-1", mag[nx-1], nx*ny/2, 1e-9)
	testutil.RequireNear(t, "bin 2", mag[2], 0, 1e-9)
}

func TestFFT2ShapeError(t *testing.T) {
	if _, err := FFT2(make([]float64, 5), 2, 2); err == nil {
		t.Fatal("expected shape error")
	}
}

func TestFFTShift2(t *testing.T) {
	// 4x3 grid, zero frequency at index 0 moves to (2, 1).
	data := make([]int, 12)
	for i := range data {
		data[i] = i
	}
	shifted := FFTShift2(data, 4, 3)
	if shifted[1*4+2] != 0 {
		t.Fatalf("DC landed elsewhere: %v", shifted)
	}
	back := IFFTShift2(shifted, 4, 3)
	for i := range back {
		if back[i] != data[i] {
			t.Fatalf("IFFTShift2 did not invert: %v", back)
		}
	}
}

func TestAzimuthalAverage(t *testing.T) {
	// An image equal to the distance from the centre averages to roughly
	// the bin centres.
	const n = 21
	img := make([]float64, n*n)
	c := float64(n-1) / 2
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			img[y*n+x] = math.Hypot(float64(x)-c, float64(y)-c)
		}
	}
	radii, means := AzimuthalAverage(img, n, n, 1)
	testutil.RequireNear(t, "centre", means[0], 0, 1e-12)
	for b := 1; b < 10; b++ {
		if math.Abs(means[b]-radii[b]) > 0.5 {
			t.Fatalf("bin %d: mean %v, centre %v", b, means[b], radii[b])
		}
	}
}

func TestAzimuthalAverageEmptyBins(t *testing.T) {
	img := []float64{1, 1, 1, 1}
	radii, means := AzimuthalAverage(img, 2, 2, 0)
	if len(radii) != len(means) || len(radii) == 0 {
		t.Fatalf("radii %v means %v", radii, means)
	}
	// All pixels sit at r = 0.707, so the first bin is empty.
	if !math.IsNaN(means[0]) || means[1] != 1 {
		t.Fatalf("means = %v", means)
	}
}
