package feather

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/m33-lines/astro/beam"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/internal/testutil"
)

const (
	gridN = 33
	pix   = DefaultPixScale
)

var (
	sdBeam     = beam.Circular(10 * pix)
	interfBeam = beam.Circular(2 * pix)
)

func TestKernelWeights(t *testing.T) {
	w, err := KernelWeights(sdBeam, pix, gridN, gridN)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireNear(t, "dc", w[0], 1, 1e-12)
	for i, v := range w {
		if v > 1+1e-12 || v < 0 {
			t.Fatalf("weight %d = %g", i, v)
		}
	}
	// A wide beam suppresses the highest frequency.
	if hf := w[gridN/2*gridN+gridN/2]; hf > 1e-3 {
		t.Fatalf("high-frequency weight %g", hf)
	}
}

func TestFeatherConstantSingleDish(t *testing.T) {
	n := gridN * gridN
	hi := make([]float64, n)
	lo := testutil.Constant(2, n)
	ratio := interfBeam.SolidAngle() / sdBeam.SolidAngle()

	out, err := Feather(hi, lo, gridN, gridN, interfBeam, sdBeam, pix)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, out, testutil.Constant(2*ratio, n), 1e-12)

	out, err = Feather(hi, lo, gridN, gridN, interfBeam, sdBeam, pix, WithLowScale(3))
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, out, testutil.Constant(6*ratio, n), 1e-12)
}

func TestFeatherRemovesInterferometerDC(t *testing.T) {
	n := gridN * gridN
	hi := make([]float64, n)
	hi[gridN/2*gridN+gridN/2] = 1
	lo := make([]float64, n)

	out, err := Feather(hi, lo, gridN, gridN, interfBeam, sdBeam, pix, WithHighScale(2))
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, v := range out {
		sum += v
	}
	testutil.RequireNear(t, "sum", sum, 0, 1e-9)
	if peak := out[gridN/2*gridN+gridN/2]; peak <= 0 || peak > 2 {
		t.Fatalf("peak %g", peak)
	}
}

func TestFeatherShape(t *testing.T) {
	_, err := Feather(make([]float64, 4), make([]float64, 5), 2, 2, interfBeam, sdBeam, pix)
	if !errors.Is(err, ErrShape) {
		t.Fatalf("got %v", err)
	}
}

func TestPowerSpectrumConstant(t *testing.T) {
	n := gridN * gridN
	radii, amp, err := PowerSpectrum(testutil.Constant(1.5, n), gridN, gridN)
	if err != nil {
		t.Fatal(err)
	}
	if len(radii) != len(amp) {
		t.Fatalf("%d radii, %d values", len(radii), len(amp))
	}
	testutil.RequireNear(t, "dc", amp[0], 1.5*float64(n), 1e-9)
	for i := 1; i < len(amp); i++ {
		if !math.IsNaN(amp[i]) && amp[i] > 1e-9 {
			t.Fatalf("bin %d = %g", i, amp[i])
		}
	}
}

func TestAngularScale(t *testing.T) {
	s := AngularScale([]float64{0, 1, 4}, 100, 3)
	if !math.IsInf(s[0], 1) {
		t.Fatalf("zero radius gives %g", s[0])
	}
	testutil.RequireSliceNearlyEqual(t, s[1:], []float64{300, 75}, 1e-12)
}

func TestTestName(t *testing.T) {
	got := TestName(true, false, true, true)
	want := "14B-088_HI_LSRK.ms.contsub_channel_1000.CASAVer_440.Model_T.Mask_F.AllFields_T.MScale_T.Tclean_F"
	if got != want {
		t.Fatalf("got %q", got)
	}
}

func beamHeader(b beam.Beam) *fitsfile.Header {
	return fitsfile.NewHeader(
		fitsfile.Card{Name: "BMAJ", Value: b.Major},
		fitsfile.Card{Name: "BMIN", Value: b.Minor},
		fitsfile.Card{Name: "BPA", Value: b.PA},
		fitsfile.Card{Name: "BUNIT", Value: "Jy/beam"},
	)
}

func writePlane(t *testing.T, path string, b beam.Beam, data []float64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	im := fitsfile.NewImage(beamHeader(b), gridN, gridN, 1)
	copy(im.Data, data)
	if err := fitsfile.WriteImage(path, im, false); err != nil {
		t.Fatal(err)
	}
}

// blob returns a Gaussian of the given pixel width centred at (cx, cy).
func blob(cx, cy, sigma float64) []float64 {
	out := make([]float64, gridN*gridN)
	for y := 0; y < gridN; y++ {
		for x := 0; x < gridN; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			out[y*gridN+x] = math.Exp(-(dx*dx + dy*dy) / (2 * sigma * sigma))
		}
	}
	return out
}

func TestRunPowerSpectrumFigure(t *testing.T) {
	dir := t.TempDir()
	mask := make([]float64, gridN*gridN)
	for i := range mask {
		if y, x := i/gridN, i%gridN; x > 2 && x < gridN-3 && y > 2 && y < gridN-3 {
			mask[i] = 1
		}
	}
	writePlane(t, filepath.Join(dir, MaskFile), sdBeam, mask)
	writePlane(t, filepath.Join(dir, ModelFile), sdBeam, blob(16, 16, 5))

	vla := blob(16, 16, 2)
	for i := range vla {
		vla[i] += 0.1 * math.Sin(float64(i))
	}
	wo := TestName(false, true, true, true)
	writePlane(t, filepath.Join(dir, wo, wo+".clean.image.fits"), interfBeam, vla)
	w := TestName(true, true, true, true)
	writePlane(t, filepath.Join(dir, w, w+".clean.image.fits"), interfBeam, vla)

	out := filepath.Join(t.TempDir(), "figs", FigureName)
	if err := RunPowerSpectrumFigure(context.Background(), dir, out, nil); err != nil {
		t.Fatal(err)
	}
	for _, ext := range []string{".pdf", ".png"} {
		if _, err := os.Stat(out + ext); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunPowerSpectrumFigureMissingInput(t *testing.T) {
	err := RunPowerSpectrumFigure(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "x"), nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %v", err)
	}
}

func TestComputeSpectra(t *testing.T) {
	n := gridN * gridN
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	img := blob(16, 16, 2)
	sp, err := ComputeSpectra(Inputs{
		Nx: gridN, Ny: gridN,
		Mask: mask, Model: blob(16, 16, 5), VLA: img, Feathered: img,
		SDBeam: sdBeam, InterfBeam: interfBeam,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sp.Scale) == 0 {
		t.Fatal("no scales")
	}
	for i := range sp.Scale {
		if sp.SDKernel[i] > 1+1e-9 || sp.InterfKernel[i] < -1e-9 {
			t.Fatalf("kernel weights at %d: %g %g", i, sp.SDKernel[i], sp.InterfKernel[i])
		}
		testutil.RequireNear(t, "vla vs feathered", sp.VLA[i], sp.Feathered[i], 1e-9)
	}

	if _, err := ComputeSpectra(Inputs{Nx: 2, Ny: 2}); !errors.Is(err, ErrShape) {
		t.Fatalf("got %v", err)
	}
}
