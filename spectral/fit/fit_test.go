package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/m33-lines/internal/testutil"
)

func velocities(lo, hi, step float64) []float64 {
	var out []float64
	for v := lo; v <= hi; v += step {
		out = append(out, v)
	}
	return out
}

func TestGaussianFit(t *testing.T) {
	x := velocities(-100, 100, 1.3)
	y := testutil.GaussianProfile(x, 0.9, 2.5, 7)
	noise := testutil.DeterministicNoise(3, 0.01, len(y))
	for i := range y {
		y[i] += noise[i]
	}

	res, err := Fit(Gaussian1D{}, x, y, []float64{1, 0, 9}, WithMaxIter(1000))
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireNear(t, "amplitude", res.Params[0], 0.9, 0.01)
	testutil.RequireNear(t, "mean", res.Params[1], 2.5, 0.1)
	testutil.RequireNear(t, "stddev", math.Abs(res.Params[2]), 7, 0.1)
	for i, e := range res.Errors {
		if !(e > 0) || e > 0.1 {
			t.Fatalf("error %s = %v", res.Names[i], e)
		}
	}
	if res.DOF != len(x)-3 {
		t.Fatalf("dof = %d", res.DOF)
	}
	if v, _, ok := res.Param("mean"); !ok || v != res.Params[1] {
		t.Fatal("Param lookup failed")
	}
}

func TestLorentzFit(t *testing.T) {
	x := velocities(-100, 100, 1)
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = Lorentz1D{}.Eval(v, []float64{1, -1.5, 12})
	}
	res, err := Fit(Lorentz1D{}, x, y, []float64{1, 0, 5})
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, res.Params, []float64{1, -1.5, 12}, 1e-4)
}

func TestTiedGaussiansFit(t *testing.T) {
	x := velocities(-100, 100, 0.8)
	truth := []float64{0.8, 1.0, 6, 0.2, 22}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = TiedGaussians{}.Eval(v, truth)
	}
	res, err := Fit(TiedGaussians{}, x, y, []float64{1, 0, 5, 0.25, 20}, WithMaxIter(1000))
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, res.Params, truth, 1e-3)
	if len(res.Names) != 5 {
		t.Fatalf("names = %v", res.Names)
	}

	narrow := TiedGaussians{}.Component(0, 1.0, res.Params)
	wide := TiedGaussians{}.Component(1, 1.0, res.Params)
	testutil.RequireNear(t, "components", narrow+wide, res.Eval(1.0), 1e-12)
}

func TestFitSkipsBlankPoints(t *testing.T) {
	x := velocities(-50, 50, 1)
	y := testutil.GaussianProfile(x, 1, 0, 5)
	for i := 0; i < 10; i++ {
		y[i] = math.NaN()
	}
	res, err := Fit(Gaussian1D{}, x, y, []float64{0.5, 1, 3})
	if err != nil {
		t.Fatal(err)
	}
	if res.DOF != len(x)-10-3 {
		t.Fatalf("dof = %d", res.DOF)
	}
	testutil.RequireNear(t, "amplitude", res.Params[0], 1, 1e-5)
}

func TestFitErrors(t *testing.T) {
	if _, err := Fit(Gaussian1D{}, []float64{1, 2}, []float64{1, 2}, []float64{1, 0, 1}); !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("err = %v, want ErrTooFewPoints", err)
	}
	if _, err := Fit(Gaussian1D{}, []float64{1}, []float64{1}, []float64{1}); err == nil {
		t.Fatal("wrong init length accepted")
	}
	if _, err := Fit(Gaussian1D{}, []float64{1, 2}, []float64{1}, []float64{1, 0, 1}); err == nil {
		t.Fatal("length mismatch accepted")
	}
}
