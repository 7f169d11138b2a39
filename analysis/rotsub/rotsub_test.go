package rotsub

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/internal/config"
	"github.com/cwbudde/m33-lines/internal/testutil"
	"github.com/cwbudde/m33-lines/stats/line"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	nchan = 64
	ny    = 3
	nx    = 4
	vsysK = 32
)

func velocity(k float64) float64 {
	return -100000 - 1000*k
}

type fixture struct {
	cube    *cube.Cube
	mask    []float64
	model   *cube.Map
	centers []float64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	centers := make([]float64, ny*nx)
	for i := range centers {
		centers[i] = 20 + 2*float64(i)
	}
	h := fitsfile.NewHeader(
		fitsfile.Card{Name: "CTYPE3", Value: "VRAD"},
		fitsfile.Card{Name: "CRVAL3", Value: -100000.0},
		fitsfile.Card{Name: "CDELT3", Value: -1000.0},
		fitsfile.Card{Name: "CRPIX3", Value: 1.0},
		fitsfile.Card{Name: "CUNIT3", Value: "m/s"},
		fitsfile.Card{Name: "BUNIT", Value: "Jy/beam"},
	)
	data := testutil.LineCube(nchan, ny, nx, 1, 2.5, centers)
	// One empty spectrum.
	for k := 0; k < nchan; k++ {
		data[k*ny*nx+1] = math.NaN()
	}
	c, err := cube.New(h, nx, ny, nchan, data)
	if err != nil {
		t.Fatal(err)
	}

	mask := make([]float64, len(data))
	for p, ctr := range centers {
		for k := 0; k < nchan; k++ {
			if math.Abs(float64(k)-ctr) <= 4 {
				mask[k*ny*nx+p] = 1
			}
		}
	}

	model := cube.NewMap(c.PlaneHeader(), nx, ny)
	for i, ctr := range centers {
		model.Data[i] = velocity(ctr)
	}
	model.Data[nx*ny-1] = math.NaN()
	return fixture{cube: c, mask: mask, model: model, centers: centers}
}

func TestPositionsReversed(t *testing.T) {
	f := newFixture(t)
	posns := Positions(f.model)
	if len(posns) != nx*ny-1 {
		t.Fatalf("got %d positions", len(posns))
	}
	if posns[0].Y != ny-1 || posns[0].X != nx-2 {
		t.Fatalf("first = %+v", posns[0])
	}
	if last := posns[len(posns)-1]; last.Y != 0 || last.X != 0 {
		t.Fatalf("last = %+v", last)
	}
}

func TestSubtractCentresOnVsys(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "rotsub.fits")
	vsys := velocity(vsysK)

	mask, err := Subtract(context.Background(), f.cube, f.mask, f.model, vsys, path,
		WithFlushEvery(4), WithWorkers(3))
	if err != nil {
		t.Fatal(err)
	}

	out, err := cube.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	crval, _ := out.Header.Float("CRVAL3")
	testutil.RequireNear(t, "CRVAL3", crval, -100000-vsys, 1e-3)

	plane := nx * ny
	for p := 0; p < plane-1; p++ {
		y, x := p/nx, p%nx
		if p == 1 {
			if v, _ := line.NaNMax(out.Spectrum(y, x)); v != 0 {
				t.Fatalf("empty spectrum written: max %v", v)
			}
			continue
		}
		if _, at := line.NaNMax(out.Spectrum(y, x)); at != vsysK {
			t.Fatalf("pixel %d peaks at %d, want %d", p, at, vsysK)
		}
		if mask[vsysK*plane+p] != 1 {
			t.Fatalf("pixel %d: mask not moved to the systemic channel", p)
		}
		if mask[(vsysK+8)*plane+p] != 0 {
			t.Fatalf("pixel %d: mask leaks beyond the line", p)
		}
	}
	// Unshifted pixels keep their mask.
	last := plane - 1
	if mask[int(f.centers[last])*plane+last] != 1 {
		t.Fatal("mask outside the model changed")
	}
}

func TestSubtractSerialMatchesParallel(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	vsys := velocity(vsysK)
	a, err := Subtract(context.Background(), f.cube, f.mask, f.model, vsys, filepath.Join(dir, "a.fits"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Subtract(context.Background(), f.cube, f.mask, f.model, vsys, filepath.Join(dir, "b.fits"), WithWorkers(4))
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, b, a, 0)
}

func TestSubtractErrors(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.fits")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Subtract(context.Background(), f.cube, nil, f.model, 0, path); !errors.Is(err, fitsfile.ErrFileExists) {
		t.Fatalf("err = %v, want ErrFileExists", err)
	}

	small := cube.NewMap(nil, 2, 2)
	if _, err := Subtract(context.Background(), f.cube, nil, small, 0, filepath.Join(dir, "x.fits")); !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}
	if _, err := Subtract(context.Background(), f.cube, []float64{1}, f.model, 0, filepath.Join(dir, "y.fits")); !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Subtract(ctx, f.cube, nil, f.model, 0, filepath.Join(dir, "z.fits"), WithWorkers(2)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestReadVsys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.csv")
	if err := os.WriteFile(path, []byte("PA,inc,Vsys\n201.1,55.08,-180.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	v, err := ReadVsys(path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireNear(t, "vsys", v, -180500, 1e-9)

	if err := os.WriteFile(path, []byte("PA,inc\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadVsys(path); !errors.Is(err, ErrNoVsys) {
		t.Fatalf("err = %v, want ErrNoVsys", err)
	}
}

func TestRun(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.FourteenBHIDir = dir

	write := func(name string, im *fitsfile.Image) {
		t.Helper()
		if err := fitsfile.WriteImage(filepath.Join(dir, name), im, false); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, cfg.Products.DiskfitModel)), 0o755); err != nil {
		t.Fatal(err)
	}
	write(cfg.Products.Cube, f.cube.Image())
	write(cfg.Products.Mask, &fitsfile.Image{Header: f.cube.Header.Clone(), Axes: []int{nx, ny, nchan}, Data: f.mask})
	write(cfg.Products.DiskfitModel, f.model.Image())
	params := filepath.Join(dir, cfg.Products.DiskfitParams)
	if err := os.WriteFile(params, []byte("Vsys\n-132.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Run(context.Background(), cfg, nil); err != nil {
		t.Fatal(err)
	}
	out, err := cube.Read(filepath.Join(dir, cfg.Products.RotsubCube))
	if err != nil {
		t.Fatal(err)
	}
	if _, at := line.NaNMax(out.Spectrum(0, 0)); at != vsysK {
		t.Fatalf("peak at %d, want %d", at, vsysK)
	}
	mask, err := fitsfile.ReadImage(filepath.Join(dir, cfg.Products.RotsubMask))
	if err != nil {
		t.Fatal(err)
	}
	crval, _ := mask.Header.Float("CRVAL3")
	testutil.RequireNear(t, "mask CRVAL3", crval, -100000+132000, 1e-3)
}
