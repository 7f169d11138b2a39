package moments

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/fitsfile"
	"github.com/cwbudde/m33-lines/internal/config"
	"github.com/cwbudde/m33-lines/internal/testutil"
)

var pix = 2.0 / 3600

const (
	nx, ny, nchan = 12, 10, 40
)

func testCube(t *testing.T) *cube.Cube {
	t.Helper()
	h := fitsfile.NewHeader(
		fitsfile.Card{Name: "CTYPE1", Value: "RA---SIN"},
		fitsfile.Card{Name: "CRVAL1", Value: 23.46},
		fitsfile.Card{Name: "CDELT1", Value: -pix},
		fitsfile.Card{Name: "CRPIX1", Value: 6.0},
		fitsfile.Card{Name: "CTYPE2", Value: "DEC--SIN"},
		fitsfile.Card{Name: "CRVAL2", Value: 30.66},
		fitsfile.Card{Name: "CDELT2", Value: pix},
		fitsfile.Card{Name: "CRPIX2", Value: 5.0},
		fitsfile.Card{Name: "CTYPE3", Value: "VRAD"},
		fitsfile.Card{Name: "CRVAL3", Value: -100000.0},
		fitsfile.Card{Name: "CDELT3", Value: -2000.0},
		fitsfile.Card{Name: "CRPIX3", Value: 1.0},
		fitsfile.Card{Name: "CUNIT3", Value: "m/s"},
		fitsfile.Card{Name: "BMAJ", Value: 5 * pix},
		fitsfile.Card{Name: "BMIN", Value: 4 * pix},
		fitsfile.Card{Name: "BPA", Value: 30.0},
		fitsfile.Card{Name: "BUNIT", Value: "Jy/beam"},
	)
	centers := make([]float64, nx*ny)
	for i := range centers {
		centers[i] = 10 + float64(i%nx)
	}
	c, err := cube.New(h, nx, ny, nchan, testutil.LineCube(nchan, ny, nx, 0.01, 2, centers))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestIntensityAndColumnDensity(t *testing.T) {
	set := Compute(testCube(t))
	b, err := set.Moment0.Beam()
	if err != nil {
		t.Fatal(err)
	}
	kkms := Intensity(set.Moment0, b, 1.420405751786e9)
	want := set.Moment0.Data[0] * b.JyToK(1.420405751786e9) / 1000
	testutil.RequireNear(t, "K km/s", kkms.Data[0], want, math.Abs(want)*1e-12)
	if kkms.Unit != "K km/s" {
		t.Fatalf("unit %q", kkms.Unit)
	}
	cd := ColumnDensity(kkms, 1.823e18)
	testutil.RequireNear(t, "N_HI", cd.Data[0], want*1.823e18, math.Abs(want)*1.823e6)
}

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	prod := config.Default().Products
	locate := func(n string) string { return filepath.Join(dir, n) }

	set := Compute(testCube(t))
	if err := set.Write(locate, prod, false); err != nil {
		t.Fatal(err)
	}
	if err := set.Write(locate, prod, false); err == nil {
		t.Fatal("expected an error rewriting without overwrite")
	}
	got, err := Read(locate, prod)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, got.Moment1.Data, set.Moment1.Data, 0.1)
	if got.Moment0.Nx != nx || got.Moment0.Ny != ny {
		t.Fatalf("shape %dx%d", got.Moment0.Nx, got.Moment0.Ny)
	}
}

func TestRun(t *testing.T) {
	vlaDir, gbtDir, figDir := t.TempDir(), t.TempDir(), t.TempDir()
	cfg := config.Default()
	cfg.Paths.FourteenBHIDir = vlaDir
	cfg.Paths.FourteenBGBTDir = gbtDir
	cfg.Paths.AllFiguresDir = figDir

	c := testCube(t)
	if err := fitsfile.WriteImage(filepath.Join(vlaDir, cfg.Products.Cube), c.Image(), false); err != nil {
		t.Fatal(err)
	}
	feathered := Compute(c)
	feathered.Moment1 = feathered.Moment1.Scale(1.01, "m/s")
	if err := feathered.Write(cfg.Paths.FourteenBWithGBT, cfg.Products, false); err != nil {
		t.Fatal(err)
	}

	if err := Run(context.Background(), cfg, nil, true); err != nil {
		t.Fatal(err)
	}
	for _, base := range []string{
		"zeroth_moment_map_14B088",
		"zeroth_moment_map_14B088_feather",
		"coldens_map_14B088",
		"coldens_map_14B088_feather",
		"peaktemps_map_14B088",
		"peaktemps_map_14B088_feather",
		"centroid_map_14B088",
		"centroid_map_14B088_feather",
		"centroid_map_14B088_feather_diff",
	} {
		for _, ext := range []string{".pdf", ".png"} {
			if _, err := os.Stat(filepath.Join(figDir, base+ext)); err != nil {
				t.Errorf("missing %s%s", base, ext)
			}
		}
	}
}
