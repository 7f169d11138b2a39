package totalprof

import (
	"fmt"

	"github.com/cwbudde/m33-lines/internal/table"
	"github.com/cwbudde/m33-lines/spectral/fit"
)

// Starting values, in normalised intensity and km/s.
var (
	hiTiedInit    = []float64{1, 0, 5, 0.25, 20}
	hiLorentzInit = []float64{1, 0, 5}
	hiRingInit    = []float64{1, 0, 5}
	coInit        = []float64{1, 0, 9}
)

// ringMaxIter is the iteration limit of the per-ring fits.
const ringMaxIter = 1000

// Fits holds the line-shape fits to normalised profiles.
type Fits struct {
	HI        *fit.Result // narrow and wide Gaussians with a shared mean
	HILorentz *fit.Result
	CO        *fit.Result
	HIRings   []*fit.Result
	CORings   []*fit.Result
}

// Fit fits the total and per-ring profiles. A ring whose fit has no
// covariance fails the whole call.
func (p *Profiles) Fit() (*Fits, error) {
	hiNorm := Normalize(p.HITotal)
	coNorm := Normalize(p.COTotal)

	f := &Fits{}
	var err error
	if f.HI, err = fit.Fit(fit.TiedGaussians{}, p.HIVels, hiNorm, hiTiedInit); err != nil {
		return nil, fmt.Errorf("totalprof: HI: %w", err)
	}
	if f.HILorentz, err = fit.Fit(fit.Lorentz1D{}, p.HIVels, hiNorm, hiLorentzInit); err != nil {
		return nil, fmt.Errorf("totalprof: HI Lorentzian: %w", err)
	}
	if f.CO, err = fit.Fit(fit.Gaussian1D{}, p.COVels, coNorm, coInit); err != nil {
		return nil, fmt.Errorf("totalprof: CO: %w", err)
	}

	for i, ring := range p.Rings {
		hi, err := fit.Fit(fit.Gaussian1D{}, p.HIVels, Normalize(p.HIRadial[i]), hiRingInit, fit.WithMaxIter(ringMaxIter))
		if err != nil {
			return nil, fmt.Errorf("totalprof: HI %s: %w", ring.Name(), err)
		}
		co, err := fit.Fit(fit.Gaussian1D{}, p.COVels, Normalize(p.CORadial[i]), coInit, fit.WithMaxIter(ringMaxIter))
		if err != nil {
			return nil, fmt.Errorf("totalprof: CO %s: %w", ring.Name(), err)
		}
		f.HIRings = append(f.HIRings, hi)
		f.CORings = append(f.CORings, co)
	}
	return f, nil
}

// ParamTable lists a fit's parameters and errors, one row per parameter.
func ParamTable(r *fit.Result) (*table.ParamTable, error) {
	t := table.NewParamTable(r.Names, []string{"Params", "Errors"})
	for i, name := range r.Names {
		if err := t.Set(name, "Params", r.Params[i]); err != nil {
			return nil, err
		}
		if err := t.Set(name, "Errors", r.Errors[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// RingTable lists per-ring fits, one row per ring, with a "_stderr" column
// after every parameter. All results must share the parameter names of the
// first one.
func RingTable(rings []Ring, results []*fit.Result) (*table.ParamTable, error) {
	if len(results) > len(rings) {
		return nil, fmt.Errorf("totalprof: %d ring fits for %d rings", len(results), len(rings))
	}
	index := make([]string, len(rings))
	for i, r := range rings {
		index[i] = r.Name()
	}
	var cols []string
	if len(results) > 0 {
		for _, n := range results[0].Names {
			cols = append(cols, n, n+"_stderr")
		}
	}
	t := table.NewParamTable(index, cols)
	for i, r := range results {
		for j, n := range r.Names {
			if err := t.Set(index[i], n, r.Params[j]); err != nil {
				return nil, fmt.Errorf("totalprof: %s: %w", index[i], err)
			}
			if err := t.Set(index[i], n+"_stderr", r.Errors[j]); err != nil {
				return nil, fmt.Errorf("totalprof: %s: %w", index[i], err)
			}
		}
	}
	return t, nil
}
