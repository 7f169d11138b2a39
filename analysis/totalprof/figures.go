package totalprof

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/cwbudde/m33-lines/internal/figure"
	"github.com/cwbudde/m33-lines/spectral/fit"
)

const (
	velLabel  = "Velocity (km/s)"
	normLabel = "Total Normalized Intensity"
)

// fineVels samples [lo, hi) every step km/s for smooth model curves.
func fineVels(vels []float64, step float64) []float64 {
	lo, hi := vels[0], vels[0]
	for _, v := range vels {
		lo, hi = min(lo, v), max(hi, v)
	}
	var out []float64
	for v := lo; v < hi; v += step {
		out = append(out, v)
	}
	return out
}

func component(r *fit.Result, i int, xs []float64) []float64 {
	tied := fit.TiedGaussians{}
	out := make([]float64, len(xs))
	for j, x := range xs {
		out[j] = tied.Component(i, x, r.Params)
	}
	return out
}

func fitPlot(s figure.Style, vels, norm []float64) (*plot.Plot, error) {
	p := s.New(velLabel, normLabel)
	figure.AddGrid(p)
	if _, err := figure.AddStep(p, vels, norm, 0, ""); err != nil {
		return nil, err
	}
	figure.SetXRange(p, -100, 100)
	figure.SetYRange(p, -0.1, 1.1)
	return p, nil
}

// Figures writes the total and per-ring profile figures. name maps a figure
// name to an output path without extension.
func (p *Profiles) Figures(name func(string) string, f *Fits) error {
	s := figure.Default()
	hiNorm := Normalize(p.HITotal)
	coNorm := Normalize(p.COTotal)

	pl := s.New(velLabel, "Total Intensity (K)")
	figure.AddGrid(pl)
	if _, err := figure.AddStep(pl, p.HIVels, p.HITotal, 0, "HI"); err != nil {
		return err
	}
	figure.SetXRange(pl, -100, 100)
	if err := figure.SaveAll(pl, s, name("total_profile_corrected_velocity_rotsub_hi")); err != nil {
		return err
	}

	pl = s.New(velLabel, "Normalized Total Intensity")
	figure.AddGrid(pl)
	if _, err := figure.AddStep(pl, p.HIVels, hiNorm, 0, "HI"); err != nil {
		return err
	}
	co, err := figure.AddStep(pl, p.COVels, coNorm, 2, "CO(2-1)")
	if err != nil {
		return err
	}
	co.Dashes = figure.Dashes(1)
	figure.SetXRange(pl, -100, 100)
	figure.SetYRange(pl, -0.02, 1.1)
	if err := figure.SaveAll(pl, s, name("total_profile_corrected_velocity_rotsub_HI_CO21")); err != nil {
		return err
	}

	if f == nil {
		return p.ringFigure(name)
	}

	// Two-Gaussian HI fit.
	if pl, err = fitPlot(s, p.HIVels, hiNorm); err != nil {
		return err
	}
	for i, c := range []struct {
		ys    []float64
		color int
		label string
	}{
		{f.HI.EvalAll(p.HIVels), 7, "Total Fit"},
		{component(f.HI, 0, p.HIVels), 2, "Narrow Component"},
		{component(f.HI, 1, p.HIVels), 4, "Wide Component"},
	} {
		l, err := figure.AddLine(pl, p.HIVels, c.ys, c.color, c.label)
		if err != nil {
			return err
		}
		l.Dashes = figure.Dashes(i + 1)
	}
	if err := figure.SaveAll(pl, s, name("total_profile_corrected_velocity_rotsub_hi_fit")); err != nil {
		return err
	}

	if pl, err = fitPlot(s, p.HIVels, hiNorm); err != nil {
		return err
	}
	l, err := figure.AddLine(pl, p.HIVels, f.HILorentz.EvalAll(p.HIVels), 7, "Total Fit")
	if err != nil {
		return err
	}
	l.Dashes = figure.Dashes(1)
	if err := figure.SaveAll(pl, s, name("total_profile_corrected_velocity_rotsub_hi_fit_lorentz")); err != nil {
		return err
	}

	if pl, err = fitPlot(s, p.COVels, coNorm); err != nil {
		return err
	}
	more := fineVels(p.COVels, 0.5)
	if _, err := figure.AddDashed(pl, more, f.CO.EvalAll(more), 7, "Total Fit"); err != nil {
		return err
	}
	if err := figure.SaveAll(pl, s, name("total_profile_corrected_velocity_rotsub_co21_fit")); err != nil {
		return err
	}

	return p.ringFigure(name)
}

// Per-ring panel layout.
const (
	ringRows = 4
	ringCols = 3
)

func (p *Profiles) ringFigure(name func(string) string) error {
	s := figure.Style{Width: 12 * vg.Inch, Height: 20 * vg.Inch, FontSize: vg.Points(13)}
	rows := max(ringRows, (len(p.Rings)+ringCols-1)/ringCols)
	grid := make([][]*plot.Plot, rows)
	for r := range grid {
		grid[r] = make([]*plot.Plot, ringCols)
	}

	for i, ring := range p.Rings {
		r, c := i/ringCols, i%ringCols
		xlabel, ylabel := "", ""
		if r == rows-1 {
			xlabel = velLabel
		}
		if c == 0 {
			ylabel = "Normalized Intensity"
		}
		pl := s.New(xlabel, ylabel)
		figure.AddGrid(pl)
		label := func(l string) string {
			if i == 0 {
				return l
			}
			return ""
		}
		if _, err := figure.AddStep(pl, p.HIVels, Normalize(p.HIRadial[i]), 0, label("HI")); err != nil {
			return err
		}
		co, err := figure.AddStep(pl, p.COVels, Normalize(p.CORadial[i]), 2, label("CO(2-1)"))
		if err != nil {
			return err
		}
		co.Dashes = figure.Dashes(1)
		figure.SetXRange(pl, -110, 100)
		figure.SetYRange(pl, -0.02, 1.1)
		text := fmt.Sprintf("%g to %g kpc", ring.Inner/1000, ring.Outer/1000)
		if err := figure.Annotate(pl, -98, 0.65, text); err != nil {
			return err
		}
		if i == 0 {
			pl.Legend.Left = true
		}
		grid[r][c] = pl
	}
	return figure.SaveGrid(grid, s, name("total_profile_velocity_rotsub_hi_co_radial"))
}
