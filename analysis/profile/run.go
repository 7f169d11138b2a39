package profile

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg/draw"

	"github.com/cwbudde/m33-lines/astro/beam"
	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/astro/galaxy"
	"github.com/cwbudde/m33-lines/internal/config"
	"github.com/cwbudde/m33-lines/internal/figure"
	"github.com/cwbudde/m33-lines/internal/table"
)

// COMaxRadius is the radius beyond which the IRAM map is dominated by edge
// effects.
const COMaxRadius = 6e3

// Comparison holds the CO and HI profiles and their derived quantities.
type Comparison struct {
	BinWidth float64 // pc

	CO, CONorth, COSouth *Profile
	HI                   *Profile
	COMass, HIMass       *Profile // mass weighted

	Ratio     GasRatio
	Total     *Profile
	DarkRatio GasRatio
	DarkTotal *Profile

	ClumpConstZ   []float64
	ClumpRosSim   []float64
	ClumpBresolin []float64
}

// CompareConfig collects the physical inputs of Compare.
type CompareConfig struct {
	BinWidth         float64
	MaxRadius        float64
	COMassConversion float64
	BeamEfficiency   float64
	HIMassConversion float64
	HIRestFreq       float64
	HIBeam           *beam.Beam
	DarkGas          float64 // Msun pc^-2 added to H2
}

// DefaultCompareConfig returns 100 pc bins out to 6 kpc.
func DefaultCompareConfig() CompareConfig {
	return CompareConfig{
		BinWidth:         100,
		MaxRadius:        COMaxRadius,
		COMassConversion: 6.7,
		BeamEfficiency:   0.75,
		HIMassConversion: HIMassConversion,
		HIRestFreq:       beam.HIRestFrequency,
		DarkGas:          5,
	}
}

// Compare builds every profile from a CO(2-1) moment 0 (K m/s or K km/s)
// and an HI moment 0.
func Compare(gal galaxy.Params, coMom0, hiMom0 *cube.Map, cc CompareConfig) (*Comparison, error) {
	common := []Option{WithBinWidth(cc.BinWidth), WithMaxRadius(cc.MaxRadius)}
	coOpts := append(append([]Option(nil), common...), WithMassConversion(cc.COMassConversion))
	hiOpts := append(append([]Option(nil), common...),
		WithMassConversion(cc.HIMassConversion), WithRestFreq(cc.HIRestFreq))
	if cc.HIBeam != nil {
		hiOpts = append(hiOpts, WithBeam(*cc.HIBeam))
	}

	eff := 1.0
	if cc.BeamEfficiency > 0 {
		eff = 1 / cc.BeamEfficiency
	}
	co := func(extra ...Option) (*Profile, error) {
		p, err := SurfaceDensity(gal, coMom0, append(append([]Option(nil), coOpts...), extra...)...)
		if err != nil {
			return nil, fmt.Errorf("profile: CO: %w", err)
		}
		return p.Scale(eff), nil
	}
	hi := func(extra ...Option) (*Profile, error) {
		p, err := SurfaceDensity(gal, hiMom0, append(append([]Option(nil), hiOpts...), extra...)...)
		if err != nil {
			return nil, fmt.Errorf("profile: HI: %w", err)
		}
		return p, nil
	}

	c := &Comparison{BinWidth: cc.BinWidth}
	var err error
	if c.CO, err = co(); err != nil {
		return nil, err
	}
	if c.CONorth, err = co(WithPA(galaxy.North)); err != nil {
		return nil, err
	}
	if c.COSouth, err = co(WithPA(galaxy.South)); err != nil {
		return nil, err
	}
	if c.COMass, err = co(WithWeighting(MassWeighted)); err != nil {
		return nil, err
	}
	if c.HI, err = hi(); err != nil {
		return nil, err
	}
	if c.HIMass, err = hi(WithWeighting(MassWeighted)); err != nil {
		return nil, err
	}

	c.Ratio = Ratio(c.CO, c.HI)
	c.Total = Total(c.CO, c.HI)
	dark := AddDark(c.CO, cc.DarkGas)
	c.DarkRatio = Ratio(dark, c.HI)
	c.DarkTotal = Total(dark, c.HI)

	n := c.Total.Len()
	c.ClumpConstZ = ClumpFactors(c.Total.SD, c.Ratio.Ratio, ConstantZ(n, 0.5), 1)
	c.ClumpRosSim = ClumpFactors(c.Total.SD, c.Ratio.Ratio, MetallicityProfile(c.CO.Radius, RosolowskySimonZ), 1)
	c.ClumpBresolin = ClumpFactors(c.Total.SD, c.Ratio.Ratio, MetallicityProfile(c.CO.Radius, BresolinZ), 1)
	return c, nil
}

func logErrors(p *Profile) []float64 {
	out := make([]float64, p.Len())
	for i := range out {
		out[i] = LogError(p.SD[i], p.Sigma[i])
	}
	return out
}

// krumholzCurves are the model lines drawn on the ratio figures.
var krumholzCurves = []struct {
	C, Z  float64
	Label string
}{
	{2, 0.5, "c=2, Z=0.5"},
	{4, 0.5, "c=4, Z=0.5"},
	{4, 0.25, "c=4, Z=0.25"},
	{4, 1.0, "c=4, Z=1.0"},
}

func arange(lo, hi, step float64) []float64 {
	var out []float64
	for i := 0; ; i++ {
		v := lo + float64(i)*step
		if v >= hi {
			return out
		}
		out = append(out, v)
	}
}

// Corbelli is the stellar surface density profile of Corbelli et al. (2014).
type Corbelli struct {
	R            []float64 // kpc
	SigmaStellar []float64 // Msun pc^-2
}

// ReadCorbelli loads the R and SigmaStellar columns.
func ReadCorbelli(path string) (*Corbelli, error) {
	t, err := table.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	r, err := t.Float("R")
	if err != nil {
		return nil, err
	}
	s, err := t.Float("SigmaStellar")
	if err != nil {
		return nil, err
	}
	return &Corbelli{R: r, SigmaStellar: s}, nil
}

// Figures writes the comparison figures. name maps a figure name to an
// output path without extension.
func (c *Comparison) Figures(name func(string) string, corbelli *Corbelli) error {
	dr := int(c.BinWidth)
	suffix := fmt.Sprintf("_dr_%dpc", dr)
	def := figure.Default()
	one := figure.OneColumn(0, 1)

	logY := "log Σ (Msun pc^-2)"
	radius := "Radius (kpc)"

	// H2 profile.
	p := def.New(radius, logY)
	figure.AddGrid(p)
	if err := figure.AddStepErrors(p, c.CO.Radius, figure.Log10(c.CO.SD), logErrors(c.CO), 0, "H2"); err != nil {
		return err
	}
	if err := figure.SaveAll(p, def, name("M33_Sigma_profile_co21"+suffix)); err != nil {
		return err
	}

	// North and south.
	p = def.New(radius, logY)
	figure.AddGrid(p)
	total, err := figure.AddStep(p, c.CO.Radius, figure.Log10(c.CO.SD), 7, "Total")
	if err != nil {
		return err
	}
	total.Dashes = figure.Dashes(3)
	if err := figure.AddStepErrors(p, c.CONorth.Radius, figure.Log10(c.CONorth.SD), logErrors(c.CONorth), 0, "North"); err != nil {
		return err
	}
	if err := figure.AddStepErrors(p, c.COSouth.Radius, figure.Log10(c.COSouth.SD), logErrors(c.COSouth), 1, "South"); err != nil {
		return err
	}
	if err := figure.SaveAll(p, def, name("M33_Sigma_profile_co21_N_S"+suffix)); err != nil {
		return err
	}

	// HI and H2.
	p = one.New(radius, logY)
	figure.AddGrid(p)
	if err := figure.AddStepErrors(p, c.CO.Radius, figure.Log10(c.CO.SD), logErrors(c.CO), 0, "H2"); err != nil {
		return err
	}
	if err := figure.AddStepErrors(p, c.HI.Radius, figure.Log10(c.HI.SD), logErrors(c.HI), 1, "HI"); err != nil {
		return err
	}
	if err := figure.SaveAll(p, one, name("M33_Sigma_profile_hi_co21"+suffix)); err != nil {
		return err
	}

	// Ratio against total gas with the model.
	sds := arange(1, 40, 0.2)
	ratioPlot := func(xlim float64) (*plot.Plot, error) {
		p := one.New("Σ_Gas (Msun pc^-2)", "log Σ_H2 / Σ_HI")
		figure.AddGrid(p)
		for i, k := range krumholzCurves {
			if _, err := figure.AddLine(p, sds, KrumholzCurve(sds, k.C, k.Z), i+2, k.Label); err != nil {
				return nil, err
			}
		}
		figure.SetXRange(p, 2, xlim)
		figure.SetYRange(p, -4, 1)
		return p, nil
	}
	p, err = ratioPlot(22)
	if err != nil {
		return err
	}
	if err := figure.AddXYErrors(p, c.Total.SD, figure.Log10(c.Ratio.Ratio), c.Total.Sigma, c.Ratio.LogSigma, 0, figure.Glyph(0), ""); err != nil {
		return err
	}
	if err := figure.SaveAll(p, one, name("ratio_totalsigma_w_krumholzmodel"+suffix)); err != nil {
		return err
	}

	p, err = ratioPlot(25)
	if err != nil {
		return err
	}
	if err := figure.AddXYErrors(p, c.DarkTotal.SD, figure.Log10(c.DarkRatio.Ratio), c.DarkTotal.Sigma, c.DarkRatio.LogSigma, 1, figure.Glyph(2), "H2 + HI + CO-dark H2"); err != nil {
		return err
	}
	if err := figure.AddXYErrors(p, c.Total.SD, figure.Log10(c.Ratio.Ratio), c.Total.Sigma, c.Ratio.LogSigma, 0, figure.Glyph(0), "H2 + HI"); err != nil {
		return err
	}
	if err := figure.SaveAll(p, one, name("ratio_totalsigma_dark_w_krumholzmodel"+suffix)); err != nil {
		return err
	}

	// Clumping factors, skipping the last bin.
	p = def.New(radius, "Clumping Factor")
	figure.AddGrid(p)
	last := max(c.CO.Len()-1, 0)
	rs := c.CO.Radius[:last]
	for i, cl := range []struct {
		v     []float64
		label string
	}{
		{c.ClumpConstZ, "Z=0.5"},
		{c.ClumpRosSim, "Rosolowsky & Simon (2005)"},
		{c.ClumpBresolin, "Bresolin (2011)"},
	} {
		if _, err := figure.AddLine(p, rs, cl.v[:last], i, cl.label); err != nil {
			return err
		}
		if _, err := figure.AddPoints(p, rs, cl.v[:last], i, figure.Glyph(i), ""); err != nil {
			return err
		}
	}
	figure.SetYRange(p, -1, 10)
	if err := figure.SaveAll(p, def, name("clumpfactor_krumholzmodel"+suffix)); err != nil {
		return err
	}

	// Gas against stars.
	if corbelli != nil {
		p = def.New(radius, "Σ (Msun pc^-2)")
		figure.AddGrid(p)
		figure.LogY(p)
		if _, err := figure.AddStep(p, c.Total.Radius, positive(c.Total.SD), 0, "Gas"); err != nil {
			return err
		}
		var r, s []float64
		for i := range corbelli.R {
			if corbelli.R[i] <= 6.5 {
				r = append(r, corbelli.R[i])
				s = append(s, corbelli.SigmaStellar[i])
			}
		}
		stars, err := figure.AddStep(p, r, positive(s), 1, "Stars")
		if err != nil {
			return err
		}
		stars.Dashes = figure.Dashes(1)
		if err := figure.SaveAll(p, def, name(fmt.Sprintf("M33_Sigma_profile_gas_stars_corbelli_%dpc", dr))); err != nil {
			return err
		}
	}

	// Area against mass weighting.
	equality := arange(-2.5, 2, 0.1)
	weighting := func(profiles [][2]*Profile, labels []string, glyphs []draw.GlyphDrawer, colors []int) *plot.Plot {
		p := def.New("log Area-Weighted Σ (Msun pc^-2)", "log Mass-Weighted Σ (Msun pc^-2)")
		for i, pr := range profiles {
			_ = figure.AddXYErrors(p, figure.Log10(pr[0].SD), figure.Log10(pr[1].SD),
				logErrors(pr[0]), logErrors(pr[1]), colors[i], glyphs[i], labels[i])
		}
		eq, _ := figure.AddDashed(p, equality, equality, 7, "")
		if eq != nil {
			eq.Color = figure.Color(7)
		}
		return p
	}
	p = weighting([][2]*Profile{{c.CO, c.COMass}, {c.HI, c.HIMass}},
		[]string{"H2", "HI"}, []draw.GlyphDrawer{figure.Glyph(2), figure.Glyph(0)}, []int{1, 0})
	figure.SetXRange(p, -2.1, 1.4)
	figure.SetYRange(p, 0.25, 1.9)
	if err := figure.SaveAll(p, def, name("hi_co_area_weighted_vs_mass_weighted"+suffix)); err != nil {
		return err
	}

	p = weighting([][2]*Profile{{c.HI, c.HIMass}}, []string{""}, []draw.GlyphDrawer{figure.Glyph(0)}, []int{0})
	figure.SetXRange(p, 0.65, 0.9)
	figure.SetYRange(p, 0.65, 1.0)
	return figure.SaveAll(p, def, name("area_weighted_vs_mass_weighted"+suffix))
}

func positive(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if x > 0 {
			out[i] = x
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// RunCORadialProfile compares the CO(2-1) and HI surface density profiles
// of M33 and writes the figures to the paper figure directory.
func RunCORadialProfile(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	gal, err := cfg.GalaxyParams()
	if err != nil {
		return err
	}

	coPath := cfg.Paths.IRAMCO21(cfg.Products.COCube)
	logger.Info("reading CO cube", zap.String("path", coPath))
	coCube, err := cube.Read(coPath)
	if err != nil {
		return err
	}
	if coCube.Celestial == nil {
		return fmt.Errorf("profile: %s has no celestial WCS", coPath)
	}
	radius := gal.RadiusMap(coCube.Celestial, coCube.Nx, coCube.Ny)
	inner := make([]bool, len(radius))
	for i, r := range radius {
		inner[i] = r < COMaxRadius
	}
	if coCube, err = coCube.WithMask(inner); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	coMom0 := coCube.Moment0()

	hiPath := cfg.Paths.FourteenBHI(cfg.Products.Moment0)
	logger.Info("reading HI moment 0", zap.String("path", hiPath))
	hiMom0, err := cube.ReadMap(hiPath)
	if err != nil {
		return err
	}
	if hiMom0.Unit == "" {
		hiMom0.Unit = "Jy/beam m/s"
	}

	cc := DefaultCompareConfig()
	cc.COMassConversion = cfg.Constants.COMassConversion
	cc.BeamEfficiency = cfg.Constants.IRAMBeamEfficiency
	cc.HIMassConversion = cfg.Constants.HIMassConversion
	cc.HIRestFreq = cfg.Constants.HIRestFreq
	if _, err := hiMom0.Beam(); err != nil {
		hiCube, err := cube.Read(cfg.Paths.FourteenBHI(cfg.Products.Cube))
		if err != nil {
			return err
		}
		if !hiCube.HasBeam {
			return fmt.Errorf("profile: no HI beam in %s", hiPath)
		}
		cc.HIBeam = &hiCube.Beam
		logger.Debug("using HI cube beam",
			zap.Stringer("beam", hiCube.Beam),
			zap.Int("channel_beams", len(hiCube.Beams)))
	}

	comp, err := Compare(gal, coMom0, hiMom0, cc)
	if err != nil {
		return err
	}
	logger.Info("profiles computed",
		zap.Int("bins", comp.CO.Len()),
		zap.Float64("bin_width_pc", comp.BinWidth))

	if err := ctx.Err(); err != nil {
		return err
	}

	var corbelli *Corbelli
	if c, err := ReadCorbelli(cfg.Paths.CHIAnalysis(cfg.Products.Corbelli)); err != nil {
		logger.Warn("skipping stellar profile", zap.Error(err))
	} else {
		corbelli = c
	}
	return comp.Figures(cfg.Paths.Paper1Figures, corbelli)
}
