package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/m33-lines/analysis/feather"
	"github.com/cwbudde/m33-lines/analysis/moments"
	"github.com/cwbudde/m33-lines/analysis/profile"
	"github.com/cwbudde/m33-lines/analysis/rotsub"
	"github.com/cwbudde/m33-lines/analysis/totalprof"
	"github.com/cwbudde/m33-lines/analysis/veloffset"
	"github.com/cwbudde/m33-lines/astro/cube"
	"github.com/cwbudde/m33-lines/imaging/casa"
	"github.com/cwbudde/m33-lines/spectral/shift"
)

// shift flags
var (
	shiftV0     float64
	shiftV0Unit string
	shiftPadded bool
)

// shiftCmd aligns every spectrum of a cube on a velocity surface
var shiftCmd = &cobra.Command{
	Use:   "shift <cube.fits> <surface.fits> <out.fits>",
	Short: "Shift each spectrum so the surface velocity lands on v0",
	Long: `Shifts every spectrum of a cube in the Fourier domain so that the
velocity of the surface map at its pixel moves to v0 (default: the middle
channel). Spectra are processed in chunks by --workers goroutines and
streamed into a new FITS file.`,
	Args: cobra.ExactArgs(3),
	RunE: runShift,
}

func runShift(cmd *cobra.Command, args []string) error {
	c, err := cube.Read(args[0])
	if err != nil {
		return err
	}
	surface, err := cube.ReadMap(args[1])
	if err != nil {
		return err
	}
	opts := []shift.Option{
		shift.WithOutput(args[2]),
		shift.WithReturnSpectra(false),
		shift.WithWorkers(cfg.Shift.Workers),
		shift.WithChunkSize(cfg.Shift.ChunkSize),
		shift.WithPadding(shiftPadded),
		shift.WithLogger(logger),
	}
	if cmd.Flags().Changed("v0") {
		opts = append(opts, shift.WithV0(shiftV0, shiftV0Unit))
	}
	res, err := shift.Shift(cmd.Context(), c, surface, opts...)
	if err != nil {
		return err
	}
	logger.Info("shifted cube",
		zap.String("output", args[2]),
		zap.Int("spectra", len(res.Positions)),
		zap.Float64("v0", res.V0))
	return nil
}

// rotsubCmd subtracts the rotation model from the HI cube
var rotsubCmd = &cobra.Command{
	Use:   "rotsub",
	Short: "Subtract the DISKFIT rotation model from the HI cube and mask",
	RunE: func(cmd *cobra.Command, args []string) error {
		return rotsub.Run(cmd.Context(), cfg, logger)
	},
}

var momentsCompute bool

// momentsCmd makes the moment-map figures
var momentsCmd = &cobra.Command{
	Use:   "moments",
	Short: "Moment-map figures for the VLA and feathered HI cubes",
	Long: `Writes the HI moment-0, column density, peak temperature and centroid
figures. With --compute the VLA moment maps are first recomputed from the
masked cube.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return moments.Run(cmd.Context(), cfg, logger, momentsCompute)
	},
}

// veloffsetCmd compares the HI and CO velocity fields
var veloffsetCmd = &cobra.Command{
	Use:   "veloffset",
	Short: "Compare HI and CO centroid and peak velocities",
	RunE: func(cmd *cobra.Command, args []string) error {
		return veloffset.Run(cmd.Context(), cfg, logger)
	},
}

// radialProfileCmd compares HI and CO surface-density profiles
var radialProfileCmd = &cobra.Command{
	Use:   "radial-profile",
	Short: "HI and H2 surface-density profiles and clumping factors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return profile.RunCORadialProfile(cmd.Context(), cfg, logger)
	},
}

// totalProfilesCmd fits the stacked rotation-subtracted line profiles
var totalProfilesCmd = &cobra.Command{
	Use:   "total-profiles",
	Short: "Total and per-ring HI and CO line profiles with fits",
	RunE: func(cmd *cobra.Command, args []string) error {
		return totalprof.Run(cmd.Context(), cfg, logger)
	},
}

var (
	plawDataDir string
	plawOutput  string
)

// plawFigureCmd compares channel-test power spectra
var plawFigureCmd = &cobra.Command{
	Use:   "plaw-figure",
	Short: "Power spectra and feathering kernel weights of the channel tests",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := plawOutput
		if out == "" {
			out = cfg.Paths.AllFigures(feather.FigureName)
		}
		return feather.RunPowerSpectrumFigure(cmd.Context(), plawDataDir, out, logger)
	},
}

var (
	cleanMS     string
	cleanOutput string
	cleanStart  int
	cleanNChan  int
)

// cleanTestCmd runs the parallel cube clean test in CASA
var cleanTestCmd = &cobra.Command{
	Use:   "clean-test",
	Short: "Run the parallel cube imaging test through CASA",
	Long: `Renders the parallel-cube imaging script for the 14B-088 HI data, runs
it with the configured CASA executable in the scratch directory and reports
the major and minor cycle timings.`,
	RunE: runCleanTest,
}

func runCleanTest(cmd *cobra.Command, args []string) error {
	p := casa.DefaultCleanParameters()
	if cleanMS != "" {
		p.MSName = cleanMS
	}
	if cmd.Flags().Changed("start") {
		p.Start = cleanStart
	}
	if cmd.Flags().Changed("nchan") {
		p.NChan = cleanNChan
	}
	ct := &casa.CleanTest{
		Params:     p,
		ScratchDir: cfg.CASA.ScratchDir,
		OutputDir:  cleanOutput,
		Runner:     casa.NewExecRunner(cfg.CASA.Executable),
		Logger:     logger,
	}
	rep, err := ct.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d major cycles (%s), minor cycles %s, summary %s\n",
		rep.MajorCycles(), rep.Major, rep.Minor, rep.SummaryPath)
	return nil
}

var (
	linesVis     string
	linesSources []string
	linesSPWs    []int
	linesNChan   []int
	linesDir     string
)

// testimageLinesCmd makes per-SPW line test images
var testimageLinesCmd = &cobra.Command{
	Use:   "testimage-lines",
	Short: "Per-SPW dirty test images of a pipeline-calibrated MS",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := linesDir
		if dir == "" {
			dir = cfg.CASA.ScratchDir
		}
		r := casa.NewExecRunner(cfg.CASA.Executable)
		lt := &casa.LineTestImages{
			Vis:      linesVis,
			Sources:  linesSources,
			SPWs:     linesSPWs,
			Channels: linesNChan,
			WorkDir:  dir,
			Runner:   r,
			Fields:   &casa.CASAFieldLister{Runner: r, Dir: dir},
			Logger:   logger,
		}
		images, err := lt.Run(cmd.Context())
		if errors.Is(err, casa.ErrNoSources) {
			fmt.Fprintln(os.Stderr, "No valid sources given. Exiting without imaging.")
			return nil
		}
		if err != nil {
			return err
		}
		for _, im := range images {
			fmt.Fprintln(cmd.OutOrStdout(), im)
		}
		return nil
	},
}

func init() {
	shiftCmd.Flags().Float64Var(&shiftV0, "v0", 0, "velocity the spectra are aligned on")
	shiftCmd.Flags().StringVar(&shiftV0Unit, "v0-unit", "km/s", "unit of --v0")
	shiftCmd.Flags().BoolVar(&shiftPadded, "padded", false, "zero-pad spectra to a power of two before shifting")

	momentsCmd.Flags().BoolVar(&momentsCompute, "compute", false, "recompute the moment maps from the cube")

	plawFigureCmd.Flags().StringVar(&plawDataDir, "data-dir", ".", "channel-test directory")
	plawFigureCmd.Flags().StringVar(&plawOutput, "output", "", "figure base name (default: all-figures directory)")

	cleanTestCmd.Flags().StringVar(&cleanMS, "ms", "", "measurement set (default: 14B-088 continuum-subtracted HI)")
	cleanTestCmd.Flags().StringVar(&cleanOutput, "output", casa.DefaultCleanOutput, "output directory inside the scratch directory")
	cleanTestCmd.Flags().IntVar(&cleanStart, "start", 800, "first channel")
	cleanTestCmd.Flags().IntVar(&cleanNChan, "nchan", 100, "number of channels")

	testimageLinesCmd.Flags().StringVar(&linesVis, "vis", "", "measurement set")
	testimageLinesCmd.Flags().StringSliceVar(&linesSources, "source", nil, "source names (repeatable)")
	testimageLinesCmd.Flags().IntSliceVar(&linesSPWs, "spw", nil, "line SPW numbers")
	testimageLinesCmd.Flags().IntSliceVar(&linesNChan, "nchan", nil, "channels in each SPW")
	testimageLinesCmd.Flags().StringVar(&linesDir, "dir", "", "working directory (default: CASA scratch directory)")
	_ = testimageLinesCmd.MarkFlagRequired("vis")
}
