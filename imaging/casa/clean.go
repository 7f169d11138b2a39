package casa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoScratch is returned when the scratch directory does not exist.
var ErrNoScratch = errors.New("casa: scratch directory missing")

// DefaultCleanOutput is the output directory of the clean test inside the
// scratch directory.
const DefaultCleanOutput = "parallel_100chan_test"

// Cycle is one timed major or minor cycle.
type Cycle struct {
	Kind     string // "major" or "minor"
	Duration time.Duration
}

// CleanReport summarizes a clean test.
type CleanReport struct {
	Cycles      []Cycle
	Major       time.Duration
	Minor       time.Duration
	SummaryPath string
}

// MajorCycles returns the number of major cycles, including the initial
// dirty image.
func (r *CleanReport) MajorCycles() int {
	n := 0
	for _, c := range r.Cycles {
		if c.Kind == "major" {
			n++
		}
	}
	return n
}

// CleanTest images a cube with the parallel cube imager, iterating minor
// and major cycles until CASA reports convergence.
type CleanTest struct {
	Params     ImagerParameters
	ScratchDir string
	OutputDir  string // relative to ScratchDir; DefaultCleanOutput when empty
	Runner     Runner
	Logger     *zap.Logger
}

// Run renders the imaging script, runs it in the scratch directory and
// collects the cycle timings from the CASA output.
func (c *CleanTest) Run(ctx context.Context) (*CleanReport, error) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if st, err := os.Stat(c.ScratchDir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoScratch, c.ScratchDir)
	}
	out := c.OutputDir
	if out == "" {
		out = DefaultCleanOutput
	}

	params := c.Params
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params.ImageName = filepath.Join(out, filepath.Base(params.ImageName))
	summary := filepath.Join(out, filepath.Base(c.Params.ImageName)+".clean_output.json")

	script, err := render(cleanTestTemplate, cleanScript{
		Params:      params,
		OutputDir:   out,
		SummaryPath: summary,
		Marker:      timingMarker,
	})
	if err != nil {
		return nil, err
	}

	rep := &CleanReport{SummaryPath: filepath.Join(c.ScratchDir, summary)}
	w := newLineWriter(func(line string) {
		cyc, ok := parseTiming(line)
		if !ok {
			logger.Debug("casa", zap.String("line", line))
			return
		}
		rep.Cycles = append(rep.Cycles, cyc)
		if cyc.Kind == "major" {
			rep.Major += cyc.Duration
		} else {
			rep.Minor += cyc.Duration
		}
		logger.Info("time for "+cyc.Kind+" cycle", zap.Duration("duration", cyc.Duration))
	})

	logger.Info("starting clean test",
		zap.String("ms", params.MSName),
		zap.String("imagename", params.ImageName),
		zap.Int("nchan", params.NChan))
	err = c.Runner.Run(ctx, c.ScratchDir, script, w)
	w.Flush()
	if err != nil {
		return rep, err
	}
	logger.Info("clean test finished",
		zap.Int("major_cycles", rep.MajorCycles()),
		zap.Duration("major", rep.Major),
		zap.Duration("minor", rep.Minor))
	return rep, nil
}

// parseTiming reads a "<marker> <kind> <seconds>" line.
func parseTiming(line string) (Cycle, bool) {
	i := strings.Index(line, timingMarker)
	if i < 0 {
		return Cycle{}, false
	}
	f := strings.Fields(line[i+len(timingMarker):])
	if len(f) != 2 || (f[0] != "major" && f[0] != "minor") {
		return Cycle{}, false
	}
	sec, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return Cycle{}, false
	}
	return Cycle{Kind: f[0], Duration: time.Duration(sec * float64(time.Second))}, true
}
