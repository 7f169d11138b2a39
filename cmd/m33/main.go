// Command m33 runs the M33 HI and CO(2-1) line-analysis tasks.
//
// Usage:
//
//	m33 [--config m33.yaml] [--verbose] [--workers N] <command> [flags]
//
// Examples:
//
//	m33 moments --compute
//	m33 rotsub --workers 8
//	m33 shift cube.fits centroid.fits shifted.fits --v0 -180 --v0-unit km/s
//	m33 plaw-figure --data-dir ~/M33/14B-088/HI/channel_testing
//	m33 testimage-lines --vis 16B-242.ms --source M33 --spw 0,7 --nchan 4096,128
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cwbudde/m33-lines/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
	workers    int

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "m33",
	Short: "M33 HI and CO(2-1) line-analysis tasks",
	Long: `m33 runs the analysis tasks behind the M33 14B-088 HI and IRAM CO(2-1)
papers: moment maps, rotation subtraction, HI/CO velocity comparisons, radial
and total line profiles, and the CASA imaging tests.

Data locations and constants come from a YAML config file with M33_*
environment overrides.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return loadConfig(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// loadConfig reads --config and applies the global overrides.
func loadConfig(cmd *cobra.Command) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		c.Shift.Workers = workers
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "m33.yaml", "config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.IntVarP(&workers, "workers", "w", 0, "worker goroutines for spectral shifting (0 = serial)")

	rootCmd.AddCommand(
		shiftCmd,
		rotsubCmd,
		momentsCmd,
		veloffsetCmd,
		radialProfileCmd,
		totalProfilesCmd,
		plawFigureCmd,
		cleanTestCmd,
		testimageLinesCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
