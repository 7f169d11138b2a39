package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cwbudde/m33-lines/imaging/casa"
	"github.com/cwbudde/m33-lines/internal/config"
)

func setup(t *testing.T) {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.Default()
	cfg.Paths.DataRoot = t.TempDir()
}

func TestRootRegistersCommands(t *testing.T) {
	want := []string{
		"shift", "rotsub", "moments", "veloffset", "radial-profile",
		"total-profiles", "plaw-figure", "clean-test", "testimage-lines",
	}
	var got []string
	for _, c := range rootCmd.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}
	for _, f := range []string{"config", "verbose", "workers"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(f), f)
	}
}

func TestLoadConfigWorkersOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m33.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  data_root: "+dir+"\nshift:\n  workers: 2\n"), 0o644))

	configPath = path
	t.Cleanup(func() { configPath = "m33.yaml" })

	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&workers, "workers", 0, "")
	require.NoError(t, loadConfig(cmd))
	assert.Equal(t, 2, cfg.Shift.Workers)
	assert.Equal(t, dir, cfg.Paths.DataRoot)

	require.NoError(t, cmd.Flags().Set("workers", "6"))
	require.NoError(t, loadConfig(cmd))
	assert.Equal(t, 6, cfg.Shift.Workers)

	require.NoError(t, cmd.Flags().Set("workers", "-1"))
	assert.ErrorIs(t, loadConfig(cmd), config.ErrInvalid)
}

func TestShiftRequiresThreeArgs(t *testing.T) {
	assert.Error(t, shiftCmd.Args(shiftCmd, []string{"cube.fits"}))
	assert.NoError(t, shiftCmd.Args(shiftCmd, []string{"a", "b", "c"}))
}

func TestPlawFigureMissingData(t *testing.T) {
	setup(t)
	plawDataDir = t.TempDir()
	plawFigureCmd.SetContext(context.Background())
	err := plawFigureCmd.RunE(plawFigureCmd, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCleanTestMissingScratch(t *testing.T) {
	setup(t)
	cfg.CASA.ScratchDir = filepath.Join(t.TempDir(), "missing")
	cleanTestCmd.SetContext(context.Background())
	err := runCleanTest(cleanTestCmd, nil)
	assert.ErrorIs(t, err, casa.ErrNoScratch)
}

func TestTestimageLinesChannelMismatch(t *testing.T) {
	setup(t)
	linesVis = "x.ms"
	linesSources = []string{"M33"}
	linesSPWs = []int{0, 1}
	linesNChan = []int{64}
	linesDir = t.TempDir()
	testimageLinesCmd.SetContext(context.Background())
	err := testimageLinesCmd.RunE(testimageLinesCmd, nil)
	assert.ErrorIs(t, err, casa.ErrInvalidParameters)
}
