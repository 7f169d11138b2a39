// Package config holds the analysis configuration: data locations, product
// file names, galaxy parameters and physical constants.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/m33-lines/astro/galaxy"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// Config holds all analysis configuration.
type Config struct {
	Paths     Paths     `yaml:"paths"`
	Products  Products  `yaml:"products"`
	Galaxy    Galaxy    `yaml:"galaxy"`
	Constants Constants `yaml:"constants"`
	Shift     Shift     `yaml:"shift"`
	CASA      CASA      `yaml:"casa"`
}

// Paths locates data and output directories. Relative directories are
// resolved against DataRoot.
type Paths struct {
	DataRoot          string `yaml:"data_root"`
	FourteenBHIDir    string `yaml:"fourteenb_hi"`
	FourteenBGBTDir   string `yaml:"fourteenb_gbt"`
	IRAMCO21Dir       string `yaml:"iram_co21"`
	IRAMCO21On14BDir  string `yaml:"iram_co21_14b088"`
	Paper1FiguresDir  string `yaml:"paper1_figures"`
	Paper1TablesDir   string `yaml:"paper1_tables"`
	AllFiguresDir     string `yaml:"all_figures"`
	AnalysisScriptDir string `yaml:"analysis"`
}

// Products names the data products read and written by the tasks.
type Products struct {
	Cube          string `yaml:"cube"`
	Mask          string `yaml:"mask"`
	Moment0       string `yaml:"moment0"`
	Moment1       string `yaml:"moment1"`
	PeakTemp      string `yaml:"peak_temp"`
	PeakVels      string `yaml:"peak_vels"`
	RotsubCube    string `yaml:"rotsub_cube"`
	RotsubMask    string `yaml:"rotsub_mask"`
	DiskfitModel  string `yaml:"diskfit_model"`
	DiskfitParams string `yaml:"diskfit_params"`

	COCube       string `yaml:"co_cube"`
	CORotsubCube string `yaml:"co_rotsub_cube"`
	COMoment1    string `yaml:"co_moment1"`
	COPeakVels   string `yaml:"co_peak_vels"`
	COPeakTemp   string `yaml:"co_peak_temp"`
	COMask       string `yaml:"co_mask"`

	Corbelli string `yaml:"corbelli"`
}

// Galaxy holds the disk orientation of M33.
type Galaxy struct {
	RA          string  `yaml:"ra"`
	Dec         string  `yaml:"dec"`
	PA          float64 `yaml:"pa"`          // deg
	Inclination float64 `yaml:"inclination"` // deg
	Distance    float64 `yaml:"distance"`    // kpc
	Vsys        float64 `yaml:"vsys"`        // km/s
}

// Constants are the physical conversions used across tasks.
type Constants struct {
	HIRestFreq         float64 `yaml:"hi_rest_freq"`         // Hz
	HIColumnFactor     float64 `yaml:"hi_column_factor"`     // cm^-2 per K km/s
	HIMassConversion   float64 `yaml:"hi_mass_conversion"`   // Msun pc^-2 per K km/s
	COMassConversion   float64 `yaml:"co_mass_conversion"`   // Msun pc^-2 per K km/s
	IRAMBeamEfficiency float64 `yaml:"iram_beam_efficiency"` // main beam
}

// Shift configures the spectral shifter.
type Shift struct {
	Workers   int `yaml:"workers"`
	ChunkSize int `yaml:"chunk_size"`
}

// CASA locates the CASA installation used by the imaging tasks.
type CASA struct {
	Executable string `yaml:"executable"`
	ScratchDir string `yaml:"scratch_dir"`
	LogDir     string `yaml:"log_dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Paths: Paths{
			DataRoot:          ".",
			FourteenBHIDir:    "VLA/14B-088/HI/full_imaging",
			FourteenBGBTDir:   "VLA/14B-088/HI/full_imaging_wGBT",
			IRAMCO21Dir:       "IRAM/m33_co21",
			IRAMCO21On14BDir:  "IRAM/m33_co21/14B-088",
			Paper1FiguresDir:  "figures/paper1",
			Paper1TablesDir:   "tables/paper1",
			AllFiguresDir:     "figures/all",
			AnalysisScriptDir: "analysis",
		},
		Products: Products{
			Cube:          "M33_14B-088_HI.clean.image.pbcor.fits",
			Mask:          "M33_14B-088_HI.clean.mask.fits",
			Moment0:       "M33_14B-088_HI.clean.image.pbcor.mom0.fits",
			Moment1:       "M33_14B-088_HI.clean.image.pbcor.mom1.fits",
			PeakTemp:      "M33_14B-088_HI.clean.image.pbcor.peaktemps.fits",
			PeakVels:      "M33_14B-088_HI.clean.image.pbcor.peakvels.fits",
			RotsubCube:    "M33_14B-088_HI.clean.image.pbcor.rotsub.fits",
			RotsubMask:    "M33_14B-088_HI.clean.mask.rotsub.fits",
			DiskfitModel:  "diskfit_noasymm_noradial_nowarp_output/rad.fitmod.fits",
			DiskfitParams: "diskfit_noasymm_noradial_nowarp_output/rad.out.params.csv",
			COCube:        "m33.co21_iram.fits",
			CORotsubCube:  "m33.co21_iram.rotsub.fits",
			COMoment1:     "m33.co21_iram.14B-088_HI.mom1.fits",
			COPeakVels:    "m33.co21_iram.14B-088_HI.peakvels.fits",
			COPeakTemp:    "m33.co21_iram.14B-088_HI.peaktemps.fits",
			COMask:        "m33.co21_iram.14B-088_HI_source_mask.fits",
			Corbelli:      "rotation_curves/corbelli_rotation_curve.csv",
		},
		Galaxy: Galaxy{
			RA:          "01h33m50.904s",
			Dec:         "+30d39m35.79s",
			PA:          201.1,
			Inclination: 55.08,
			Distance:    840,
			Vsys:        -180,
		},
		Constants: Constants{
			HIRestFreq:         1.420405751786e9,
			HIColumnFactor:     1.823e18,
			HIMassConversion:   0.0196,
			COMassConversion:   6.7,
			IRAMBeamEfficiency: 0.75,
		},
		Shift: Shift{
			Workers:   0,
			ChunkSize: 20000,
		},
		CASA: CASA{
			Executable: "casa",
			ScratchDir: ".",
			LogDir:     "logs",
		},
	}
}

// Load reads a YAML file over the defaults and applies M33_* environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: failed to create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: failed to marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("M33_DATA_ROOT"); v != "" {
		c.Paths.DataRoot = v
	}
	if v := os.Getenv("M33_PAPER1_FIGURES"); v != "" {
		c.Paths.Paper1FiguresDir = v
	}
	if v := os.Getenv("M33_PAPER1_TABLES"); v != "" {
		c.Paths.Paper1TablesDir = v
	}
	if v := os.Getenv("M33_ALL_FIGURES"); v != "" {
		c.Paths.AllFiguresDir = v
	}
	if v := os.Getenv("M33_CASA"); v != "" {
		c.CASA.Executable = v
	}
	if v := os.Getenv("M33_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: M33_WORKERS: %w", err)
		}
		c.Shift.Workers = n
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.DataRoot == "" {
		return fmt.Errorf("%w: empty data root", ErrInvalid)
	}
	for name, dir := range map[string]string{
		"fourteenb_hi":   c.Paths.FourteenBHIDir,
		"iram_co21":      c.Paths.IRAMCO21Dir,
		"paper1_figures": c.Paths.Paper1FiguresDir,
		"paper1_tables":  c.Paths.Paper1TablesDir,
		"all_figures":    c.Paths.AllFiguresDir,
	} {
		if dir == "" {
			return fmt.Errorf("%w: empty %s path", ErrInvalid, name)
		}
	}
	if c.Shift.Workers < 0 {
		return fmt.Errorf("%w: negative worker count %d", ErrInvalid, c.Shift.Workers)
	}
	if c.Shift.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size %d", ErrInvalid, c.Shift.ChunkSize)
	}
	if c.Galaxy.Distance <= 0 {
		return fmt.Errorf("%w: distance %v", ErrInvalid, c.Galaxy.Distance)
	}
	if _, err := c.GalaxyParams(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// GalaxyParams converts the galaxy section to pc and m/s.
func (c *Config) GalaxyParams() (galaxy.Params, error) {
	ra, err := galaxy.ParseRA(c.Galaxy.RA)
	if err != nil {
		return galaxy.Params{}, err
	}
	dec, err := galaxy.ParseDec(c.Galaxy.Dec)
	if err != nil {
		return galaxy.Params{}, err
	}
	return galaxy.Params{
		RA:          ra,
		Dec:         dec,
		PA:          c.Galaxy.PA,
		Inclination: c.Galaxy.Inclination,
		Distance:    c.Galaxy.Distance * 1e3,
		Vsys:        c.Galaxy.Vsys * 1e3,
	}, nil
}
