// Package casa drives the CASA imaging package: it renders imaging scripts,
// runs them through an external CASA process and collects the results.
// The deconvolution itself happens inside CASA.
package casa

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidParameters is returned by Validate.
var ErrInvalidParameters = errors.New("casa: invalid imaging parameters")

// M33PhaseCenter is the pointing centre used for all 14B-088 images.
const M33PhaseCenter = "J2000 01h33m50.904 +30d39m35.79"

// ImagerParameters mirrors the keyword arguments of CASA's
// ImagerParameters. Empty strings render as None.
type ImagerParameters struct {
	MSName      string
	DataColumn  string
	Field       string
	ImageName   string
	ImSize      [2]int
	Cell        string
	SpecMode    string
	Start       int
	Width       int
	NChan       int
	StartModel  string
	Gridder     string
	Weighting   string
	NIter       int
	Threshold   string
	PhaseCenter string
	RestFreq    string
	OutFrame    string
	PBLimit     float64
	UseMask     string
	Mask        string
	Deconvolver string
	DoPBCorr    bool
	ChanChunks  int
}

// DefaultCleanParameters are the 100-channel 14B-088 HI cube test settings.
func DefaultCleanParameters() ImagerParameters {
	return ImagerParameters{
		MSName:      "14B-088_HI.ms.contsub",
		DataColumn:  "data",
		Field:       "M33*",
		ImageName:   "M33_14B-088_HI.dirty",
		ImSize:      [2]int{2560, 2560},
		Cell:        "3arcsec",
		SpecMode:    "cube",
		Start:       800,
		Width:       1,
		NChan:       100,
		Gridder:     "mosaic",
		Weighting:   "natural",
		NIter:       1000000,
		Threshold:   "3.2mJy/beam",
		PhaseCenter: M33PhaseCenter,
		RestFreq:    "1420.40575177MHz",
		OutFrame:    "LSRK",
		PBLimit:     0.1,
		UseMask:     "pb",
		Deconvolver: "hogbom",
		ChanChunks:  -1,
	}
}

// Validate checks the fields CASA would otherwise reject late.
func (p ImagerParameters) Validate() error {
	switch {
	case p.MSName == "":
		return fmt.Errorf("%w: empty msname", ErrInvalidParameters)
	case p.ImageName == "":
		return fmt.Errorf("%w: empty imagename", ErrInvalidParameters)
	case p.ImSize[0] <= 0 || p.ImSize[1] <= 0:
		return fmt.Errorf("%w: imsize %v", ErrInvalidParameters, p.ImSize)
	case p.NChan <= 0 || p.Width <= 0:
		return fmt.Errorf("%w: nchan %d, width %d", ErrInvalidParameters, p.NChan, p.Width)
	case p.Start < 0:
		return fmt.Errorf("%w: start %d", ErrInvalidParameters, p.Start)
	case p.NIter < 0:
		return fmt.Errorf("%w: niter %d", ErrInvalidParameters, p.NIter)
	}
	return nil
}

// Arg is one rendered keyword argument.
type Arg struct {
	Name  string
	Value string
}

// Args returns the keyword arguments as Python literals in CASA order.
func (p ImagerParameters) Args() []Arg {
	return []Arg{
		{"msname", pyString(p.MSName)},
		{"datacolumn", pyString(p.DataColumn)},
		{"field", pyString(p.Field)},
		{"imagename", pyString(p.ImageName)},
		{"imsize", fmt.Sprintf("[%d, %d]", p.ImSize[0], p.ImSize[1])},
		{"cell", pyString(p.Cell)},
		{"specmode", pyString(p.SpecMode)},
		{"start", strconv.Itoa(p.Start)},
		{"width", strconv.Itoa(p.Width)},
		{"nchan", strconv.Itoa(p.NChan)},
		{"startmodel", pyString(p.StartModel)},
		{"gridder", pyString(p.Gridder)},
		{"weighting", pyString(p.Weighting)},
		{"niter", strconv.Itoa(p.NIter)},
		{"threshold", pyString(p.Threshold)},
		{"phasecenter", pyString(p.PhaseCenter)},
		{"restfreq", pyString(p.RestFreq)},
		{"outframe", pyString(p.OutFrame)},
		{"pblimit", pyFloat(p.PBLimit)},
		{"usemask", pyString(p.UseMask)},
		{"mask", pyString(p.Mask)},
		{"deconvolver", pyString(p.Deconvolver)},
		{"dopbcorr", pyBool(p.DoPBCorr)},
		{"chanchunks", strconv.Itoa(p.ChanChunks)},
	}
}

// pyString quotes s as a Python string literal; empty is None.
func pyString(s string) string {
	if s == "" {
		return "None"
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)
	return "'" + r.Replace(s) + "'"
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func pyFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += "."
	}
	return s
}
