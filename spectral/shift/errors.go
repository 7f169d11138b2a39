package shift

import (
	"errors"

	"github.com/cwbudde/m33-lines/astro/fitsfile"
)

var (
	// ErrNoOutput is returned when spectra are neither saved nor returned.
	ErrNoOutput = errors.New("shift: one of saving or returning spectra must be enabled")
	// ErrNoFiniteVelocities is returned for a velocity surface without a
	// finite value.
	ErrNoFiniteVelocities = errors.New("shift: velocity surface contains no finite values")
	// ErrUnitMismatch is returned when v0 or the surface is not a velocity
	// compatible with the cube's spectral axis.
	ErrUnitMismatch = errors.New("shift: unit is not equivalent to the cube's spectral unit")
	// ErrShape is returned when the surface and the cube disagree in size.
	ErrShape = errors.New("shift: surface does not match the cube")
	// ErrFileExists is returned when the output file already exists.
	ErrFileExists = fitsfile.ErrFileExists
)
