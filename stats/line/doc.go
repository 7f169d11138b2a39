// Package line computes single-pass statistics over spectral-line data.
//
// Blank samples (NaN, as written for masked voxels in FITS cubes) are
// skipped everywhere: Length counts every sample, Finite only the ones that
// contributed. Positions (MaxPos, MinPos) index the original slice.
package line
