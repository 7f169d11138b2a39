// Package fitsfile reads and writes the FITS products used by the line
// analysis: 2-D maps and 3-D spectral cubes stored in the primary HDU.
//
// Whole images go through github.com/astrogo/fitsio. Cubes that are too
// large to hold twice in memory are written with [CreateHuge] and
// [OpenHuge]: the header is laid down first, the data segment is
// preallocated, and spectra or channels are then written in place.
//
// Data are always exposed as float64 in FITS order, NAXIS1 varying
// fastest, so a cube is laid out as data[(k*ny+y)*nx+x].
package fitsfile
