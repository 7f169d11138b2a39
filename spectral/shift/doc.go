// Package shift moves spectra along the spectral axis by fractional channel
// amounts.
//
// A shift of s channels delays the spectrum, y[n] = x[n-s], by applying the
// linear phase ramp exp(-2*pi*i*f*s) to its Fourier transform. Two
// transforms are provided:
//
//   - [Shifter] works on the spectrum length as-is through gonum's real FFT.
//     Emission shifted past one band edge wraps around to the other.
//   - [PaddedShifter] zero-pads to a power of two with algo-fft so shifted
//     emission falls into the padding instead of wrapping.
//
// [Shift] applies a per-pixel shift to a whole cube, lining every spectrum up
// on a reference velocity taken from a velocity surface (rotation model,
// centroid or peak velocity map).
package shift
