// Package spectrum provides Fourier-domain utilities for images: 2-D
// transforms, quadrant shifts, bin magnitudes and azimuthal averages.
//
// The transforms follow the unnormalized-forward, normalized-inverse
// convention, so FFT2 followed by IFFT2 is the identity.
package spectrum
