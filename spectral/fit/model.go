// Package fit fits line-profile models to spectra with Levenberg-Marquardt
// least squares and reports parameter uncertainties from the scaled
// covariance matrix.
package fit

import "math"

// Model is a parametric 1-D profile.
type Model interface {
	// ParamNames lists the free parameters in order.
	ParamNames() []string
	// Eval evaluates the model at x.
	Eval(x float64, p []float64) float64
}

// Gaussian1D is amplitude * exp(-(x-mean)^2 / (2 stddev^2)).
type Gaussian1D struct{}

// ParamNames implements Model.
func (Gaussian1D) ParamNames() []string { return []string{"amplitude", "mean", "stddev"} }

// Eval implements Model.
func (Gaussian1D) Eval(x float64, p []float64) float64 {
	return gaussian(x, p[0], p[1], p[2])
}

func gaussian(x, amp, mean, stddev float64) float64 {
	d := (x - mean) / stddev
	return amp * math.Exp(-0.5*d*d)
}

// Lorentz1D is amplitude * (fwhm/2)^2 / ((x-x_0)^2 + (fwhm/2)^2).
type Lorentz1D struct{}

// ParamNames implements Model.
func (Lorentz1D) ParamNames() []string { return []string{"amplitude", "x_0", "fwhm"} }

// Eval implements Model.
func (Lorentz1D) Eval(x float64, p []float64) float64 {
	g := p[2] / 2
	d := x - p[1]
	return p[0] * g * g / (d*d + g*g)
}

// TiedGaussians is the sum of two Gaussians sharing one mean: a narrow
// component (amplitude_0, mean_0, stddev_0) and a wide one (amplitude_1,
// stddev_1) whose mean_1 is tied to mean_0.
type TiedGaussians struct{}

// ParamNames implements Model.
func (TiedGaussians) ParamNames() []string {
	return []string{"amplitude_0", "mean_0", "stddev_0", "amplitude_1", "stddev_1"}
}

// Eval implements Model.
func (TiedGaussians) Eval(x float64, p []float64) float64 {
	return gaussian(x, p[0], p[1], p[2]) + gaussian(x, p[3], p[1], p[4])
}

// Component evaluates the narrow (0) or wide (1) component alone.
func (TiedGaussians) Component(i int, x float64, p []float64) float64 {
	if i == 0 {
		return gaussian(x, p[0], p[1], p[2])
	}
	return gaussian(x, p[3], p[1], p[4])
}
