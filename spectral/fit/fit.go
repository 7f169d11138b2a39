package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoCovariance is returned when the fit's normal matrix is singular.
	ErrNoCovariance = errors.New("fit: no covariance matrix")
	// ErrTooFewPoints is returned when there are no more finite points than
	// free parameters.
	ErrTooFewPoints = errors.New("fit: not enough finite data points")
)

// Config controls a fit.
type Config struct {
	MaxIter int
	Tol     float64
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns 100 iterations, the usual least-squares default.
func DefaultConfig() Config {
	return Config{MaxIter: 100, Tol: 1e-16}
}

// WithMaxIter sets the iteration limit.
func WithMaxIter(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxIter = n
		}
	}
}

// WithTolerance sets the objective tolerance.
func WithTolerance(tol float64) Option {
	return func(cfg *Config) {
		if tol > 0 {
			cfg.Tol = tol
		}
	}
}

// Result is a fitted model.
type Result struct {
	Model  Model
	Names  []string
	Params []float64
	Errors []float64
	Cov    *mat.SymDense
	SSR    float64 // sum of squared residuals
	DOF    int
}

// Eval evaluates the fitted model at x.
func (r *Result) Eval(x float64) float64 {
	return r.Model.Eval(x, r.Params)
}

// EvalAll evaluates the fitted model at every x.
func (r *Result) EvalAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = r.Eval(x)
	}
	return out
}

// Param returns the fitted value and error of the named parameter.
func (r *Result) Param(name string) (value, stderr float64, ok bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Params[i], r.Errors[i], true
		}
	}
	return 0, 0, false
}

// Fit fits m to the finite (x, y) points starting from init.
//
// The parameter covariance is (J^T J)^-1 scaled by SSR/(N-p), where J is the
// model Jacobian at the solution.
func Fit(m Model, x, y, init []float64, opts ...Option) (*Result, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	names := m.ParamNames()
	if len(init) != len(names) {
		return nil, fmt.Errorf("fit: %d initial values for %d parameters", len(init), len(names))
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("fit: x/y length mismatch: %d != %d", len(x), len(y))
	}

	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if isFinite(x[i]) && isFinite(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	dim := len(names)
	if len(xs) <= dim {
		return nil, fmt.Errorf("%w: %d points for %d parameters", ErrTooFewPoints, len(xs), dim)
	}

	residuals := func(dst, p []float64) {
		for i, xv := range xs {
			dst[i] = ys[i] - m.Eval(xv, p)
		}
	}
	jac := &lm.NumJac{Func: residuals}
	problem := lm.LMProblem{
		Dim:        dim,
		Size:       len(xs),
		Func:       residuals,
		Jac:        jac.Jac,
		InitParams: append([]float64(nil), init...),
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}
	res, err := lm.LM(problem, &lm.Settings{Iterations: cfg.MaxIter, ObjectiveTol: cfg.Tol})
	// A result returned alongside an error is still the best iterate found.
	if res == nil || len(res.X) != dim {
		return nil, fmt.Errorf("fit: %w", err)
	}
	params := append([]float64(nil), res.X...)

	r := make([]float64, len(xs))
	residuals(r, params)
	var ssr float64
	for _, v := range r {
		ssr += v * v
	}
	dof := len(xs) - dim

	cov, err := covariance(m, xs, params, ssr/float64(dof))
	if err != nil {
		return nil, err
	}
	errs := make([]float64, dim)
	for i := range errs {
		errs[i] = math.Sqrt(cov.At(i, i))
	}
	return &Result{
		Model:  m,
		Names:  names,
		Params: params,
		Errors: errs,
		Cov:    cov,
		SSR:    ssr,
		DOF:    dof,
	}, nil
}

func covariance(m Model, xs, params []float64, scale float64) (*mat.SymDense, error) {
	dim := len(params)
	jac := mat.NewDense(len(xs), dim, nil)
	fd.Jacobian(jac, func(dst, p []float64) {
		for i, xv := range xs {
			dst[i] = m.Eval(xv, p)
		}
	}, params, &fd.JacobianSettings{Formula: fd.Central})

	var jtj mat.SymDense
	jtj.SymOuterK(1, jac.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&jtj); !ok {
		return nil, ErrNoCovariance
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCovariance, err)
	}
	cov.ScaleSym(scale, &cov)
	return &cov, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
