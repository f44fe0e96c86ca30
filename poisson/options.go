package poisson

import (
	"github.com/YuminosukeSato/poissonmle/pkg/log"
	"github.com/YuminosukeSato/poissonmle/solver"
)

// Option configures a Regressor.
type Option func(*Regressor)

// WithMaxIter caps the optimizer's major iterations. Ignored when a custom
// optimizer is supplied.
func WithMaxIter(n int) Option {
	return func(r *Regressor) {
		r.maxIter = n
	}
}

// WithGradientTolerance sets the gradient infinity-norm threshold. Ignored
// when a custom optimizer is supplied.
func WithGradientTolerance(tol float64) Option {
	return func(r *Regressor) {
		r.gradTol = tol
	}
}

// WithInitialGuess sets the starting coefficients β₀ (default: zero vector).
func WithInitialGuess(beta []float64) Option {
	return func(r *Regressor) {
		r.initial = append([]float64(nil), beta...)
	}
}

// WithNumericalGradient makes the optimizer use finite differences instead
// of the analytic gradient.
func WithNumericalGradient(on bool) Option {
	return func(r *Regressor) {
		r.numericalGrad = on
	}
}

// WithStandardize scales non-constant columns by their root-mean-square
// before optimizing. Coefficients are reported on the original scale.
func WithStandardize(on bool) Option {
	return func(r *Regressor) {
		r.standardize = on
	}
}

// WithOptimizer replaces the default BFGS optimizer.
func WithOptimizer(opt solver.Optimizer) Option {
	return func(r *Regressor) {
		r.optimizer = opt
	}
}

// WithLogger sets the logger used during fitting.
func WithLogger(logger log.Logger) Option {
	return func(r *Regressor) {
		r.logger = logger
	}
}

// WithFeatureNames attaches covariate names to exported weights.
func WithFeatureNames(names []string) Option {
	return func(r *Regressor) {
		r.names = append([]string(nil), names...)
	}
}
