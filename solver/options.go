package solver

import "github.com/YuminosukeSato/poissonmle/pkg/log"

// Option configures a BFGS optimizer.
type Option func(*BFGS)

// WithMaxIterations caps the number of major iterations.
func WithMaxIterations(n int) Option {
	return func(b *BFGS) {
		b.maxIterations = n
	}
}

// WithGradientTolerance sets the infinity-norm gradient threshold.
func WithGradientTolerance(tol float64) Option {
	return func(b *BFGS) {
		b.gradientTolerance = tol
	}
}

// WithFunctionTolerance sets the absolute objective decrease that counts as
// progress, and how many iterations without progress end the search.
func WithFunctionTolerance(tol float64, iterations int) Option {
	return func(b *BFGS) {
		b.functionTolerance = tol
		b.functionIterations = iterations
	}
}

// WithLogger sets the logger used for progress and warnings.
func WithLogger(logger log.Logger) Option {
	return func(b *BFGS) {
		b.logger = logger
	}
}
