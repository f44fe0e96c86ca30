// Package log defines standard attribute keys for estimation runs.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples")
// so that log lines from the simulator, the optimizer and the reference fit
// can be filtered together.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator, e.g. "PoissonRegressor" or "IRLS".
	ModelNameKey = "model.name"

	// OperationKey names the operation being performed: "fit", "predict",
	// "simulate", "load", "reference".
	OperationKey = "ml.operation"

	// ComponentKey identifies the package emitting the record.
	ComponentKey = "ml.component"
)

// Data shape.
const (
	// SamplesKey is the number of observations N.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of covariates K, intercept included.
	FeaturesKey = "data.features"

	// DroppedRowsKey is the number of rows dropped for missing values.
	DroppedRowsKey = "data.dropped_rows"

	// SourceKey describes where the observation set came from.
	SourceKey = "data.source"
)

// Optimization progress.
const (
	// IterationKey records the current major iteration.
	IterationKey = "training.iteration"

	// LossKey records the objective value (mean negative log-likelihood).
	LossKey = "metrics.loss"

	// GradNormKey records the infinity norm of the gradient.
	GradNormKey = "metrics.grad_norm"

	// DevianceKey records the Poisson deviance.
	DevianceKey = "metrics.deviance"

	// ConvergedKey records whether the optimizer met its tolerance.
	ConvergedKey = "training.converged"

	// StatusKey records the optimizer termination status.
	StatusKey = "training.status"

	// FuncEvalsKey records the number of objective evaluations.
	FuncEvalsKey = "training.func_evals"

	// DurationMsKey records the execution time in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Configuration.
const (
	// RandomSeedKey records the seed used for simulation.
	RandomSeedKey = "config.random_seed"

	// MaxIterKey records the iteration cap.
	MaxIterKey = "config.max_iter"

	// GradTolKey records the gradient tolerance.
	GradTolKey = "config.grad_tol"
)

// Error context.
const (
	ErrorKey      = "error"
	StacktraceKey = "error.stacktrace"
)

// Standard values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationSimulate  = "simulate"
	OperationLoad      = "load"
	OperationReference = "reference"
)
