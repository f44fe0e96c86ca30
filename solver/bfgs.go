package solver

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/poissonmle/pkg/errors"
	"github.com/YuminosukeSato/poissonmle/pkg/log"
)

const (
	defaultMaxIterations      = 1000
	defaultGradientTolerance  = 1e-6
	defaultFunctionTolerance  = 1e-12
	defaultFunctionIterations = 20
)

// BFGS minimizes smooth objectives with the quasi-Newton BFGS method and a
// bisection line search enforcing the strong Wolfe conditions, which keeps
// the inverse-Hessian approximation positive definite. Candidate points where
// the objective is NaN or +Inf are rejected by the line search, which shrinks
// the step.
type BFGS struct {
	maxIterations      int
	gradientTolerance  float64
	functionTolerance  float64
	functionIterations int
	logger             log.Logger
}

var _ Optimizer = (*BFGS)(nil)

// NewBFGS returns a BFGS optimizer with a 1000-iteration cap and a 1e-6
// gradient threshold unless overridden.
func NewBFGS(opts ...Option) *BFGS {
	b := &BFGS{
		maxIterations:      defaultMaxIterations,
		gradientTolerance:  defaultGradientTolerance,
		functionTolerance:  defaultFunctionTolerance,
		functionIterations: defaultFunctionIterations,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.GetLoggerWithName("solver")
	}
	return b
}

// MaxIterations returns the major-iteration cap.
func (b *BFGS) MaxIterations() int { return b.maxIterations }

// GradientTolerance returns the gradient infinity-norm threshold.
func (b *BFGS) GradientTolerance() float64 { return b.gradientTolerance }

// Minimize runs BFGS from x0. x0 is not modified.
//
// A non-finite objective at x0 is reported as a NumericalInstabilityError.
// Reaching the iteration cap or a failed line search is not an error: the
// best point found is returned with Converged=false and a ConvergenceWarning
// is emitted.
func (b *BFGS) Minimize(ctx context.Context, obj ObjectiveFunction, x0 []float64) (*Result, error) {
	if len(x0) == 0 {
		return nil, errors.NewValidationError("x0", "starting point must not be empty", x0)
	}
	if b.maxIterations <= 0 {
		return nil, errors.NewValidationError("max_iterations", "must be positive", b.maxIterations)
	}
	if b.gradientTolerance <= 0 {
		return nil, errors.NewValidationError("gradient_tolerance", "must be positive", b.gradientTolerance)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "bfgs minimize")
	}

	start := append([]float64(nil), x0...)
	if err := errors.CheckNumericalStability("starting point", start, 0); err != nil {
		return nil, err
	}
	grad := gradientOf(obj)

	f0 := obj.Func(start)
	if err := errors.CheckScalar("objective at starting point", f0, 0); err != nil {
		return nil, err
	}
	g0 := make([]float64, len(start))
	grad(g0, start)
	if err := errors.CheckNumericalStability("gradient at starting point", g0, 0); err != nil {
		return nil, err
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return errors.PenalizeNonFinite(obj.Func(x))
		},
		Grad: grad,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}

	rec := newTraceRecorder(TracePoint{F: f0, GradNorm: floats.Norm(g0, math.Inf(1))}, b.logger)
	// gonum counts the starting location as a major iteration.
	settings := &optimize.Settings{
		GradientThreshold: b.gradientTolerance,
		MajorIterations:   b.maxIterations + 1,
		Converger: &optimize.FunctionConverge{
			Absolute:   b.functionTolerance,
			Iterations: b.functionIterations,
		},
		Recorder: rec,
	}
	method := &optimize.BFGS{Linesearcher: &optimize.Bisection{}}

	b.logger.Debug("starting BFGS",
		log.FeaturesKey, len(start),
		log.LossKey, f0,
		log.MaxIterKey, b.maxIterations,
		log.GradTolKey, b.gradientTolerance,
	)

	began := time.Now()
	res, runErr := optimize.Minimize(problem, start, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Wrap(ctxErr, "bfgs minimize")
	}
	if res == nil {
		return nil, errors.NewModelError("BFGS.Minimize", "optimizer failed", runErr)
	}

	out := &Result{
		X:               append([]float64(nil), res.X...),
		F:               res.F,
		Gradient:        append([]float64(nil), res.Gradient...),
		Status:          res.Status.String(),
		Converged:       runErr == nil && isConverged(res.Status),
		Iterations:      max(res.MajorIterations-1, 0),
		FuncEvaluations: res.FuncEvaluations,
		GradEvaluations: res.GradEvaluations,
		Runtime:         time.Since(began),
		Trace:           rec.points,
	}
	// A failure on the very first line search leaves gonum without a best
	// location; the start is the best point seen.
	if len(out.X) == 0 || !errors.IsFinite(out.F) {
		out.X, out.F, out.Gradient = start, f0, g0
	}
	// gonum does not record the iteration on which a convergence test fires.
	if last := out.Trace[len(out.Trace)-1]; last.Iteration < out.Iterations {
		out.Trace = append(out.Trace, TracePoint{Iteration: out.Iterations, F: out.F, GradNorm: gradNorm(out.Gradient)})
	}

	if !out.Converged {
		msg := ""
		if runErr != nil {
			msg = runErr.Error()
		}
		errors.Warn(errors.NewConvergenceWarning("BFGS", out.Iterations, out.Status, msg))
		b.logger.Warn("BFGS stopped before meeting tolerance",
			log.StatusKey, out.Status,
			log.IterationKey, out.Iterations,
			log.LossKey, out.F,
			log.GradNormKey, gradNorm(out.Gradient),
		)
		return out, nil
	}

	b.logger.Debug("BFGS converged",
		log.StatusKey, out.Status,
		log.IterationKey, out.Iterations,
		log.LossKey, out.F,
		log.FuncEvalsKey, out.FuncEvaluations,
		log.DurationMsKey, out.Runtime.Milliseconds(),
	)
	return out, nil
}

func isConverged(s optimize.Status) bool {
	switch s {
	case optimize.GradientThreshold,
		optimize.FunctionConvergence,
		optimize.StepConvergence,
		optimize.FunctionThreshold,
		optimize.MethodConverge,
		optimize.Success:
		return true
	}
	return false
}

func gradNorm(g []float64) float64 {
	if len(g) == 0 {
		return 0
	}
	return floats.Norm(g, math.Inf(1))
}

// traceRecorder implements optimize.Recorder and keeps one point per major
// iteration. gonum reports the starting location as the first major
// iteration; it is already points[0] and is skipped.
type traceRecorder struct {
	points    []TracePoint
	seenStart bool
	logger    log.Logger
}

func newTraceRecorder(initial TracePoint, logger log.Logger) *traceRecorder {
	return &traceRecorder{points: []TracePoint{initial}, logger: logger}
}

func (r *traceRecorder) Init() error {
	r.points = r.points[:1]
	r.seenStart = false
	return nil
}

func (r *traceRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	if !r.seenStart {
		r.seenStart = true
		return nil
	}
	p := TracePoint{Iteration: stats.MajorIterations - 1, F: loc.F, GradNorm: gradNorm(loc.Gradient)}
	r.points = append(r.points, p)
	if r.logger.Enabled(context.Background(), log.LevelDebug) {
		r.logger.Debug("BFGS iteration",
			log.IterationKey, p.Iteration,
			log.LossKey, p.F,
			log.GradNormKey, p.GradNorm,
		)
	}
	return nil
}
