package poisson

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poissonmle/core/model"
	"github.com/YuminosukeSato/poissonmle/metrics"
	"github.com/YuminosukeSato/poissonmle/pkg/errors"
	"github.com/YuminosukeSato/poissonmle/pkg/log"
	"github.com/YuminosukeSato/poissonmle/preprocessing"
	"github.com/YuminosukeSato/poissonmle/solver"
)

// ModelName identifies the hand-rolled estimator in logs and exported weights.
const ModelName = "PoissonRegressor"

const weightsVersion = "1.0"

// Regressor fits a Poisson regression by minimizing the mean negative
// log-likelihood with a pluggable solver.Optimizer (BFGS by default).
//
// Failing to meet the optimizer tolerance is not an error: the best point
// found is kept, Result().Converged is false and a ConvergenceWarning is
// emitted through pkg/errors.
type Regressor struct {
	state *model.StateManager

	maxIter       int
	gradTol       float64
	initial       []float64
	numericalGrad bool
	standardize   bool
	optimizer     solver.Optimizer
	logger        log.Logger
	names         []string

	coef             []float64
	stdErr           []float64
	logLike          float64
	initialObjective float64
	result           *solver.Result
}

var (
	_ model.Regressor        = (*Regressor)(nil)
	_ model.CoefficientModel = (*Regressor)(nil)
	_ model.WeightExporter   = (*Regressor)(nil)
)

// NewRegressor creates a Regressor. Defaults: 1000 iterations, gradient
// tolerance 1e-6, zero starting point, analytic gradient, no scaling.
func NewRegressor(opts ...Option) *Regressor {
	r := &Regressor{
		state:   model.NewStateManager(),
		maxIter: 1000,
		gradTol: 1e-6,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("poisson")
	}
	r.logger = r.logger.With(log.ModelNameKey, ModelName)
	return r
}

// Fit estimates the coefficients from a design matrix X (intercept column
// included) and a column vector of counts y.
func (r *Regressor) Fit(X, y mat.Matrix) error {
	return r.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation between optimizer iterations.
func (r *Regressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Regressor.Fit")

	obj, yv, err := newObjective("Regressor.Fit", X, y)
	if err != nil {
		return err
	}
	n, k := obj.Dims()

	beta0 := make([]float64, k)
	if r.initial != nil {
		if len(r.initial) != k {
			return errors.NewDimensionError("Regressor.Fit", k, len(r.initial), 1)
		}
		if err := errors.CheckNumericalStability("initial guess", r.initial, 0); err != nil {
			return err
		}
		copy(beta0, r.initial)
	}
	initialObjective := obj.Func(beta0)

	var (
		target solver.ObjectiveFunction = obj
		start                           = beta0
		scaler *preprocessing.ColumnScaler
	)
	if r.standardize {
		scaler = preprocessing.NewColumnScaler()
		Xs, err := scaler.FitTransform(X)
		if err != nil {
			return err
		}
		scaled, err := NewNegLogLikelihood(yv, Xs)
		if err != nil {
			return err
		}
		if start, err = scaler.CoefToScaled(beta0); err != nil {
			return err
		}
		target = scaled
	}
	if r.numericalGrad {
		target = solver.WithoutGradient(target)
	}

	opt := r.optimizer
	if opt == nil {
		opt = solver.NewBFGS(
			solver.WithMaxIterations(r.maxIter),
			solver.WithGradientTolerance(r.gradTol),
			solver.WithLogger(r.logger),
		)
	}

	r.logger.Info("fit started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, k,
		log.LossKey, initialObjective,
	)

	res, err := opt.Minimize(ctx, target, start)
	if err != nil {
		r.logger.Error("fit failed", err, log.OperationKey, log.OperationFit)
		return errors.Wrap(err, "poisson regression fit")
	}

	coef := append([]float64(nil), res.X...)
	if scaler != nil {
		if coef, err = scaler.CoefToOriginal(res.X); err != nil {
			return err
		}
	}
	var stdErr []float64
	err = errors.SafeExecute("standard errors", func() (seErr error) {
		stdErr, seErr = standardErrors(obj, coef)
		return seErr
	})
	if err != nil {
		if len(stdErr) != k {
			stdErr = nanSlice(k)
		}
		r.logger.Warn("standard errors unavailable", log.ErrorKey, err.Error())
	}

	r.coef = coef
	r.stdErr = stdErr
	r.logLike = obj.LogLikelihood(coef)
	r.initialObjective = initialObjective
	r.result = res
	r.state.SetFitted(k, n)

	r.logger.Info("fit finished",
		log.OperationKey, log.OperationFit,
		log.ConvergedKey, res.Converged,
		log.StatusKey, res.Status,
		log.IterationKey, res.Iterations,
		log.LossKey, res.F,
		log.DurationMsKey, res.Runtime.Milliseconds(),
	)
	return nil
}

// newObjective validates X and y and builds the objective over them.
func newObjective(op string, X, y mat.Matrix) (*NegLogLikelihood, mat.Vector, error) {
	n, k := X.Dims()
	if n == 0 || k == 0 {
		return nil, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != n {
		return nil, nil, errors.NewDimensionError(op, n, ry, 0)
	}
	if cy != 1 {
		return nil, nil, errors.NewValueError(op, "y must be a column vector")
	}
	yv, err := metrics.ColumnVector(op, y)
	if err != nil {
		return nil, nil, err
	}
	obj, err := NewNegLogLikelihood(yv, X)
	if err != nil {
		return nil, nil, err
	}
	return obj, yv, nil
}

// standardErrors returns sqrt(diag((N·H)⁻¹)) where H is the Hessian of the
// mean objective at beta. On a singular Hessian the errors are NaN.
func standardErrors(obj *NegLogLikelihood, beta []float64) ([]float64, error) {
	n, k := obj.Dims()
	se := make([]float64, k)

	h := obj.Hessian(beta)
	h.ScaleSym(float64(n), h)

	var chol mat.Cholesky
	var cov mat.SymDense
	if ok := chol.Factorize(h); !ok {
		return nanSlice(k), errors.NewModelError("standardErrors", "singular Hessian", errors.ErrSingularMatrix)
	}
	if err := chol.InverseTo(&cov); err != nil {
		return nanSlice(k), errors.NewModelError("standardErrors", "singular Hessian", errors.ErrSingularMatrix)
	}
	for j := range se {
		se[j] = math.Sqrt(cov.At(j, j))
	}
	return se, nil
}

func nanSlice(k int) []float64 {
	s := make([]float64, k)
	for j := range s {
		s[j] = math.NaN()
	}
	return s
}

// Predict returns the fitted means λ = exp(Xβ) as an n×1 column.
func (r *Regressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.state.RequireFitted(ModelName, "Predict"); err != nil {
		return nil, err
	}
	rows, c := X.Dims()
	if c != len(r.coef) {
		return nil, errors.NewDimensionError("Regressor.Predict", len(r.coef), c, 1)
	}

	eta := mat.NewVecDense(rows, nil)
	eta.MulVec(X, mat.NewVecDense(len(r.coef), r.coef))
	lambda := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		lambda.SetVec(i, math.Exp(eta.AtVec(i)))
	}
	return lambda, nil
}

// Score returns the fraction of Poisson deviance explained, D².
func (r *Regressor) Score(X, y mat.Matrix) (float64, error) {
	if err := r.state.RequireFitted(ModelName, "Score"); err != nil {
		return 0, err
	}
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	if ry, _ := y.Dims(); ry != pred.(mat.Vector).Len() {
		return 0, errors.NewDimensionError("Regressor.Score", pred.(mat.Vector).Len(), ry, 0)
	}
	yv, err := metrics.ColumnVector("Regressor.Score", y)
	if err != nil {
		return 0, err
	}
	return metrics.D2PoissonScore(yv, pred.(mat.Vector))
}

// IsFitted reports whether Fit (or ImportWeights) has succeeded.
func (r *Regressor) IsFitted() bool {
	return r.state.IsFitted()
}

// Coef returns a copy of the estimated coefficients, intercept first.
func (r *Regressor) Coef() []float64 {
	return append([]float64(nil), r.coef...)
}

// StdErr returns a copy of the coefficient standard errors.
func (r *Regressor) StdErr() []float64 {
	return append([]float64(nil), r.stdErr...)
}

// Result returns the optimizer outcome of the last fit, or nil.
func (r *Regressor) Result() *solver.Result {
	return r.result
}

// Objective returns Q at the estimate.
func (r *Regressor) Objective() float64 {
	if r.result == nil {
		return math.NaN()
	}
	return r.result.F
}

// InitialObjective returns Q at the starting point of the last fit.
func (r *Regressor) InitialObjective() float64 {
	if r.result == nil {
		return math.NaN()
	}
	return r.initialObjective
}

// LogLikelihood returns the total log-likelihood at the estimate.
func (r *Regressor) LogLikelihood() float64 {
	if r.result == nil {
		return math.NaN()
	}
	return r.logLike
}

// ExportWeights returns the fitted coefficients and fit metadata.
func (r *Regressor) ExportWeights() (*model.ModelWeights, error) {
	if err := r.state.RequireFitted(ModelName, "ExportWeights"); err != nil {
		return nil, err
	}
	_, nSamples := r.state.Dimensions()

	w := &model.ModelWeights{
		ModelType:    ModelName,
		Version:      weightsVersion,
		Coefficients: r.Coef(),
		IsFitted:     true,
		Hyperparameters: map[string]interface{}{
			"max_iter":           r.maxIter,
			"grad_tol":           r.gradTol,
			"standardize":        r.standardize,
			"numerical_gradient": r.numericalGrad,
		},
		Metadata: map[string]interface{}{
			"n_samples": nSamples,
		},
	}
	if len(r.names) == len(r.coef) {
		w.Features = append([]string(nil), r.names...)
	}
	if len(r.stdErr) == len(r.coef) && errors.CheckNumericalStability("std_errors", r.stdErr, 0) == nil {
		w.StdErrors = r.StdErr()
	}
	if r.result != nil {
		w.Metadata["objective"] = r.result.F
		w.Metadata["initial_objective"] = r.initialObjective
		w.Metadata["converged"] = r.result.Converged
		w.Metadata["iterations"] = r.result.Iterations
		w.Metadata["status"] = r.result.Status
	}
	return w, nil
}

// ImportWeights restores coefficients exported by ExportWeights so the model
// can predict without refitting. Optimizer results are not restored.
func (r *Regressor) ImportWeights(w *model.ModelWeights) error {
	if w == nil {
		return errors.NewValueError("Regressor.ImportWeights", "weights are nil")
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ModelType != ModelName {
		return errors.NewValueError("Regressor.ImportWeights", "model type mismatch: "+w.ModelType)
	}
	if !w.IsFitted {
		return errors.NewValueError("Regressor.ImportWeights", "weights are not fitted")
	}

	r.coef = append([]float64(nil), w.Coefficients...)
	r.stdErr = append([]float64(nil), w.StdErrors...)
	r.names = append([]string(nil), w.Features...)
	r.result = nil
	nSamples := 0
	switch v := w.Metadata["n_samples"].(type) {
	case float64: // decoded from JSON
		nSamples = int(v)
	case int:
		nSamples = v
	}
	r.state.SetFitted(len(r.coef), nSamples)
	return nil
}
