package poisson

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poissonmle/linear"
	"github.com/YuminosukeSato/poissonmle/metrics"
	"github.com/YuminosukeSato/poissonmle/pkg/errors"
	"github.com/YuminosukeSato/poissonmle/pkg/log"
)

// ReferenceName identifies the reference estimator in logs and reports.
const ReferenceName = "IRLS"

// ReferenceResult holds the estimate of the reference GLM fit.
type ReferenceResult struct {
	Coef          []float64 `json:"coef"`
	StdErr        []float64 `json:"std_err"`
	Deviance      float64   `json:"deviance"`
	LogLikelihood float64   `json:"log_likelihood"`
	Iterations    int       `json:"iterations"`
	Converged     bool      `json:"converged"`
}

// ReferenceOption configures FitReference.
type ReferenceOption func(*referenceConfig)

type referenceConfig struct {
	maxIter   int
	tol       float64
	condLimit float64
	logger    log.Logger
}

// WithReferenceMaxIter caps the number of IRLS iterations (default 100).
func WithReferenceMaxIter(n int) ReferenceOption {
	return func(c *referenceConfig) {
		c.maxIter = n
	}
}

// WithReferenceTolerance sets the relative deviance change that ends the
// iterations (default 1e-8).
func WithReferenceTolerance(tol float64) ReferenceOption {
	return func(c *referenceConfig) {
		c.tol = tol
	}
}

// WithReferenceConditionLimit sets the largest condition number of XᵀWX
// accepted at each step (default 1e14); above it the fit fails with
// ErrSingularMatrix.
func WithReferenceConditionLimit(limit float64) ReferenceOption {
	return func(c *referenceConfig) {
		c.condLimit = limit
	}
}

// WithReferenceLogger sets the logger for the reference fit.
func WithReferenceLogger(logger log.Logger) ReferenceOption {
	return func(c *referenceConfig) {
		c.logger = logger
	}
}

// FitReference fits the same Poisson/log-link model by iteratively
// reweighted least squares. Each iteration solves
//
//	min Σ μᵢ (zᵢ − xᵢβ)²,  zᵢ = ηᵢ + (yᵢ − μᵢ)/μᵢ
//
// starting from μ = (y + ȳ)/2, and stops once
// |D − D_prev| / (|D| + 0.1) falls below the tolerance.
//
// Its estimate is independent of Regressor; the two are expected to agree
// closely but are never reconciled.
func FitReference(X, y mat.Matrix, opts ...ReferenceOption) (res *ReferenceResult, err error) {
	defer errors.Recover(&err, "FitReference")

	cfg := referenceConfig{maxIter: 100, tol: 1e-8, condLimit: 1e14}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLoggerWithName("poisson")
	}
	logger := cfg.logger.With(log.ModelNameKey, ReferenceName)
	if cfg.maxIter <= 0 {
		return nil, errors.NewValidationError("max_iter", "must be positive", cfg.maxIter)
	}
	if cfg.tol <= 0 {
		return nil, errors.NewValidationError("tolerance", "must be positive", cfg.tol)
	}
	if !(cfg.condLimit > 1) {
		return nil, errors.NewValidationError("condition_limit", "must be greater than 1", cfg.condLimit)
	}

	obj, yv, err := newObjective("FitReference", X, y)
	if err != nil {
		return nil, err
	}
	n, k := obj.Dims()

	var ybar float64
	for i := 0; i < n; i++ {
		ybar += yv.AtVec(i)
	}
	ybar /= float64(n)
	if ybar == 0 {
		return nil, errors.NewValidationError("y", "all outcomes are zero; the maximum likelihood estimate does not exist", ybar)
	}

	mu := mat.NewVecDense(n, nil)
	eta := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		m := (yv.AtVec(i) + ybar) / 2
		mu.SetVec(i, m)
		eta.SetVec(i, math.Log(m))
	}
	dev, err := metrics.PoissonDeviance(yv, mu)
	if err != nil {
		return nil, err
	}

	logger.Debug("reference fit started",
		log.OperationKey, log.OperationReference,
		log.SamplesKey, n,
		log.FeaturesKey, k,
		log.DevianceKey, dev,
	)

	wls := linear.NewWLS(linear.WithConditionLimit(cfg.condLimit))
	z := mat.NewVecDense(n, nil)
	var (
		beta      []float64
		converged bool
		iter      int
	)
	for iter = 1; iter <= cfg.maxIter; iter++ {
		for i := 0; i < n; i++ {
			m := mu.AtVec(i)
			z.SetVec(i, eta.AtVec(i)+(yv.AtVec(i)-m)/m)
		}
		if err := wls.Fit(X, z, mu); err != nil {
			return nil, errors.NewModelError("FitReference", "weighted least squares step failed", err)
		}
		beta = wls.Coef()

		eta.MulVec(X, mat.NewVecDense(k, beta))
		for i := 0; i < n; i++ {
			mu.SetVec(i, math.Exp(eta.AtVec(i)))
		}
		if err := errors.CheckNumericalStability("IRLS fitted means", mu.RawVector().Data, iter); err != nil {
			return nil, err
		}

		prev := dev
		if dev, err = metrics.PoissonDeviance(yv, mu); err != nil {
			return nil, errors.NewModelError("FitReference", "deviance", err)
		}
		logger.Debug("IRLS iteration",
			log.IterationKey, iter,
			log.DevianceKey, dev,
		)
		if math.Abs(dev-prev)/(math.Abs(dev)+0.1) < cfg.tol {
			converged = true
			break
		}
	}
	if !converged {
		iter = cfg.maxIter
		errors.Warn(errors.NewConvergenceWarning(ReferenceName, iter, "IterationLimit", ""))
		logger.Warn("IRLS stopped before meeting tolerance",
			log.IterationKey, iter,
			log.DevianceKey, dev,
		)
	}

	stdErr, err := standardErrors(obj, beta)
	if err != nil {
		return nil, errors.NewModelError("FitReference", "covariance", err)
	}

	res = &ReferenceResult{
		Coef:          beta,
		StdErr:        stdErr,
		Deviance:      dev,
		LogLikelihood: obj.LogLikelihood(beta),
		Iterations:    iter,
		Converged:     converged,
	}
	logger.Info("reference fit finished",
		log.OperationKey, log.OperationReference,
		log.ConvergedKey, converged,
		log.IterationKey, iter,
		log.DevianceKey, dev,
	)
	return res, nil
}
