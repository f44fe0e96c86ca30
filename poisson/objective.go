// Package poisson estimates Poisson regression models with a log link.
//
// The hand-rolled estimator (Regressor) minimizes the mean negative
// log-likelihood with a quasi-Newton optimizer; FitReference provides an
// independent estimate from iteratively reweighted least squares for
// comparison. Both take a design matrix whose first column is the intercept.
package poisson

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poissonmle/pkg/errors"
)

// NegLogLikelihood is the mean negative Poisson log-likelihood
//
//	Q(β) = -(1/N) Σ [ yᵢ·ηᵢ − exp(ηᵢ) − log(yᵢ!) ],  η = Xβ.
//
// It is safe for concurrent use: evaluations allocate their own scratch space.
type NegLogLikelihood struct {
	y    []float64
	x    *mat.Dense
	lfac []float64 // log(yᵢ!)
	n, k int
}

// NewNegLogLikelihood copies y and X. y must hold non-negative integer counts.
func NewNegLogLikelihood(y mat.Vector, X mat.Matrix) (*NegLogLikelihood, error) {
	n, k := X.Dims()
	if n == 0 || k == 0 {
		return nil, errors.NewModelError("NewNegLogLikelihood", "empty data", errors.ErrEmptyData)
	}
	if y.Len() != n {
		return nil, errors.NewDimensionError("NewNegLogLikelihood", n, y.Len(), 0)
	}
	if err := errors.CheckMatrix("NewNegLogLikelihood", X, n, k, 0); err != nil {
		return nil, err
	}

	f := &NegLogLikelihood{
		y:    make([]float64, n),
		x:    mat.DenseCopyOf(X),
		lfac: make([]float64, n),
		n:    n,
		k:    k,
	}
	for i := 0; i < n; i++ {
		v := y.AtVec(i)
		if err := validateCount(v); err != nil {
			return nil, errors.NewValidationError("y", err.Error(), v)
		}
		f.y[i] = v
		f.lfac[i], _ = math.Lgamma(v + 1)
	}
	return f, nil
}

func validateCount(v float64) error {
	switch {
	case !errors.IsFinite(v):
		return errors.New("outcome must be finite")
	case v < 0:
		return errors.New("outcome must be non-negative")
	case v != math.Trunc(v):
		return errors.New("outcome must be an integer count")
	}
	return nil
}

// Dims returns the number of observations and coefficients.
func (f *NegLogLikelihood) Dims() (n, k int) {
	return f.n, f.k
}

func (f *NegLogLikelihood) eta(beta []float64) *mat.VecDense {
	eta := mat.NewVecDense(f.n, nil)
	eta.MulVec(f.x, mat.NewVecDense(f.k, beta))
	return eta
}

// Func returns Q(β). It is +Inf when some exp(ηᵢ) overflows and NaN when
// len(beta) does not match the number of covariates.
func (f *NegLogLikelihood) Func(beta []float64) float64 {
	ll := f.LogLikelihood(beta)
	if math.IsNaN(ll) {
		return ll
	}
	return -ll / float64(f.n)
}

// LogLikelihood returns the total log-likelihood Σ [yᵢηᵢ − exp(ηᵢ) − log(yᵢ!)].
func (f *NegLogLikelihood) LogLikelihood(beta []float64) float64 {
	if len(beta) != f.k {
		return math.NaN()
	}
	eta := f.eta(beta)
	var ll float64
	for i := 0; i < f.n; i++ {
		e := eta.AtVec(i)
		lambda := math.Exp(e)
		if math.IsInf(lambda, 1) {
			return math.Inf(-1)
		}
		ll += f.y[i]*e - lambda - f.lfac[i]
	}
	return ll
}

// Grad writes ∇Q(β) = -(1/N) Xᵀ(y − λ) into grad.
func (f *NegLogLikelihood) Grad(grad, beta []float64) {
	if len(grad) != f.k || len(beta) != f.k {
		panic(mat.ErrShape)
	}
	eta := f.eta(beta)
	resid := mat.NewVecDense(f.n, nil)
	for i := 0; i < f.n; i++ {
		resid.SetVec(i, math.Exp(eta.AtVec(i))-f.y[i])
	}
	g := mat.NewVecDense(f.k, grad)
	g.MulVec(f.x.T(), resid)
	g.ScaleVec(1/float64(f.n), g)
}

// Hessian returns ∇²Q(β) = (1/N) Xᵀ diag(λ) X.
func (f *NegLogLikelihood) Hessian(beta []float64) *mat.SymDense {
	if len(beta) != f.k {
		panic(mat.ErrShape)
	}
	eta := f.eta(beta)
	xw := mat.NewDense(f.n, f.k, nil)
	for i := 0; i < f.n; i++ {
		s := math.Sqrt(math.Exp(eta.AtVec(i)))
		for j := 0; j < f.k; j++ {
			xw.Set(i, j, s*f.x.At(i, j))
		}
	}
	h := mat.NewSymDense(f.k, nil)
	h.SymOuterK(1/float64(f.n), xw.T())
	return h
}
