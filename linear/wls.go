// Package linear は重み付き最小二乗法（WLS）を提供します。
// ポアソン回帰の参照推定（IRLS）の各反復で使われます。
package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poissonmle/core/model"
	"github.com/YuminosukeSato/poissonmle/core/parallel"
	"github.com/YuminosukeSato/poissonmle/pkg/errors"
)

const (
	defaultCondLimit         = 1e14
	defaultParallelThreshold = 1000
)

// WLS は min Σ wᵢ (zᵢ − xᵢβ)² を正規方程式 XᵀWXβ = XᵀWz で解く
type WLS struct {
	state *model.StateManager

	coef *mat.VecDense
	cov  *mat.SymDense // (XᵀWX)⁻¹

	condLimit         float64
	parallelThreshold int
}

// NewWLS は新しい WLS ソルバーを作成する
func NewWLS(opts ...Option) *WLS {
	w := &WLS{
		state:             model.NewStateManager(),
		condLimit:         defaultCondLimit,
		parallelThreshold: defaultParallelThreshold,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Fit は作業応答 z と重み weights で係数を推定する。
// 重みは有限かつ非負でなければならない。
func (w *WLS) Fit(X mat.Matrix, z, weights mat.Vector) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("WLS.Fit", "empty data", errors.ErrEmptyData)
	}
	if z.Len() != r {
		return errors.NewDimensionError("WLS.Fit", r, z.Len(), 0)
	}
	if weights.Len() != r {
		return errors.NewDimensionError("WLS.Fit", r, weights.Len(), 0)
	}

	// √W X と √W z を組み立てる（行ごとに独立なので並列化できる）
	xw := mat.NewDense(r, c, nil)
	zw := mat.NewVecDense(r, nil)
	bad := make([]bool, r)
	parallel.ParallelizeWithThreshold(r, w.parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			wi := weights.AtVec(i)
			if wi < 0 || !errors.IsFinite(wi) {
				bad[i] = true
				continue
			}
			s := math.Sqrt(wi)
			for j := 0; j < c; j++ {
				xw.Set(i, j, s*X.At(i, j))
			}
			zw.SetVec(i, s*z.AtVec(i))
		}
	})
	for i, b := range bad {
		if b {
			return errors.NewValidationError("weights", "must be finite and non-negative", weights.AtVec(i))
		}
	}

	// XᵀWX
	var xtwx mat.SymDense
	xtwx.SymOuterK(1, xw.T())
	if err := errors.CheckMatrix("WLS.Fit", &xtwx, c, c, 0); err != nil {
		return err
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtwx); !ok || chol.Cond() > w.condLimit {
		return errors.NewModelError("WLS.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	// XᵀWz
	var rhs mat.VecDense
	rhs.MulVec(xw.T(), zw)

	coef := mat.NewVecDense(c, nil)
	if err := chol.SolveVecTo(coef, &rhs); err != nil {
		return errors.NewModelError("WLS.Fit", "singular matrix", errors.ErrSingularMatrix)
	}
	cov := mat.NewSymDense(c, nil)
	if err := chol.InverseTo(cov); err != nil {
		return errors.NewModelError("WLS.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	w.coef = coef
	w.cov = cov
	w.state.SetFitted(c, r)
	return nil
}

// Predict は線形予測子 Xβ を返す
func (w *WLS) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := w.state.RequireFitted("WLS", "Predict"); err != nil {
		return nil, err
	}
	nFeatures, _ := w.state.Dimensions()
	r, c := X.Dims()
	if c != nFeatures {
		return nil, errors.NewDimensionError("WLS.Predict", nFeatures, c, 1)
	}
	pred := mat.NewVecDense(r, nil)
	pred.MulVec(X, w.coef)
	return pred, nil
}

// IsFitted は学習済みかどうかを返す
func (w *WLS) IsFitted() bool {
	return w.state.IsFitted()
}

// Coef は推定された係数のコピーを返す
func (w *WLS) Coef() []float64 {
	if w.coef == nil {
		return nil
	}
	return append([]float64(nil), w.coef.RawVector().Data...)
}

// StdErr は sqrt(diag((XᵀWX)⁻¹)) を返す
func (w *WLS) StdErr() []float64 {
	if w.cov == nil {
		return nil
	}
	n := w.cov.SymmetricDim()
	se := make([]float64, n)
	for j := range se {
		se[j] = math.Sqrt(w.cov.At(j, j))
	}
	return se
}
