// Package metrics はポアソン回帰の当てはまりを評価する指標を提供する。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poissonmle/pkg/errors"
)

func checkPair(op string, yTrue, yPred mat.Vector) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}

	return sum / float64(n), nil
}

// MSEMatrix は列ベクトル（n×1行列）形式の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	a, err := ColumnVector("MSEMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	b, err := ColumnVector("MSEMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return MSE(a, b)
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}

	return sum / float64(n), nil
}

// PoissonDeviance はポアソン逸脱度 2Σ[y log(y/μ) − (y − μ)] を計算する。
// y = 0 の項は y log(y/μ) = 0 とする。μ は正でなければならない。
func PoissonDeviance(yTrue, mu mat.Vector) (float64, error) {
	n, err := checkPair("PoissonDeviance", yTrue, mu)
	if err != nil {
		return 0, err
	}

	var dev float64
	for i := 0; i < n; i++ {
		y, m := yTrue.AtVec(i), mu.AtVec(i)
		if y < 0 {
			return 0, errors.NewValueError("PoissonDeviance", "observed counts must be non-negative")
		}
		if !(m > 0) || math.IsInf(m, 1) {
			return 0, errors.NewValueError("PoissonDeviance", "predicted means must be positive and finite")
		}
		dev += errors.XLogY(y, y) - errors.XLogY(y, m) - (y - m)
	}
	return 2 * dev, nil
}

// MeanPoissonDeviance は観測あたりの平均ポアソン逸脱度を計算する
func MeanPoissonDeviance(yTrue, mu mat.Vector) (float64, error) {
	dev, err := PoissonDeviance(yTrue, mu)
	if err != nil {
		return 0, err
	}
	return dev / float64(yTrue.Len()), nil
}

// D2PoissonScore は逸脱度で説明された割合 D² = 1 − D(y, μ)/D(y, ȳ) を計算する。
// 切片のみのモデルと比べた改善度で、線形回帰の R² に相当する。
func D2PoissonScore(yTrue, mu mat.Vector) (float64, error) {
	dev, err := PoissonDeviance(yTrue, mu)
	if err != nil {
		return 0, err
	}

	n := yTrue.Len()
	var mean float64
	for i := 0; i < n; i++ {
		mean += yTrue.AtVec(i)
	}
	mean /= float64(n)
	if mean == 0 {
		return 0, errors.Newf("D2PoissonScore: all observed counts are zero")
	}

	null := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		null.SetVec(i, mean)
	}
	nullDev, err := PoissonDeviance(yTrue, null)
	if err != nil {
		return 0, err
	}
	if nullDev == 0 {
		return 0, errors.Newf("D2PoissonScore: null deviance is zero (no variation in yTrue)")
	}

	return 1 - dev/nullDev, nil
}

// ColumnVector は n×1 行列を mat.Vector として取り出す
func ColumnVector(op string, m mat.Matrix) (mat.Vector, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	if v, ok := m.(mat.Vector); ok {
		return v, nil
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}
