// Package preprocessing は推定前の共変量スケーリングを提供する。
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/poissonmle/core/model"
	"github.com/YuminosukeSato/poissonmle/pkg/errors"
)

// ColumnScaler は定数でない各列を二乗平均平方根（RMS）で割るスケーラー。
// 中心化はしないので切片列は変わらず、係数は列ごとの倍率だけで元に戻せる。
//
// 共変量の桁が大きく異なるとBFGSの初期ステップが不適切になるため、
// Regressor の WithStandardize から使われる。
type ColumnScaler struct {
	state *model.StateManager

	// Scale は各列の倍率（定数列は1）
	Scale []float64
}

// NewColumnScaler は新しいColumnScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewColumnScaler()
//	Xs, err := scaler.FitTransform(X)
//	// Xs で推定した係数 bs を元の尺度に戻す
//	b, err := scaler.CoefToOriginal(bs)
func NewColumnScaler() *ColumnScaler {
	return &ColumnScaler{state: model.NewStateManager()}
}

// Fit は各列の倍率を計算する
func (s *ColumnScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("ColumnScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := errors.CheckMatrix("ColumnScaler.Fit", X, r, c, 0); err != nil {
		return err
	}

	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		s.Scale[j] = 1.0

		// 定数列（切片など）はそのまま
		if _, variance := stat.PopMeanVariance(col, nil); variance < 1e-24 {
			continue
		}
		rms := math.Sqrt(floats.Dot(col, col) / float64(r))
		if rms > 0 {
			s.Scale[j] = rms
		}
	}

	s.state.SetFitted(c, r)
	return nil
}

// Transform は学習済みの倍率で各列を割った新しい行列を返す
func (s *ColumnScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.checkInput("Transform", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(_, j int, v float64) float64 {
		return v / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (s *ColumnScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// CoefToOriginal はスケーリング後の係数を元の尺度の係数 βⱼ = bⱼ / sⱼ に変換する。
// 標準誤差にも同じ変換が使える。
func (s *ColumnScaler) CoefToOriginal(beta []float64) ([]float64, error) {
	if err := s.checkCoef("CoefToOriginal", beta); err != nil {
		return nil, err
	}
	out := make([]float64, len(beta))
	floats.DivTo(out, beta, s.Scale)
	return out, nil
}

// CoefToScaled は元の尺度の係数をスケーリング後の係数 bⱼ = βⱼ sⱼ に変換する
func (s *ColumnScaler) CoefToScaled(beta []float64) ([]float64, error) {
	if err := s.checkCoef("CoefToScaled", beta); err != nil {
		return nil, err
	}
	out := make([]float64, len(beta))
	floats.MulTo(out, beta, s.Scale)
	return out, nil
}

// String は人間が読める形式で返す
func (s *ColumnScaler) String() string {
	if !s.state.IsFitted() {
		return "ColumnScaler(fitted=false)"
	}
	return fmt.Sprintf("ColumnScaler(n_features=%d, scale=%v)", len(s.Scale), s.Scale)
}

func (s *ColumnScaler) checkInput(method string, X mat.Matrix) error {
	if err := s.state.RequireFitted("ColumnScaler", method); err != nil {
		return err
	}
	if _, c := X.Dims(); c != len(s.Scale) {
		return errors.NewDimensionError("ColumnScaler."+method, len(s.Scale), c, 1)
	}
	return nil
}

func (s *ColumnScaler) checkCoef(method string, beta []float64) error {
	if err := s.state.RequireFitted("ColumnScaler", method); err != nil {
		return err
	}
	if len(beta) != len(s.Scale) {
		return errors.NewDimensionError("ColumnScaler."+method, len(s.Scale), len(beta), 1)
	}
	return nil
}
