// Package model はポアソン回帰の推定器が共有するインターフェースと状態管理を提供する。
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit は計画行列 X（切片列を含む）と件数ベクトル y で学習する
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は各行の平均 λ = exp(xβ) を返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer はスコアを計算できるモデルのインターフェース
type Scorer interface {
	// Score はポアソン逸脱度に基づく D² を返す
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor は回帰モデルのインターフェースをまとめたもの
type Regressor interface {
	Fitter
	Predictor
	Scorer
}

// CoefficientModel は係数を公開するモデルのインターフェース
type CoefficientModel interface {
	// Coef は推定された係数を返す（切片を含む）
	Coef() []float64
	// StdErr は係数の標準誤差を返す
	StdErr() []float64
}

// WeightExporter は係数をエクスポート可能なモデルのインターフェース
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
}
