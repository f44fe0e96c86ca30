package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poissonmle/pkg/errors"
)

func TestColumnScalerFit(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		1, 3, 100,
		1, -3, 200,
		1, 3, -100,
		1, -3, -200,
	})

	s := NewColumnScaler()
	Xs, err := s.FitTransform(X)
	require.NoError(t, err)

	// 切片列は定数なので倍率1
	assert.InDeltaSlice(t, []float64{1, 3, 158.11388300841898}, s.Scale, 1e-9)

	for i := 0; i < 4; i++ {
		assert.Equal(t, 1.0, Xs.At(i, 0))
		assert.InDelta(t, X.At(i, 1)/3, Xs.At(i, 1), 1e-12)
	}
}

func TestColumnScalerCoefficients(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1, 2,
		1, -2,
		1, 2,
	})
	s := NewColumnScaler()
	require.NoError(t, s.Fit(X))

	beta := []float64{0.5, -0.25}
	scaled, err := s.CoefToScaled(beta)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, -0.5}, scaled, 1e-12)

	orig, err := s.CoefToOriginal(scaled)
	require.NoError(t, err)
	assert.InDeltaSlice(t, beta, orig, 1e-12)

	// 線形予測子は尺度によらず一致する
	Xs, err := s.Transform(X)
	require.NoError(t, err)
	var etaOrig, etaScaled mat.VecDense
	etaOrig.MulVec(X, mat.NewVecDense(2, beta))
	etaScaled.MulVec(Xs, mat.NewVecDense(2, scaled))
	assert.True(t, mat.EqualApprox(&etaOrig, &etaScaled, 1e-12))
}

func TestColumnScalerErrors(t *testing.T) {
	s := NewColumnScaler()
	assert.Equal(t, "ColumnScaler(fitted=false)", s.String())

	_, err := s.Transform(mat.NewDense(1, 1, []float64{1}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = s.CoefToOriginal([]float64{1})
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 1, 4})))
	assert.Contains(t, s.String(), "n_features=2")

	_, err = s.Transform(mat.NewDense(2, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	_, err = s.CoefToScaled([]float64{1, 2, 3})
	assert.True(t, errors.As(err, &de))

	assert.Error(t, NewColumnScaler().Fit(&mat.Dense{}))
}
