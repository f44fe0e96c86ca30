package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/poissonmle/pkg/errors"
	"github.com/YuminosukeSato/poissonmle/pkg/log"
)

// Simulate draws n observations from the Poisson regression model with
// coefficients betaTrue. Each row gets K-1 independent standard-normal
// covariates after a leading 1, and y ~ Poisson(exp(x·betaTrue)).
//
// All randomness comes from src, so equal sources give equal datasets.
func Simulate(n int, betaTrue []float64, src rand.Source) (*Dataset, error) {
	if n <= 0 {
		return nil, errors.NewValidationError("n", "sample size must be positive", n)
	}
	if len(betaTrue) == 0 {
		return nil, errors.NewValidationError("beta_true", "coefficient vector must have at least the intercept", betaTrue)
	}
	if err := errors.CheckNumericalStability("beta_true", betaTrue, 0); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.NewValidationError("src", "random source is required", nil)
	}

	k := len(betaTrue)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	x := mat.NewDense(n, k, nil)
	y := make([]float64, n)

	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		row[0] = 1
		for j := 1; j < k; j++ {
			row[j] = normal.Rand()
		}
		lambda := math.Exp(floats.Dot(row, betaTrue))
		if !errors.IsFinite(lambda) {
			return nil, errors.NewNumericalInstabilityError("simulate rate", []float64{lambda}, i)
		}
		y[i] = distuv.Poisson{Lambda: lambda, Src: src}.Rand()
	}

	names := make([]string, k)
	names[0] = InterceptName
	for j := 1; j < k; j++ {
		names[j] = fmt.Sprintf("x%d", j)
	}

	log.GetLoggerWithName("dataset").Debug("simulated observations",
		log.OperationKey, log.OperationSimulate,
		log.SamplesKey, n,
		log.FeaturesKey, k,
	)

	return &Dataset{
		y:      mat.NewVecDense(n, y),
		x:      x,
		names:  names,
		source: "simulated",
	}, nil
}
