// Package poissonmle estimates Poisson regression models by maximum likelihood
// and checks the result against an independent reference fit.
//
// A run simulates (or loads) count data with a design matrix, minimizes the
// mean negative log-likelihood with a quasi-Newton optimizer, fits the same
// model by iteratively reweighted least squares, and reports both side by
// side.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//	    "math/rand/v2"
//
//	    "github.com/YuminosukeSato/poissonmle/dataset"
//	    "github.com/YuminosukeSato/poissonmle/poisson"
//	)
//
//	func main() {
//	    // 1000 observations from β = (-0.5, 0.4, -0.7)
//	    ds, err := dataset.Simulate(1000, []float64{-0.5, 0.4, -0.7}, rand.NewPCG(42, 42))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    model := poisson.NewRegressor()
//	    if err := model.Fit(ds.X(), ds.Y()); err != nil {
//	        log.Fatal(err)
//	    }
//	    ref, err := poisson.FitReference(ds.X(), ds.Y())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    fmt.Println("estimate: ", model.Coef(), model.StdErr())
//	    fmt.Println("reference:", ref.Coef, ref.StdErr)
//	}
//
// # Packages
//
//   - dataset: observation sets (simulation, CSV loading)
//   - poisson: objective, BFGS-based Regressor, IRLS reference fit
//   - solver: objective/optimizer interfaces and the BFGS driver
//   - linear: weighted least squares used by IRLS
//   - preprocessing: covariate scaling
//   - metrics: Poisson deviance, D², MSE/RMSE/MAE
//   - report: comparison table, JSON and charts
//   - core/model: estimator interfaces, fitted state, weight persistence
//   - core/parallel: row-parallel helpers
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//
// # Convergence
//
// Failing to meet the optimizer tolerance is not an error. The best point
// found is returned with Converged=false and a ConvergenceWarning is passed
// to the warning handler (zerolog when configured through log.SetupLogger):
//
//	errors.SetWarningHandler(func(w error) {
//	    // collect or ignore warnings
//	})
//
// # Command line
//
//	go run ./cmd/poissonmle -n 1000 -beta=-0.5,0.4,-0.7 -seed 42
//	go run ./cmd/poissonmle -mode csv -csv visits.csv -y visits -x age,region -json
package poissonmle
