// Package solver defines the objective/optimizer capabilities used by the
// estimators and provides a BFGS implementation backed by gonum/optimize.
package solver

import (
	"context"
	"time"

	"gonum.org/v1/gonum/diff/fd"
)

// ObjectiveFunction is a scalar function to be minimized.
type ObjectiveFunction interface {
	Func(x []float64) float64
}

// Differentiable is an ObjectiveFunction with an analytic gradient.
// Grad writes the gradient at x into grad, which has len(x).
type Differentiable interface {
	ObjectiveFunction
	Grad(grad, x []float64)
}

// Optimizer minimizes an objective from a starting point.
//
// Implementations report failure to meet their tolerance through
// Result.Converged rather than an error; an error means no usable point.
type Optimizer interface {
	Minimize(ctx context.Context, obj ObjectiveFunction, x0 []float64) (*Result, error)
}

// TracePoint is the state after one major iteration. Iteration 0 is the start.
type TracePoint struct {
	Iteration int     `json:"iteration"`
	F         float64 `json:"f"`
	GradNorm  float64 `json:"grad_norm"`
}

// Result is the outcome of a minimization.
type Result struct {
	X               []float64     `json:"x"`
	F               float64       `json:"f"`
	Gradient        []float64     `json:"gradient"`
	Status          string        `json:"status"`
	Converged       bool          `json:"converged"`
	Iterations      int           `json:"iterations"`
	FuncEvaluations int           `json:"func_evaluations"`
	GradEvaluations int           `json:"grad_evaluations"`
	Runtime         time.Duration `json:"runtime"`
	Trace           []TracePoint  `json:"trace,omitempty"`
}

// InitialF returns the objective value at the starting point.
func (r *Result) InitialF() float64 {
	if len(r.Trace) == 0 {
		return r.F
	}
	return r.Trace[0].F
}

type funcOnly struct {
	obj ObjectiveFunction
}

func (f funcOnly) Func(x []float64) float64 { return f.obj.Func(x) }

// WithoutGradient hides any analytic gradient of obj so that optimizers fall
// back to finite differences.
func WithoutGradient(obj ObjectiveFunction) ObjectiveFunction {
	return funcOnly{obj: obj}
}

// NumericalGradient evaluates a central finite-difference gradient of obj at x
// into dst, allocating when dst is nil.
func NumericalGradient(dst []float64, obj ObjectiveFunction, x []float64) []float64 {
	return fd.Gradient(dst, obj.Func, x, &fd.Settings{Formula: fd.Central})
}

// gradientOf returns the analytic gradient when available and a
// finite-difference approximation otherwise.
func gradientOf(obj ObjectiveFunction) func(grad, x []float64) {
	if d, ok := obj.(Differentiable); ok {
		return d.Grad
	}
	return func(grad, x []float64) {
		NumericalGradient(grad, obj, x)
	}
}
