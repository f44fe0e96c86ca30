// Package dataset holds the observation set used for Poisson estimation:
// a count outcome y and a design matrix X whose first column is the intercept.
//
// A Dataset is immutable after construction. It is produced by Simulate
// (synthetic data from a known coefficient vector), ReadCSV (a rectangular
// table) or New (caller-supplied arrays).
package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poissonmle/pkg/errors"
)

// InterceptName is the covariate name given to the constant column.
const InterceptName = "const"

// Dataset is an immutable observation set.
type Dataset struct {
	y       *mat.VecDense
	x       *mat.Dense
	names   []string
	dropped int
	source  string
}

// New validates and copies y and X into a Dataset. names may be nil, in which
// case columns are named x0, x1, ... . Outcomes must be finite non-negative
// integers and X must be finite.
func New(y []float64, X mat.Matrix, names []string) (*Dataset, error) {
	n, k := X.Dims()
	if n == 0 || k == 0 {
		return nil, errors.NewModelError("dataset.New", "empty data", errors.ErrEmptyData)
	}
	if len(y) != n {
		return nil, errors.NewDimensionError("dataset.New", n, len(y), 0)
	}
	if names == nil {
		names = make([]string, k)
		for j := range names {
			names[j] = fmt.Sprintf("x%d", j)
		}
	}
	if len(names) != k {
		return nil, errors.NewDimensionError("dataset.New", k, len(names), 1)
	}
	for i, v := range y {
		if err := validateCount(v); err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("y[%d]", i), err.Error(), v)
		}
	}
	if err := errors.CheckMatrix("dataset.New", X, n, k, 0); err != nil {
		return nil, err
	}

	return &Dataset{
		y:      mat.NewVecDense(n, append([]float64(nil), y...)),
		x:      mat.DenseCopyOf(X),
		names:  append([]string(nil), names...),
		source: "memory",
	}, nil
}

func validateCount(v float64) error {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return errors.New("outcome must be finite")
	case v < 0:
		return errors.New("outcome must be non-negative")
	case v != math.Trunc(v):
		return errors.New("outcome must be an integer count")
	}
	return nil
}

// Dims returns the number of observations N and covariates K.
func (d *Dataset) Dims() (n, k int) {
	return d.x.Dims()
}

// Y returns a read-only view of the outcome vector.
func (d *Dataset) Y() mat.Vector {
	return d.y
}

// X returns a read-only view of the design matrix.
func (d *Dataset) X() mat.Matrix {
	return d.x
}

// Outcomes returns a copy of the outcome vector.
func (d *Dataset) Outcomes() []float64 {
	return append([]float64(nil), d.y.RawVector().Data...)
}

// Names returns a copy of the covariate names.
func (d *Dataset) Names() []string {
	return append([]string(nil), d.names...)
}

// Dropped returns the number of input rows discarded for missing values.
func (d *Dataset) Dropped() int {
	return d.dropped
}

// Source describes where the data came from ("simulated", "csv", "memory").
func (d *Dataset) Source() string {
	return d.source
}

// HasIntercept reports whether the first column is identically 1.
func (d *Dataset) HasIntercept() bool {
	n, _ := d.x.Dims()
	for i := 0; i < n; i++ {
		if d.x.At(i, 0) != 1 {
			return false
		}
	}
	return true
}

// Table returns an N×(K+1) matrix: column 0 is y, columns 1..K are X.
func (d *Dataset) Table() *mat.Dense {
	n, k := d.x.Dims()
	t := mat.NewDense(n, k+1, nil)
	t.Slice(0, n, 0, 1).(*mat.Dense).Copy(d.y)
	t.Slice(0, n, 1, k+1).(*mat.Dense).Copy(d.x)
	return t
}
