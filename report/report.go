// Package report assembles the side-by-side comparison of the hand-rolled
// estimate and the reference fit, and renders it as text, JSON or charts.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"github.com/YuminosukeSato/poissonmle/dataset"
	"github.com/YuminosukeSato/poissonmle/metrics"
	"github.com/YuminosukeSato/poissonmle/pkg/errors"
	"github.com/YuminosukeSato/poissonmle/poisson"
	"github.com/YuminosukeSato/poissonmle/solver"
)

// Value is a float64 that encodes NaN and ±Inf as JSON null.
type Value float64

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

// Row is one covariate of the comparison table.
type Row struct {
	Name            string `json:"name"`
	True            *Value `json:"true,omitempty"`
	Estimate        Value  `json:"estimate"`
	StdErr          Value  `json:"std_err"`
	Reference       Value  `json:"reference"`
	ReferenceStdErr Value  `json:"reference_std_err"`
}

// Comparison is the outcome of one estimation run.
type Comparison struct {
	Source   string `json:"source"`
	Samples  int    `json:"samples"`
	Features int    `json:"features"`
	Dropped  int    `json:"dropped_rows"`
	Rows     []Row  `json:"coefficients"`

	Objective        Value  `json:"objective"`
	InitialObjective Value  `json:"initial_objective"`
	Converged        bool   `json:"converged"`
	Status           string `json:"status"`
	Iterations       int    `json:"iterations"`
	FuncEvaluations  int    `json:"func_evaluations"`
	LogLikelihood    Value  `json:"log_likelihood"`

	ReferenceConverged  bool  `json:"reference_converged"`
	ReferenceIterations int   `json:"reference_iterations"`
	ReferenceDeviance   Value `json:"reference_deviance"`

	Diagnostics Diagnostics `json:"diagnostics"`

	Trace []solver.TracePoint `json:"-"`
}

// Diagnostics compares the fitted means λ with the observed counts.
// D2 is NaN when every count is zero.
type Diagnostics struct {
	MSE  Value `json:"mse"`
	RMSE Value `json:"rmse"`
	MAE  Value `json:"mae"`
	D2   Value `json:"d2"`
}

func diagnose(ds *dataset.Dataset, fit *poisson.Regressor) (Diagnostics, error) {
	pred, err := fit.Predict(ds.X())
	if err != nil {
		return Diagnostics{}, err
	}
	mse, err := metrics.MSEMatrix(ds.Y(), pred)
	if err != nil {
		return Diagnostics{}, err
	}
	lambda, err := metrics.ColumnVector("report.diagnose", pred)
	if err != nil {
		return Diagnostics{}, err
	}
	rmse, err := metrics.RMSE(ds.Y(), lambda)
	if err != nil {
		return Diagnostics{}, err
	}
	mae, err := metrics.MAE(ds.Y(), lambda)
	if err != nil {
		return Diagnostics{}, err
	}
	d2, err := metrics.D2PoissonScore(ds.Y(), lambda)
	if err != nil {
		d2 = math.NaN()
	}
	return Diagnostics{MSE: Value(mse), RMSE: Value(rmse), MAE: Value(mae), D2: Value(d2)}, nil
}

// NewComparison collects the results of a fitted Regressor and a reference
// fit on ds. betaTrue may be nil when the generating coefficients are unknown.
func NewComparison(ds *dataset.Dataset, betaTrue []float64, fit *poisson.Regressor, ref *poisson.ReferenceResult) (*Comparison, error) {
	if ds == nil || fit == nil || ref == nil {
		return nil, errors.NewValueError("report.NewComparison", "dataset, fit and reference are required")
	}
	res := fit.Result()
	if res == nil {
		return nil, errors.NewNotFittedError(poisson.ModelName, "report.NewComparison")
	}
	n, k := ds.Dims()
	coef, se := fit.Coef(), fit.StdErr()
	if len(coef) != k {
		return nil, errors.NewDimensionError("report.NewComparison", k, len(coef), 1)
	}
	if len(ref.Coef) != k || len(ref.StdErr) != k {
		return nil, errors.NewDimensionError("report.NewComparison", k, len(ref.Coef), 1)
	}
	if betaTrue != nil && len(betaTrue) != k {
		return nil, errors.NewDimensionError("report.NewComparison", k, len(betaTrue), 1)
	}

	names := ds.Names()
	rows := make([]Row, k)
	for j := range rows {
		rows[j] = Row{
			Name:            names[j],
			Estimate:        Value(coef[j]),
			StdErr:          Value(math.NaN()),
			Reference:       Value(ref.Coef[j]),
			ReferenceStdErr: Value(ref.StdErr[j]),
		}
		if j < len(se) {
			rows[j].StdErr = Value(se[j])
		}
		if betaTrue != nil {
			v := Value(betaTrue[j])
			rows[j].True = &v
		}
	}

	diag, err := diagnose(ds, fit)
	if err != nil {
		return nil, errors.Wrap(err, "fit diagnostics")
	}

	return &Comparison{
		Source:              ds.Source(),
		Samples:             n,
		Features:            k,
		Dropped:             ds.Dropped(),
		Rows:                rows,
		Objective:           Value(res.F),
		InitialObjective:    Value(fit.InitialObjective()),
		Converged:           res.Converged,
		Status:              res.Status,
		Iterations:          res.Iterations,
		FuncEvaluations:     res.FuncEvaluations,
		LogLikelihood:       Value(fit.LogLikelihood()),
		ReferenceConverged:  ref.Converged,
		ReferenceIterations: ref.Iterations,
		ReferenceDeviance:   Value(ref.Deviance),
		Diagnostics:         diag,
		Trace:               res.Trace,
	}, nil
}

// HasTrue reports whether the generating coefficients are known.
func (c *Comparison) HasTrue() bool {
	return len(c.Rows) > 0 && c.Rows[0].True != nil
}

// MaxDifference returns the largest absolute difference between the
// hand-rolled and reference coefficients.
func (c *Comparison) MaxDifference() float64 {
	var d float64
	for _, r := range c.Rows {
		d = math.Max(d, math.Abs(float64(r.Estimate-r.Reference)))
	}
	return d
}

func format(v Value) string {
	f := float64(v)
	if math.IsNaN(f) {
		return "NA"
	}
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// WriteText writes the comparison as an aligned table followed by a summary.
func (c *Comparison) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	header := "covariate\t"
	if c.HasTrue() {
		header += "true\t"
	}
	header += "estimate\tstd err\treference\tref std err\t"
	if _, err := fmt.Fprintln(tw, header); err != nil {
		return err
	}
	for _, r := range c.Rows {
		line := r.Name + "\t"
		if r.True != nil {
			line += format(*r.True) + "\t"
		}
		line += format(r.Estimate) + "\t" + format(r.StdErr) + "\t" +
			format(r.Reference) + "\t" + format(r.ReferenceStdErr) + "\t"
		if _, err := fmt.Fprintln(tw, line); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nobservations: %d (source %s, %d rows dropped)\n"+
		"objective: %s (at start %s)\n"+
		"converged: %t (%s, %d iterations, %d function evaluations)\n"+
		"reference: converged %t after %d iterations, deviance %s\n"+
		"fit: D² %s, RMSE %s, MAE %s\n"+
		"max |estimate - reference|: %.3g\n",
		c.Samples, c.Source, c.Dropped,
		format(c.Objective), format(c.InitialObjective),
		c.Converged, c.Status, c.Iterations, c.FuncEvaluations,
		c.ReferenceConverged, c.ReferenceIterations, format(c.ReferenceDeviance),
		format(c.Diagnostics.D2), format(c.Diagnostics.RMSE), format(c.Diagnostics.MAE),
		c.MaxDifference(),
	)
	return err
}

// WriteJSON writes the comparison as indented JSON.
func (c *Comparison) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "encode comparison")
	}
	return nil
}
