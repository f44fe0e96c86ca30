// Package poissonmle parses the estimation command's configuration and runs
// one simulate-or-load, fit, compare and report cycle.
package poissonmle

import (
	"context"
	"flag"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/YuminosukeSato/poissonmle/core/model"
	"github.com/YuminosukeSato/poissonmle/dataset"
	"github.com/YuminosukeSato/poissonmle/pkg/errors"
	"github.com/YuminosukeSato/poissonmle/pkg/log"
	"github.com/YuminosukeSato/poissonmle/poisson"
	"github.com/YuminosukeSato/poissonmle/report"
)

const (
	ModeSimulate = "simulate"
	ModeCSV      = "csv"
)

// Config holds poissonmle command configuration.
type Config struct {
	Mode string `env:"POISSONMLE_MODE" envDefault:"simulate"`

	N    int       `env:"POISSONMLE_N"    envDefault:"1000"`
	Beta []float64 `env:"POISSONMLE_BETA" envDefault:"-0.5,0.4,-0.7" envSeparator:","`
	Seed uint64    `env:"POISSONMLE_SEED" envDefault:"42"`

	CSVPath    string   `env:"POISSONMLE_CSV"`
	Outcome    string   `env:"POISSONMLE_Y"`
	Covariates []string `env:"POISSONMLE_X" envSeparator:","`

	MaxIter       int     `env:"POISSONMLE_MAX_ITER"       envDefault:"1000"`
	GradTol       float64 `env:"POISSONMLE_GRAD_TOL"       envDefault:"1e-6"`
	NumericalGrad bool    `env:"POISSONMLE_NUMERICAL_GRAD"`
	Standardize   bool    `env:"POISSONMLE_STANDARDIZE"`

	LogLevel  string `env:"POISSONMLE_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"POISSONMLE_LOG_FORMAT" envDefault:"console"`

	JSON      bool   `env:"POISSONMLE_JSON"`
	PlotPath  string `env:"POISSONMLE_PLOT"`
	TracePath string `env:"POISSONMLE_TRACE"`
	SavePath  string `env:"POISSONMLE_SAVE"`
}

// ParseConfig parses environment and flags into Config. Flags win.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}

	beta := joinFloats(cfg.Beta)
	covariates := strings.Join(cfg.Covariates, ",")

	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "data source: simulate or csv")
	fs.IntVar(&cfg.N, "n", cfg.N, "number of simulated observations")
	fs.StringVar(&beta, "beta", beta, "comma-separated true coefficients, intercept first")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for simulation")
	fs.StringVar(&cfg.CSVPath, "csv", cfg.CSVPath, "path to a CSV table with a header row")
	fs.StringVar(&cfg.Outcome, "y", cfg.Outcome, "outcome (count) column")
	fs.StringVar(&covariates, "x", covariates, "comma-separated covariate columns")
	fs.IntVar(&cfg.MaxIter, "max-iter", cfg.MaxIter, "optimizer iteration cap")
	fs.Float64Var(&cfg.GradTol, "grad-tol", cfg.GradTol, "gradient infinity-norm tolerance")
	fs.BoolVar(&cfg.NumericalGrad, "numerical-grad", cfg.NumericalGrad, "use finite-difference gradients")
	fs.BoolVar(&cfg.Standardize, "standardize", cfg.Standardize, "scale covariates before optimizing")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json")
	fs.BoolVar(&cfg.JSON, "json", cfg.JSON, "print the comparison as JSON")
	fs.StringVar(&cfg.PlotPath, "plot", cfg.PlotPath, "write the coefficient chart to this file (.png, .svg, ...)")
	fs.StringVar(&cfg.TracePath, "trace", cfg.TracePath, "write the objective trace chart to this file")
	fs.StringVar(&cfg.SavePath, "save", cfg.SavePath, "write fitted weights as JSON to this file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	var err error
	if cfg.Beta, err = parseFloats(beta); err != nil {
		return Config{}, errors.Wrap(err, "parse -beta")
	}
	cfg.Covariates = splitList(covariates)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected mode has what it needs.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeSimulate:
		if c.N <= 0 {
			return errors.NewValidationError("n", "must be positive", c.N)
		}
		if len(c.Beta) == 0 {
			return errors.NewValidationError("beta", "at least one coefficient is required", c.Beta)
		}
	case ModeCSV:
		if c.CSVPath == "" {
			return errors.NewValidationError("csv", "path is required in csv mode", c.CSVPath)
		}
		if c.Outcome == "" {
			return errors.NewValidationError("y", "outcome column is required in csv mode", c.Outcome)
		}
	default:
		return errors.NewValidationError("mode", "must be simulate or csv", c.Mode)
	}
	if c.MaxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", c.MaxIter)
	}
	if !(c.GradTol > 0) {
		return errors.NewValidationError("grad_tol", "must be positive", c.GradTol)
	}
	return nil
}

// Run executes one estimation: build the dataset, fit the hand-rolled and
// reference estimators, then report. Results go to out, logs to errOut.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.LogLevel, cfg.LogFormat, errOut); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("cli")

	ds, betaTrue, err := loadDataset(cfg)
	if err != nil {
		logger.Error("could not build dataset", err, log.OperationKey, log.OperationLoad)
		return err
	}
	n, k := ds.Dims()
	logger.Info("dataset ready",
		log.SourceKey, ds.Source(),
		log.SamplesKey, n,
		log.FeaturesKey, k,
		log.DroppedRowsKey, ds.Dropped(),
	)

	fit := poisson.NewRegressor(
		poisson.WithMaxIter(cfg.MaxIter),
		poisson.WithGradientTolerance(cfg.GradTol),
		poisson.WithNumericalGradient(cfg.NumericalGrad),
		poisson.WithStandardize(cfg.Standardize),
		poisson.WithFeatureNames(ds.Names()),
	)
	if err := fit.FitContext(ctx, ds.X(), ds.Y()); err != nil {
		return err
	}
	ref, err := poisson.FitReference(ds.X(), ds.Y())
	if err != nil {
		return err
	}

	cmp, err := report.NewComparison(ds, betaTrue, fit, ref)
	if err != nil {
		return err
	}
	if cfg.JSON {
		err = cmp.WriteJSON(out)
	} else {
		err = cmp.WriteText(out)
	}
	if err != nil {
		return err
	}

	if cfg.PlotPath != "" {
		p, err := cmp.CoefficientPlot()
		if err != nil {
			return err
		}
		if err := report.SavePlot(p, cfg.PlotPath); err != nil {
			return err
		}
	}
	if cfg.TracePath != "" {
		p, err := cmp.TracePlot()
		if err != nil {
			return err
		}
		if err := report.SavePlot(p, cfg.TracePath); err != nil {
			return err
		}
	}
	if cfg.SavePath != "" {
		w, err := fit.ExportWeights()
		if err != nil {
			return err
		}
		if err := model.SaveWeights(w, cfg.SavePath); err != nil {
			return err
		}
	}
	return nil
}

func loadDataset(cfg Config) (*dataset.Dataset, []float64, error) {
	if cfg.Mode == ModeSimulate {
		ds, err := dataset.Simulate(cfg.N, cfg.Beta, rand.NewPCG(cfg.Seed, cfg.Seed))
		return ds, cfg.Beta, err
	}

	f, err := os.Open(cfg.CSVPath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", cfg.CSVPath)
	}
	defer f.Close()

	ds, err := dataset.ReadCSV(f, dataset.TableSpec{Outcome: cfg.Outcome, Covariates: cfg.Covariates})
	return ds, nil, err
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func parseFloats(s string) ([]float64, error) {
	parts := splitList(s)
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
