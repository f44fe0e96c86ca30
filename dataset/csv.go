package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poissonmle/core/parallel"
	"github.com/YuminosukeSato/poissonmle/pkg/errors"
	"github.com/YuminosukeSato/poissonmle/pkg/log"
)

// DefaultMissingValues are the cell values treated as missing.
var DefaultMissingValues = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "."}

// rows above this count are assembled in parallel
const parallelAssemblyThreshold = 5000

// TableSpec selects the columns of a table used for estimation.
type TableSpec struct {
	// Outcome is the name of the count column.
	Outcome string
	// Covariates are the regressor column names, without the intercept.
	Covariates []string
	// MissingValues overrides DefaultMissingValues when non-nil.
	MissingValues []string
}

func (s TableSpec) validate() error {
	if strings.TrimSpace(s.Outcome) == "" {
		return errors.NewValidationError("outcome", "outcome column name is required", s.Outcome)
	}
	seen := map[string]bool{s.Outcome: true}
	for _, c := range s.Covariates {
		if seen[c] {
			return errors.NewValidationError("covariates", "column listed twice or equal to the outcome", c)
		}
		seen[c] = true
	}
	return nil
}

// column encodes one raw covariate column into one or more design columns.
type column struct {
	names  []string
	encode func(raw string, dst []float64) error
}

func numericColumn(name string) column {
	return column{
		names: []string{name},
		encode: func(raw string, dst []float64) error {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return err
			}
			dst[0] = v
			return nil
		},
	}
}

// categoricalColumn dummy-encodes levels; the first sorted level is the
// reference category and gets no column.
func categoricalColumn(name string, levels []string) column {
	index := make(map[string]int, len(levels))
	names := make([]string, 0, len(levels)-1)
	for i, lv := range levels {
		index[lv] = i - 1
		if i > 0 {
			names = append(names, fmt.Sprintf("%s[%s]", name, lv))
		}
	}
	return column{
		names: names,
		encode: func(raw string, dst []float64) error {
			for j := range dst {
				dst[j] = 0
			}
			pos, ok := index[raw]
			if !ok {
				return fmt.Errorf("unknown level %q", raw)
			}
			if pos >= 0 {
				dst[pos] = 1
			}
			return nil
		},
	}
}

// ReadCSV reads a table with a header row and builds a Dataset from the
// columns named in spec. An intercept column is prepended. Rows with a
// missing value in any used column are dropped. Covariate columns whose
// values are not all numeric are treated as categorical and dummy-encoded.
func ReadCSV(r io.Reader, spec TableSpec) (*Dataset, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	missing := spec.MissingValues
	if missing == nil {
		missing = DefaultMissingValues
	}
	isMissing := make(map[string]bool, len(missing))
	for _, m := range missing {
		isMissing[m] = true
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.NewModelError("dataset.ReadCSV", "missing header row", errors.ErrEmptyData)
		}
		return nil, errors.Wrap(err, "read csv header")
	}
	position := make(map[string]int, len(header))
	for i, h := range header {
		position[strings.TrimSpace(h)] = i
	}

	used := append([]string{spec.Outcome}, spec.Covariates...)
	cols := make([]int, len(used))
	for i, name := range used {
		p, ok := position[name]
		if !ok {
			return nil, errors.NewMissingColumnError(name, header)
		}
		cols[i] = p
	}

	// raw[i][c] is the value of used column c in kept row i
	var raw [][]string
	dropped := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv line %d", line)
		}
		row := make([]string, len(cols))
		complete := true
		for c, p := range cols {
			v := strings.TrimSpace(record[p])
			if isMissing[v] {
				complete = false
				break
			}
			row[c] = v
		}
		if !complete {
			dropped++
			continue
		}
		raw = append(raw, row)
	}

	n := len(raw)
	if n == 0 {
		return nil, errors.Wrapf(
			errors.NewModelError("dataset.ReadCSV", "no complete rows", errors.ErrEmptyData),
			"%d rows dropped for missing values", dropped)
	}

	y := make([]float64, n)
	for i, row := range raw {
		v, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, errors.NewValidationError(spec.Outcome, fmt.Sprintf("row %d: outcome is not numeric", i+1), row[0])
		}
		if err := validateCount(v); err != nil {
			return nil, errors.NewValidationError(spec.Outcome, fmt.Sprintf("row %d: %v", i+1, err), v)
		}
		y[i] = v
	}

	encoders := make([]column, len(spec.Covariates))
	names := []string{InterceptName}
	for c, name := range spec.Covariates {
		encoders[c] = inferColumn(name, raw, c+1)
		names = append(names, encoders[c].names...)
	}
	k := len(names)

	x := mat.NewDense(n, k, nil)
	errs := make([]error, n)
	parallel.ParallelizeWithThreshold(n, parallelAssemblyThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			row := x.RawRowView(i)
			row[0] = 1
			offset := 1
			for c, enc := range encoders {
				width := len(enc.names)
				if err := enc.encode(raw[i][c+1], row[offset:offset+width]); err != nil {
					errs[i] = errors.NewValidationError(spec.Covariates[c], fmt.Sprintf("row %d: %v", i+1, err), raw[i][c+1])
					break
				}
				offset += width
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if err := errors.CheckMatrix("dataset.ReadCSV", x, n, k, 0); err != nil {
		return nil, err
	}

	log.GetLoggerWithName("dataset").Debug("loaded table",
		log.OperationKey, log.OperationLoad,
		log.SamplesKey, n,
		log.FeaturesKey, k,
		log.DroppedRowsKey, dropped,
	)

	return &Dataset{
		y:       mat.NewVecDense(n, y),
		x:       x,
		names:   names,
		dropped: dropped,
		source:  "csv",
	}, nil
}

// inferColumn returns a numeric encoder when every value of column c parses
// as a float, and a categorical encoder otherwise.
func inferColumn(name string, raw [][]string, c int) column {
	numeric := true
	levels := make(map[string]struct{})
	for _, row := range raw {
		levels[row[c]] = struct{}{}
		if numeric {
			if _, err := strconv.ParseFloat(row[c], 64); err != nil {
				numeric = false
			}
		}
	}
	if numeric {
		return numericColumn(name)
	}
	sorted := make([]string, 0, len(levels))
	for lv := range levels {
		sorted = append(sorted, lv)
	}
	sort.Strings(sorted)
	return categoricalColumn(name, sorted)
}
