package dataset

import (
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poissonmle/pkg/errors"
)

func TestSimulateShapeAndIntercept(t *testing.T) {
	ds, err := Simulate(200, []float64{-0.5, 0.4, -0.7}, rand.NewPCG(1, 2))
	require.NoError(t, err)

	n, k := ds.Dims()
	assert.Equal(t, 200, n)
	assert.Equal(t, 3, k)
	assert.Equal(t, []string{"const", "x1", "x2"}, ds.Names())
	assert.True(t, ds.HasIntercept())
	assert.Equal(t, "simulated", ds.Source())

	for _, y := range ds.Outcomes() {
		assert.GreaterOrEqual(t, y, 0.0)
		assert.Equal(t, math.Trunc(y), y)
	}
}

func TestSimulateIsReproducible(t *testing.T) {
	beta := []float64{0.2, 0.3}
	a, err := Simulate(50, beta, rand.NewPCG(7, 7))
	require.NoError(t, err)
	b, err := Simulate(50, beta, rand.NewPCG(7, 7))
	require.NoError(t, err)
	c, err := Simulate(50, beta, rand.NewPCG(8, 8))
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.X(), b.X()))
	assert.Equal(t, a.Outcomes(), b.Outcomes())
	assert.False(t, mat.Equal(a.X(), c.X()))
}

func TestSimulateInterceptOnly(t *testing.T) {
	// E[y] = exp(1) ≈ 2.718 with no covariates
	ds, err := Simulate(4000, []float64{1}, rand.NewPCG(3, 4))
	require.NoError(t, err)

	_, k := ds.Dims()
	assert.Equal(t, 1, k)
	var sum float64
	for _, y := range ds.Outcomes() {
		sum += y
	}
	assert.InDelta(t, math.E, sum/4000, 0.15)
}

func TestSimulateValidation(t *testing.T) {
	src := rand.NewPCG(1, 1)
	tests := []struct {
		name string
		n    int
		beta []float64
		src  rand.Source
	}{
		{"zero sample size", 0, []float64{1}, src},
		{"negative sample size", -3, []float64{1}, src},
		{"empty beta", 10, nil, src},
		{"nan beta", 10, []float64{math.NaN()}, src},
		{"nil source", 10, []float64{1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Simulate(tt.n, tt.beta, tt.src)
			assert.Error(t, err)
		})
	}

	_, err := Simulate(0, []float64{1}, src)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestTableLayout(t *testing.T) {
	ds, err := New([]float64{3, 0}, mat.NewDense(2, 2, []float64{1, 0.5, 1, -1}), []string{"const", "z"})
	require.NoError(t, err)

	tbl := ds.Table()
	r, c := tbl.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, []float64{3, 1, 0.5}, tbl.RawRowView(0))
	assert.Equal(t, []float64{0, 1, -1}, tbl.RawRowView(1))
}

func TestNewValidation(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{1, 1})
	tests := []struct {
		name  string
		y     []float64
		x     mat.Matrix
		names []string
	}{
		{"row mismatch", []float64{1}, x, nil},
		{"name mismatch", []float64{1, 2}, x, []string{"a", "b"}},
		{"negative count", []float64{1, -1}, x, nil},
		{"fractional count", []float64{1, 1.5}, x, nil},
		{"infinite covariate", []float64{1, 1}, mat.NewDense(2, 1, []float64{1, math.Inf(1)}), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.y, tt.x, tt.names)
			assert.Error(t, err)
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	y := []float64{1, 2}
	x := mat.NewDense(2, 1, []float64{1, 1})
	ds, err := New(y, x, nil)
	require.NoError(t, err)

	y[0] = 100
	x.Set(0, 0, 100)
	assert.Equal(t, 1.0, ds.Y().AtVec(0))
	assert.Equal(t, 1.0, ds.X().At(0, 0))
	assert.Equal(t, []string{"x0"}, ds.Names())
}

const sampleCSV = `id,visits,age,region,income
1,3,34,north,52.1
2,0,41,south,
3,5,29,east,61.0
4,NA,50,north,40.2
5,1,38,south,45.5
6,2,45,north,48.0
`

func TestReadCSVDropsMissingAndEncodesCategorical(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(sampleCSV), TableSpec{
		Outcome:    "visits",
		Covariates: []string{"age", "region", "income"},
	})
	require.NoError(t, err)

	n, k := ds.Dims()
	assert.Equal(t, 4, n)
	assert.Equal(t, 2, ds.Dropped())
	assert.Equal(t, []string{"const", "age", "region[north]", "region[south]", "income"}, ds.Names())
	assert.Equal(t, 5, k)
	assert.Equal(t, []float64{3, 5, 1, 2}, ds.Outcomes())

	// row for id 3: east is the reference level
	assert.Equal(t, []float64{1, 29, 0, 0, 61.0}, mat.Row(nil, 1, ds.X()))
	// row for id 5: south
	assert.Equal(t, []float64{1, 38, 0, 1, 45.5}, mat.Row(nil, 2, ds.X()))
	assert.Equal(t, "csv", ds.Source())
}

func TestReadCSVOnlyUsedColumnsCountForMissing(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(sampleCSV), TableSpec{
		Outcome:    "visits",
		Covariates: []string{"age"},
	})
	require.NoError(t, err)
	n, _ := ds.Dims()
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, ds.Dropped())
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		spec  TableSpec
		check func(t *testing.T, err error)
	}{
		{
			name:  "missing covariate column",
			input: sampleCSV,
			spec:  TableSpec{Outcome: "visits", Covariates: []string{"height"}},
			check: func(t *testing.T, err error) {
				var mc *errors.MissingColumnError
				require.True(t, errors.As(err, &mc))
				assert.Equal(t, "height", mc.Column)
			},
		},
		{
			name:  "missing outcome column",
			input: sampleCSV,
			spec:  TableSpec{Outcome: "count"},
			check: func(t *testing.T, err error) {
				var mc *errors.MissingColumnError
				assert.True(t, errors.As(err, &mc))
			},
		},
		{
			name:  "empty outcome name",
			input: sampleCSV,
			spec:  TableSpec{},
			check: func(t *testing.T, err error) {
				var ve *errors.ValidationError
				assert.True(t, errors.As(err, &ve))
			},
		},
		{
			name:  "negative outcome",
			input: "y,x\n1,0.1\n-2,0.3\n",
			spec:  TableSpec{Outcome: "y", Covariates: []string{"x"}},
			check: func(t *testing.T, err error) {
				var ve *errors.ValidationError
				assert.True(t, errors.As(err, &ve))
			},
		},
		{
			name:  "all rows missing",
			input: "y,x\nNA,1\n2,\n",
			spec:  TableSpec{Outcome: "y", Covariates: []string{"x"}},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, errors.ErrEmptyData))
			},
		},
		{
			name:  "no header",
			input: "",
			spec:  TableSpec{Outcome: "y"},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, errors.ErrEmptyData))
			},
		},
		{
			name:  "duplicate covariate",
			input: sampleCSV,
			spec:  TableSpec{Outcome: "visits", Covariates: []string{"age", "age"}},
			check: func(t *testing.T, err error) {
				var ve *errors.ValidationError
				assert.True(t, errors.As(err, &ve))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), tt.spec)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestReadCSVLargeTableParallelAssembly(t *testing.T) {
	var b strings.Builder
	b.WriteString("y,x,g\n")
	rows := parallelAssemblyThreshold + 123
	for i := 0; i < rows; i++ {
		g := "a"
		if i%3 == 0 {
			g = "b"
		}
		b.WriteString(strings.Join([]string{
			[]string{"0", "1", "2"}[i%3],
			[]string{"0.5", "-1.25", "2"}[i%3],
			g,
		}, ","))
		b.WriteByte('\n')
	}

	ds, err := ReadCSV(strings.NewReader(b.String()), TableSpec{Outcome: "y", Covariates: []string{"x", "g"}})
	require.NoError(t, err)
	n, k := ds.Dims()
	assert.Equal(t, rows, n)
	assert.Equal(t, 3, k)
	for i := 0; i < n; i++ {
		wantG := 0.0
		if i%3 == 0 {
			wantG = 1
		}
		require.Equal(t, wantG, ds.X().At(i, 2), "row %d", i)
	}
}
