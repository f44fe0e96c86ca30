package poissonmle

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/poissonmle/core/model"
	"github.com/YuminosukeSato/poissonmle/pkg/errors"
	"github.com/YuminosukeSato/poissonmle/poisson"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("poissonmle", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeSimulate, cfg.Mode)
	assert.Equal(t, 1000, cfg.N)
	assert.Equal(t, []float64{-0.5, 0.4, -0.7}, cfg.Beta)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 1000, cfg.MaxIter)
	assert.Equal(t, 1e-6, cfg.GradTol)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.JSON)
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("POISSONMLE_N", "250")
	t.Setenv("POISSONMLE_BETA", "0.1,0.2")
	t.Setenv("POISSONMLE_X", "age,region")
	t.Setenv("POISSONMLE_STANDARDIZE", "true")

	fs := flag.NewFlagSet("poissonmle", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-beta", "1, -2 ,3", "-seed", "7", "-json"})
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.N, "environment value kept")
	assert.Equal(t, []float64{1, -2, 3}, cfg.Beta, "flag overrides environment")
	assert.Equal(t, []string{"age", "region"}, cfg.Covariates)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.True(t, cfg.Standardize)
	assert.True(t, cfg.JSON)
}

func TestParseConfigWrapsParseErrors(t *testing.T) {
	t.Run("environment", func(t *testing.T) {
		t.Setenv("POISSONMLE_N", "many")
		_, err := ParseConfig(flag.NewFlagSet("poissonmle", flag.ContinueOnError), nil)
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "parse env: "), err.Error())
		assert.Contains(t, fmt.Sprintf("%+v", err), "poissonmle.ParseConfig", "stack trace attached")
	})

	t.Run("beta flag", func(t *testing.T) {
		_, err := ParseConfig(flag.NewFlagSet("poissonmle", flag.ContinueOnError), []string{"-beta", "1,abc"})
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "parse -beta: "), err.Error())
		assert.Contains(t, fmt.Sprintf("%+v", err), "poissonmle.ParseConfig", "stack trace attached")
	})
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown mode", []string{"-mode", "bogus"}},
		{"bad beta", []string{"-beta", "1,abc"}},
		{"empty beta", []string{"-beta", ""}},
		{"non-positive n", []string{"-n", "0"}},
		{"csv without path", []string{"-mode", "csv", "-y", "visits"}},
		{"csv without outcome", []string{"-mode", "csv", "-csv", "data.csv"}},
		{"bad tolerance", []string{"-grad-tol", "0"}},
		{"unknown flag", []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("poissonmle", flag.ContinueOnError)
			fs.SetOutput(&bytes.Buffer{})
			_, err := ParseConfig(fs, tt.args)
			assert.Error(t, err)
		})
	}
}

func simulateConfig() Config {
	return Config{
		Mode:      ModeSimulate,
		N:         400,
		Beta:      []float64{-0.5, 0.4, -0.7},
		Seed:      3,
		MaxIter:   1000,
		GradTol:   1e-6,
		LogLevel:  "warn",
		LogFormat: "json",
	}
}

func TestRunSimulateText(t *testing.T) {
	var out, errOut bytes.Buffer
	require.NoError(t, Run(context.Background(), simulateConfig(), &out, &errOut))

	text := out.String()
	assert.Contains(t, strings.Split(text, "\n")[0], "true")
	assert.Contains(t, text, "const")
	assert.Contains(t, text, "x2")
	assert.Contains(t, text, "converged: true")
	assert.Contains(t, text, "source simulated")
}

func TestRunSimulateJSONWithArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := simulateConfig()
	cfg.JSON = true
	cfg.PlotPath = filepath.Join(dir, "coef.png")
	cfg.TracePath = filepath.Join(dir, "trace.svg")
	cfg.SavePath = filepath.Join(dir, "weights.json")

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, &out, nil))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &raw))
	assert.Equal(t, float64(400), raw["samples"])
	assert.Len(t, raw["coefficients"], 3)

	for _, p := range []string{cfg.PlotPath, cfg.TracePath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	w, err := model.LoadWeights(cfg.SavePath)
	require.NoError(t, err)
	assert.Equal(t, poisson.ModelName, w.ModelType)
	assert.Equal(t, []string{"const", "x1", "x2"}, w.Features)
}

const tableCSV = `visits,age,region
3,34,north
1,29,east
,41,south
5,38,south
2,NA,north
4,45,east
0,22,north
`

func TestRunCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visits.csv")
	require.NoError(t, os.WriteFile(path, []byte(tableCSV), 0o600))

	cfg := Config{
		Mode:       ModeCSV,
		CSVPath:    path,
		Outcome:    "visits",
		Covariates: []string{"age"},
		MaxIter:    1000,
		GradTol:    1e-6,
		LogLevel:   "error",
		LogFormat:  "json",
		JSON:       true,
	}
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, &out, nil))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &raw))
	assert.Equal(t, "csv", raw["source"])
	assert.Equal(t, float64(5), raw["samples"])
	assert.Equal(t, float64(2), raw["dropped_rows"])
	coefs := raw["coefficients"].([]interface{})
	_, hasTrue := coefs[0].(map[string]interface{})["true"]
	assert.False(t, hasTrue)
}

func TestRunErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visits.csv")
	require.NoError(t, os.WriteFile(path, []byte(tableCSV), 0o600))

	t.Run("missing column", func(t *testing.T) {
		cfg := Config{Mode: ModeCSV, CSVPath: path, Outcome: "visits", Covariates: []string{"income"},
			MaxIter: 10, GradTol: 1e-6, LogLevel: "error", LogFormat: "json"}
		err := Run(context.Background(), cfg, nil, nil)
		var mc *errors.MissingColumnError
		require.True(t, errors.As(err, &mc))
		assert.Equal(t, "income", mc.Column)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := Config{Mode: ModeCSV, CSVPath: filepath.Join(t.TempDir(), "none.csv"), Outcome: "visits",
			MaxIter: 10, GradTol: 1e-6, LogLevel: "error", LogFormat: "json"}
		assert.Error(t, Run(context.Background(), cfg, nil, nil))
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := simulateConfig()
		cfg.LogLevel = "loud"
		assert.Error(t, Run(context.Background(), cfg, nil, nil))
	})

	t.Run("invalid config", func(t *testing.T) {
		assert.Error(t, Run(context.Background(), Config{Mode: ModeSimulate}, nil, nil))
	})
}
