package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/stationreach/internal/pointset"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "stationreach.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 0, cfg.Query.Workers)
	assert.Equal(t, 100_000, cfg.Query.ChunkSize)
	assert.InDelta(t, 500, cfg.Query.Radius, 0.001)
	assert.InDelta(t, 100, cfg.Query.Sweep.From, 0.001)
	assert.InDelta(t, 3000, cfg.Query.Sweep.To, 0.001)
	assert.InDelta(t, 100, cfg.Query.Sweep.Step, 0.001)

	assert.Equal(t, []string{"london", "tokyo"}, cfg.DatasetNames())
	london, err := cfg.Dataset("london")
	require.NoError(t, err)
	assert.Equal(t, "london", london.Name)
	assert.Equal(t, "data/london_pp_meters.csv", london.Population.Path)
	assert.Equal(t, pointset.PopulationLayout, london.Population.Layout)
	assert.Equal(t, pointset.StationLayout, london.Stations.Layout)
	assert.Equal(t, 1, london.Clip.LonColumn)
	assert.Equal(t, 0, london.Clip.LatColumn)

	tokyo, err := cfg.Dataset("Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "data/tokyo_trains/coords_meters.csv", tokyo.Stations.Path)
	assert.Equal(t, 0, tokyo.Clip.LonColumn)
}

func TestDatasetUnknown(t *testing.T) {
	cfg := &Config{Datasets: map[string]DatasetConfig{"london": {}, "paris": {}}}
	_, err := cfg.Dataset("berlin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown dataset "berlin"`)
	assert.Contains(t, err.Error(), "london, paris")
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/stationreach
log:
  level: debug
  format: console
query:
  workers: 4
  sweep:
    to: 1000
datasets:
  paris:
    population:
      path: paris_pp.csv
      layout: {x: 0, y: 1, weight: 2, name: -1}
    stations:
      path: paris_stations.csv
      layout: {x: 1, y: 2, weight: -1, name: 0}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Query.Workers)
	assert.InDelta(t, 1000, cfg.Query.Sweep.To, 0.001)
	// Defaults still apply for unset values
	assert.InDelta(t, 100, cfg.Query.Sweep.Step, 0.001)

	paris, err := cfg.Dataset("paris")
	require.NoError(t, err)
	assert.Equal(t, pointset.Layout{X: 0, Y: 1, Weight: 2, Name: -1}, paris.Population.Layout)
	assert.Equal(t, pointset.Layout{X: 1, Y: 2, Weight: -1, Name: 0}, paris.Stations.Layout)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("STATIONREACH_STORE_DRIVER", "postgres")
	t.Setenv("STATIONREACH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("STATIONREACH_SERVER_PORT", "3000")
	t.Setenv("STATIONREACH_QUERY_CHUNK_SIZE", "4096")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 4096, cfg.Query.ChunkSize)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{
		Datasets: map[string]DatasetConfig{
			"london": {
				Population: FileConfig{Path: "pp.csv", Layout: pointset.PopulationLayout},
				Stations:   FileConfig{Path: "stations.csv", Layout: pointset.StationLayout},
			},
		},
	}
	cfg.Query.ChunkSize = 100_000
	cfg.Query.Radius = 500
	cfg.Query.Sweep = SweepConfig{From: 100, To: 3000, Step: 100}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "stationreach.db"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateQuery_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("query"))
}

func TestValidateQuery_BadSweep(t *testing.T) {
	cfg := validDefaults()
	cfg.Query.Sweep.Step = 0
	cfg.Query.ChunkSize = 0

	err := cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "query.sweep")
	assert.Contains(t, err.Error(), "query.chunk_size must be > 0")

	tests := []struct {
		name  string
		sweep SweepConfig
	}{
		{"NaN from", SweepConfig{From: math.NaN(), To: 3000, Step: 100}},
		{"infinite to", SweepConfig{From: 100, To: math.Inf(1), Step: 100}},
		{"NaN step", SweepConfig{From: 100, To: 3000, Step: math.NaN()}},
		{"infinite step", SweepConfig{From: 100, To: 3000, Step: math.Inf(1)}},
		{"negative from", SweepConfig{From: -1, To: 3000, Step: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			cfg.Query.Sweep = tt.sweep
			err := cfg.Validate("query")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "query.sweep")
		})
	}
}

func TestValidateQuery_MissingPaths(t *testing.T) {
	cfg := validDefaults()
	cfg.Datasets["tokyo"] = DatasetConfig{}

	err := cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "datasets.tokyo.population.path is required")
	assert.Contains(t, err.Error(), "datasets.tokyo.stations.path is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateRecord(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("record"))

	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("record")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
