package config

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/stationreach/internal/pointset"
)

// Config holds the full application configuration.
type Config struct {
	Datasets map[string]DatasetConfig `yaml:"datasets" mapstructure:"datasets"`
	Query    QueryConfig              `yaml:"query" mapstructure:"query"`
	Store    StoreConfig              `yaml:"store" mapstructure:"store"`
	Server   ServerConfig             `yaml:"server" mapstructure:"server"`
	Log      LogConfig                `yaml:"log" mapstructure:"log"`
}

// DatasetConfig names the files that make up one city.
type DatasetConfig struct {
	Name       string     `yaml:"-" mapstructure:"-"`
	Population FileConfig `yaml:"population" mapstructure:"population"`
	Stations   FileConfig `yaml:"stations" mapstructure:"stations"`
	Matrix     string     `yaml:"matrix" mapstructure:"matrix"`
	Clip       ClipConfig `yaml:"clip" mapstructure:"clip"`
}

// FileConfig is a point file and its column layout.
type FileConfig struct {
	Path   string          `yaml:"path" mapstructure:"path"`
	Layout pointset.Layout `yaml:"layout" mapstructure:"layout"`
}

// ClipConfig configures clipping raw lon/lat population rows to a boundary.
type ClipConfig struct {
	Boundary  string `yaml:"boundary" mapstructure:"boundary"`
	Raw       string `yaml:"raw" mapstructure:"raw"`
	LonColumn int    `yaml:"lon_column" mapstructure:"lon_column"`
	LatColumn int    `yaml:"lat_column" mapstructure:"lat_column"`
}

// QueryConfig configures query execution.
type QueryConfig struct {
	Workers   int         `yaml:"workers" mapstructure:"workers"`
	ChunkSize int         `yaml:"chunk_size" mapstructure:"chunk_size"`
	Radius    float64     `yaml:"radius" mapstructure:"radius"`
	Sweep     SweepConfig `yaml:"sweep" mapstructure:"sweep"`
}

// SweepConfig is the default threshold range, inclusive on both ends.
type SweepConfig struct {
	From float64 `yaml:"from" mapstructure:"from"`
	To   float64 `yaml:"to" mapstructure:"to"`
	Step float64 `yaml:"step" mapstructure:"step"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the lookup server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Dataset resolves a dataset by name.
func (c *Config) Dataset(name string) (DatasetConfig, error) {
	ds, ok := c.Datasets[strings.ToLower(name)]
	if !ok {
		return DatasetConfig{}, eris.Errorf("config: unknown dataset %q (known: %s)", name, strings.Join(c.DatasetNames(), ", "))
	}
	ds.Name = strings.ToLower(name)
	return ds, nil
}

// DatasetNames returns the configured dataset names in sorted order.
func (c *Config) DatasetNames() []string {
	names := make([]string, 0, len(c.Datasets))
	for name := range c.Datasets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func layoutDefault(l pointset.Layout) map[string]any {
	return map[string]any{"x": l.X, "y": l.Y, "weight": l.Weight, "name": l.Name}
}

func datasetDefaults() map[string]any {
	return map[string]any{
		"london": map[string]any{
			"population": map[string]any{"path": "data/london_pp_meters.csv", "layout": layoutDefault(pointset.PopulationLayout)},
			"stations":   map[string]any{"path": "data/london_trains/stations/station_coords_meters.csv", "layout": layoutDefault(pointset.StationLayout)},
			"matrix":     "data/london_matrix.csv",
			"clip": map[string]any{
				"boundary":   "data/london boundaries/london.geojson",
				"raw":        "data/pp/population_gbr_2019-07-01.csv",
				"lon_column": 1,
				"lat_column": 0,
			},
		},
		"tokyo": map[string]any{
			"population": map[string]any{"path": "data/tokyo_pp_meters.csv", "layout": layoutDefault(pointset.PopulationLayout)},
			"stations":   map[string]any{"path": "data/tokyo_trains/coords_meters.csv", "layout": layoutDefault(pointset.StationLayout)},
			"matrix":     "data/tokyo_matrix.csv",
			"clip": map[string]any{
				"boundary":   "data/tokyo boundaries/clipped.geojson",
				"raw":        "data/pp/jpn_population_2020.csv",
				"lon_column": 0,
				"lat_column": 1,
			},
		},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STATIONREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("datasets", datasetDefaults())
	v.SetDefault("query.workers", 0)
	v.SetDefault("query.chunk_size", 100_000)
	v.SetDefault("query.radius", 500.0)
	v.SetDefault("query.sweep.from", 100.0)
	v.SetDefault("query.sweep.to", 3000.0)
	v.SetDefault("query.sweep.step", 100.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "stationreach.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
