package config

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the settings a command mode depends on. Modes are
// "query" (every analysis command), "serve" and "record" (commands that
// persist runs).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "query", "serve", "record":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Query.Workers < 0 {
		errs = append(errs, "query.workers must be >= 0")
	}
	if c.Query.ChunkSize < 1 {
		errs = append(errs, "query.chunk_size must be > 0")
	}
	if c.Query.Radius < 0 || math.IsNaN(c.Query.Radius) {
		errs = append(errs, "query.radius must be >= 0")
	}
	if s := c.Query.Sweep; !finite(s.From) || !finite(s.To) || !finite(s.Step) ||
		s.Step <= 0 || s.From < 0 || s.To < s.From {
		errs = append(errs, "query.sweep must satisfy 0 <= from <= to and step > 0")
	}
	if len(c.Datasets) == 0 {
		errs = append(errs, "at least one dataset is required")
	}
	for name, ds := range c.Datasets {
		if ds.Population.Path == "" {
			errs = append(errs, "datasets."+name+".population.path is required")
		}
		if ds.Stations.Path == "" {
			errs = append(errs, "datasets."+name+".stations.path is required")
		}
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "record":
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
