// Package proximity answers the population-to-station questions: coverage
// sweeps, station counts, quadrant classification and the distance matrix.
package proximity

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/stationreach/internal/config"
	"github.com/sells-group/stationreach/internal/pointset"
	"github.com/sells-group/stationreach/internal/query"
	"github.com/sells-group/stationreach/internal/spatial"
)

// Env is a loaded dataset: stations, their index, and the population points
// queried against them. It is read-only once built.
type Env struct {
	Name       string
	Stations   []pointset.Station
	Index      *spatial.Index
	Population []pointset.Resident
	Exec       *query.Executor
}

// NewEnv indexes stations and pairs them with population.
func NewEnv(name string, stations []pointset.Station, population []pointset.Resident, ex *query.Executor) *Env {
	return &Env{
		Name:       name,
		Stations:   stations,
		Index:      spatial.Build(pointset.Points(stations)),
		Population: population,
		Exec:       ex,
	}
}

// LoadStationIndex reads a dataset's stations and builds their index.
func LoadStationIndex(ds config.DatasetConfig) ([]pointset.Station, *spatial.Index, error) {
	log := zap.L().With(zap.String("component", "proximity"), zap.String("dataset", ds.Name))

	start := time.Now()
	stations, err := pointset.LoadStations(ds.Stations.Path, ds.Stations.Layout)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "proximity: load stations for %s", ds.Name)
	}
	log.Info("stations loaded", zap.Int("count", len(stations)), zap.Duration("elapsed", time.Since(start)))

	start = time.Now()
	idx := spatial.Build(pointset.Points(stations))
	log.Info("station index built", zap.Duration("elapsed", time.Since(start)))
	return stations, idx, nil
}

// Load reads both point files of a dataset and indexes the stations.
func Load(ctx context.Context, ds config.DatasetConfig, ex *query.Executor) (*Env, error) {
	log := zap.L().With(zap.String("component", "proximity"), zap.String("dataset", ds.Name))

	stations, idx, err := LoadStationIndex(ds)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "proximity: load")
	}

	start := time.Now()
	population, err := pointset.LoadPopulation(ds.Population.Path, ds.Population.Layout)
	if err != nil {
		return nil, eris.Wrapf(err, "proximity: load population for %s", ds.Name)
	}
	log.Info("population loaded",
		zap.Int("points", len(population)),
		zap.Float64("total", pointset.TotalPopulation(population)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Env{
		Name:       ds.Name,
		Stations:   stations,
		Index:      idx,
		Population: population,
		Exec:       ex,
	}, nil
}

// weights returns every population weight in load order.
func (e *Env) weights() []float64 {
	w := make([]float64, len(e.Population))
	for i, r := range e.Population {
		w[i] = r.Weight
	}
	return w
}
