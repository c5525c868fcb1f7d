package proximity

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/stationreach/internal/aggregate"
	"github.com/sells-group/stationreach/internal/query"
)

// Coverage returns, for each threshold, the share of the population whose
// nearest station is within it. Each point's nearest distance is found once
// and binned against every threshold.
func (e *Env) Coverage(ctx context.Context, th aggregate.Thresholds) ([]aggregate.ProportionRow, error) {
	zap.L().With(zap.String("component", "proximity")).Info("computing coverage",
		zap.String("dataset", e.Name),
		zap.Int("points", len(e.Population)),
		zap.Int("thresholds", len(th)),
	)

	cov, err := query.Fold(ctx, e.Exec, len(e.Population),
		func() *aggregate.Coverage { return aggregate.NewCoverage(th) },
		func(acc *aggregate.Coverage, i int) error {
			r := e.Population[i]
			acc.Add(r.Weight, e.Index.NearestDistSq(r.Point))
			return nil
		},
		func(dst, src *aggregate.Coverage) { dst.Merge(src) },
	)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: coverage")
	}
	rows, err := cov.Rows()
	if err != nil {
		return nil, eris.Wrapf(err, "proximity: coverage for %s", e.Name)
	}
	return rows, nil
}

// counts returns the station count within radius of every population point.
func (e *Env) counts(ctx context.Context, radius float64) ([]int, error) {
	r2 := radius * radius
	return query.Map(ctx, e.Exec, len(e.Population), func(i int) (int, error) {
		return e.Index.CountWithinSq(e.Population[i].Point, r2), nil
	})
}

// sweepCounts runs one counting pass per threshold.
func (e *Env) sweepCounts(ctx context.Context, th aggregate.Thresholds) ([][]int, error) {
	zap.L().With(zap.String("component", "proximity")).Info("counting stations",
		zap.String("dataset", e.Name),
		zap.Int("points", len(e.Population)),
		zap.Int("thresholds", len(th)),
	)
	return query.Sweep(ctx, e.Exec, []float64(th), func(ctx context.Context, t float64) ([]int, error) {
		return e.counts(ctx, t)
	})
}

// StationCounts returns one row per threshold per population point, grouped
// by threshold ascending and in load order within a threshold.
func (e *Env) StationCounts(ctx context.Context, th aggregate.Thresholds) ([]aggregate.StationCountRow, error) {
	perThreshold, err := e.sweepCounts(ctx, th)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: station counts")
	}
	rows := make([]aggregate.StationCountRow, 0, len(th)*len(e.Population))
	for k, counts := range perThreshold {
		for _, n := range counts {
			rows = append(rows, aggregate.StationCountRow{MaxDist: th[k], NStations: n})
		}
	}
	return rows, nil
}

// StationSummary returns the box summary of station counts per threshold.
func (e *Env) StationSummary(ctx context.Context, th aggregate.Thresholds) ([]aggregate.BoxRow, error) {
	perThreshold, err := e.sweepCounts(ctx, th)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: station summary")
	}
	rows := make([]aggregate.BoxRow, len(th))
	for k, counts := range perThreshold {
		rows[k] = aggregate.NewBoxRow(th[k], aggregate.Box(toFloats(counts)))
	}
	return rows, nil
}

// Pairs returns each population point's weight paired with its station count
// within radius, in load order.
func (e *Env) Pairs(ctx context.Context, radius float64) ([]aggregate.PairRow, error) {
	counts, err := e.counts(ctx, radius)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: pairs")
	}
	rows := make([]aggregate.PairRow, len(counts))
	for i, n := range counts {
		rows[i] = aggregate.PairRow{Population: e.Population[i].Weight, NStations: n}
	}
	return rows, nil
}

// classify computes the quartile cut in a first pass and returns it with the
// per-point counts for the second.
func (e *Env) classify(ctx context.Context, radius float64) (aggregate.Cut, []int, error) {
	counts, err := e.counts(ctx, radius)
	if err != nil {
		return aggregate.Cut{}, nil, err
	}
	cut := aggregate.NewCut(e.weights(), toFloats(counts))
	zap.L().With(zap.String("component", "proximity")).Info("quadrant cut",
		zap.String("dataset", e.Name),
		zap.Float64("population_q3", cut.PopulationQ3),
		zap.Float64("stations_q3", cut.StationsQ3),
	)
	return cut, counts, nil
}

// QuadrantSummary classifies every point at radius and tallies each
// quadrant's point count and population.
func (e *Env) QuadrantSummary(ctx context.Context, radius float64) (*aggregate.QuadrantTally, error) {
	cut, counts, err := e.classify(ctx, radius)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: quadrant summary")
	}
	tally := aggregate.NewQuadrantTally(cut)
	for i, n := range counts {
		tally.Add(e.Population[i].Weight, float64(n))
	}
	return tally, nil
}

// QuadrantCoords returns the coordinates of the points in quadrant q at
// radius, in load order.
func (e *Env) QuadrantCoords(ctx context.Context, radius float64, q aggregate.Quadrant) ([]aggregate.CoordRow, error) {
	cut, counts, err := e.classify(ctx, radius)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: quadrant coords")
	}
	var rows []aggregate.CoordRow
	for i, n := range counts {
		r := e.Population[i]
		if aggregate.Classify(r.Weight, float64(n), cut) == q {
			rows = append(rows, aggregate.CoordRow{X: r.Point.X, Y: r.Point.Y})
		}
	}
	return rows, nil
}

func toFloats(counts []int) []float64 {
	out := make([]float64, len(counts))
	for i, n := range counts {
		out[i] = float64(n)
	}
	return out
}
