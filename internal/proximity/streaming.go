package proximity

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/stationreach/internal/aggregate"
	"github.com/sells-group/stationreach/internal/pointset"
	"github.com/sells-group/stationreach/internal/query"
	"github.com/sells-group/stationreach/internal/spatial"
	"github.com/sells-group/stationreach/internal/stream"
)

// StreamCoverage computes the same curve as Env.Coverage in one pass over a
// population file too large to hold in memory. Each block of lines is parsed
// in order and its nearest-station queries fan out across the executor.
func StreamCoverage(ctx context.Context, ex *query.Executor, idx *spatial.Index, path string, layout pointset.Layout, chunkSize int, th aggregate.Thresholds) ([]aggregate.ProportionRow, error) {
	log := zap.L().With(zap.String("component", "proximity"), zap.String("path", path))
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "proximity: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	start := time.Now()
	total := aggregate.NewCoverage(th)
	r := stream.NewReader(pointset.StripBOM(f), chunkSize)
	line := 0
	for {
		block, err := r.ReadBlock()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, eris.Wrapf(err, "proximity: read %s", path)
		}

		residents := make([]pointset.Resident, 0, len(block))
		for _, text := range block {
			line++
			if line == 1 {
				continue
			}
			res, ok, err := pointset.ParseResidentAt(path, line, text, layout)
			if err != nil {
				return nil, err
			}
			if ok {
				residents = append(residents, res)
			}
		}

		cov, err := query.Fold(ctx, ex, len(residents),
			func() *aggregate.Coverage { return aggregate.NewCoverage(th) },
			func(acc *aggregate.Coverage, i int) error {
				acc.Add(residents[i].Weight, idx.NearestDistSq(residents[i].Point))
				return nil
			},
			func(dst, src *aggregate.Coverage) { dst.Merge(src) },
		)
		if err != nil {
			return nil, eris.Wrap(err, "proximity: stream coverage")
		}
		total.Merge(cov)
	}

	log.Info("population streamed",
		zap.Int("lines", line),
		zap.Float64("total", total.Total()),
		zap.Duration("elapsed", time.Since(start)),
	)
	rows, err := total.Rows()
	if err != nil {
		return nil, eris.Wrapf(err, "proximity: coverage for %s", path)
	}
	return rows, nil
}
