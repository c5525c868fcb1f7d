package geo

import (
	"context"
	"io"

	"github.com/sells-group/stationreach/internal/query"
)

// Project appends Web Mercator x,y columns to every row of a lon/lat CSV.
// A row outside the projectable range fails the whole run.
func Project(ctx context.Context, ex *query.Executor, r io.Reader, w io.Writer, name string, cols Columns, chunkSize int) (Stats, error) {
	return rewrite(ctx, ex, r, w, name, cols, chunkSize,
		func(h string) string { return h + ",x,y" },
		func(text string, lon, lat float64) (string, bool, string) {
			x, y, err := Mercator(lon, lat)
			if err != nil {
				return "", false, err.Error()
			}
			return text + "," + formatFloat(x) + "," + formatFloat(y), true, ""
		},
	)
}
