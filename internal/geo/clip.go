package geo

import (
	"context"
	"io"

	"github.com/sells-group/stationreach/internal/query"
)

// Clip copies the header and every row of r whose lon/lat falls inside b to
// w. Kept rows are written verbatim and in input order.
func Clip(ctx context.Context, ex *query.Executor, b *Boundary, r io.Reader, w io.Writer, name string, cols Columns, chunkSize int) (Stats, error) {
	return rewrite(ctx, ex, r, w, name, cols, chunkSize,
		func(h string) string { return h },
		func(text string, lon, lat float64) (string, bool, string) {
			return text, b.Contains(lon, lat), ""
		},
	)
}
