package proximity

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/stationreach/internal/aggregate"
	"github.com/sells-group/stationreach/internal/pointset"
	"github.com/sells-group/stationreach/internal/query"
	"github.com/sells-group/stationreach/internal/record"
	"github.com/sells-group/stationreach/internal/stream"
)

// MatrixHeader is the header line of a distance matrix file.
var MatrixHeader = []string{"pp_x", "pp_y", "pop", "dist"}

// matrixBatch is the number of population points computed per emit.
const matrixBatch = 256

// Matrix computes the distance from every population point to every
// station by brute force. Rows are handed to emit in batches, ordered by
// population point and then by station.
func (e *Env) Matrix(ctx context.Context, emit func([]aggregate.MatrixRow) error) error {
	zap.L().With(zap.String("component", "proximity")).Info("computing distance matrix",
		zap.String("dataset", e.Name),
		zap.Int("points", len(e.Population)),
		zap.Int("stations", len(e.Stations)),
	)

	for lo := 0; lo < len(e.Population); lo += matrixBatch {
		hi := min(lo+matrixBatch, len(e.Population))
		perPoint, err := query.Map(ctx, e.Exec, hi-lo, func(i int) ([]aggregate.MatrixRow, error) {
			r := e.Population[lo+i]
			rows := make([]aggregate.MatrixRow, len(e.Stations))
			for j, s := range e.Stations {
				rows[j] = aggregate.MatrixRow{
					PPX:  r.Point.X,
					PPY:  r.Point.Y,
					Pop:  r.Weight,
					Dist: math.Sqrt(r.Point.DistanceSquared(s.Point)),
				}
			}
			return rows, nil
		})
		if err != nil {
			return eris.Wrap(err, "proximity: matrix")
		}

		batch := make([]aggregate.MatrixRow, 0, (hi-lo)*len(e.Stations))
		for _, rows := range perPoint {
			batch = append(batch, rows...)
		}
		if err := emit(batch); err != nil {
			return eris.Wrap(err, "proximity: emit matrix rows")
		}
	}
	return nil
}

// MatrixCheck summarizes a validated matrix file.
type MatrixCheck struct {
	Lines int `json:"lines"`
	Rows  int `json:"rows"`
}

// CheckMatrix streams a matrix file and reports the first data line that
// does not hold exactly four numeric fields as a *pointset.ParseError.
func CheckMatrix(ctx context.Context, ex *query.Executor, path string, chunkSize int) (MatrixCheck, error) {
	f, err := os.Open(path)
	if err != nil {
		return MatrixCheck{}, eris.Wrapf(err, "proximity: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var check MatrixCheck
	r := stream.NewReader(pointset.StripBOM(f), chunkSize)
	for {
		block, err := r.ReadBlock()
		if err == io.EOF {
			break
		}
		if err != nil {
			return check, eris.Wrapf(err, "proximity: read %s", path)
		}

		first := r.Lines() - len(block) + 1
		reasons, err := query.Map(ctx, ex, len(block), func(i int) (string, error) {
			if first+i == 1 || block[i] == "" {
				return "", nil
			}
			return checkMatrixLine(block[i]), nil
		})
		if err != nil {
			return check, eris.Wrap(err, "proximity: check matrix")
		}
		for i, reason := range reasons {
			if reason != "" {
				return check, &pointset.ParseError{File: path, Line: first + i, Reason: reason}
			}
			if first+i > 1 && block[i] != "" {
				check.Rows++
			}
		}
		check.Lines = r.Lines()
	}

	zap.L().With(zap.String("component", "proximity")).Info("matrix checked",
		zap.String("path", path),
		zap.Int("lines", check.Lines),
		zap.Int("rows", check.Rows),
	)
	return check, nil
}

func checkMatrixLine(line string) string {
	fields := record.Split(line)
	if len(fields) != len(MatrixHeader) {
		return fmt.Sprintf("expected %d fields, got %d", len(MatrixHeader), len(fields))
	}
	for i, f := range fields {
		if _, err := strconv.ParseFloat(f, 64); err != nil {
			return fmt.Sprintf("invalid %s %q", MatrixHeader[i], f)
		}
	}
	return ""
}
