package geo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/stationreach/internal/pointset"
	"github.com/sells-group/stationreach/internal/query"
	"github.com/sells-group/stationreach/internal/record"
	"github.com/sells-group/stationreach/internal/stream"
)

// Columns names the zero-based longitude and latitude columns of a raw
// lon/lat CSV.
type Columns struct {
	Lon int `mapstructure:"lon" json:"lon"`
	Lat int `mapstructure:"lat" json:"lat"`
}

// Validate checks the column indices.
func (c Columns) Validate() error {
	if c.Lon < 0 || c.Lat < 0 {
		return eris.Errorf("geo: negative column index (lon=%d, lat=%d)", c.Lon, c.Lat)
	}
	if c.Lon == c.Lat {
		return eris.Errorf("geo: lon and lat share column %d", c.Lon)
	}
	return nil
}

// Stats counts the data rows a rewrite saw and wrote.
type Stats struct {
	Rows    int `json:"rows"`
	Written int `json:"written"`
}

// rowFunc maps one data row to its output. keep=false drops the row; a
// non-empty reason fails the whole rewrite.
type rowFunc func(text string, lon, lat float64) (out string, keep bool, reason string)

type parsedRow struct {
	line     int
	text     string
	lon, lat float64
}

type rowResult struct {
	out    string
	keep   bool
	reason string
}

// rewrite streams a lon/lat CSV from r to w block by block. The header line
// goes through header; every data row goes through row on the executor.
// Output keeps input order. Blank lines are dropped.
func rewrite(ctx context.Context, ex *query.Executor, r io.Reader, w io.Writer, name string, cols Columns, chunkSize int, header func(string) string, row rowFunc) (Stats, error) {
	var st Stats
	if err := cols.Validate(); err != nil {
		return st, err
	}

	bw := bufio.NewWriter(w)
	sr := stream.NewReader(pointset.StripBOM(r), chunkSize)
	line := 0
	for {
		block, err := sr.ReadBlock()
		if err != nil {
			if err == io.EOF {
				break
			}
			return st, eris.Wrapf(err, "geo: read %s", name)
		}

		rows := make([]parsedRow, 0, len(block))
		for _, text := range block {
			line++
			if line == 1 {
				if _, err := bw.WriteString(header(text) + "\n"); err != nil {
					return st, eris.Wrap(err, "geo: write header")
				}
				continue
			}
			if text == "" {
				continue
			}
			lon, lat, reason := cols.parse(text)
			if reason != "" {
				return st, &pointset.ParseError{File: name, Line: line, Reason: reason}
			}
			rows = append(rows, parsedRow{line: line, text: text, lon: lon, lat: lat})
		}

		results, err := query.Map(ctx, ex, len(rows), func(i int) (rowResult, error) {
			out, keep, reason := row(rows[i].text, rows[i].lon, rows[i].lat)
			return rowResult{out: out, keep: keep, reason: reason}, nil
		})
		if err != nil {
			return st, eris.Wrapf(err, "geo: rewrite %s", name)
		}

		for i, res := range results {
			if res.reason != "" {
				return st, &pointset.ParseError{File: name, Line: rows[i].line, Reason: res.reason}
			}
			st.Rows++
			if !res.keep {
				continue
			}
			st.Written++
			if _, err := bw.WriteString(res.out + "\n"); err != nil {
				return st, eris.Wrap(err, "geo: write row")
			}
		}
	}

	return st, eris.Wrap(bw.Flush(), "geo: flush")
}

func (c Columns) parse(text string) (lon, lat float64, reason string) {
	fields := record.Split(text)
	if need := max(c.Lon, c.Lat) + 1; len(fields) < need {
		return 0, 0, fmt.Sprintf("expected at least %d fields, got %d", need, len(fields))
	}
	lon, reason = parseCoord(fields[c.Lon], "lon")
	if reason != "" {
		return 0, 0, reason
	}
	lat, reason = parseCoord(fields[c.Lat], "lat")
	return lon, lat, reason
}

func parseCoord(field, column string) (float64, string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, fmt.Sprintf("invalid %s %q", column, field)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Sprintf("non-finite %s %q", column, field)
	}
	return v, ""
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
