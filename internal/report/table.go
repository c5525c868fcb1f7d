// Package report renders result rows as tables and writes them to CSV,
// spreadsheet or run-store sinks.
package report

import (
	"encoding/csv"
	"io"
	"slices"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// Table is a header plus string records, the common shape every sink
// accepts.
type Table struct {
	Name    string
	Header  []string
	Records [][]string
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.Records) }

// recordCollector is a csvutil.Writer that keeps records in memory.
type recordCollector struct {
	records [][]string
}

func (c *recordCollector) Write(record []string) error {
	c.records = append(c.records, slices.Clone(record))
	return nil
}

func newEncoder(w csvutil.Writer) *csvutil.Encoder {
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = false
	enc.Register(marshalFloat)
	return enc
}

// marshalFloat writes floats in plain decimal, never in exponent form.
func marshalFloat(f float64) ([]byte, error) {
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

// NewTable flattens rows of a csv-tagged struct type into a Table.
func NewTable[T any](name string, rows []T) (*Table, error) {
	var zero T
	header, err := csvutil.Header(zero, "csv")
	if err != nil {
		return nil, eris.Wrapf(err, "report: header for %s", name)
	}

	c := &recordCollector{records: make([][]string, 0, len(rows))}
	enc := newEncoder(c)
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return nil, eris.Wrapf(err, "report: encode %s row %d", name, i)
		}
	}
	return &Table{Name: name, Header: header, Records: c.records}, nil
}

// WriteCSV writes t with its header to w.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	if err := cw.WriteAll(t.Records); err != nil {
		return eris.Wrap(err, "report: write csv records")
	}
	return nil
}

// CSVStream writes rows of one struct type to w as they are produced, for
// results too large to hold as a Table.
type CSVStream[T any] struct {
	cw   *csv.Writer
	enc  *csvutil.Encoder
	rows int
}

// NewCSVStream writes the header for T and returns the stream.
func NewCSVStream[T any](w io.Writer) (*CSVStream[T], error) {
	var zero T
	header, err := csvutil.Header(zero, "csv")
	if err != nil {
		return nil, eris.Wrap(err, "report: stream header")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return nil, eris.Wrap(err, "report: write stream header")
	}
	return &CSVStream[T]{cw: cw, enc: newEncoder(cw)}, nil
}

// Write appends rows.
func (s *CSVStream[T]) Write(rows []T) error {
	for i := range rows {
		if err := s.enc.Encode(rows[i]); err != nil {
			return eris.Wrap(err, "report: encode stream row")
		}
	}
	s.rows += len(rows)
	s.cw.Flush()
	return eris.Wrap(s.cw.Error(), "report: flush stream")
}

// Rows returns the number of rows written so far.
func (s *CSVStream[T]) Rows() int { return s.rows }

// Close flushes buffered output.
func (s *CSVStream[T]) Close() error {
	s.cw.Flush()
	return eris.Wrap(s.cw.Error(), "report: flush stream")
}
