package report

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sink receives a finished table.
type Sink interface {
	Put(ctx context.Context, t *Table) error
}

// Formats accepted by NewFileSink.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// CSVSink writes tables as CSV to W.
type CSVSink struct {
	W io.Writer
}

// Put implements Sink.
func (s *CSVSink) Put(_ context.Context, t *Table) error {
	return WriteCSV(s.W, t)
}

// XLSXSink saves each table as a one-sheet workbook at Path.
type XLSXSink struct {
	Path string
}

// Put implements Sink.
func (s *XLSXSink) Put(_ context.Context, t *Table) error {
	f, err := NewWorkbook(t)
	if err != nil {
		return err
	}
	return WriteFile(s.Path, func(w io.Writer) error {
		if err := f.Write(w); err != nil {
			return eris.Wrapf(err, "report: save %s", s.Path)
		}
		return nil
	})
}

// NewWorkbook lays t out on a sheet named after the table. Cells that parse
// as numbers are stored as numbers.
func NewWorkbook(t *Table) (*xlsx.File, error) {
	name := t.Name
	if name == "" {
		name = "result"
	}
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "report: add sheet %s", name)
	}

	row := sheet.AddRow()
	for _, h := range t.Header {
		row.AddCell().SetString(h)
	}
	for _, rec := range t.Records {
		row := sheet.AddRow()
		for _, v := range rec {
			cell := row.AddCell()
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				cell.SetFloat(n)
			} else {
				cell.SetString(v)
			}
		}
	}
	return f, nil
}

// ResultSaver persists a finished table against a run.
type ResultSaver interface {
	SaveResult(ctx context.Context, runID string, header []string, records [][]string) error
}

// StoreSink records tables against RunID in a run store.
type StoreSink struct {
	Store ResultSaver
	RunID string
}

// Put implements Sink.
func (s *StoreSink) Put(ctx context.Context, t *Table) error {
	if err := s.Store.SaveResult(ctx, s.RunID, t.Header, t.Records); err != nil {
		return eris.Wrapf(err, "report: record run %s", s.RunID)
	}
	return nil
}

// Multi fans a table out to every sink in order, stopping at the first
// failure.
type Multi []Sink

// Put implements Sink.
func (m Multi) Put(ctx context.Context, t *Table) error {
	for _, s := range m {
		if err := s.Put(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// CSVFileSink writes the table to Path as CSV. Path is only replaced once
// the whole table has been written.
type CSVFileSink struct {
	Path string
}

// Put implements Sink.
func (s *CSVFileSink) Put(_ context.Context, t *Table) error {
	return WriteFile(s.Path, func(w io.Writer) error {
		return WriteCSV(w, t)
	})
}

// WriteFile hands write a temporary file beside path and renames it over
// path once write succeeds. On failure the temporary file is removed and
// path keeps its previous content, if any.
func WriteFile(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrapf(err, "report: create temp file for %s", path)
	}

	if err := write(tmp); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrapf(err, "report: close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrapf(err, "report: rename output to %s", path)
	}
	return nil
}

// NewFileSink returns the sink for an output format. An empty path sends
// CSV to stdout; xlsx needs a path.
func NewFileSink(format, path string, stdout io.Writer) (Sink, error) {
	switch format {
	case "", FormatCSV:
		if path == "" {
			return &CSVSink{W: stdout}, nil
		}
		return &CSVFileSink{Path: path}, nil
	case FormatXLSX:
		if path == "" {
			return nil, eris.New("report: xlsx output needs an output path")
		}
		return &XLSXSink{Path: path}, nil
	default:
		return nil, eris.Errorf("report: unknown format %q (want csv or xlsx)", format)
	}
}
