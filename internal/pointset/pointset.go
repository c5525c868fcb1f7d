// Package pointset loads station and population point sets from
// comma-separated files.
package pointset

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/stationreach/internal/record"
	"github.com/sells-group/stationreach/internal/spatial"
)

// NoColumn marks an optional column as absent.
const NoColumn = -1

// Layout names the zero-based columns a point file uses.
type Layout struct {
	X      int `mapstructure:"x" json:"x"`
	Y      int `mapstructure:"y" json:"y"`
	Weight int `mapstructure:"weight" json:"weight"`
	Name   int `mapstructure:"name" json:"name"`
}

// PopulationLayout is the lat,lon,pop,x,y layout of the gridded population
// files.
var PopulationLayout = Layout{X: 3, Y: 4, Weight: 2, Name: NoColumn}

// StationLayout is the name,lat,lon,x,y layout of the station files.
var StationLayout = Layout{X: 3, Y: 4, Weight: NoColumn, Name: 0}

// MinFields returns the number of fields a data row needs.
func (l Layout) MinFields() int {
	n := max(l.X, l.Y, l.Weight, l.Name)
	return n + 1
}

// Validate checks that the coordinate columns are set and distinct.
func (l Layout) Validate() error {
	if l.X < 0 || l.Y < 0 {
		return eris.New("pointset: layout needs x and y columns")
	}
	if l.X == l.Y {
		return eris.Errorf("pointset: x and y share column %d", l.X)
	}
	return nil
}

// Station is a reference point. Its identity is its position in load order.
type Station struct {
	Name  string
	Point spatial.Point
}

// Resident is a weighted query point.
type Resident struct {
	Point  spatial.Point
	Weight float64
}

// ParseError reports a malformed data row.
type ParseError struct {
	File   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pointset: %s:%d: %s", e.File, e.Line, e.Reason)
}

// LoadStations reads every station in the file at path.
func LoadStations(path string, layout Layout) ([]Station, error) {
	return loadFile(path, layout, parseStation)
}

// LoadPopulation reads every resident in the file at path.
func LoadPopulation(path string, layout Layout) ([]Resident, error) {
	return loadFile(path, layout, parseResident)
}

// ParseResident parses a single data line. ok is false for an empty line.
func ParseResident(line string, layout Layout) (r Resident, ok bool, err error) {
	if record.TrimEOL(line) == "" {
		return Resident{}, false, nil
	}
	r, reason := parseResident(record.Split(line), layout)
	if reason != "" {
		return Resident{}, false, eris.New("pointset: " + reason)
	}
	return r, true, nil
}

// ParseResidentAt parses data line number line of file. Failures are
// reported as *ParseError.
func ParseResidentAt(file string, line int, text string, layout Layout) (Resident, bool, error) {
	if record.TrimEOL(text) == "" {
		return Resident{}, false, nil
	}
	r, reason := parseResident(record.Split(text), layout)
	if reason != "" {
		return Resident{}, false, &ParseError{File: file, Line: line, Reason: reason}
	}
	return r, true, nil
}

// ParseStation parses a single data line. ok is false for an empty line.
func ParseStation(line string, layout Layout) (s Station, ok bool, err error) {
	if record.TrimEOL(line) == "" {
		return Station{}, false, nil
	}
	s, reason := parseStation(record.Split(line), layout)
	if reason != "" {
		return Station{}, false, eris.New("pointset: " + reason)
	}
	return s, true, nil
}

// TotalPopulation sums every weight.
func TotalPopulation(residents []Resident) float64 {
	var total float64
	for _, r := range residents {
		total += r.Weight
	}
	return total
}

// Points returns the station coordinates in load order.
func Points(stations []Station) []spatial.Point {
	pts := make([]spatial.Point, len(stations))
	for i, s := range stations {
		pts[i] = s.Point
	}
	return pts
}

// StripBOM wraps r so that a leading UTF-8 byte-order mark is dropped.
func StripBOM(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(transform.Nop))
}

// parseFunc turns the fields of one data row into a value, or returns a
// non-empty reason when the row is malformed.
type parseFunc[T any] func(fields []string, layout Layout) (T, string)

func loadFile[T any](path string, layout Layout, parse parseFunc[T]) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pointset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return read(f, path, layout, parse)
}

func read[T any](r io.Reader, name string, layout Layout, parse parseFunc[T]) ([]T, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	sc := bufio.NewScanner(StripBOM(r))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []T
	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			continue
		}
		text := record.TrimEOL(sc.Text())
		if text == "" {
			continue
		}
		v, reason := parse(record.Split(text), layout)
		if reason != "" {
			return nil, &ParseError{File: name, Line: line, Reason: reason}
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "pointset: read %s", name)
	}
	return out, nil
}

func parseStation(fields []string, layout Layout) (Station, string) {
	p, reason := parsePoint(fields, layout)
	if reason != "" {
		return Station{}, reason
	}
	s := Station{Point: p}
	if layout.Name >= 0 {
		s.Name = fields[layout.Name]
	}
	return s, ""
}

func parseResident(fields []string, layout Layout) (Resident, string) {
	p, reason := parsePoint(fields, layout)
	if reason != "" {
		return Resident{}, reason
	}
	r := Resident{Point: p}
	if layout.Weight >= 0 {
		w, reason := parseFloat(fields[layout.Weight], "weight")
		if reason != "" {
			return Resident{}, reason
		}
		if w < 0 {
			return Resident{}, fmt.Sprintf("negative weight %v", w)
		}
		r.Weight = w
	}
	return r, ""
}

func parsePoint(fields []string, layout Layout) (spatial.Point, string) {
	if need := layout.MinFields(); len(fields) < need {
		return spatial.Point{}, fmt.Sprintf("expected at least %d fields, got %d", need, len(fields))
	}
	x, reason := parseFloat(fields[layout.X], "x")
	if reason != "" {
		return spatial.Point{}, reason
	}
	y, reason := parseFloat(fields[layout.Y], "y")
	if reason != "" {
		return spatial.Point{}, reason
	}
	return spatial.Point{X: x, Y: y}, ""
}

func parseFloat(field, column string) (float64, string) {
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Sprintf("invalid %s %q", column, field)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Sprintf("non-finite %s %q", column, field)
	}
	return v, ""
}
