package aggregate

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Quadrant is one of the four population/station-count categories.
type Quadrant string

const (
	// Green points are at or below both upper quartiles.
	Green Quadrant = "green"
	// Red points are sparsely populated but station rich.
	Red Quadrant = "red"
	// Orange points are densely populated but station poor.
	Orange Quadrant = "orange"
	// Blue points are above both upper quartiles.
	Blue Quadrant = "blue"
)

// Quadrants lists every category in report order.
var Quadrants = []Quadrant{Green, Red, Orange, Blue}

// ParseQuadrant resolves a category name, case-insensitively.
func ParseQuadrant(s string) (Quadrant, error) {
	q := Quadrant(strings.ToLower(strings.TrimSpace(s)))
	switch q {
	case Green, Red, Orange, Blue:
		return q, nil
	}
	return "", eris.Errorf("aggregate: unknown quadrant %q (want green, red, orange or blue)", s)
}

// Cut holds the upper quartiles that split points into quadrants.
type Cut struct {
	PopulationQ3 float64
	StationsQ3   float64
}

// NewCut computes the upper quartiles of the two dimensions.
func NewCut(population, stations []float64) Cut {
	return Cut{PopulationQ3: Q3(population), StationsQ3: Q3(stations)}
}

// Classify assigns a point to exactly one quadrant. A value equal to its
// quartile counts as low.
func Classify(population, stations float64, cut Cut) Quadrant {
	highPop := population > cut.PopulationQ3
	highStations := stations > cut.StationsQ3
	switch {
	case highPop && highStations:
		return Blue
	case highPop:
		return Orange
	case highStations:
		return Red
	default:
		return Green
	}
}

// QuadrantTally accumulates per-quadrant point counts and population.
type QuadrantTally struct {
	Cut        Cut
	Points     map[Quadrant]int
	Population map[Quadrant]float64
}

// NewQuadrantTally returns an empty tally for cut.
func NewQuadrantTally(cut Cut) *QuadrantTally {
	return &QuadrantTally{
		Cut:        cut,
		Points:     make(map[Quadrant]int, len(Quadrants)),
		Population: make(map[Quadrant]float64, len(Quadrants)),
	}
}

// Add classifies one point and records it.
func (t *QuadrantTally) Add(population, stations float64) {
	q := Classify(population, stations, t.Cut)
	t.Points[q]++
	t.Population[q] += population
}

// Merge folds o into t.
func (t *QuadrantTally) Merge(o *QuadrantTally) {
	for q, n := range o.Points {
		t.Points[q] += n
	}
	for q, p := range o.Population {
		t.Population[q] += p
	}
}

// Rows returns one summary row per quadrant in report order.
func (t *QuadrantTally) Rows() []QuadrantRow {
	rows := make([]QuadrantRow, len(Quadrants))
	for i, q := range Quadrants {
		rows[i] = QuadrantRow{
			Quadrant:     string(q),
			Points:       t.Points[q],
			Population:   t.Population[q],
			PopulationQ3: t.Cut.PopulationQ3,
			StationsQ3:   t.Cut.StationsQ3,
		}
	}
	return rows
}
