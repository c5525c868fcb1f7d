package aggregate

import (
	"sort"

	"github.com/rotisserie/eris"
)

// ErrNoPopulation is returned when the total population weight is zero and
// no proportion can be formed.
var ErrNoPopulation = eris.New("aggregate: total population is zero")

// Coverage accumulates, for every threshold, the population whose nearest
// station lies within it. Each point lands in exactly one histogram bin, the
// first threshold that covers it; Rows turns the histogram into cumulative
// sums. The total counts every point, covered or not.
type Coverage struct {
	th    Thresholds
	sq    []float64
	bins  []float64
	total float64
}

// NewCoverage returns an empty accumulator over th.
func NewCoverage(th Thresholds) *Coverage {
	return &Coverage{th: th, sq: th.Squared(), bins: make([]float64, len(th))}
}

// Add records a point of the given weight whose nearest station is distSq
// away (squared).
func (c *Coverage) Add(weight, distSq float64) {
	c.total += weight
	if k := sort.SearchFloat64s(c.sq, distSq); k < len(c.bins) {
		c.bins[k] += weight
	}
}

// Merge folds o into c. Both must share the same thresholds.
func (c *Coverage) Merge(o *Coverage) {
	c.total += o.total
	for k, w := range o.bins {
		c.bins[k] += w
	}
}

// Total returns the unfiltered population weight.
func (c *Coverage) Total() float64 { return c.total }

// Covered returns the population within th[k] of a station.
func (c *Coverage) Covered(k int) float64 {
	var sum float64
	for _, w := range c.bins[:k+1] {
		sum += w
	}
	return sum
}

// Rows returns one proportion row per threshold in ascending order.
func (c *Coverage) Rows() ([]ProportionRow, error) {
	if c.total == 0 {
		return nil, ErrNoPopulation
	}
	rows := make([]ProportionRow, len(c.th))
	var covered float64
	for k, t := range c.th {
		covered += c.bins[k]
		rows[k] = ProportionRow{MaxDist: t, Prop: min(covered/c.total, 1)}
	}
	return rows, nil
}
