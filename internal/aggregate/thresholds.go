// Package aggregate turns per-point proximity results into distance-sweep
// curves, quartile summaries and quadrant classifications.
package aggregate

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"
)

// Thresholds is an ascending, duplicate-free list of distance thresholds in
// meters.
type Thresholds []float64

// NewThresholds validates, sorts and de-duplicates vals.
func NewThresholds(vals []float64) (Thresholds, error) {
	if len(vals) == 0 {
		return nil, eris.New("aggregate: no thresholds")
	}
	th := slices.Clone(vals)
	for _, v := range th {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, eris.Errorf("aggregate: invalid threshold %v", v)
		}
	}
	slices.Sort(th)
	return slices.Compact(th), nil
}

// MaxThresholds caps how many thresholds a Range may produce.
const MaxThresholds = 10_000

// Range returns the thresholds from, from+step, ... up to and including to.
func Range(from, to, step float64) (Thresholds, error) {
	if step <= 0 || !finite(step) {
		return nil, eris.Errorf("aggregate: invalid step %v", step)
	}
	if from < 0 || !finite(from) || !finite(to) {
		return nil, eris.Errorf("aggregate: invalid range %v..%v", from, to)
	}
	if to < from {
		return nil, eris.Errorf("aggregate: range end %v before start %v", to, from)
	}
	count := math.Floor((to-from)/step+1e-9) + 1
	if count > MaxThresholds {
		return nil, eris.Errorf("aggregate: range %v..%v step %v yields more than %d thresholds", from, to, step, MaxThresholds)
	}
	vals := make([]float64, int(count))
	for i := range vals {
		vals[i] = from + float64(i)*step
	}
	return NewThresholds(vals)
}

// Squared returns every threshold squared, in the same order.
func (th Thresholds) Squared() []float64 {
	sq := make([]float64, len(th))
	for i, t := range th {
		sq[i] = t * t
	}
	return sq
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
