package aggregate

import (
	"math"
	"slices"
)

// Quantile returns the q-quantile of sorted (ascending) using linear
// interpolation between order statistics: h = (n-1)q, result =
// x[floor h] + (h - floor h)(x[floor h + 1] - x[floor h]). It returns NaN for
// an empty input.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 || q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * q
	lo := int(math.Floor(h))
	frac := h - float64(lo)
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Q3 returns the upper quartile of values without modifying them.
func Q3(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return Quantile(sorted, 0.75)
}

// BoxSummary is the five-number summary drawn by a box plot. Fences sit
// 1.5 IQR beyond the quartiles; Outliers counts values beyond either fence.
type BoxSummary struct {
	LowerFence float64
	Q1         float64
	Median     float64
	Q3         float64
	UpperFence float64
	Outliers   int
}

// Box summarizes values. The zero BoxSummary is returned for an empty input.
func Box(values []float64) BoxSummary {
	if len(values) == 0 {
		return BoxSummary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	b := BoxSummary{
		Q1:     Quantile(sorted, 0.25),
		Median: Quantile(sorted, 0.5),
		Q3:     Quantile(sorted, 0.75),
	}
	iqr := b.Q3 - b.Q1
	b.LowerFence = b.Q1 - 1.5*iqr
	b.UpperFence = b.Q3 + 1.5*iqr
	for _, v := range sorted {
		if v < b.LowerFence || v > b.UpperFence {
			b.Outliers++
		}
	}
	return b
}
