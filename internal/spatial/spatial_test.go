package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPoints(rng *rand.Rand, n int, span float64) []Point {
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = Point{X: rng.Float64() * span, Y: rng.Float64() * span}
	}
	return pts
}

func bruteNearest(pts []Point, q Point) float64 {
	best := math.Inf(1)
	for _, p := range pts {
		best = math.Min(best, p.DistanceSquared(q))
	}
	return best
}

func bruteCount(pts []Point, q Point, radius float64) int {
	r2 := radius * radius
	n := 0
	for _, p := range pts {
		if p.DistanceSquared(q) <= r2 {
			n++
		}
	}
	return n
}

func TestIndex_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pts := randomPoints(rng, 500, 10_000)
	idx := Build(pts)
	require.Equal(t, 500, idx.Len())

	for range 200 {
		q := Point{X: rng.Float64()*12_000 - 1_000, Y: rng.Float64()*12_000 - 1_000}

		nb, ok := idx.Nearest(q)
		require.True(t, ok)
		assert.Equal(t, bruteNearest(pts, q), nb.DistSq)
		assert.Equal(t, pts[nb.ID], nb.Point)

		for _, r := range []float64{0, 50, 250, 1_000, 5_000} {
			assert.Equal(t, bruteCount(pts, q, r), idx.CountWithin(q, r), "radius %v", r)
		}
	}
}

func TestIndex_ExactBoundaryIncluded(t *testing.T) {
	idx := Build([]Point{{X: 0, Y: 0}})

	assert.Equal(t, 1, idx.CountWithin(Point{X: 300, Y: 400}, 500))
	assert.Equal(t, 0, idx.CountWithin(Point{X: 300, Y: 400}, 499.999))

	nb, ok := idx.Nearest(Point{X: 300, Y: 400})
	require.True(t, ok)
	assert.Equal(t, 250_000.0, nb.DistSq)
	assert.Equal(t, 500.0, nb.Distance())
}

func TestIndex_BoundaryOnSplitPlane(t *testing.T) {
	// Points on a grid put many of them exactly on splitting planes and
	// exactly on the query radius.
	var pts []Point
	for x := -5; x <= 5; x++ {
		for y := -5; y <= 5; y++ {
			pts = append(pts, Point{X: float64(x * 100), Y: float64(y * 100)})
		}
	}
	idx := Build(pts)
	for _, q := range []Point{{0, 0}, {100, 0}, {-300, 200}, {500, 500}} {
		for _, r := range []float64{100, 200, 300, 500} {
			assert.Equal(t, bruteCount(pts, q, r), idx.CountWithin(q, r), "q=%v r=%v", q, r)
		}
	}
}

func TestIndex_Empty(t *testing.T) {
	idx := Build(nil)

	_, ok := idx.Nearest(Point{X: 1, Y: 1})
	assert.False(t, ok)
	assert.True(t, math.IsInf(idx.NearestDistSq(Point{}), 1))
	assert.Equal(t, 0, idx.CountWithin(Point{}, 1e9))
	assert.Empty(t, idx.Within(Point{}, 1e9))
}

func TestIndex_CountMonotonicInRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	idx := Build(randomPoints(rng, 300, 5_000))

	for range 50 {
		q := Point{X: rng.Float64() * 5_000, Y: rng.Float64() * 5_000}
		prev := 0
		for r := 0.0; r <= 8_000; r += 250 {
			n := idx.CountWithin(q, r)
			assert.GreaterOrEqual(t, n, prev)
			prev = n
		}
		assert.Equal(t, 300, prev)
	}
}

func TestIndex_NearestConsistentWithCount(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	idx := Build(randomPoints(rng, 200, 1_000))

	for range 100 {
		q := Point{X: rng.Float64() * 1_000, Y: rng.Float64() * 1_000}
		d := idx.NearestDistSq(q)
		assert.GreaterOrEqual(t, idx.CountWithinSq(q, d), 1)
		assert.Equal(t, 0, idx.CountWithinSq(q, math.Nextafter(d, 0)))
	}
}

func TestIndex_WithinSorted(t *testing.T) {
	pts := []Point{{X: 30, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 20}, {X: 100, Y: 100}, {X: -10, Y: 0}}
	idx := Build(pts)

	got := idx.Within(Point{}, 30)
	require.Len(t, got, 4)
	assert.Equal(t, []int{1, 4, 2, 0}, []int{got[0].ID, got[1].ID, got[2].ID, got[3].ID})
	assert.Equal(t, 30.0, got[3].Distance())
}

func TestBuild_CopiesInput(t *testing.T) {
	pts := []Point{{X: 1, Y: 1}, {X: 5, Y: 5}}
	idx := Build(pts)
	pts[0] = Point{X: 100, Y: 100}

	nb, ok := idx.Nearest(Point{})
	require.True(t, ok)
	assert.Equal(t, Point{X: 1, Y: 1}, nb.Point)
	assert.Equal(t, 0, nb.ID)
}
