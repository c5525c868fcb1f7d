// Package spatial provides a static nearest-neighbor and radius-count index
// over planar points.
//
// All distances inside the package are squared; callers square a radius once
// and compare squared values. Only Neighbor.Distance takes a square root.
package spatial

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Point is a location in projected meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceSquared returns the squared Euclidean distance between p and q.
func (p Point) DistanceSquared(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// Neighbor is a reference point matched by a query.
type Neighbor struct {
	ID     int     `json:"id"`
	Point  Point   `json:"point"`
	DistSq float64 `json:"dist_sq"`
}

// Distance returns the true distance to the neighbor.
func (n Neighbor) Distance() float64 { return math.Sqrt(n.DistSq) }

// Index is an immutable k-d tree over a set of reference points. It is safe
// for concurrent queries once built.
type Index struct {
	tree *kdtree.Tree
	n    int
}

// Build bulk-loads an index over a copy of pts. Point i keeps id i.
func Build(pts []Point) *Index {
	idx := &Index{n: len(pts)}
	if len(pts) == 0 {
		return idx
	}
	ns := make(nodes, len(pts))
	for i, p := range pts {
		ns[i] = node{Point: p, id: i}
	}
	idx.tree = kdtree.New(ns, false)
	return idx
}

// Len returns the number of indexed points.
func (idx *Index) Len() int { return idx.n }

// Nearest returns the closest reference point to p. ok is false when the
// index is empty.
func (idx *Index) Nearest(p Point) (Neighbor, bool) {
	if idx.tree == nil {
		return Neighbor{}, false
	}
	c, d := idx.tree.Nearest(node{Point: p})
	if c == nil {
		return Neighbor{}, false
	}
	nd := c.(node)
	return Neighbor{ID: nd.id, Point: nd.Point, DistSq: d}, true
}

// NearestDistSq returns the squared distance from p to the closest reference
// point, or +Inf on an empty index.
func (idx *Index) NearestDistSq(p Point) float64 {
	nb, ok := idx.Nearest(p)
	if !ok {
		return math.Inf(1)
	}
	return nb.DistSq
}

// CountWithin returns how many reference points lie within radius of p,
// boundary inclusive.
func (idx *Index) CountWithin(p Point, radius float64) int {
	return idx.CountWithinSq(p, radius*radius)
}

// CountWithinSq is CountWithin with a pre-squared radius.
func (idx *Index) CountWithinSq(p Point, r2 float64) int {
	if idx.tree == nil || r2 < 0 || math.IsNaN(r2) {
		return 0
	}
	k := &radiusKeeper{r2: r2}
	idx.tree.NearestSet(k, node{Point: p})
	return k.count
}

// Within returns the reference points within radius of p ordered by
// distance, ties broken by id.
func (idx *Index) Within(p Point, radius float64) []Neighbor {
	r2 := radius * radius
	if idx.tree == nil || r2 < 0 || math.IsNaN(r2) {
		return nil
	}
	k := &radiusKeeper{r2: r2, collect: true}
	idx.tree.NearestSet(k, node{Point: p})
	sort.Slice(k.hits, func(i, j int) bool {
		if k.hits[i].DistSq != k.hits[j].DistSq {
			return k.hits[i].DistSq < k.hits[j].DistSq
		}
		return k.hits[i].ID < k.hits[j].ID
	})
	return k.hits
}

// node is a kdtree.Comparable carrying the load-order id.
type node struct {
	Point
	id int
}

func (n node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(node)
	switch d {
	case 0:
		return n.X - q.X
	case 1:
		return n.Y - q.Y
	default:
		panic("spatial: illegal dimension")
	}
}

func (n node) Dims() int { return 2 }

// Distance is squared, as kdtree expects.
func (n node) Distance(c kdtree.Comparable) float64 {
	return n.DistanceSquared(c.(node).Point)
}

type nodes []node

func (ns nodes) Index(i int) kdtree.Comparable         { return ns[i] }
func (ns nodes) Len() int                              { return len(ns) }
func (ns nodes) Pivot(d kdtree.Dim) int                { return plane{nodes: ns, Dim: d}.Pivot() }
func (ns nodes) Slice(start, end int) kdtree.Interface { return ns[start:end] }

type plane struct {
	kdtree.Dim
	nodes
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.nodes[i].X < p.nodes[j].X
	case 1:
		return p.nodes[i].Y < p.nodes[j].Y
	default:
		panic("spatial: illegal dimension")
	}
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.nodes = p.nodes[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i]
}

// radiusKeeper is a kdtree.Keeper with a fixed search radius. It never
// retains anything on its heap, so NearestSet has nothing to sort; matches
// are counted (and optionally collected) as they are offered.
type radiusKeeper struct {
	r2      float64
	count   int
	collect bool
	hits    []Neighbor
}

func (k *radiusKeeper) Keep(c kdtree.ComparableDist) {
	if c.Dist > k.r2 {
		return
	}
	k.count++
	if k.collect {
		nd := c.Comparable.(node)
		k.hits = append(k.hits, Neighbor{ID: nd.id, Point: nd.Point, DistSq: c.Dist})
	}
}

func (k *radiusKeeper) Max() kdtree.ComparableDist {
	return kdtree.ComparableDist{Dist: k.r2}
}

func (k *radiusKeeper) Len() int           { return 0 }
func (k *radiusKeeper) Less(i, j int) bool { return false }
func (k *radiusKeeper) Swap(i, j int)      {}
func (k *radiusKeeper) Push(x any)         {}
func (k *radiusKeeper) Pop() any           { return nil }
