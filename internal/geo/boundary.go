package geo

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
	"go.uber.org/zap"
)

// Boundary is a set of polygons a point can fall inside of. Holes are
// honoured and points on any ring are outside.
type Boundary struct {
	polygons []*geom.Polygon
	bounds   []*geom.Bounds
	extent   *geom.Bounds
	skipped  int
}

// NewBoundary collects every polygon in gs. Geometry collections are walked
// recursively; points and lines are skipped.
func NewBoundary(gs ...geom.T) (*Boundary, error) {
	b := &Boundary{extent: geom.NewBounds(geom.XY)}
	for _, g := range gs {
		b.add(g)
	}
	if len(b.polygons) == 0 {
		return nil, eris.New("geo: boundary contains no polygons")
	}
	if b.skipped > 0 {
		zap.L().Debug("geo: skipped non-polygon geometries", zap.Int("skipped", b.skipped))
	}
	return b, nil
}

func (b *Boundary) add(g geom.T) {
	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			b.skipped++
			return
		}
		b.polygons = append(b.polygons, t)
		b.bounds = append(b.bounds, t.Bounds())
		b.extent.Extend(t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			b.add(t.Polygon(i))
		}
	case *geom.GeometryCollection:
		for _, child := range t.Geoms() {
			b.add(child)
		}
	default:
		b.skipped++
	}
}

// Len returns the number of polygons.
func (b *Boundary) Len() int { return len(b.polygons) }

// Extent returns the bounding box of every polygon.
func (b *Boundary) Extent() *geom.Bounds { return b.extent }

// Contains reports whether (x, y) lies strictly inside any polygon.
func (b *Boundary) Contains(x, y float64) bool {
	p := geom.Coord{x, y}
	if !b.extent.OverlapsPoint(geom.XY, p) {
		return false
	}
	for i, poly := range b.polygons {
		if !b.bounds[i].OverlapsPoint(geom.XY, p) {
			continue
		}
		if polygonContains(poly, p) {
			return true
		}
	}
	return false
}

func polygonContains(poly *geom.Polygon, p geom.Coord) bool {
	layout := poly.Layout()
	if xy.LocatePointInRing(layout, p, poly.LinearRing(0).FlatCoords()) != location.Interior {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		if xy.LocatePointInRing(layout, p, poly.LinearRing(i).FlatCoords()) != location.Exterior {
			return false
		}
	}
	return true
}

// LoadBoundary reads polygons from a GeoJSON file, an ESRI shapefile, or a
// zip archive holding a shapefile. The format follows the extension.
func LoadBoundary(path string) (*Boundary, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return ReadShapefile(path)
	case ".zip":
		return readZippedShapefile(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: read boundary %s", path)
		}
		b, err := DecodeGeoJSON(data)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: decode %s", path)
		}
		return b, nil
	}
}

// DecodeGeoJSON accepts a FeatureCollection, a single Feature or a bare
// geometry object.
func DecodeGeoJSON(data []byte) (*Boundary, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrap(err, "geo: parse geojson")
	}

	switch head.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, eris.Wrap(err, "geo: parse feature collection")
		}
		gs := make([]geom.T, 0, len(fc.Features))
		for _, f := range fc.Features {
			if f.Geometry != nil {
				gs = append(gs, f.Geometry)
			}
		}
		return NewBoundary(gs...)
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "geo: parse feature")
		}
		return NewBoundary(f.Geometry)
	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, eris.Wrapf(err, "geo: parse geometry %q", head.Type)
		}
		return NewBoundary(g)
	}
}

// ReadShapefile reads every polygon record of a shapefile.
func ReadShapefile(path string) (*Boundary, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var gs []geom.T
	for reader.Next() {
		_, shape := reader.Shape()
		if g := shapeToGeom(shape); g != nil {
			gs = append(gs, g)
		}
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "geo: read shapefile %s", path)
	}
	return NewBoundary(gs...)
}

func readZippedShapefile(path string) (*Boundary, error) {
	dir, err := os.MkdirTemp("", "stationreach-boundary-*")
	if err != nil {
		return nil, eris.Wrap(err, "geo: create extract dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	shpPath, err := extractShapefile(path, dir)
	if err != nil {
		return nil, err
	}
	return ReadShapefile(shpPath)
}

func shapeToGeom(s shp.Shape) geom.T {
	switch shape := s.(type) {
	case *shp.Polygon:
		return polygonToMultiPolygon(shape)
	default:
		return nil
	}
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Clockwise rings start a new polygon; counter-clockwise rings are holes of
// the polygon before them.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var cur *geom.Polygon

	flush := func() {
		if cur == nil {
			return
		}
		if err := mp.Push(cur); err != nil {
			zap.L().Debug("geo: skipping malformed polygon", zap.Error(err))
		}
		cur = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			zap.L().Debug("geo: skipping degenerate ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		hole := cur != nil && xy.IsRingCounterClockwise(geom.XY, flat)
		if !hole {
			flush()
			cur = geom.NewPolygon(geom.XY)
		}
		if err := cur.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("geo: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
