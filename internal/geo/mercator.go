// Package geo projects lon/lat coordinates into Web Mercator meters and
// clips raw population grids to administrative boundaries.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
)

const (
	// EarthRadius is the WGS84 semi-major axis used by EPSG:3857.
	EarthRadius = 6378137.0
	// MaxLatitude is the latitude at which the Web Mercator square ends.
	MaxLatitude = 85.05112877980659
)

// Mercator projects a WGS84 lon/lat pair (EPSG:4326, degrees) into Web
// Mercator meters (EPSG:3857).
func Mercator(lon, lat float64) (x, y float64, err error) {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return 0, 0, eris.Errorf("geo: non-finite coordinate (%v, %v)", lon, lat)
	}
	if lon < -180 || lon > 180 {
		return 0, 0, eris.Errorf("geo: longitude %v out of range", lon)
	}
	if lat < -MaxLatitude || lat > MaxLatitude {
		return 0, 0, eris.Errorf("geo: latitude %v outside web mercator bounds", lat)
	}
	x = EarthRadius * lon * math.Pi / 180
	y = EarthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y, nil
}
