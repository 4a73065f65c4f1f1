// Package geo holds the small amount of geodesy the tracking core needs:
// great-circle distance for circular geofences and an even-odd
// point-in-polygon test for polygonal ones.
package geo

import (
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean earth radius used for distance conversion.
const EarthRadiusMeters = 6371000.0

// LatLng is a point in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point is inside the WGS84 coordinate domain.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b LatLng) float64 {
	pa := s2.LatLngFromDegrees(a.Lat, a.Lng)
	pb := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return pa.Distance(pb).Radians() * EarthRadiusMeters
}

// InPolygon reports whether pt lies inside the polygon described by the
// ordered vertex list, using the even-odd rule. The polygon is implicitly
// closed (last vertex connects back to the first). Degenerate polygons with
// fewer than three vertices contain nothing.
func InPolygon(pt LatLng, vertices []LatLng) bool {
	if len(vertices) < 3 {
		return false
	}
	inside := false
	j := len(vertices) - 1
	for i := 0; i < len(vertices); i++ {
		vi, vj := vertices[i], vertices[j]
		if (vi.Lat > pt.Lat) != (vj.Lat > pt.Lat) {
			x := (vj.Lng-vi.Lng)*(pt.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lng
			if pt.Lng < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
