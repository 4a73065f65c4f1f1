// Package geofence decides when a moving subject crosses a fence boundary
// and turns those crossings into alerts.
package geofence

import (
	"encoding/json"
	"fmt"

	"github.com/aydetodd/todocerca-tracking/internal/geo"
	"github.com/aydetodd/todocerca-tracking/internal/model"
)

// Transition is a boundary crossing direction.
type Transition string

const (
	Enter Transition = "enter"
	Exit  Transition = "exit"
)

// Evaluate compares the previous and current positions against one fence
// and reports a transition, if any. It is a pure function: tracking the
// previous position per (subject, fence) pair is the caller's job.
//
// A transition fires only on a containment change (steady-state inside or
// outside never fires) and only in the directions the fence has enabled.
// With no previous position there is nothing to compare, so nothing fires.
func Evaluate(g model.Geofence, prev *geo.LatLng, cur geo.LatLng) (Transition, bool) {
	if prev == nil {
		return "", false
	}
	wasInside, err := Contains(g, *prev)
	if err != nil {
		return "", false
	}
	isInside, err := Contains(g, cur)
	if err != nil {
		return "", false
	}

	switch {
	case !wasInside && isInside && g.AlertOnEnter:
		return Enter, true
	case wasInside && !isInside && g.AlertOnExit:
		return Exit, true
	}
	return "", false
}

// Contains reports whether pt lies inside the fence.
func Contains(g model.Geofence, pt geo.LatLng) (bool, error) {
	switch g.Kind {
	case model.GeofenceCircle:
		center := geo.LatLng{Lat: g.CenterLat, Lng: g.CenterLng}
		return geo.Distance(center, pt) <= g.RadiusM, nil
	case model.GeofencePolygon:
		vertices, err := DecodeVertices(g.Vertices)
		if err != nil {
			return false, err
		}
		return geo.InPolygon(pt, vertices), nil
	default:
		return false, fmt.Errorf("unknown geofence kind %q", g.Kind)
	}
}

// DecodeVertices parses the stored [[lat,lng],...] vertex list.
func DecodeVertices(raw string) ([]geo.LatLng, error) {
	var pairs [][]float64
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, fmt.Errorf("malformed vertex list: %w", err)
	}
	vertices := make([]geo.LatLng, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("vertex %d: expected [lat,lng] pair", i)
		}
		vertices = append(vertices, geo.LatLng{Lat: pair[0], Lng: pair[1]})
	}
	return vertices, nil
}

// EncodeVertices serializes a vertex list for storage.
func EncodeVertices(vertices []geo.LatLng) (string, error) {
	pairs := make([][]float64, 0, len(vertices))
	for _, v := range vertices {
		pairs = append(pairs, []float64{v.Lat, v.Lng})
	}
	raw, err := json.Marshal(pairs)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
