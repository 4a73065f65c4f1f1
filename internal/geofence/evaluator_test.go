package geofence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aydetodd/todocerca-tracking/internal/geo"
	"github.com/aydetodd/todocerca-tracking/internal/model"
)

func circleFence(radiusM float64, onEnter, onExit bool) model.Geofence {
	return model.Geofence{
		ID:           "fence-1",
		Kind:         model.GeofenceCircle,
		CenterLat:    20.0,
		CenterLng:    -103.0,
		RadiusM:      radiusM,
		AlertOnEnter: onEnter,
		AlertOnExit:  onExit,
		IsActive:     true,
	}
}

func TestEvaluateNoPrevious(t *testing.T) {
	g := circleFence(500, true, true)
	_, fired := Evaluate(g, nil, geo.LatLng{Lat: 20.0, Lng: -103.0})
	assert.False(t, fired, "first observation has no previous state to transition from")
}

func TestEvaluateCircleTransitions(t *testing.T) {
	g := circleFence(500, true, true)

	inside := geo.LatLng{Lat: 20.0, Lng: -103.0}
	outside := geo.LatLng{Lat: 20.01, Lng: -103.0} // ~1.1km from center

	testCases := []struct {
		name     string
		prev     geo.LatLng
		cur      geo.LatLng
		expected Transition
		fired    bool
	}{
		{"steady inside", inside, inside, "", false},
		{"steady outside", outside, outside, "", false},
		{"crossing out", inside, outside, Exit, true},
		{"crossing in", outside, inside, Enter, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			transition, fired := Evaluate(g, &tc.prev, tc.cur)
			assert.Equal(t, tc.fired, fired)
			assert.Equal(t, tc.expected, transition)
		})
	}
}

// A track crossing the boundary exactly twice must produce exactly one
// enter and one exit, with no transitions from the interior-only or
// exterior-only stretches.
func TestEvaluateTransitionUniqueness(t *testing.T) {
	g := circleFence(500, true, true)

	track := []geo.LatLng{
		{Lat: 20.0, Lng: -103.0},    // inside
		{Lat: 20.001, Lng: -103.0},  // inside (~111m)
		{Lat: 20.01, Lng: -103.0},   // outside
		{Lat: 20.02, Lng: -103.0},   // outside
		{Lat: 20.0005, Lng: -103.0}, // inside again
	}

	var enters, exits int
	for i := 1; i < len(track); i++ {
		transition, fired := Evaluate(g, &track[i-1], track[i])
		if !fired {
			continue
		}
		switch transition {
		case Enter:
			enters++
		case Exit:
			exits++
		}
	}
	assert.Equal(t, 1, enters)
	assert.Equal(t, 1, exits)
}

// Exit-only fence at (20.0,-103.0), radius 500m: moving out fires the exit
// alert, and the reverse track fires nothing because enter is disabled.
func TestEvaluateExitOnlyFence(t *testing.T) {
	g := circleFence(500, false, true)

	inside := geo.LatLng{Lat: 20.0, Lng: -103.0}
	outside := geo.LatLng{Lat: 20.01, Lng: -103.0}

	transition, fired := Evaluate(g, &inside, outside)
	require.True(t, fired)
	assert.Equal(t, Exit, transition)

	_, fired = Evaluate(g, &outside, inside)
	assert.False(t, fired, "enter alerts are disabled on this fence")
}

func TestEvaluatePolygon(t *testing.T) {
	raw, err := EncodeVertices([]geo.LatLng{
		{Lat: 19.0, Lng: -104.0},
		{Lat: 19.0, Lng: -102.0},
		{Lat: 21.0, Lng: -102.0},
		{Lat: 21.0, Lng: -104.0},
	})
	require.NoError(t, err)

	g := model.Geofence{
		ID:           "poly-1",
		Kind:         model.GeofencePolygon,
		Vertices:     raw,
		AlertOnEnter: true,
		AlertOnExit:  true,
		IsActive:     true,
	}

	inside := geo.LatLng{Lat: 20.0, Lng: -103.0}
	outside := geo.LatLng{Lat: 22.0, Lng: -103.0}

	transition, fired := Evaluate(g, &outside, inside)
	require.True(t, fired)
	assert.Equal(t, Enter, transition)

	transition, fired = Evaluate(g, &inside, outside)
	require.True(t, fired)
	assert.Equal(t, Exit, transition)
}

func TestEvaluateMalformedPolygon(t *testing.T) {
	g := model.Geofence{
		ID:           "bad-poly",
		Kind:         model.GeofencePolygon,
		Vertices:     "not json",
		AlertOnEnter: true,
		AlertOnExit:  true,
	}
	prev := geo.LatLng{Lat: 0, Lng: 0}
	_, fired := Evaluate(g, &prev, geo.LatLng{Lat: 1, Lng: 1})
	assert.False(t, fired)
}

func TestVerticesRoundTrip(t *testing.T) {
	in := []geo.LatLng{{Lat: 1.5, Lng: -2.25}, {Lat: 3, Lng: 4}, {Lat: -5, Lng: 6}}
	raw, err := EncodeVertices(in)
	require.NoError(t, err)
	out, err := DecodeVertices(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeVerticesRejectsBadPairs(t *testing.T) {
	_, err := DecodeVertices(`[[1,2],[3]]`)
	assert.Error(t, err)
}
