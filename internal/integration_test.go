package internal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aydetodd/todocerca-tracking/config"
	"github.com/aydetodd/todocerca-tracking/internal/bus"
	"github.com/aydetodd/todocerca-tracking/internal/db"
	"github.com/aydetodd/todocerca-tracking/internal/fanout"
	"github.com/aydetodd/todocerca-tracking/internal/geofence"
	"github.com/aydetodd/todocerca-tracking/internal/model"
	"github.com/aydetodd/todocerca-tracking/internal/position"
	"github.com/aydetodd/todocerca-tracking/internal/presence"
	"github.com/aydetodd/todocerca-tracking/internal/sink"
	"github.com/aydetodd/todocerca-tracking/internal/store"
	"github.com/aydetodd/todocerca-tracking/internal/tracking"
)

// TestTrackingLifecycle drives the whole pipeline end to end: the local
// tracking loop feeds the sink, the hub fans snapshots out, the detector
// raises a geofence alert on a boundary crossing, and the offline toggle
// halts everything.
func TestTrackingLifecycle(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(testDB))

	st := store.NewGormStore(testDB)
	changeBus := bus.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Seed the provider, its group, and a circle fence around the start
	// position that alerts on exit.
	require.NoError(t, testDB.Create(&model.TrackingGroup{ID: "grp-1", Name: "Fleet", OwnerID: "owner-1"}).Error)
	require.NoError(t, testDB.Create(&model.Provider{
		SubjectID: "subj-1", DisplayName: "Unit 1", Role: model.RoleProvider, GroupID: "grp-1",
	}).Error)
	require.NoError(t, st.SaveGeofence(ctx, model.Geofence{
		ID: "gf-depot", GroupID: "grp-1", Name: "depot", Kind: model.GeofenceCircle,
		CenterLat: 20.0, CenterLng: -103.0, RadiusM: 500, AlertOnExit: true, IsActive: true,
	}))

	pres := presence.New(st, changeBus)
	go pres.Run(ctx)

	sk := sink.New(st, changeBus, time.Millisecond)

	detector := geofence.NewDetector(st, changeBus, nil)
	go detector.Run(ctx)

	hub := fanout.NewHub(st, changeBus, config.FanoutConfig{
		PollInterval:  time.Hour,
		MinRefreshGap: time.Millisecond,
	})
	go hub.Run(ctx)

	src := position.NewStatic(position.Fix{Latitude: 20.0, Longitude: -103.0}, 10*time.Millisecond)
	ctrl := tracking.New(config.TrackingConfig{
		Enabled:           true,
		SubjectID:         "subj-1",
		GroupID:           "grp-1",
		Role:              "provider",
		PollInterval:      10 * time.Millisecond,
		SuperviseInterval: 50 * time.Millisecond,
	}, src, sk, pres, nil)
	go ctrl.Run(ctx)

	// Phase 1: the loop comes up and the hub shows the provider.
	sub := hub.Subscribe(fanout.Scope{GroupID: "grp-1"})
	defer sub.Close()

	require.Eventually(t, func() bool { return ctrl.State() == tracking.Running }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		select {
		case snaps := <-sub.C:
			return len(snaps) == 1 && snaps[0].SubjectID == "subj-1"
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	// Phase 2: the device moves ~1.1km north, past the fence boundary.
	src.Push(position.Fix{Latitude: 20.01, Longitude: -103.0})

	require.Eventually(t, func() bool {
		alerts, err := st.AlertsByGroup(ctx, "grp-1", true)
		return err == nil && len(alerts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	alerts, err := st.AlertsByGroup(ctx, "grp-1", true)
	require.NoError(t, err)
	assert.Equal(t, model.AlertGeofenceExit, alerts[0].Kind)
	assert.Equal(t, "subj-1", alerts[0].SubjectID)
	assert.Equal(t, "gf-depot", alerts[0].GeofenceID)

	// Staying outside must not raise a second alert.
	time.Sleep(100 * time.Millisecond)
	alerts, err = st.AlertsByGroup(ctx, "grp-1", true)
	require.NoError(t, err)
	assert.Len(t, alerts, 1, "one crossing, one alert")

	// Phase 3: the provider goes offline. The loop halts synchronously and
	// the next snapshot is empty.
	require.NoError(t, pres.Set(ctx, "subj-1", "subj-1", presence.Offline))
	assert.Equal(t, tracking.Idle, ctrl.State())

	require.Eventually(t, func() bool {
		select {
		case snaps := <-sub.C:
			return len(snaps) == 0
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	var before, after int64
	require.NoError(t, testDB.Model(&model.Position{}).Count(&before).Error)
	p1, err := st.GetPosition(ctx, "subj-1", "grp-1")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, testDB.Model(&model.Position{}).Count(&after).Error)
	p2, err := st.GetPosition(ctx, "subj-1", "grp-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, p1.UpdatedAt, p2.UpdatedAt, "no writes after going offline")
}
