package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aydetodd/todocerca-tracking/config"
	"github.com/aydetodd/todocerca-tracking/internal/bus"
	"github.com/aydetodd/todocerca-tracking/internal/db"
	"github.com/aydetodd/todocerca-tracking/internal/fanout"
	"github.com/aydetodd/todocerca-tracking/internal/model"
	"github.com/aydetodd/todocerca-tracking/internal/presence"
	"github.com/aydetodd/todocerca-tracking/internal/sink"
	"github.com/aydetodd/todocerca-tracking/internal/store"
)

func setupRouter(t *testing.T) (*gin.Engine, store.Store) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	st := store.NewGormStore(gormDB)
	b := bus.New()
	pres := presence.New(st, b)
	sk := sink.New(st, b, time.Millisecond)
	hub := fanout.NewHub(st, b, config.FanoutConfig{PollInterval: time.Hour, MinRefreshGap: time.Millisecond})

	h := NewHandler(st, pres, sk, hub, nil)
	cfg := &config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 1}
	return NewRouter(h, cfg), st
}

func doJSON(t *testing.T, router *gin.Engine, method, path, subject string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		req.Header.Set(subjectHeader, subject)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPostPosition(t *testing.T) {
	router, st := setupRouter(t)

	w := doJSON(t, router, "POST", "/api/positions", "subj-1", gin.H{
		"subject_id": "subj-1",
		"group_id":   "grp-1",
		"latitude":   20.0,
		"longitude":  -103.0,
	})
	assert.Equal(t, http.StatusAccepted, w.Code)

	var count int64
	require.NoError(t, st.DB().Model(&model.Position{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPostPositionRejectsBadCoordinates(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "POST", "/api/positions", "subj-1", gin.H{
		"subject_id": "subj-1",
		"latitude":   95.0,
		"longitude":  -103.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostAndGetHistory(t *testing.T) {
	router, _ := setupRouter(t)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := doJSON(t, router, "POST", "/api/history", "", []gin.H{
		{"tracker_id": "trk-1", "recorded_at": at.Format(time.RFC3339), "latitude": 20.0, "longitude": -103.0},
		{"tracker_id": "trk-1", "recorded_at": at.Add(time.Second).Format(time.RFC3339), "latitude": 20.001, "longitude": -103.0},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	path := fmt.Sprintf("/api/history/trk-1?from=%s&to=%s",
		at.Add(-time.Minute).Format(time.RFC3339), at.Add(time.Minute).Format(time.RFC3339))
	w = doJSON(t, router, "GET", path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var points []model.HistoryPoint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &points))
	assert.Len(t, points, 2)
}

func TestGetHistoryRejectsBadRange(t *testing.T) {
	router, _ := setupRouter(t)
	w := doJSON(t, router, "GET", "/api/history/trk-1?from=yesterday&to=today", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutPresenceOwnSubject(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "PUT", "/api/presence", "subj-1", gin.H{
		"subject_id": "subj-1", "state": "busy",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "GET", "/api/presence/subj-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subject_id":"subj-1","state":"busy"}`, w.Body.String())
}

func TestPutPresenceForbiddenForOthers(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "PUT", "/api/presence", "intruder", gin.H{
		"subject_id": "subj-1", "state": "offline",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPutPresenceRejectsUnknownState(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "PUT", "/api/presence", "subj-1", gin.H{
		"subject_id": "subj-1", "state": "away",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func seedGroup(t *testing.T, st store.Store, id, owner string) {
	t.Helper()
	require.NoError(t, st.DB().Create(&model.TrackingGroup{ID: id, Name: "Group " + id, OwnerID: owner}).Error)
}

func TestGeofenceLifecycle(t *testing.T) {
	router, st := setupRouter(t)
	seedGroup(t, st, "grp-1", "owner-1")

	// Non-owner cannot create.
	body := gin.H{
		"group_id": "grp-1", "name": "depot", "kind": "circle",
		"center_lat": 20.0, "center_lng": -103.0, "radius_m": 500.0,
		"alert_on_exit": true,
	}
	w := doJSON(t, router, "POST", "/api/geofences", "not-owner", body)
	require.Equal(t, http.StatusForbidden, w.Code)

	// Owner creates.
	w = doJSON(t, router, "POST", "/api/geofences", "owner-1", body)
	require.Equal(t, http.StatusCreated, w.Code)
	var created model.Geofence
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.True(t, created.AlertOnExit)

	// Owner assigns devices.
	w = doJSON(t, router, "PUT", "/api/geofences/"+created.ID+"/assignments", "owner-1", gin.H{
		"subject_ids": []string{"dev-1", "dev-2"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Listing shows the fence.
	w = doJSON(t, router, "GET", "/api/groups/grp-1/geofences", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fences []model.Geofence
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fences))
	require.Len(t, fences, 1)

	// Owner deletes; assignments go with it.
	w = doJSON(t, router, "DELETE", "/api/geofences/"+created.ID, "owner-1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	var count int64
	require.NoError(t, st.DB().Model(&model.GeofenceAssignment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPostGeofenceValidation(t *testing.T) {
	router, st := setupRouter(t)
	seedGroup(t, st, "grp-1", "owner-1")

	// Circle with no radius.
	w := doJSON(t, router, "POST", "/api/geofences", "owner-1", gin.H{
		"group_id": "grp-1", "kind": "circle", "center_lat": 20.0, "center_lng": -103.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Polygon with two vertices.
	w = doJSON(t, router, "POST", "/api/geofences", "owner-1", gin.H{
		"group_id": "grp-1", "kind": "polygon",
		"vertices": []gin.H{{"lat": 1.0, "lng": 1.0}, {"lat": 2.0, "lng": 2.0}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlertsEndpoints(t *testing.T) {
	router, st := setupRouter(t)
	require.NoError(t, st.CreateAlert(context.Background(), &model.Alert{
		ID: "alert-1", SubjectID: "subj-1", GroupID: "grp-1",
		Kind: model.AlertGeofenceExit, Message: "subj-1 left zone depot",
	}))

	w := doJSON(t, router, "GET", "/api/alerts?group_id=grp-1&unresolved=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var alerts []model.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)

	w = doJSON(t, router, "POST", "/api/alerts/alert-1/read", "", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, router, "POST", "/api/alerts/alert-1/resolve", "", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, "GET", "/api/alerts?group_id=grp-1&unresolved=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alerts))
	assert.Empty(t, alerts)
}

func TestGetAlertsRequiresGroup(t *testing.T) {
	router, _ := setupRouter(t)
	w := doJSON(t, router, "GET", "/api/alerts", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProvidersShowsActiveOnly(t *testing.T) {
	router, st := setupRouter(t)

	for i, sub := range []struct {
		id    string
		state string
	}{{"prov-1", "available"}, {"prov-2", "offline"}} {
		require.NoError(t, st.DB().Create(&model.Provider{
			SubjectID: sub.id, DisplayName: sub.id, Role: model.RoleProvider,
		}).Error)
		require.NoError(t, st.SavePresence(context.Background(), model.PresenceRecord{
			SubjectID: sub.id, State: sub.state, UpdatedAt: time.Now().UTC(),
		}))
		require.NoError(t, st.UpsertPosition(context.Background(), model.Position{
			SubjectID: sub.id, Latitude: 20.0 + float64(i), Longitude: -103.0, RecordedAt: time.Now().UTC(),
		}))
	}

	w := doJSON(t, router, "GET", "/api/providers", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snaps []store.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, "prov-1", snaps[0].SubjectID)
}
