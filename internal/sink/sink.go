// Package sink is the single write path for location fixes. Every producer
// (poll timer, push watch, HTTP ingest) funnels through Write, which
// throttles, validates, and upserts. Redundant producers racing into the
// sink are safe: the upsert is an idempotent overwrite.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/aydetodd/todocerca-tracking/internal/bus"
	"github.com/aydetodd/todocerca-tracking/internal/geo"
	"github.com/aydetodd/todocerca-tracking/internal/model"
	"github.com/aydetodd/todocerca-tracking/internal/position"
	"github.com/aydetodd/todocerca-tracking/internal/store"
)

// ErrInvalidCoordinates is returned for fixes outside the WGS84 domain.
var ErrInvalidCoordinates = errors.New("coordinates out of range")

// Sink debounces and persists location fixes.
type Sink struct {
	store store.Store
	bus   *bus.Bus

	minInterval time.Duration
	roles       *gocache.Cache

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
}

// New creates a sink writing through st and announcing successful writes on b.
func New(st store.Store, b *bus.Bus, minInterval time.Duration) *Sink {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	return &Sink{
		store:       st,
		bus:         b,
		minInterval: minInterval,
		roles:       gocache.New(5*time.Minute, 10*time.Minute),
		limiters:    make(map[string]*rate.Limiter),
		lastSeen:    make(map[string]time.Time),
	}
}

// Write persists one fix for a subject. Writes arriving faster than the
// minimum interval for the same (subject, group) pair are silently dropped,
// as are fixes older than the newest one seen this session; neither is an
// error, the throttle is a soft client-side guard only. Provider subjects
// additionally get a best-effort mirror write to the provider map table.
func (s *Sink) Write(ctx context.Context, subjectID, groupID string, fix position.Fix) error {
	pt := geo.LatLng{Lat: fix.Latitude, Lng: fix.Longitude}
	if !pt.Valid() {
		return fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinates, fix.Latitude, fix.Longitude)
	}
	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = time.Now().UTC()
	}

	key := subjectID + "|" + groupID
	if !s.admit(key, fix.RecordedAt) {
		return nil
	}

	p := model.Position{
		SubjectID:  subjectID,
		GroupID:    groupID,
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		Accuracy:   fix.Accuracy,
		Speed:      fix.Speed,
		Course:     fix.Course,
		RecordedAt: fix.RecordedAt,
	}
	if err := s.store.UpsertPosition(ctx, p); err != nil {
		return fmt.Errorf("location write failed: %w", err)
	}

	if s.isProvider(ctx, subjectID) {
		mirror := model.ProviderPosition{
			SubjectID:  subjectID,
			Latitude:   fix.Latitude,
			Longitude:  fix.Longitude,
			RecordedAt: fix.RecordedAt,
		}
		// Mirror failures never fail the primary write.
		if err := s.store.MirrorProviderPosition(ctx, mirror); err != nil {
			log.Printf("provider mirror write for %s failed: %v", subjectID, err)
		}
	}

	s.bus.Publish(bus.Event{Kind: bus.PositionChanged, SubjectID: subjectID, GroupID: groupID})
	return nil
}

// admit applies the per-pair throttle and the monotonic timestamp guard.
func (s *Sink) admit(key string, recordedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastSeen[key]; ok && recordedAt.Before(last) {
		return false
	}

	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(s.minInterval), 1)
		s.limiters[key] = lim
	}
	if !lim.Allow() {
		return false
	}

	s.lastSeen[key] = recordedAt
	return true
}

// isProvider checks the subject's role, caching lookups so the hot write
// path does not hit the providers table once per second.
func (s *Sink) isProvider(ctx context.Context, subjectID string) bool {
	if cached, found := s.roles.Get(subjectID); found {
		return cached.(string) == model.RoleProvider
	}
	p, err := s.store.GetProvider(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("role lookup for %s failed: %v", subjectID, err)
		}
		s.roles.Set(subjectID, "", gocache.DefaultExpiration)
		return false
	}
	s.roles.Set(subjectID, p.Role, gocache.DefaultExpiration)
	return p.Role == model.RoleProvider
}
