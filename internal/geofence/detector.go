package geofence

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/aydetodd/todocerca-tracking/internal/bus"
	"github.com/aydetodd/todocerca-tracking/internal/geo"
	"github.com/aydetodd/todocerca-tracking/internal/model"
	"github.com/aydetodd/todocerca-tracking/internal/store"
)

// Dispatcher receives alerts for downstream delivery (web push, badges).
// May be nil when notifications are disabled.
type Dispatcher interface {
	Dispatch(alert model.Alert)
}

// Detector feeds the position stream through Evaluate, holding the
// per-subject previous position so each boundary crossing produces exactly
// one alert.
type Detector struct {
	store      store.Store
	dispatcher Dispatcher

	events      <-chan bus.Event
	unsubscribe func()

	mu   sync.Mutex
	prev map[string]geo.LatLng // subjectID -> last observed position
}

// NewDetector creates a detector writing alerts through st. The bus
// subscription is taken here so position writes landing before Run is
// scheduled are buffered rather than lost.
func NewDetector(st store.Store, b *bus.Bus, d Dispatcher) *Detector {
	det := &Detector{
		store:      st,
		dispatcher: d,
		prev:       make(map[string]geo.LatLng),
	}
	det.events, det.unsubscribe = b.Subscribe(32)
	return det
}

// Run feeds every admitted position write through the detector until ctx is
// cancelled. Suppressed writes never reach the bus, so the detector only
// evaluates fixes that actually landed.
func (d *Detector) Run(ctx context.Context) {
	defer d.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.events:
			if !ok {
				return
			}
			if ev.Kind == bus.PresenceChanged {
				// An offline subject's next fix starts a fresh baseline
				// rather than firing a transition across the gap.
				if ev.State == "offline" {
					d.Forget(ev.SubjectID)
				}
				continue
			}
			if ev.Kind != bus.PositionChanged {
				continue
			}
			p, err := d.store.GetPosition(ctx, ev.SubjectID, ev.GroupID)
			if err != nil {
				continue
			}
			cur := geo.LatLng{Lat: p.Latitude, Lng: p.Longitude}
			if err := d.Observe(ctx, ev.SubjectID, ev.GroupID, cur); err != nil {
				log.Printf("%v", err)
			}
		}
	}
}

// Observe evaluates one new position of a subject against every active
// fence that applies to it, appending an alert per fired transition.
func (d *Detector) Observe(ctx context.Context, subjectID, groupID string, cur geo.LatLng) error {
	fences, err := d.store.GeofencesForSubject(ctx, subjectID, groupID)
	if err != nil {
		return fmt.Errorf("geofence evaluation for %s: %w", subjectID, err)
	}

	d.mu.Lock()
	var prev *geo.LatLng
	if p, ok := d.prev[subjectID]; ok {
		prev = &p
	}
	d.prev[subjectID] = cur
	d.mu.Unlock()

	for _, g := range fences {
		transition, fired := Evaluate(g, prev, cur)
		if !fired {
			continue
		}
		alert := d.buildAlert(g, subjectID, groupID, transition, cur)
		if err := d.store.CreateAlert(ctx, &alert); err != nil {
			log.Printf("alert write for subject %s fence %s failed: %v", subjectID, g.ID, err)
			continue
		}
		if d.dispatcher != nil {
			d.dispatcher.Dispatch(alert)
		}
	}
	return nil
}

// Forget drops the remembered position of a subject, e.g. when its tracking
// session ends. The next observation starts a fresh containment baseline.
func (d *Detector) Forget(subjectID string) {
	d.mu.Lock()
	delete(d.prev, subjectID)
	d.mu.Unlock()
}

func (d *Detector) buildAlert(g model.Geofence, subjectID, groupID string, t Transition, at geo.LatLng) model.Alert {
	kind := model.AlertGeofenceEnter
	verb := "entered"
	if t == Exit {
		kind = model.AlertGeofenceExit
		verb = "left"
	}
	name := g.Name
	if name == "" {
		name = g.ID
	}
	lat, lng := at.Lat, at.Lng
	return model.Alert{
		ID:         uuid.NewString(),
		SubjectID:  subjectID,
		GroupID:    groupID,
		Kind:       kind,
		Message:    fmt.Sprintf("%s %s zone %s", subjectID, verb, name),
		Latitude:   &lat,
		Longitude:  &lng,
		GeofenceID: g.ID,
	}
}
