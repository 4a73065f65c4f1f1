// Package fanout distributes fused location snapshots to every subscribed
// consumer (live maps, dashboards). One goroutine owns all refreshing, so
// a refresh is never concurrent with itself; triggers arriving while one is
// in flight collapse into at most one follow-up.
package fanout

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aydetodd/todocerca-tracking/config"
	"github.com/aydetodd/todocerca-tracking/internal/bus"
	"github.com/aydetodd/todocerca-tracking/internal/store"
)

// Scope selects which subjects a subscription sees. The zero value means
// all active providers; a GroupID restricts to that group's members.
type Scope struct {
	GroupID string
}

// Subscription is one consumer of snapshot updates. C carries the latest
// snapshot set; a slow consumer only ever loses intermediate states, never
// the newest one.
type Subscription struct {
	C chan []store.Snapshot

	id    int
	scope Scope
	hub   *Hub
}

// Scope returns the subscription's scope.
func (s *Subscription) Scope() Scope { return s.scope }

// Close removes the subscription from the hub.
func (s *Subscription) Close() {
	s.hub.remove(s.id)
}

// push delivers with latest-value semantics: on a full buffer the stale
// snapshot is dropped in favor of the new one.
func (s *Subscription) push(snaps []store.Snapshot) {
	for {
		select {
		case s.C <- snaps:
			return
		default:
			select {
			case <-s.C:
			default:
			}
		}
	}
}

// Hub joins positions, presence, and profile metadata into per-scope
// snapshots and fans them out. Refreshes are triggered by position and
// presence change events and by a fallback poll that papers over any
// dropped events.
type Hub struct {
	store store.Store
	bus   *bus.Bus
	cfg   config.FanoutConfig

	kick        chan struct{}
	events      <-chan bus.Event
	unsubscribe func()

	mu     sync.Mutex
	subs   map[int]*Subscription
	nextID int
}

// NewHub creates the hub. The bus subscription is taken at construction so
// change events published before Run is scheduled still trigger a refresh.
func NewHub(st store.Store, b *bus.Bus, cfg config.FanoutConfig) *Hub {
	h := &Hub{
		store: st,
		bus:   b,
		cfg:   cfg,
		kick:  make(chan struct{}, 1),
		subs:  make(map[int]*Subscription),
	}
	h.events, h.unsubscribe = b.Subscribe(64)
	return h
}

// Subscribe registers a consumer for the given scope and schedules an
// initial refresh so it receives a snapshot promptly.
func (h *Hub) Subscribe(scope Scope) *Subscription {
	sub := &Subscription{
		C:     make(chan []store.Snapshot, 1),
		scope: scope,
		hub:   h,
	}
	h.mu.Lock()
	sub.id = h.nextID
	h.nextID++
	h.subs[sub.id] = sub
	h.mu.Unlock()

	h.Kick()
	return sub
}

// Kick requests a refresh. If one is already pending the request coalesces
// into it.
func (h *Hub) Kick() {
	select {
	case h.kick <- struct{}{}:
	default:
	}
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Run owns the refresh cycle until ctx is cancelled. A minimum spacing
// between refreshes is enforced; triggers landing inside the window are
// absorbed into the next cycle.
func (h *Hub) Run(ctx context.Context) {
	defer h.unsubscribe()

	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	var lastRefresh time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.events:
			if !ok {
				return
			}
			if ev.Kind != bus.PositionChanged && ev.Kind != bus.PresenceChanged {
				continue
			}
		case <-ticker.C:
		case <-h.kick:
		}

		if wait := h.cfg.MinRefreshGap - time.Since(lastRefresh); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		// Absorb every trigger that accumulated while waiting.
		h.drain(h.events)
		h.refresh(ctx)
		lastRefresh = time.Now()
	}
}

func (h *Hub) drain(events <-chan bus.Event) {
	for {
		select {
		case <-events:
		case <-h.kick:
		default:
			return
		}
	}
}

// refresh queries each distinct subscribed scope once and pushes results.
func (h *Hub) refresh(ctx context.Context) {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	cache := make(map[Scope][]store.Snapshot)
	for _, sub := range subs {
		snaps, ok := cache[sub.scope]
		if !ok {
			var err error
			snaps, err = h.store.ActiveSnapshots(ctx, sub.scope.GroupID)
			if err != nil {
				log.Printf("snapshot refresh for scope %+v failed: %v", sub.scope, err)
				continue
			}
			cache[sub.scope] = snaps
		}
		sub.push(snaps)
	}
}
