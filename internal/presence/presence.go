// Package presence holds the authoritative availability state of every
// subject. A process-local cache mirrors the database row for synchronous
// reads; every mutation goes through Set so the broadcast guarantee stays
// intact. No other component reads or writes presence rows directly.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/aydetodd/todocerca-tracking/internal/bus"
	"github.com/aydetodd/todocerca-tracking/internal/model"
	"github.com/aydetodd/todocerca-tracking/internal/store"
)

// State is the availability tri-state of a provider.
type State string

const (
	Available State = "available"
	Busy      State = "busy"
	Offline   State = "offline"
)

// Valid reports whether s is one of the three known states.
func (s State) Valid() bool {
	return s == Available || s == Busy || s == Offline
}

// ErrUnauthorized is returned when someone other than the subject attempts
// a presence change. Never retried.
var ErrUnauthorized = errors.New("presence change not permitted")

// Listener observes presence changes for all subjects.
type Listener func(subjectID string, state State)

// Store is the process-wide presence service. Construct one with New at
// startup and inject it; there is no module-level instance.
type Store struct {
	db  store.Store
	bus *bus.Bus

	echoes      <-chan bus.Event
	unsubscribe func()

	mu        sync.RWMutex
	states    map[string]State
	listeners map[int]Listener
	nextID    int
}

// New creates the presence store. The bus subscription is taken here, not in
// Run, so echoes published before the Run goroutine gets scheduled are
// buffered rather than lost.
func New(db store.Store, b *bus.Bus) *Store {
	p := &Store{
		db:        db,
		bus:       b,
		states:    make(map[string]State),
		listeners: make(map[int]Listener),
	}
	p.echoes, p.unsubscribe = b.Subscribe(32)
	return p
}

// Get returns the subject's current state. Cache first; on a miss the
// database row is loaded, and a subject with no row yet defaults to
// available (the state a provider is born with).
func (p *Store) Get(ctx context.Context, subjectID string) State {
	p.mu.RLock()
	if st, ok := p.states[subjectID]; ok {
		p.mu.RUnlock()
		return st
	}
	p.mu.RUnlock()

	rec, err := p.db.GetPresence(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("presence load for %s failed: %v", subjectID, err)
		}
		return Available
	}
	st := State(rec.State)
	if !st.Valid() {
		return Available
	}

	p.mu.Lock()
	if _, ok := p.states[subjectID]; !ok {
		p.states[subjectID] = st
	}
	st = p.states[subjectID]
	p.mu.Unlock()
	return st
}

// Set changes a subject's state. Only the subject itself may do so. On a
// successful persist the new state is broadcast synchronously to every
// local listener before Set returns; the bus echo that follows is the
// reconciliation path for changes made in other sessions. Both paths
// converge because application is arrival-order-wins.
func (p *Store) Set(ctx context.Context, actorID, subjectID string, st State) error {
	if actorID != subjectID {
		return fmt.Errorf("%w: %s cannot change presence of %s", ErrUnauthorized, actorID, subjectID)
	}
	if !st.Valid() {
		return fmt.Errorf("unknown presence state %q", st)
	}

	rec := model.PresenceRecord{
		SubjectID: subjectID,
		State:     string(st),
		UpdatedAt: time.Now().UTC(),
	}
	if err := p.db.SavePresence(ctx, rec); err != nil {
		return fmt.Errorf("persist presence: %w", err)
	}

	p.apply(subjectID, st)
	p.bus.Publish(bus.Event{Kind: bus.PresenceChanged, SubjectID: subjectID, State: string(st)})
	return nil
}

// Subscribe registers a listener for all presence changes. The returned
// func removes it.
func (p *Store) Subscribe(fn Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Run consumes the bus's presence echoes until ctx is cancelled. An echo
// for the value already cached is a no-op; a differing one is applied and
// re-broadcast in arrival order.
func (p *Store) Run(ctx context.Context) {
	defer p.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.echoes:
			if !ok {
				return
			}
			if ev.Kind != bus.PresenceChanged {
				continue
			}
			st := State(ev.State)
			if !st.Valid() {
				continue
			}
			p.apply(ev.SubjectID, st)
		}
	}
}

// apply updates the cache and notifies listeners if the value changed.
// Listeners are invoked synchronously while not holding the lock.
func (p *Store) apply(subjectID string, st State) {
	p.mu.Lock()
	if p.states[subjectID] == st {
		p.mu.Unlock()
		return
	}
	p.states[subjectID] = st
	listeners := make([]Listener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(subjectID, st)
	}
}
