// Package bus is the in-process change feed. Position and presence writers
// publish events; the fan-out hub and the presence store consume them. It
// stands in for the managed backend's change-subscription channel, so the
// periodic fallback polls elsewhere still exist as a backstop against drops.
package bus

import "sync"

// Event kinds.
type Kind int

const (
	PositionChanged Kind = iota
	PresenceChanged
)

// Event is one change notification.
type Event struct {
	Kind      Kind
	SubjectID string
	GroupID   string
	State     string // presence events only
}

// Bus fans events out to subscribed channels. Publishing never blocks: a
// subscriber whose buffer is full loses the event, which is why consumers
// keep their own fallback polls.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber with the given channel buffer size.
// The returned func removes the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
		b.mu.Unlock()
	}
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
