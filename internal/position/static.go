package position

import (
	"context"
	"sync"
	"time"
)

// Static is a source pinned at a fixed coordinate. It backs fixed
// installations without a location bridge and doubles as a scriptable
// source in tests via Push.
type Static struct {
	interval time.Duration

	mu  sync.RWMutex
	fix Fix
}

// NewStatic creates a static source emitting fix at the given watch cadence.
func NewStatic(fix Fix, interval time.Duration) *Static {
	if interval <= 0 {
		interval = time.Second
	}
	return &Static{fix: fix, interval: interval}
}

// Push replaces the fix subsequent reads will return.
func (s *Static) Push(fix Fix) {
	s.mu.Lock()
	s.fix = fix
	s.mu.Unlock()
}

func (s *Static) Current(_ context.Context) (Fix, error) {
	s.mu.RLock()
	fix := s.fix
	s.mu.RUnlock()
	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = time.Now().UTC()
	}
	return fix, nil
}

func (s *Static) Watch(ctx context.Context, fn func(Fix)) (*Watcher, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{stop: cancel, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				fix, _ := s.Current(watchCtx)
				fn(fix)
			}
		}
	}()

	return w, nil
}
