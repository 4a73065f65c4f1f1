// Package tracking runs the continuous location loop for the local subject.
// Two redundant producers, a fixed-interval poll and the source's push
// watch, feed one channel drained by a single writer goroutine, so the
// race between them is explicit and the sink sees exactly one write path.
package tracking

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/aydetodd/todocerca-tracking/config"
	"github.com/aydetodd/todocerca-tracking/internal/position"
	"github.com/aydetodd/todocerca-tracking/internal/presence"
)

// LoopState is the lifecycle state of the tracking loop.
type LoopState int32

const (
	Idle LoopState = iota
	Starting
	Running
	Stopping
)

func (s LoopState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

// Writer is the sink the loop emits through.
type Writer interface {
	Write(ctx context.Context, subjectID, groupID string, fix position.Fix) error
}

// PermissionPrompt surfaces a location permission denial to the user. It is
// invoked at most once per process; the loop never retries a denial in a
// tight cycle.
type PermissionPrompt func(err error)

// Controller owns one subject's tracking loop.
type Controller struct {
	cfg      config.TrackingConfig
	source   position.Source
	writer   Writer
	presence *presence.Store
	prompt   PermissionPrompt

	mu            sync.Mutex
	state         LoopState
	cancel        context.CancelFunc
	watcher       *position.Watcher
	wg            sync.WaitGroup
	promptShown   bool
	stopRequested bool
}

// New creates a controller. prompt may be nil.
func New(cfg config.TrackingConfig, src position.Source, w Writer, p *presence.Store, prompt PermissionPrompt) *Controller {
	return &Controller{
		cfg:      cfg,
		source:   src,
		writer:   w,
		presence: p,
		prompt:   prompt,
	}
}

// State returns the current loop state.
func (c *Controller) State() LoopState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run drives the loop until ctx is cancelled. It starts the loop when the
// start conditions hold, halts it synchronously when the subject goes
// offline, and re-checks conditions on a supervision interval in case the
// loop died without a clean transition.
func (c *Controller) Run(ctx context.Context) {
	unsubscribe := c.presence.Subscribe(func(subjectID string, st presence.State) {
		if subjectID == c.cfg.SubjectID && st == presence.Offline {
			c.Stop()
		}
	})
	defer unsubscribe()

	c.Evaluate(ctx)

	ticker := time.NewTicker(c.cfg.SuperviseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Stop()
			return
		case <-ticker.C:
			c.Evaluate(ctx)
		}
	}
}

// Evaluate starts the loop if the start conditions hold: provider role,
// presence not offline, and no loop already running.
func (c *Controller) Evaluate(ctx context.Context) {
	if c.cfg.Role != "provider" {
		return
	}
	if c.presence.Get(ctx, c.cfg.SubjectID) == presence.Offline {
		return
	}
	c.start(ctx)
}

func (c *Controller) start(ctx context.Context) {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return
	}
	c.state = Starting
	c.stopRequested = false
	c.mu.Unlock()

	// The first read both validates permission and seeds the pipeline.
	first, err := c.source.Current(ctx)
	if err != nil {
		c.setState(Idle)
		if errors.Is(err, position.ErrPermissionDenied) {
			c.promptOnce(err)
			return
		}
		log.Printf("tracking start for %s failed: %v", c.cfg.SubjectID, err)
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	fixes := make(chan position.Fix, 8)

	watcher, err := c.source.Watch(loopCtx, func(fix position.Fix) {
		select {
		case fixes <- fix:
		default:
		}
	})
	if err != nil {
		cancel()
		c.setState(Idle)
		log.Printf("tracking watch registration for %s failed: %v", c.cfg.SubjectID, err)
		return
	}

	// The first Current read can take seconds; presence may have toggled
	// offline in the meantime, either observed directly or recorded by Stop
	// as a pending request. Re-check before committing to Running.
	offline := c.presence.Get(ctx, c.cfg.SubjectID) == presence.Offline

	c.mu.Lock()
	if c.stopRequested || offline {
		c.stopRequested = false
		c.state = Idle
		c.mu.Unlock()
		cancel()
		watcher.Clear()
		log.Printf("tracking start for %s aborted, subject went offline", c.cfg.SubjectID)
		return
	}
	c.cancel = cancel
	c.watcher = watcher
	c.state = Running
	c.mu.Unlock()

	// Seed the pipeline. The watch callback may already have filled the
	// buffer, in which case fresher fixes are on the way anyway.
	select {
	case fixes <- first:
	default:
	}

	c.wg.Add(2)
	go c.pollLoop(loopCtx, fixes)
	go c.writeLoop(loopCtx, fixes)

	log.Printf("tracking loop for %s running", c.cfg.SubjectID)
}

// Stop halts a running loop: the poll ticker stops, the watch handle is
// released, and both goroutines are joined before the state returns to
// Idle. A single write already in flight when Stop lands is a benign race.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == Starting {
		// Mid-start halt: the start path honors the request before it
		// would go Running, so no write ever lands.
		c.stopRequested = true
		c.mu.Unlock()
		return
	}
	if c.state != Running {
		c.mu.Unlock()
		return
	}
	c.state = Stopping
	cancel := c.cancel
	watcher := c.watcher
	c.cancel = nil
	c.watcher = nil
	c.mu.Unlock()

	cancel()
	watcher.Clear()
	c.wg.Wait()

	c.setState(Idle)
	log.Printf("tracking loop for %s stopped", c.cfg.SubjectID)
}

// pollLoop is the timer-driven producer, redundant with the push watch.
func (c *Controller) pollLoop(ctx context.Context, fixes chan<- position.Fix) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fix, err := c.source.Current(ctx)
			if err != nil {
				// Unavailable and timeout errors retry on the next tick.
				if errors.Is(err, position.ErrPermissionDenied) {
					c.promptOnce(err)
				}
				continue
			}
			select {
			case fixes <- fix:
			default:
			}
		}
	}
}

// writeLoop is the single consumer emitting through the sink.
func (c *Controller) writeLoop(ctx context.Context, fixes <-chan position.Fix) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case fix := <-fixes:
			if err := c.writer.Write(ctx, c.cfg.SubjectID, c.cfg.GroupID, fix); err != nil {
				// Not retried here; the next emission retries naturally.
				log.Printf("location write for %s failed: %v", c.cfg.SubjectID, err)
			}
		}
	}
}

func (c *Controller) setState(st LoopState) {
	c.mu.Lock()
	c.state = st
	if st == Idle {
		c.stopRequested = false
	}
	c.mu.Unlock()
}

func (c *Controller) promptOnce(err error) {
	c.mu.Lock()
	shown := c.promptShown
	c.promptShown = true
	c.mu.Unlock()
	if shown || c.prompt == nil {
		if !shown {
			log.Printf("location permission denied for %s: %v", c.cfg.SubjectID, err)
		}
		return
	}
	c.prompt(err)
}
