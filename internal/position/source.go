// Package position unifies the available device location providers behind
// one Source interface. The concrete provider is selected once at startup;
// callers never branch on the environment per read.
package position

import (
	"context"
	"errors"
	"time"

	"github.com/aydetodd/todocerca-tracking/config"
)

// Error kinds surfaced by sources. Callers distinguish them with errors.Is:
// a permission denial must be prompted to the user, the others are retried
// on the next poll cycle.
var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("position unavailable")
	ErrTimeout          = errors.New("position read timed out")
)

// Fix is one successful location read.
type Fix struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	Speed      float64   `json:"speed"`
	Course     float64   `json:"course"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Source is a device location provider.
//
// Current performs a single-shot read bounded by the source's timeout.
// Watch starts a continuous feed that invokes fn for every new fix until
// the returned Watcher is cleared or ctx is cancelled; watches have no
// timeout of their own.
type Source interface {
	Current(ctx context.Context) (Fix, error)
	Watch(ctx context.Context, fn func(Fix)) (*Watcher, error)
}

// Watcher is the handle for one continuous watch.
type Watcher struct {
	stop func()
	done chan struct{}
}

// Clear stops the watch and waits for its goroutine to exit. Safe to call
// more than once.
func (w *Watcher) Clear() {
	w.stop()
	<-w.done
}

// Detect selects the position source for this process. A configured bridge
// endpoint means the device location bridge is present and preferred;
// otherwise the static fallback source is used.
func Detect(cfg *config.SourceConfig) Source {
	if cfg.Endpoint != "" {
		return newBridgeSource(cfg)
	}
	return NewStatic(Fix{Latitude: cfg.StaticLat, Longitude: cfg.StaticLng}, cfg.WatchInterval)
}
