package position

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/aydetodd/todocerca-tracking/config"
)

// bridgeSource reads fixes from the device location bridge, a small HTTP
// endpoint exposed by the host platform's location service. Permission is
// requested lazily by the first read; a denial is cached for the process
// lifetime so callers are not re-prompted by every poll cycle.
type bridgeSource struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
	timeout  time.Duration
	interval time.Duration

	mu     sync.Mutex
	denied bool
}

func newBridgeSource(cfg *config.SourceConfig) *bridgeSource {
	return &bridgeSource{
		endpoint: cfg.Endpoint,
		headers:  cfg.Headers,
		client:   &http.Client{},
		timeout:  cfg.Timeout,
		interval: cfg.WatchInterval,
	}
}

// bridgeFix models the bridge's JSON response.
type bridgeFix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Speed     float64 `json:"speed"`
	Course    float64 `json:"course"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
}

func (s *bridgeSource) Current(ctx context.Context) (Fix, error) {
	s.mu.Lock()
	if s.denied {
		s.mu.Unlock()
		return Fix{}, ErrPermissionDenied
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return Fix{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Fix{}, ErrTimeout
		}
		return Fix{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		s.mu.Lock()
		s.denied = true
		s.mu.Unlock()
		return Fix{}, ErrPermissionDenied
	case resp.StatusCode != http.StatusOK:
		return Fix{}, fmt.Errorf("%w: bridge returned status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Fix{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var raw bridgeFix
	if err := json.Unmarshal(body, &raw); err != nil {
		return Fix{}, fmt.Errorf("%w: malformed bridge response: %v", ErrUnavailable, err)
	}

	fix := Fix{
		Latitude:   raw.Latitude,
		Longitude:  raw.Longitude,
		Accuracy:   raw.Accuracy,
		Speed:      raw.Speed,
		Course:     raw.Course,
		RecordedAt: time.UnixMilli(raw.Timestamp).UTC(),
	}
	if raw.Timestamp == 0 {
		fix.RecordedAt = time.Now().UTC()
	}
	return fix, nil
}

// Watch re-reads the bridge at its native cadence and invokes fn for each
// successful read. Read failures are skipped; a cached permission denial
// ends the watch since no further read can succeed.
func (s *bridgeSource) Watch(ctx context.Context, fn func(Fix)) (*Watcher, error) {
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
				fix, err := s.Current(watchCtx)
				if err != nil {
					if errors.Is(err, ErrPermissionDenied) {
						return
					}
					continue
				}
				fn(fix)
			}
		}
	}()

	return w, nil
}
