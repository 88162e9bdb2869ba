package geolocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

// ClientPositionSource answers fix requests with positions reported by the
// widget's browser. A fix younger than MaximumAge is reused; otherwise the
// caller waits for the next report until its context deadline.
type ClientPositionSource struct {
	mu     sync.Mutex
	last   clientReport
	notify chan struct{}
	now    func() time.Time
}

type clientReport struct {
	position *providers.Position
	err      error
	at       time.Time
	consumed bool
}

// NewClientPositionSource creates an empty per-widget source
func NewClientPositionSource() *ClientPositionSource {
	return &ClientPositionSource{
		notify: make(chan struct{}),
		now:    time.Now,
	}
}

// ReportPosition records a fix from the browser and wakes pending requests.
// The fix is stamped with the receipt time; any browser timestamp is replaced.
func (s *ClientPositionSource) ReportPosition(pos providers.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	pos.Timestamp = now
	s.last = clientReport{position: &pos, at: now}
	s.broadcastLocked()
}

// ReportFailure records a failed fix. err should wrap one of the providers.Err* values.
func (s *ClientPositionSource) ReportFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = clientReport{err: err, at: s.now()}
	s.broadcastLocked()
}

func (s *ClientPositionSource) broadcastLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// CurrentPosition implements providers.PositionSource
func (s *ClientPositionSource) CurrentPosition(ctx context.Context, opts providers.PositionOptions) (*providers.Position, error) {
	s.mu.Lock()
	if pos, err, ok := s.takeLocked(opts); ok {
		s.mu.Unlock()
		return pos, err
	}
	notify := s.notify
	s.mu.Unlock()

	select {
	case <-notify:
		s.mu.Lock()
		defer s.mu.Unlock()
		s.last.consumed = true
		if s.last.err != nil {
			return nil, s.last.err
		}
		pos := *s.last.position
		return &pos, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("no client fix before deadline: %w", providers.ErrPositionTimeout)
		}
		return nil, ctx.Err()
	}
}

// takeLocked returns a report that can answer the request without waiting.
func (s *ClientPositionSource) takeLocked(opts providers.PositionOptions) (*providers.Position, error, bool) {
	now := s.now()
	if s.last.position != nil && now.Sub(s.last.at) <= opts.MaximumAge {
		s.last.consumed = true
		pos := *s.last.position
		return &pos, nil, true
	}
	if s.last.err != nil && !s.last.consumed && (opts.Timeout <= 0 || now.Sub(s.last.at) <= opts.Timeout) {
		s.last.consumed = true
		return nil, s.last.err, true
	}
	return nil, nil, false
}
