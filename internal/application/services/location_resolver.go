package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
	"github.com/zatekoja/nearbyfinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/nearbyfinder/pkg/errors"
)

// User-facing location messages. They end up verbatim in the widget banner.
const (
	MessageGeolocationUnsupported = "Geolocation is not supported in this browser."
	MessageLocationDenied         = "We couldn't access your location. Showing businesses near the default location instead."
)

const (
	defaultFixTimeout    = 10 * time.Second
	defaultFixMaximumAge = 60 * time.Second
)

// LocationResolver obtains a one-shot position fix for a widget. It never retries.
type LocationResolver struct {
	source  providers.PositionSource
	opts    providers.PositionOptions
	metrics *observability.Metrics

	mu     sync.Mutex
	last   *providers.Position
	lastAt time.Time
	now    func() time.Time
}

// NewLocationResolver creates a resolver over source, which may be nil when the
// session has no location capability. Non-positive durations use 10s and 60s.
func NewLocationResolver(source providers.PositionSource, timeout, maximumAge time.Duration) *LocationResolver {
	if timeout <= 0 {
		timeout = defaultFixTimeout
	}
	if maximumAge <= 0 {
		maximumAge = defaultFixMaximumAge
	}
	return &LocationResolver{
		source: source,
		opts: providers.PositionOptions{
			EnableHighAccuracy: true,
			Timeout:            timeout,
			MaximumAge:         maximumAge,
		},
		now: time.Now,
	}
}

// SetMetrics enables failure metrics
func (r *LocationResolver) SetMetrics(metrics *observability.Metrics) {
	r.metrics = metrics
}

// Options returns the fix options used for every request
func (r *LocationResolver) Options() providers.PositionOptions {
	return r.opts
}

// Resolve returns the current coordinate. It fails with UNSUPPORTED when no
// source exists and with PERMISSION_OR_SIGNAL_DENIED for any source failure.
func (r *LocationResolver) Resolve(ctx context.Context) (entities.Coordinate, error) {
	if r.source == nil {
		return entities.Coordinate{}, apperrors.NewUnsupportedError(MessageGeolocationUnsupported)
	}

	r.mu.Lock()
	cached, cachedAt := r.last, r.lastAt
	r.mu.Unlock()
	if cached != nil && r.now().Sub(cachedAt) <= r.opts.MaximumAge {
		return cached.Coordinate, nil
	}

	fixCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	pos, err := r.source.CurrentPosition(fixCtx, r.opts)
	if err == nil && pos == nil {
		err = providers.ErrPositionUnavailable
	}
	if err == nil && !pos.Coordinate.Valid() {
		err = providers.ErrPositionUnavailable
	}
	if err != nil {
		reason := failureReason(err)
		observability.RecordGeolocationFailure(ctx, r.metrics, reason)
		log.Info().Err(err).Str("reason", reason).Msg("location fix failed")

		if errors.Is(err, providers.ErrGeolocationUnsupported) {
			return entities.Coordinate{}, apperrors.NewUnsupportedError(MessageGeolocationUnsupported)
		}
		return entities.Coordinate{}, apperrors.NewLocationDeniedError(MessageLocationDenied, err)
	}

	// Cache age runs from when the resolver got the fix, not from the
	// source's timestamp, which may come from another clock.
	fix := *pos
	r.mu.Lock()
	r.last = &fix
	r.lastAt = r.now()
	r.mu.Unlock()

	return fix.Coordinate, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, providers.ErrGeolocationUnsupported):
		return "unsupported"
	case errors.Is(err, providers.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, providers.ErrPositionTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, providers.ErrPositionUnavailable):
		return "position_unavailable"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "unknown"
	}
}
