package providers

import (
	"context"
	"errors"
	"time"

	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
)

// Position source failures. Sources wrap one of these so the resolver can tell
// the reason apart when logging; callers only ever see a denial or, for
// ErrGeolocationUnsupported, an unsupported error.
var (
	ErrPermissionDenied    = errors.New("position permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrPositionTimeout     = errors.New("position request timed out")

	// ErrGeolocationUnsupported means the client has no location capability at all.
	ErrGeolocationUnsupported = errors.New("geolocation unsupported")
)

// PositionOptions mirrors the one-shot fix options of a device geolocation API.
type PositionOptions struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaximumAge         time.Duration
}

// Position is a single location fix.
type Position struct {
	Coordinate     entities.Coordinate
	AccuracyMeters float64
	Timestamp      time.Time
}

// PositionSource produces a one-shot location fix
type PositionSource interface {
	// CurrentPosition returns a fix or one of the Err* failures. The context
	// carries the fix timeout.
	CurrentPosition(ctx context.Context, opts PositionOptions) (*Position, error)
}
