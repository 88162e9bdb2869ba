package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
	"github.com/zatekoja/nearbyfinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/nearbyfinder/pkg/errors"
)

const defaultIdleTTL = 30 * time.Minute

// PositionSourceFactory builds the position source for a new widget. It
// returns nil when the widget has no location capability.
type PositionSourceFactory func(clientIP string) providers.PositionSource

// PositionReporter is implemented by sources fed by the widget's browser.
type PositionReporter interface {
	ReportPosition(pos providers.Position)
	ReportFailure(err error)
}

// RegistryConfig holds settings shared by every widget
type RegistryConfig struct {
	MapID              string
	DefaultLocation    entities.Coordinate
	Zoom               int
	RadiusMeters       float64
	Category           string
	LocationTimeout    time.Duration
	LocationMaximumAge time.Duration
	IdleTTL            time.Duration
}

// WidgetSession is one live widget and its position source
type WidgetSession struct {
	ID         string
	Controller *AppController
	source     providers.PositionSource
}

// WidgetRegistry creates, finds and expires widget sessions
type WidgetRegistry struct {
	cfg       RegistryConfig
	places    PlacesQuerier
	newSource PositionSourceFactory
	bus       providers.EventBus
	metrics   *observability.Metrics

	mu       sync.RWMutex
	sessions map[string]*WidgetSession
	now      func() time.Time
}

// NewWidgetRegistry creates an empty registry. newSource and bus may be nil.
func NewWidgetRegistry(cfg RegistryConfig, places PlacesQuerier, newSource PositionSourceFactory, bus providers.EventBus) *WidgetRegistry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if newSource == nil {
		newSource = func(string) providers.PositionSource { return nil }
	}
	return &WidgetRegistry{
		cfg:       cfg,
		places:    places,
		newSource: newSource,
		bus:       bus,
		sessions:  make(map[string]*WidgetSession),
		now:       time.Now,
	}
}

// SetMetrics enables geolocation failure metrics for new widgets
func (r *WidgetRegistry) SetMetrics(metrics *observability.Metrics) {
	r.metrics = metrics
}

// Create starts a widget for the client at clientIP and runs its startup flow
func (r *WidgetRegistry) Create(ctx context.Context, clientIP string) (*WidgetSession, error) {
	id := uuid.New().String()
	source := r.newSource(clientIP)

	resolver := NewLocationResolver(source, r.cfg.LocationTimeout, r.cfg.LocationMaximumAge)
	resolver.SetMetrics(r.metrics)

	mapView := NewMapView(r.cfg.MapID, r.cfg.DefaultLocation, r.cfg.Zoom)
	panel := NewResultsPanel(mapView)
	controller := NewAppController(id, ControllerConfig{
		DefaultLocation: r.cfg.DefaultLocation,
		RadiusMeters:    r.cfg.RadiusMeters,
		Category:        r.cfg.Category,
	}, resolver, r.places, mapView, panel, r.bus)

	session := &WidgetSession{ID: id, Controller: controller, source: source}

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()

	if err := controller.Startup(ctx); err != nil {
		r.remove(id)
		return nil, err
	}

	log.Info().Str("widget_id", id).Msg("widget created")
	return session, nil
}

// Get returns the live widget with the given ID
func (r *WidgetRegistry) Get(id string) (*WidgetSession, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("widget %s not found", id))
	}
	return session, nil
}

// Remove closes and forgets a widget
func (r *WidgetRegistry) Remove(id string) error {
	session := r.remove(id)
	if session == nil {
		return apperrors.NewNotFoundError(fmt.Sprintf("widget %s not found", id))
	}
	session.Controller.Close()
	return nil
}

// Len returns the number of live widgets
func (r *WidgetRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ExpireIdle closes widgets unused for longer than the idle TTL and returns
// how many were closed.
func (r *WidgetRegistry) ExpireIdle() int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	var expired []*WidgetSession
	r.mu.Lock()
	for id, session := range r.sessions {
		if session.Controller.LastActive().Before(cutoff) {
			expired = append(expired, session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, session := range expired {
		session.Controller.Close()
		log.Info().Str("widget_id", session.ID).Msg("widget expired")
	}
	return len(expired)
}

// StartJanitor expires idle widgets every interval until ctx is done
func (r *WidgetRegistry) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.ExpireIdle(); n > 0 {
				log.Debug().Int("expired", n).Int("live", r.Len()).Msg("widget janitor pass")
			}
		}
	}
}

// Close closes every widget
func (r *WidgetRegistry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*WidgetSession)
	r.mu.Unlock()

	for _, session := range sessions {
		session.Controller.Close()
	}
}

func (r *WidgetRegistry) remove(id string) *WidgetSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	return session
}

// ReportPosition forwards a browser fix to the widget's position source
func (s *WidgetSession) ReportPosition(pos providers.Position) error {
	reporter, ok := s.source.(PositionReporter)
	if !ok {
		return apperrors.NewValidationError("this widget does not accept browser position reports")
	}
	if !pos.Coordinate.Valid() {
		return apperrors.NewValidationError("reported position is out of range")
	}
	reporter.ReportPosition(pos)
	return nil
}

// ReportPositionFailure forwards a browser geolocation failure
func (s *WidgetSession) ReportPositionFailure(err error) error {
	reporter, ok := s.source.(PositionReporter)
	if !ok {
		return apperrors.NewValidationError("this widget does not accept browser position reports")
	}
	reporter.ReportFailure(err)
	return nil
}
