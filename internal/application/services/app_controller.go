package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
	apperrors "github.com/zatekoja/nearbyfinder/pkg/errors"
)

// Origin marker labels.
const (
	LabelYourLocation    = "Your location"
	LabelDefaultLocation = "Default location"
	LabelSearchArea      = "Search area"
)

var (
	// ErrFlowInProgress rejects a locate or search while another one runs.
	ErrFlowInProgress = apperrors.NewConflictError("a locate or search is already in progress")
	// ErrFlowCancelled is returned by a flow whose result was dropped by Cancel.
	ErrFlowCancelled = apperrors.NewConflictError("the locate or search was cancelled")
)

// DefaultLocation is the map center used before and instead of a location fix.
var DefaultLocation = entities.Coordinate{Latitude: 40.73061, Longitude: -73.935242}

// ControllerConfig holds the per-widget search settings
type ControllerConfig struct {
	DefaultLocation entities.Coordinate
	RadiusMeters    float64
	Category        string
}

// AppController drives one widget: startup, the locate flow and the
// search-this-area flow. Only one flow runs at a time. Each flow carries a
// generation token, and results arriving for an older token are dropped.
type AppController struct {
	id       string
	cfg      ControllerConfig
	resolver *LocationResolver
	places   PlacesQuerier
	mapView  *MapView
	panel    *ResultsPanel
	bus      providers.EventBus

	mu         sync.Mutex
	phase      entities.WidgetPhase
	banner     entities.Banner
	controls   entities.Controls
	inFlight   bool
	generation uint64
	cancelFlow context.CancelFunc
	lastActive time.Time
	closed     bool
}

// NewAppController wires a controller over its map, panel, resolver and
// places client. bus may be nil.
func NewAppController(
	id string,
	cfg ControllerConfig,
	resolver *LocationResolver,
	places PlacesQuerier,
	mapView *MapView,
	panel *ResultsPanel,
	bus providers.EventBus,
) *AppController {
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = DefaultSearchRadiusMeters
	}
	if cfg.Category == "" {
		cfg.Category = DefaultPlaceCategory
	}
	return &AppController{
		id:         id,
		cfg:        cfg,
		resolver:   resolver,
		places:     places,
		mapView:    mapView,
		panel:      panel,
		bus:        bus,
		phase:      entities.WidgetPhaseIdle,
		controls:   entities.Controls{LocateEnabled: true, SearchAreaEnabled: true},
		lastActive: time.Now(),
	}
}

// ID returns the widget ID
func (c *AppController) ID() string {
	return c.id
}

// Startup centers the map on the default location and shows the businesses
// around it. Controls stay enabled.
func (c *AppController) Startup(ctx context.Context) error {
	flowCtx, token, err := c.beginFlow(ctx, false)
	if err != nil {
		return err
	}
	defer c.endFlow(token)

	return c.recenterQueryRender(flowCtx, token, c.cfg.DefaultLocation, c.cfg.RadiusMeters, LabelDefaultLocation, entities.SearchTriggerStartup)
}

// Locate resolves the user's location and shows the businesses around it. A
// failed fix shows the banner and falls back to the default location.
func (c *AppController) Locate(ctx context.Context) error {
	flowCtx, token, err := c.beginFlow(ctx, true)
	if err != nil {
		return err
	}
	defer c.endFlow(token)

	if !c.apply(flowCtx, token, "", func() { c.phase = entities.WidgetPhaseLocating }) {
		return ErrFlowCancelled
	}

	center, label := c.cfg.DefaultLocation, LabelDefaultLocation
	banner := entities.Banner{}
	coord, resolveErr := c.resolver.Resolve(flowCtx)
	if resolveErr != nil {
		banner = entities.Banner{Visible: true, Text: apperrors.UserMessage(resolveErr)}
	} else {
		center, label = coord, LabelYourLocation
	}

	if !c.apply(flowCtx, token, entities.WidgetEventBannerChanged, func() { c.banner = banner }) {
		return ErrFlowCancelled
	}

	return c.recenterQueryRender(flowCtx, token, center, c.cfg.RadiusMeters, label, entities.SearchTriggerLocate)
}

// SearchThisArea searches around the current map center with a radius taken
// from the visible bounds.
func (c *AppController) SearchThisArea(ctx context.Context) error {
	flowCtx, token, err := c.beginFlow(ctx, true)
	if err != nil {
		return err
	}
	defer c.endFlow(token)

	var center entities.Coordinate
	var radius float64
	if !c.apply(flowCtx, token, entities.WidgetEventBannerChanged, func() {
		center = c.mapView.Center()
		radius = c.mapView.CurrentBoundsRadius()
		c.banner = entities.Banner{}
	}) {
		return ErrFlowCancelled
	}

	return c.recenterQueryRender(flowCtx, token, center, radius, LabelSearchArea, entities.SearchTriggerSearchArea)
}

// Cancel drops the running flow, if any. Its late results are never applied
// and the controls are enabled again. It reports whether a flow was running.
func (c *AppController) Cancel() bool {
	c.mu.Lock()
	if !c.inFlight {
		c.mu.Unlock()
		return false
	}
	c.generation++
	c.stopFlowLocked()
	c.phase = entities.WidgetPhaseIdle
	c.lastActive = time.Now()
	event := c.eventLocked(entities.WidgetEventControlsChanged)
	c.mu.Unlock()

	c.publish(context.Background(), event)
	return true
}

// Close cancels any running flow and announces the widget's end
func (c *AppController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.inFlight {
		c.generation++
		c.stopFlowLocked()
	}
	event := c.eventLocked(entities.WidgetEventClosed)
	c.mu.Unlock()

	c.publish(context.Background(), event)
}

// SelectRow handles a click on a result row
func (c *AppController) SelectRow(ctx context.Context, rank int) (*entities.WidgetSnapshot, error) {
	return c.interact(ctx, entities.WidgetEventMapFocused, func() error {
		return c.panel.Select(rank)
	})
}

// ClickMarker handles a click on a map marker
func (c *AppController) ClickMarker(ctx context.Context, id entities.MarkerID) (*entities.WidgetSnapshot, error) {
	return c.interact(ctx, entities.WidgetEventOverlayOpened, func() error {
		return c.mapView.ClickMarker(id)
	})
}

// ReportViewport records a pan or zoom made in the browser
func (c *AppController) ReportViewport(ctx context.Context, center *entities.Coordinate, zoom *int, bounds *entities.Bounds) (*entities.WidgetSnapshot, error) {
	return c.interact(ctx, entities.WidgetEventViewportChanged, func() error {
		return c.mapView.UpdateViewport(center, zoom, bounds)
	})
}

// Snapshot returns a copy of the widget's view state
func (c *AppController) Snapshot() *entities.WidgetSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Rows returns the rendered result rows
func (c *AppController) Rows() []entities.ResultRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActive = time.Now()
	return c.panel.Rows()
}

// LastActive returns when the widget was last used
func (c *AppController) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// InFlight reports whether a flow is running
func (c *AppController) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *AppController) interact(ctx context.Context, eventType entities.WidgetEventType, fn func() error) (*entities.WidgetSnapshot, error) {
	c.mu.Lock()
	c.lastActive = time.Now()
	if err := fn(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	event := c.eventLocked(eventType)
	c.mu.Unlock()

	c.publish(ctx, event)
	return event.Snapshot, nil
}

// recenterQueryRender recenters before querying, and places markers before
// rendering rows because the rows need the marker index.
func (c *AppController) recenterQueryRender(ctx context.Context, token uint64, center entities.Coordinate, radius float64, label string, trigger entities.SearchTrigger) error {
	if !c.apply(ctx, token, entities.WidgetEventMapRecentered, func() {
		c.mapView.Recenter(center, label)
		c.phase = entities.WidgetPhaseMapUpdated
	}) {
		return ErrFlowCancelled
	}

	if !c.apply(ctx, token, "", func() { c.phase = entities.WidgetPhaseQuerying }) {
		return ErrFlowCancelled
	}

	results := c.places.Query(ctx, entities.SearchRequest{
		WidgetID:     c.id,
		Center:       center,
		RadiusMeters: radius,
		Category:     c.cfg.Category,
		Trigger:      trigger,
	})

	if !c.apply(ctx, token, entities.WidgetEventResultsRendered, func() {
		index := c.mapView.PlaceResultMarkers(results)
		c.panel.Render(results, index)
		c.phase = entities.WidgetPhaseRendered
	}) {
		log.Debug().
			Str("widget_id", c.id).
			Uint64("token", token).
			Msg("dropping results for a cancelled flow")
		return ErrFlowCancelled
	}
	return nil
}

func (c *AppController) beginFlow(ctx context.Context, disableControls bool) (context.Context, uint64, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, 0, apperrors.NewNotFoundError("widget is closed")
	}
	if c.inFlight {
		c.mu.Unlock()
		return nil, 0, ErrFlowInProgress
	}

	c.inFlight = true
	c.generation++
	token := c.generation
	flowCtx, cancel := context.WithCancel(ctx)
	c.cancelFlow = cancel
	c.lastActive = time.Now()

	var event *entities.WidgetEvent
	if disableControls {
		c.controls = entities.Controls{}
		event = c.eventLocked(entities.WidgetEventControlsChanged)
	}
	c.mu.Unlock()

	if event != nil {
		c.publish(ctx, event)
	}
	return flowCtx, token, nil
}

// endFlow re-enables the controls unless Cancel already ended the flow.
func (c *AppController) endFlow(token uint64) {
	c.mu.Lock()
	if token != c.generation || !c.inFlight {
		c.mu.Unlock()
		return
	}
	c.stopFlowLocked()
	c.lastActive = time.Now()
	event := c.eventLocked(entities.WidgetEventControlsChanged)
	c.mu.Unlock()

	c.publish(context.Background(), event)
}

func (c *AppController) stopFlowLocked() {
	if c.cancelFlow != nil {
		c.cancelFlow()
		c.cancelFlow = nil
	}
	c.inFlight = false
	c.controls = entities.Controls{LocateEnabled: true, SearchAreaEnabled: true}
}

// apply runs fn under the lock if token is still current and publishes
// eventType afterwards. An empty eventType publishes nothing.
func (c *AppController) apply(ctx context.Context, token uint64, eventType entities.WidgetEventType, fn func()) bool {
	c.mu.Lock()
	if token != c.generation || c.closed {
		c.mu.Unlock()
		return false
	}
	fn()
	var event *entities.WidgetEvent
	if eventType != "" {
		event = c.eventLocked(eventType)
	}
	c.mu.Unlock()

	if event != nil {
		c.publish(ctx, event)
	}
	return true
}

func (c *AppController) eventLocked(eventType entities.WidgetEventType) *entities.WidgetEvent {
	return entities.NewWidgetEvent(c.id, eventType, c.snapshotLocked())
}

func (c *AppController) snapshotLocked() *entities.WidgetSnapshot {
	return &entities.WidgetSnapshot{
		WidgetID:   c.id,
		Phase:      c.phase,
		Generation: c.generation,
		Map:        c.mapView.State(),
		Rows:       c.panel.Rows(),
		Banner:     c.banner,
		Controls:   c.controls,
	}
}

func (c *AppController) publish(ctx context.Context, event *entities.WidgetEvent) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(context.WithoutCancel(ctx), providers.GetWidgetChannel(c.id), event); err != nil {
		log.Warn().
			Err(err).
			Str("widget_id", c.id).
			Str("event_type", string(event.EventType)).
			Msg("failed to publish widget event")
	}
}
