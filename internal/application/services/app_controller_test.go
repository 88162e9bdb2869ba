package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/nearbyfinder/internal/adapters/providers/geolocation"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

type controllerFixture struct {
	controller *AppController
	places     *stubPlaces
	bus        *recordingBus
}

func newControllerFixture(t *testing.T, source providers.PositionSource) *controllerFixture {
	t.Helper()

	places := &stubPlaces{results: entities.ResultSet{
		place("a", "Alpha", rating(4.8), 40.731, -73.936),
		place("b", "Bravo", rating(4.1), 40.729, -73.934),
	}}
	bus := &recordingBus{}
	mapView := NewMapView("DEMO_MAP_ID", DefaultLocation, 14)
	controller := NewAppController(
		"widget-1",
		ControllerConfig{DefaultLocation: DefaultLocation},
		NewLocationResolver(source, time.Second, time.Minute),
		places,
		mapView,
		NewResultsPanel(mapView),
		bus,
	)
	return &controllerFixture{controller: controller, places: places, bus: bus}
}

func TestAppController_Startup(t *testing.T) {
	f := newControllerFixture(t, nil)

	require.NoError(t, f.controller.Startup(context.Background()))

	snap := f.controller.Snapshot()
	assert.Equal(t, entities.WidgetPhaseRendered, snap.Phase)
	assert.Equal(t, DefaultLocation, snap.Map.Center)
	require.NotNil(t, snap.Map.Origin)
	assert.Equal(t, LabelDefaultLocation, snap.Map.Origin.Label)
	assert.Len(t, snap.Map.Markers, 2)
	require.Len(t, snap.Rows, 2)
	assert.Equal(t, "Alpha", snap.Rows[0].Name)
	assert.False(t, snap.Banner.Visible)
	assert.True(t, snap.Controls.LocateEnabled)
	assert.True(t, snap.Controls.SearchAreaEnabled)

	req := f.places.lastRequest()
	assert.Equal(t, DefaultLocation, req.Center)
	assert.Equal(t, 1500.0, req.RadiusMeters)
	assert.Equal(t, "store", req.Category)
	assert.Equal(t, entities.SearchTriggerStartup, req.Trigger)

	assert.Equal(t, []entities.WidgetEventType{
		entities.WidgetEventMapRecentered,
		entities.WidgetEventResultsRendered,
		entities.WidgetEventControlsChanged,
	}, f.bus.types())
}

func TestAppController_LocateSuccess(t *testing.T) {
	here := entities.Coordinate{Latitude: 37.7749, Longitude: -122.4194}
	f := newControllerFixture(t, geolocation.NewMockPositionSource(here))
	require.NoError(t, f.controller.Startup(context.Background()))

	require.NoError(t, f.controller.Locate(context.Background()))

	snap := f.controller.Snapshot()
	assert.Equal(t, here, snap.Map.Center)
	assert.Equal(t, LabelYourLocation, snap.Map.Origin.Label)
	assert.False(t, snap.Banner.Visible)
	assert.True(t, snap.Controls.LocateEnabled)
	assert.Equal(t, here, f.places.lastRequest().Center)
	assert.Equal(t, entities.SearchTriggerLocate, f.places.lastRequest().Trigger)
}

func TestAppController_LocateFailureFallsBack(t *testing.T) {
	t.Run("denied", func(t *testing.T) {
		source := &geolocation.MockPositionSource{Err: providers.ErrPermissionDenied}
		f := newControllerFixture(t, source)

		require.NoError(t, f.controller.Locate(context.Background()))

		snap := f.controller.Snapshot()
		assert.True(t, snap.Banner.Visible)
		assert.Equal(t, MessageLocationDenied, snap.Banner.Text)
		assert.Equal(t, DefaultLocation, snap.Map.Center)
		assert.Equal(t, LabelDefaultLocation, snap.Map.Origin.Label)
		assert.Len(t, snap.Rows, 2)
		assert.True(t, snap.Controls.LocateEnabled)
		assert.True(t, snap.Controls.SearchAreaEnabled)
		assert.Equal(t, DefaultLocation, f.places.lastRequest().Center)
	})

	t.Run("unsupported", func(t *testing.T) {
		f := newControllerFixture(t, nil)

		require.NoError(t, f.controller.Locate(context.Background()))

		snap := f.controller.Snapshot()
		assert.True(t, snap.Banner.Visible)
		assert.Equal(t, MessageGeolocationUnsupported, snap.Banner.Text)
		assert.Equal(t, DefaultLocation, snap.Map.Center)
	})
}

func TestAppController_ControlsDisabledWhileInFlight(t *testing.T) {
	f := newControllerFixture(t, geolocation.NewMockPositionSource(DefaultLocation))
	require.NoError(t, f.controller.Startup(context.Background()))

	entered, release := f.places.hold()
	done := make(chan error, 1)
	go func() { done <- f.controller.Locate(context.Background()) }()
	<-entered

	snap := f.controller.Snapshot()
	assert.Equal(t, entities.WidgetPhaseQuerying, snap.Phase)
	assert.False(t, snap.Controls.LocateEnabled)
	assert.False(t, snap.Controls.SearchAreaEnabled)
	assert.True(t, f.controller.InFlight())

	assert.ErrorIs(t, f.controller.Locate(context.Background()), ErrFlowInProgress)
	assert.ErrorIs(t, f.controller.SearchThisArea(context.Background()), ErrFlowInProgress)

	release()
	require.NoError(t, <-done)

	snap = f.controller.Snapshot()
	assert.True(t, snap.Controls.LocateEnabled)
	assert.True(t, snap.Controls.SearchAreaEnabled)
	assert.Equal(t, entities.WidgetPhaseRendered, snap.Phase)
}

func TestAppController_CancelDropsStaleResults(t *testing.T) {
	f := newControllerFixture(t, nil)
	require.NoError(t, f.controller.Startup(context.Background()))
	before := f.controller.Snapshot()

	entered, release := f.places.hold()
	f.places.mu.Lock()
	f.places.results = entities.ResultSet{place("z", "Zulu", rating(5), 10, 10)}
	f.places.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- f.controller.SearchThisArea(context.Background()) }()
	<-entered

	assert.True(t, f.controller.Cancel())
	assert.False(t, f.controller.Cancel(), "nothing left to cancel")

	snap := f.controller.Snapshot()
	assert.True(t, snap.Controls.LocateEnabled)
	assert.Greater(t, snap.Generation, before.Generation)

	release()
	err := <-done
	assert.ErrorIs(t, err, ErrFlowCancelled)

	snap = f.controller.Snapshot()
	assert.Equal(t, before.Rows, snap.Rows, "stale results are never rendered")
	assert.Empty(t, snap.Map.Markers)
	assert.Equal(t, entities.WidgetPhaseIdle, snap.Phase)
	assert.True(t, snap.Controls.LocateEnabled)
}

func TestAppController_NewFlowAfterCancel(t *testing.T) {
	f := newControllerFixture(t, nil)
	require.NoError(t, f.controller.Startup(context.Background()))

	entered, release := f.places.hold()
	stale := make(chan error, 1)
	go func() { stale <- f.controller.SearchThisArea(context.Background()) }()
	<-entered
	require.True(t, f.controller.Cancel())

	f.places.mu.Lock()
	f.places.gate = nil
	f.places.mu.Unlock()
	require.NoError(t, f.controller.Locate(context.Background()))

	release()
	assert.ErrorIs(t, <-stale, ErrFlowCancelled)

	snap := f.controller.Snapshot()
	assert.Equal(t, entities.WidgetPhaseRendered, snap.Phase)
	assert.True(t, snap.Controls.LocateEnabled, "stale flow must not touch the new flow's controls")
	assert.Len(t, snap.Rows, 2)
}

func TestAppController_SearchThisArea(t *testing.T) {
	f := newControllerFixture(t, &geolocation.MockPositionSource{Err: errors.New("no signal")})
	require.NoError(t, f.controller.Locate(context.Background()))
	require.True(t, f.controller.Snapshot().Banner.Visible)

	center := entities.Coordinate{Latitude: 40.75, Longitude: -73.99}
	bounds := &entities.Bounds{
		NorthEast: entities.Coordinate{Latitude: 40.76, Longitude: -73.97},
		SouthWest: entities.Coordinate{Latitude: 40.74, Longitude: -74.01},
	}
	_, err := f.controller.ReportViewport(context.Background(), &center, nil, bounds)
	require.NoError(t, err)

	require.NoError(t, f.controller.SearchThisArea(context.Background()))

	snap := f.controller.Snapshot()
	assert.False(t, snap.Banner.Visible)
	assert.Equal(t, center, snap.Map.Center)
	assert.Equal(t, LabelSearchArea, snap.Map.Origin.Label)

	req := f.places.lastRequest()
	assert.Equal(t, center, req.Center)
	assert.Equal(t, entities.SearchTriggerSearchArea, req.Trigger)
	assert.NotEqual(t, 1500.0, req.RadiusMeters)
	assert.Greater(t, req.RadiusMeters, 0.0)
}

func TestAppController_SelectRowAndMarker(t *testing.T) {
	f := newControllerFixture(t, nil)
	require.NoError(t, f.controller.Startup(context.Background()))

	snap, err := f.controller.SelectRow(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 16, snap.Map.Zoom)
	require.NotNil(t, snap.Map.Overlay)
	assert.Equal(t, "Bravo", snap.Map.Overlay.Name)

	markerID := snap.Map.Markers[0].ID
	snap, err = f.controller.ClickMarker(context.Background(), markerID)
	require.NoError(t, err)
	assert.Equal(t, markerID, snap.Map.Overlay.MarkerID)

	_, err = f.controller.SelectRow(context.Background(), 9)
	assert.Error(t, err)

	types := f.bus.types()
	assert.Contains(t, types, entities.WidgetEventMapFocused)
	assert.Contains(t, types, entities.WidgetEventOverlayOpened)
}

func TestAppController_SnapshotIsACopy(t *testing.T) {
	f := newControllerFixture(t, nil)
	require.NoError(t, f.controller.Startup(context.Background()))

	snap := f.controller.Snapshot()
	snap.Rows[0].Name = "changed"
	snap.Map.Markers[0].Title = "changed"
	snap.Map.Origin.Label = "changed"

	fresh := f.controller.Snapshot()
	assert.Equal(t, "Alpha", fresh.Rows[0].Name)
	assert.Equal(t, "Alpha", fresh.Map.Markers[0].Title)
	assert.Equal(t, LabelDefaultLocation, fresh.Map.Origin.Label)
}

func TestAppController_Close(t *testing.T) {
	f := newControllerFixture(t, nil)
	require.NoError(t, f.controller.Startup(context.Background()))

	f.controller.Close()
	f.controller.Close()

	assert.Error(t, f.controller.Locate(context.Background()))
	types := f.bus.types()
	assert.Equal(t, entities.WidgetEventClosed, types[len(types)-1])
}
