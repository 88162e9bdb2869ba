package services

import (
	"fmt"
	"math"

	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	apperrors "github.com/zatekoja/nearbyfinder/pkg/errors"
	"github.com/zatekoja/nearbyfinder/pkg/geo"
)

const (
	// FocusZoomDelta is added to the base zoom when a result is focused.
	FocusZoomDelta = 2

	minZoom = 0
	maxZoom = 22
)

// MapView holds the state the browser map must display: center, zoom, the
// origin marker, result markers and the info overlay. It is not safe for
// concurrent use; AppController serializes access.
type MapView struct {
	mapID    string
	center   entities.Coordinate
	zoom     int
	baseZoom int
	bounds   *entities.Bounds

	origin  *entities.Marker
	markers map[entities.MarkerID]*entities.Marker
	order   []entities.MarkerID
	places  map[entities.MarkerID]entities.Place
	overlay *entities.InfoOverlay

	nextMarker uint64
}

// NewMapView creates a map centered on center at the given base zoom
func NewMapView(mapID string, center entities.Coordinate, baseZoom int) *MapView {
	return &MapView{
		mapID:    mapID,
		center:   center,
		zoom:     baseZoom,
		baseZoom: baseZoom,
		markers:  make(map[entities.MarkerID]*entities.Marker),
		places:   make(map[entities.MarkerID]entities.Place),
	}
}

// Center returns the current map center
func (m *MapView) Center() entities.Coordinate {
	return m.center
}

// Zoom returns the current zoom level
func (m *MapView) Zoom() int {
	return m.zoom
}

// Recenter moves the map to coordinate, removes every marker and the overlay,
// and places a single origin marker labeled label.
func (m *MapView) Recenter(coordinate entities.Coordinate, label string) {
	m.center = coordinate
	m.clearResults()
	m.overlay = nil
	m.origin = &entities.Marker{
		ID:       m.newMarkerID(),
		Kind:     entities.MarkerKindOrigin,
		Position: coordinate,
		Label:    label,
	}
}

// PlaceResultMarkers replaces the result markers with one per place that has
// a coordinate and returns the identity key index for them. When two places
// share a key the later one keeps the marker.
func (m *MapView) PlaceResultMarkers(results entities.ResultSet) entities.MarkerIndex {
	m.clearResults()
	m.overlay = nil

	index := make(entities.MarkerIndex, len(results))
	for _, place := range results {
		if place.Coordinate == nil {
			continue
		}
		key := place.Key()
		if previous, ok := index[key]; ok {
			m.removeResult(previous)
		}

		id := m.newMarkerID()
		m.markers[id] = &entities.Marker{
			ID:       id,
			Kind:     entities.MarkerKindResult,
			Position: *place.Coordinate,
			Title:    place.Name,
			PlaceKey: key,
		}
		m.order = append(m.order, id)
		m.places[id] = place
		index[key] = id
	}
	return index
}

// ClickMarker opens the info overlay on a result marker. Clicking the origin
// marker does nothing.
func (m *MapView) ClickMarker(id entities.MarkerID) error {
	if m.origin != nil && m.origin.ID == id {
		return nil
	}
	place, ok := m.places[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("marker %s not found", id))
	}
	m.openOverlay(id, place)
	return nil
}

// FocusOn pans to a result marker, zooms to base+2 and opens its overlay.
func (m *MapView) FocusOn(id entities.MarkerID) error {
	marker, ok := m.markers[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("marker %s not found", id))
	}
	m.center = marker.Position
	m.zoom = m.baseZoom + FocusZoomDelta
	m.openOverlay(id, m.places[id])
	return nil
}

// PanTo pans to coordinate and zooms to base+2 without opening an overlay.
func (m *MapView) PanTo(coordinate entities.Coordinate) {
	m.center = coordinate
	m.zoom = m.baseZoom + FocusZoomDelta
}

// UpdateViewport records a pan or zoom made in the browser. Nil arguments
// leave the corresponding value unchanged.
func (m *MapView) UpdateViewport(center *entities.Coordinate, zoom *int, bounds *entities.Bounds) error {
	if center != nil && !center.Valid() {
		return apperrors.NewValidationError("viewport center is out of range")
	}
	if zoom != nil && (*zoom < minZoom || *zoom > maxZoom) {
		return apperrors.NewValidationError(fmt.Sprintf("zoom must be between %d and %d", minZoom, maxZoom))
	}
	if bounds != nil && (!bounds.NorthEast.Valid() || !bounds.SouthWest.Valid()) {
		return apperrors.NewValidationError("viewport bounds are out of range")
	}

	if center != nil {
		m.center = *center
	}
	if zoom != nil {
		m.zoom = *zoom
	}
	if bounds != nil {
		b := *bounds
		m.bounds = &b
	}
	return nil
}

// CurrentBoundsRadius returns the distance in meters from the center of the
// visible bounds to their north-east corner, or 1500 when unknown.
func (m *MapView) CurrentBoundsRadius() float64 {
	if m.bounds == nil {
		return DefaultSearchRadiusMeters
	}
	ne := m.bounds.NorthEast
	sw := m.bounds.SouthWest
	lat, lng := geo.BoundsCenter(sw.Latitude, sw.Longitude, ne.Latitude, ne.Longitude)
	radius := geo.Haversine(lat, lng, ne.Latitude, ne.Longitude)
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0 {
		return DefaultSearchRadiusMeters
	}
	return radius
}

// State returns a copy of the map state
func (m *MapView) State() entities.MapState {
	state := entities.MapState{
		MapID:   m.mapID,
		Center:  m.center,
		Zoom:    m.zoom,
		Markers: make([]entities.Marker, 0, len(m.order)),
	}
	if m.bounds != nil {
		b := *m.bounds
		state.Bounds = &b
	}
	if m.origin != nil {
		origin := *m.origin
		state.Origin = &origin
	}
	for _, id := range m.order {
		state.Markers = append(state.Markers, *m.markers[id])
	}
	if m.overlay != nil {
		overlay := *m.overlay
		state.Overlay = &overlay
	}
	return state
}

func (m *MapView) openOverlay(id entities.MarkerID, place entities.Place) {
	m.overlay = &entities.InfoOverlay{
		MarkerID: id,
		Name:     place.Name,
		Vicinity: place.Vicinity,
	}
}

func (m *MapView) clearResults() {
	clear(m.markers)
	clear(m.places)
	m.order = m.order[:0]
}

func (m *MapView) removeResult(id entities.MarkerID) {
	delete(m.markers, id)
	delete(m.places, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *MapView) newMarkerID() entities.MarkerID {
	m.nextMarker++
	return entities.MarkerID(fmt.Sprintf("m%d", m.nextMarker))
}
