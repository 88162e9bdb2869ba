package entities

import (
	"time"

	"github.com/google/uuid"
)

// WidgetEventType names the view change carried by a WidgetEvent.
type WidgetEventType string

const (
	WidgetEventMapRecentered   WidgetEventType = "map_recentered"
	WidgetEventMarkersPlaced   WidgetEventType = "markers_placed"
	WidgetEventResultsRendered WidgetEventType = "results_rendered"
	WidgetEventMapFocused      WidgetEventType = "map_focused"
	WidgetEventOverlayOpened   WidgetEventType = "overlay_opened"
	WidgetEventBannerChanged   WidgetEventType = "banner_changed"
	WidgetEventControlsChanged WidgetEventType = "controls_changed"
	WidgetEventViewportChanged WidgetEventType = "viewport_changed"
	WidgetEventClosed          WidgetEventType = "closed"
)

// WidgetEvent is published whenever a widget's view state changes.
type WidgetEvent struct {
	ID        string          `json:"id"`
	WidgetID  string          `json:"widget_id"`
	EventType WidgetEventType `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Snapshot  *WidgetSnapshot `json:"snapshot,omitempty"`
}

// NewWidgetEvent creates a new widget event
func NewWidgetEvent(widgetID string, eventType WidgetEventType, snapshot *WidgetSnapshot) *WidgetEvent {
	return &WidgetEvent{
		ID:        uuid.New().String(),
		WidgetID:  widgetID,
		EventType: eventType,
		Timestamp: time.Now(),
		Snapshot:  snapshot,
	}
}
