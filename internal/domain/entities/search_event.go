package entities

import (
	"time"
)

// SearchEvent represents a single nearby search for analytics.
type SearchEvent struct {
	ID           string        `json:"id" db:"id"`
	WidgetID     string        `json:"widget_id,omitempty" db:"widget_id"`
	Trigger      SearchTrigger `json:"trigger" db:"search_trigger"`
	Category     string        `json:"category" db:"category"`
	Latitude     float64       `json:"latitude" db:"latitude"`
	Longitude    float64       `json:"longitude" db:"longitude"`
	RadiusMeters float64       `json:"radius_meters" db:"radius_meters"`
	Status       string        `json:"status" db:"status"`
	ResultCount  int           `json:"result_count" db:"result_count"`
	LatencyMs    int           `json:"latency_ms" db:"latency_ms"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}
