package entities

import "fmt"

// MaxResults is the largest number of places kept from one query.
const MaxResults = 10

// Place is a single nearby-search candidate. Optional fields are nil or empty
// when the places backend did not supply them.
type Place struct {
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name"`
	Rating     *float64    `json:"rating,omitempty"`
	Vicinity   string      `json:"vicinity,omitempty"`
	Coordinate *Coordinate `json:"coordinate,omitempty"`
}

// Key returns the identity key correlating a place with its marker. Places
// without an ID fall back to their rounded coordinate, so two ID-less places at
// the same spot share a key and the later one wins in any index.
func (p Place) Key() string {
	if p.ID != "" {
		return p.ID
	}
	if p.Coordinate != nil {
		return fmt.Sprintf("coord:%.6f,%.6f", p.Coordinate.Latitude, p.Coordinate.Longitude)
	}
	return ""
}

// RatingOrZero treats a missing rating as 0.
func (p Place) RatingOrZero() float64 {
	if p.Rating == nil {
		return 0
	}
	return *p.Rating
}

// ResultSet is the ordered, rating-sorted outcome of one query.
type ResultSet []Place

// SearchRequest describes one nearby search.
type SearchRequest struct {
	WidgetID     string
	Center       Coordinate
	RadiusMeters float64
	Category     string
	Trigger      SearchTrigger
}

// SearchTrigger names the flow that issued a query.
type SearchTrigger string

const (
	SearchTriggerStartup    SearchTrigger = "startup"
	SearchTriggerLocate     SearchTrigger = "locate"
	SearchTriggerSearchArea SearchTrigger = "search_area"
)

// MarkerID is an opaque handle to a marker on the map.
type MarkerID string

// MarkerIndex maps place identity keys to their markers for one query.
type MarkerIndex map[string]MarkerID
