package entities

// WidgetPhase is the controller's position in a locate or search flow.
type WidgetPhase string

const (
	WidgetPhaseIdle       WidgetPhase = "idle"
	WidgetPhaseLocating   WidgetPhase = "locating"
	WidgetPhaseMapUpdated WidgetPhase = "map_updated"
	WidgetPhaseQuerying   WidgetPhase = "querying"
	WidgetPhaseRendered   WidgetPhase = "rendered"
)

// MarkerKind separates the origin marker from result markers.
type MarkerKind string

const (
	MarkerKindOrigin MarkerKind = "origin"
	MarkerKindResult MarkerKind = "result"
)

// Marker is a pin on the map.
type Marker struct {
	ID       MarkerID   `json:"id"`
	Kind     MarkerKind `json:"kind"`
	Position Coordinate `json:"position"`
	Label    string     `json:"label,omitempty"`
	Title    string     `json:"title,omitempty"`
	PlaceKey string     `json:"place_key,omitempty"`
}

// InfoOverlay is the popup anchored to a marker.
type InfoOverlay struct {
	MarkerID MarkerID `json:"marker_id"`
	Name     string   `json:"name"`
	Vicinity string   `json:"vicinity"`
}

// MapState is what the browser map must display.
type MapState struct {
	MapID   string       `json:"map_id"`
	Center  Coordinate   `json:"center"`
	Zoom    int          `json:"zoom"`
	Bounds  *Bounds      `json:"bounds,omitempty"`
	Origin  *Marker      `json:"origin,omitempty"`
	Markers []Marker     `json:"markers"`
	Overlay *InfoOverlay `json:"overlay,omitempty"`
}

// ResultRow is one rendered entry of the results list.
type ResultRow struct {
	Rank        int    `json:"rank"`
	Name        string `json:"name"`
	RatingLabel string `json:"rating_label"`
	Address     string `json:"address"`
	PlaceKey    string `json:"place_key,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// Banner is the error banner above the map.
type Banner struct {
	Visible bool   `json:"visible"`
	Text    string `json:"text,omitempty"`
}

// Controls reports whether the two action buttons accept clicks.
type Controls struct {
	LocateEnabled     bool `json:"locate_enabled"`
	SearchAreaEnabled bool `json:"search_area_enabled"`
}

// WidgetSnapshot is a self-contained copy of a widget's view state.
type WidgetSnapshot struct {
	WidgetID   string      `json:"widget_id"`
	Phase      WidgetPhase `json:"phase"`
	Generation uint64      `json:"generation"`
	Map        MapState    `json:"map"`
	Rows       []ResultRow `json:"rows"`
	Banner     Banner      `json:"banner"`
	Controls   Controls    `json:"controls"`
}
