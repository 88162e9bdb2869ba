package entities

import "fmt"

// Coordinate is an immutable latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// String formats the coordinate as "lat,lng" the way map services expect it.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Valid reports whether the coordinate lies within world bounds.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Bounds is the visible map rectangle.
type Bounds struct {
	NorthEast Coordinate `json:"northeast"`
	SouthWest Coordinate `json:"southwest"`
}
