package providers

import (
	"context"

	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
)

// Places backend statuses.
const (
	PlacesStatusOK          = "OK"
	PlacesStatusZeroResults = "ZERO_RESULTS"
)

// NearbySearchRequest is a single nearby-search call.
type NearbySearchRequest struct {
	Location     entities.Coordinate
	RadiusMeters float64
	Type         string
	OpenNow      bool
}

// NearbySearchResponse carries the raw, unsorted results and backend status.
type NearbySearchResponse struct {
	Status  string
	Results []entities.Place
}

// PlacesProvider defines the external nearby-search backend
type PlacesProvider interface {
	NearbySearch(ctx context.Context, req NearbySearchRequest) (*NearbySearchResponse, error)
}
