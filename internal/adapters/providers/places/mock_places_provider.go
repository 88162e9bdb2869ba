package places

import (
	"context"
	"fmt"

	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

// MockPlacesProvider returns a fixed neighbourhood of shops around any center.
type MockPlacesProvider struct{}

// NewMockPlacesProvider creates a new mock places provider
func NewMockPlacesProvider() providers.PlacesProvider {
	return &MockPlacesProvider{}
}

// NearbySearch returns canned places offset from the requested location
func (m *MockPlacesProvider) NearbySearch(ctx context.Context, req providers.NearbySearchRequest) (*providers.NearbySearchResponse, error) {
	rating := func(v float64) *float64 { return &v }

	seeds := []struct {
		name   string
		rating *float64
		dLat   float64
		dLng   float64
	}{
		{"Corner Grocery", rating(4.2), 0.002, 0.001},
		{"Hardware Depot", rating(4.8), -0.003, 0.002},
		{"Book Nook", nil, 0.001, -0.004},
		{"Flower Market", rating(3.9), -0.001, -0.002},
	}

	results := make([]entities.Place, 0, len(seeds))
	for i, s := range seeds {
		results = append(results, entities.Place{
			ID:       fmt.Sprintf("mock-%d", i+1),
			Name:     s.name,
			Rating:   s.rating,
			Vicinity: fmt.Sprintf("%d Main St", 100+i*10),
			Coordinate: &entities.Coordinate{
				Latitude:  req.Location.Latitude + s.dLat,
				Longitude: req.Location.Longitude + s.dLng,
			},
		})
	}

	return &providers.NearbySearchResponse{Status: providers.PlacesStatusOK, Results: results}, nil
}
