package geolocation

import (
	"context"
	"time"

	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

// MockPositionSource returns a fixed fix or a fixed failure
type MockPositionSource struct {
	Coordinate entities.Coordinate
	Err        error
}

// NewMockPositionSource creates a mock source that always reports coord
func NewMockPositionSource(coord entities.Coordinate) *MockPositionSource {
	return &MockPositionSource{Coordinate: coord}
}

// CurrentPosition implements providers.PositionSource
func (m *MockPositionSource) CurrentPosition(ctx context.Context, opts providers.PositionOptions) (*providers.Position, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &providers.Position{
		Coordinate:     m.Coordinate,
		AccuracyMeters: 25,
		Timestamp:      time.Now(),
	}, nil
}
