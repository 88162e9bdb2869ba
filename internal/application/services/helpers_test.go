package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

// Mocks

type MockPlacesProvider struct {
	mock.Mock
}

func (m *MockPlacesProvider) NearbySearch(ctx context.Context, req providers.NearbySearchRequest) (*providers.NearbySearchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.NearbySearchResponse), args.Error(1)
}

type MockPositionSource struct {
	mock.Mock
}

func (m *MockPositionSource) CurrentPosition(ctx context.Context, opts providers.PositionOptions) (*providers.Position, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Position), args.Error(1)
}

type MockSearchAnalyticsRepository struct {
	mock.Mock
}

func (m *MockSearchAnalyticsRepository) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockSearchAnalyticsRepository) GetZeroResultSearches(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SearchEvent), args.Error(1)
}

// Fakes

// stubPlaces answers every query with results. When gate is set, Query
// signals entered and waits for gate to close.
type stubPlaces struct {
	mu       sync.Mutex
	results  entities.ResultSet
	requests []entities.SearchRequest
	gate     chan struct{}
	entered  chan struct{}
}

func (s *stubPlaces) Query(ctx context.Context, req entities.SearchRequest) entities.ResultSet {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	gate, entered, results := s.gate, s.entered, s.results
	s.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		<-gate
	}
	return results
}

func (s *stubPlaces) hold() (entered chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	s.entered = make(chan struct{}, 1)
	gate := s.gate
	return s.entered, func() { close(gate) }
}

func (s *stubPlaces) lastRequest() entities.SearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

type recordingBus struct {
	mu     sync.Mutex
	events []*entities.WidgetEvent
}

func (b *recordingBus) Publish(ctx context.Context, channel string, event *entities.WidgetEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.WidgetEvent, error) {
	return nil, nil
}

func (b *recordingBus) Close() error {
	return nil
}

func (b *recordingBus) types() []entities.WidgetEventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]entities.WidgetEventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventType)
	}
	return out
}

func rating(v float64) *float64 {
	return &v
}

func place(id, name string, r *float64, lat, lng float64) entities.Place {
	return entities.Place{
		ID:         id,
		Name:       name,
		Rating:     r,
		Vicinity:   name + " street",
		Coordinate: &entities.Coordinate{Latitude: lat, Longitude: lng},
	}
}
