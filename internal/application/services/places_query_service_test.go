package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

func TestPlacesQueryService_Query(t *testing.T) {
	center := entities.Coordinate{Latitude: 40.73061, Longitude: -73.935242}

	t.Run("keeps first ten then sorts by rating", func(t *testing.T) {
		provider := new(MockPlacesProvider)
		service := NewPlacesQueryService(provider, "", 0)

		raw := []entities.Place{
			place("a", "A", rating(3.0), 1, 1),
			place("b", "B", nil, 1, 2),
			place("c", "C", rating(4.5), 1, 3),
			place("d", "D", rating(3.0), 1, 4),
		}
		for i := 0; i < 6; i++ {
			raw = append(raw, place(fmt.Sprintf("f%d", i), "Filler", rating(1.0), 2, float64(i)))
		}
		// Beyond the first ten; never considered even though highest rated.
		raw = append(raw, place("late", "Late", rating(5.0), 3, 3))

		provider.On("NearbySearch", mock.Anything, mock.Anything).
			Return(&providers.NearbySearchResponse{Status: providers.PlacesStatusOK, Results: raw}, nil)

		results := service.Query(context.Background(), entities.SearchRequest{Center: center})

		require.Len(t, results, entities.MaxResults)
		assert.Equal(t, "c", results[0].ID)
		// Equal ratings keep backend order.
		assert.Equal(t, "a", results[1].ID)
		assert.Equal(t, "d", results[2].ID)
		assert.Equal(t, "b", results[len(results)-1].ID)
		for _, p := range results {
			assert.NotEqual(t, "late", p.ID)
		}
		provider.AssertExpectations(t)
	})

	t.Run("sends store type without open-now and default radius", func(t *testing.T) {
		provider := new(MockPlacesProvider)
		service := NewPlacesQueryService(provider, "", 0)

		provider.On("NearbySearch", mock.Anything, mock.MatchedBy(func(req providers.NearbySearchRequest) bool {
			return req.Type == "store" && !req.OpenNow && req.RadiusMeters == 1500 && req.Location == center
		})).Return(&providers.NearbySearchResponse{Status: providers.PlacesStatusZeroResults}, nil)

		results := service.Query(context.Background(), entities.SearchRequest{Center: center})

		assert.NotNil(t, results)
		assert.Empty(t, results)
		provider.AssertExpectations(t)
	})

	t.Run("transport error yields empty set", func(t *testing.T) {
		provider := new(MockPlacesProvider)
		service := NewPlacesQueryService(provider, "store", 1500)

		provider.On("NearbySearch", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		results := service.Query(context.Background(), entities.SearchRequest{Center: center})
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("non-OK status with results yields empty set", func(t *testing.T) {
		provider := new(MockPlacesProvider)
		service := NewPlacesQueryService(provider, "store", 1500)

		provider.On("NearbySearch", mock.Anything, mock.Anything).Return(&providers.NearbySearchResponse{
			Status:  "OVER_QUERY_LIMIT",
			Results: []entities.Place{place("a", "A", rating(4), 1, 1)},
		}, nil)

		assert.Empty(t, service.Query(context.Background(), entities.SearchRequest{Center: center}))
	})

	t.Run("OK status with nil results yields empty set", func(t *testing.T) {
		provider := new(MockPlacesProvider)
		service := NewPlacesQueryService(provider, "store", 1500)

		provider.On("NearbySearch", mock.Anything, mock.Anything).
			Return(&providers.NearbySearchResponse{Status: providers.PlacesStatusOK}, nil)

		assert.Empty(t, service.Query(context.Background(), entities.SearchRequest{Center: center}))
	})
}

func TestPlacesQueryService_RecordsSearchEvent(t *testing.T) {
	provider := new(MockPlacesProvider)
	repo := new(MockSearchAnalyticsRepository)
	service := NewPlacesQueryService(provider, "store", 1500)
	service.SetAnalytics(repo)

	provider.On("NearbySearch", mock.Anything, mock.Anything).Return(&providers.NearbySearchResponse{
		Status:  providers.PlacesStatusOK,
		Results: []entities.Place{place("a", "A", rating(4), 1, 1), place("b", "B", nil, 1, 2)},
	}, nil)

	logged := make(chan struct{})
	repo.On("LogEvent", mock.Anything, mock.MatchedBy(func(e *entities.SearchEvent) bool {
		return e.WidgetID == "w-1" &&
			e.Trigger == entities.SearchTriggerLocate &&
			e.ResultCount == 2 &&
			e.Status == providers.PlacesStatusOK &&
			e.RadiusMeters == 800
	})).Run(func(mock.Arguments) { close(logged) }).Return(nil)

	results := service.Query(context.Background(), entities.SearchRequest{
		WidgetID:     "w-1",
		Center:       entities.Coordinate{Latitude: 1, Longitude: 1},
		RadiusMeters: 800,
		Trigger:      entities.SearchTriggerLocate,
	})
	assert.Len(t, results, 2)

	select {
	case <-logged:
	case <-time.After(time.Second):
		t.Fatal("search event was not recorded")
	}
	repo.AssertExpectations(t)
}

func TestRankPlaces_Empty(t *testing.T) {
	ranked := RankPlaces(nil)
	assert.NotNil(t, ranked)
	assert.Empty(t, ranked)
}
