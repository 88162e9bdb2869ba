package geolocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

var fixOptions = providers.PositionOptions{
	EnableHighAccuracy: true,
	Timeout:            10 * time.Second,
	MaximumAge:         60 * time.Second,
}

func TestClientPositionSource_ReusesFreshFix(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	src := NewClientPositionSource()
	src.now = func() time.Time { return now }

	src.ReportPosition(providers.Position{Coordinate: entities.Coordinate{Latitude: 51.5, Longitude: -0.12}})

	now = now.Add(59 * time.Second)
	pos, err := src.CurrentPosition(context.Background(), fixOptions)
	require.NoError(t, err)
	assert.Equal(t, 51.5, pos.Coordinate.Latitude)
}

func TestClientPositionSource_StaleFixWaitsForReport(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	src := NewClientPositionSource()
	src.now = func() time.Time { return now }

	src.ReportPosition(providers.Position{Coordinate: entities.Coordinate{Latitude: 1, Longitude: 1}})
	now = now.Add(61 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.CurrentPosition(ctx, fixOptions)
	assert.ErrorIs(t, err, providers.ErrPositionTimeout)
}

func TestClientPositionSource_WakesOnReport(t *testing.T) {
	src := NewClientPositionSource()

	done := make(chan *providers.Position, 1)
	go func() {
		pos, err := src.CurrentPosition(context.Background(), fixOptions)
		if err == nil {
			done <- pos
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	src.ReportPosition(providers.Position{Coordinate: entities.Coordinate{Latitude: 48.85, Longitude: 2.35}})

	select {
	case pos := <-done:
		require.NotNil(t, pos)
		assert.Equal(t, 48.85, pos.Coordinate.Latitude)
	case <-time.After(time.Second):
		t.Fatal("request not woken by report")
	}
}

func TestClientPositionSource_PendingFailureConsumedOnce(t *testing.T) {
	src := NewClientPositionSource()
	src.ReportFailure(providers.ErrPermissionDenied)

	_, err := src.CurrentPosition(context.Background(), fixOptions)
	assert.ErrorIs(t, err, providers.ErrPermissionDenied)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = src.CurrentPosition(ctx, fixOptions)
	assert.ErrorIs(t, err, providers.ErrPositionTimeout)
}

func TestClientPositionSource_IgnoresBrowserClock(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	t.Run("behind", func(t *testing.T) {
		src := NewClientPositionSource()
		src.now = func() time.Time { return now }

		src.ReportPosition(providers.Position{
			Coordinate: entities.Coordinate{Latitude: 35.68, Longitude: 139.69},
			Timestamp:  now.Add(-2 * time.Minute),
		})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		pos, err := src.CurrentPosition(ctx, fixOptions)
		require.NoError(t, err)
		assert.Equal(t, 35.68, pos.Coordinate.Latitude)
		assert.Equal(t, now, pos.Timestamp)
	})

	t.Run("ahead", func(t *testing.T) {
		current := now
		src := NewClientPositionSource()
		src.now = func() time.Time { return current }

		src.ReportPosition(providers.Position{
			Coordinate: entities.Coordinate{Latitude: 35.68, Longitude: 139.69},
			Timestamp:  now.Add(time.Hour),
		})
		current = current.Add(61 * time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := src.CurrentPosition(ctx, fixOptions)
		assert.ErrorIs(t, err, providers.ErrPositionTimeout)
	})
}
