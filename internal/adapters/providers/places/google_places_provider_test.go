package places_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/nearbyfinder/internal/adapters/providers/places"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

const nearbyOK = `{
  "status": "OK",
  "results": [
    {"place_id": "p1", "name": "A", "rating": 4.2, "vicinity": "1 First Ave",
     "geometry": {"location": {"lat": 40.731, "lng": -73.934}}},
    {"name": "C", "vicinity": "3 Third Ave"}
  ]
}`

func TestGooglePlacesProvider_NearbySearch(t *testing.T) {
	var calls int32
	var lastQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		lastQuery.Store(r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(nearbyOK))
	}))
	defer server.Close()

	cache := newMemoryCache()
	provider := places.NewGooglePlacesProviderWithOptions("test-key", cache, server.URL, server.Client())

	req := providers.NearbySearchRequest{
		Location:     entities.Coordinate{Latitude: 40.73061, Longitude: -73.935242},
		RadiusMeters: 1500,
		Type:         "store",
	}
	resp, err := provider.NearbySearch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, providers.PlacesStatusOK, resp.Status)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "p1", resp.Results[0].ID)
	require.NotNil(t, resp.Results[0].Rating)
	assert.Equal(t, 4.2, *resp.Results[0].Rating)
	require.NotNil(t, resp.Results[0].Coordinate)
	assert.Equal(t, 40.731, resp.Results[0].Coordinate.Latitude)
	assert.Nil(t, resp.Results[1].Coordinate)
	assert.Nil(t, resp.Results[1].Rating)

	query := lastQuery.Load().(string)
	assert.Contains(t, query, "type=store")
	assert.Contains(t, query, "radius=1500")
	assert.Contains(t, query, "key=test-key")
	assert.NotContains(t, query, "opennow")

	_, err = provider.NearbySearch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call should be served from cache")
}

func TestGooglePlacesProvider_NonOKStatusNotCached(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"status": "OVER_QUERY_LIMIT", "error_message": "quota", "results": []}`))
	}))
	defer server.Close()

	provider := places.NewGooglePlacesProviderWithOptions("test-key", newMemoryCache(), server.URL, server.Client())
	req := providers.NearbySearchRequest{Location: entities.Coordinate{Latitude: 1, Longitude: 2}, RadiusMeters: 500, Type: "store"}

	resp, err := provider.NearbySearch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "OVER_QUERY_LIMIT", resp.Status)

	_, err = provider.NearbySearch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGooglePlacesProvider_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := places.NewGooglePlacesProviderWithOptions("test-key", nil, server.URL, server.Client())
	_, err := provider.NearbySearch(context.Background(), providers.NearbySearchRequest{RadiusMeters: 1500})
	assert.Error(t, err)
}

func TestGooglePlacesProvider_RequiresKey(t *testing.T) {
	provider := places.NewGooglePlacesProvider("", nil)
	_, err := provider.NearbySearch(context.Background(), providers.NearbySearchRequest{RadiusMeters: 1500})
	assert.Error(t, err)
}

func TestGooglePlacesProvider_ClampsRadius(t *testing.T) {
	var lastQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastQuery.Store(r.URL.Query().Get("radius"))
		_, _ = w.Write([]byte(nearbyOK))
	}))
	defer server.Close()

	provider := places.NewGooglePlacesProviderWithOptions("test-key", nil, server.URL, server.Client())

	tests := []struct {
		radius float64
		want   string
	}{
		{radius: 1615330, want: "50000"},
		{radius: 50000, want: "50000"},
		{radius: 49999, want: "49999"},
	}
	for _, tt := range tests {
		_, err := provider.NearbySearch(context.Background(), providers.NearbySearchRequest{
			Location:     entities.Coordinate{Latitude: 40, Longitude: -75},
			RadiusMeters: tt.radius,
			Type:         "store",
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, lastQuery.Load().(string))
	}
}
