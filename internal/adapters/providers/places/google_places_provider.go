package places

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

const (
	googleNearbySearchURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	nearbyCacheTTL        = 5 * time.Minute
	defaultHTTPTimeout    = 8 * time.Second

	// MaxNearbyRadiusMeters is the largest radius Nearby Search accepts.
	MaxNearbyRadiusMeters = 50000.0
)

// GooglePlacesProvider implements PlacesProvider with the Places Nearby Search web service.
type GooglePlacesProvider struct {
	apiKey     string
	httpClient *http.Client
	cache      providers.CacheProvider
	baseURL    string
}

// NewGooglePlacesProvider creates a new Google places provider.
func NewGooglePlacesProvider(apiKey string, cache providers.CacheProvider) providers.PlacesProvider {
	return NewGooglePlacesProviderWithOptions(apiKey, cache, googleNearbySearchURL, nil)
}

// NewGooglePlacesProviderWithOptions allows overriding base URL and HTTP client (used for tests).
func NewGooglePlacesProviderWithOptions(apiKey string, cache providers.CacheProvider, baseURL string, httpClient *http.Client) providers.PlacesProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = googleNearbySearchURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &GooglePlacesProvider{
		apiKey:     apiKey,
		httpClient: httpClient,
		cache:      cache,
		baseURL:    baseURL,
	}
}

// NearbySearch issues one nearby search. Backend statuses other than OK are
// returned in the response rather than as errors.
func (g *GooglePlacesProvider) NearbySearch(ctx context.Context, req providers.NearbySearchRequest) (*providers.NearbySearchResponse, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("google maps api key is required")
	}

	radius := req.RadiusMeters
	if radius > MaxNearbyRadiusMeters {
		radius = MaxNearbyRadiusMeters
	}

	params := url.Values{}
	params.Set("location", req.Location.String())
	params.Set("radius", strconv.FormatFloat(radius, 'f', 0, 64))
	if req.Type != "" {
		params.Set("type", req.Type)
	}
	if req.OpenNow {
		params.Set("opennow", "true")
	}

	cacheKey := "places:v1:nearby:" + hashKey(params.Encode())
	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			var resp providers.NearbySearchResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				return &resp, nil
			}
		}
	}

	params.Set("key", g.apiKey)
	payload, err := g.doRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	resp := &providers.NearbySearchResponse{
		Status:  payload.Status,
		Results: make([]entities.Place, 0, len(payload.Results)),
	}
	for _, r := range payload.Results {
		resp.Results = append(resp.Results, r.toPlace())
	}

	if payload.Status != providers.PlacesStatusOK {
		log.Debug().
			Str("status", payload.Status).
			Str("error_message", payload.ErrorMessage).
			Msg("nearby search returned non-OK status")
		return resp, nil
	}

	if g.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			_ = g.cache.Set(ctx, cacheKey, data, nearbyCacheTTL)
		}
	}

	return resp, nil
}

func (g *GooglePlacesProvider) doRequest(ctx context.Context, params url.Values) (*googleNearbySearchResponse, error) {
	reqURL := fmt.Sprintf("%s?%s", g.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build nearby search request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nearby search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("nearby search returned status %d", resp.StatusCode)
	}

	var payload googleNearbySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode nearby search response: %w", err)
	}
	return &payload, nil
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

type googleNearbySearchResponse struct {
	Status       string               `json:"status"`
	ErrorMessage string               `json:"error_message,omitempty"`
	Results      []googleNearbyResult `json:"results"`
}

type googleNearbyResult struct {
	PlaceID  string          `json:"place_id"`
	Name     string          `json:"name"`
	Rating   *float64        `json:"rating,omitempty"`
	Vicinity string          `json:"vicinity"`
	Geometry *googleGeometry `json:"geometry,omitempty"`
}

type googleGeometry struct {
	Location *googleLocation `json:"location,omitempty"`
}

type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (r googleNearbyResult) toPlace() entities.Place {
	place := entities.Place{
		ID:       r.PlaceID,
		Name:     r.Name,
		Rating:   r.Rating,
		Vicinity: r.Vicinity,
	}
	if r.Geometry != nil && r.Geometry.Location != nil {
		place.Coordinate = &entities.Coordinate{
			Latitude:  r.Geometry.Location.Lat,
			Longitude: r.Geometry.Location.Lng,
		}
	}
	return place
}
