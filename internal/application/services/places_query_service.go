package services

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
	"github.com/zatekoja/nearbyfinder/internal/domain/repositories"
	"github.com/zatekoja/nearbyfinder/internal/infrastructure/observability"
)

const (
	// DefaultSearchRadiusMeters is used when a request carries no radius.
	DefaultSearchRadiusMeters = 1500.0
	// DefaultPlaceCategory is the place type every search asks for.
	DefaultPlaceCategory = "store"

	statusTransportError = "TRANSPORT_ERROR"
	statusNoResults      = "NO_RESULTS"
)

// PlacesQuerier runs one nearby search and never fails.
type PlacesQuerier interface {
	Query(ctx context.Context, req entities.SearchRequest) entities.ResultSet
}

// PlacesQueryService turns a nearby search into a top-10, rating-sorted ResultSet.
// Every backend failure degrades to an empty set.
type PlacesQueryService struct {
	provider      providers.PlacesProvider
	analytics     repositories.SearchAnalyticsRepository
	metrics       *observability.Metrics
	category      string
	defaultRadius float64
}

// NewPlacesQueryService creates a query service. Empty category and
// non-positive radius fall back to "store" and 1500m.
func NewPlacesQueryService(provider providers.PlacesProvider, category string, defaultRadius float64) *PlacesQueryService {
	if category == "" {
		category = DefaultPlaceCategory
	}
	if defaultRadius <= 0 {
		defaultRadius = DefaultSearchRadiusMeters
	}
	return &PlacesQueryService{
		provider:      provider,
		category:      category,
		defaultRadius: defaultRadius,
	}
}

// SetAnalytics enables best-effort search event recording
func (s *PlacesQueryService) SetAnalytics(repo repositories.SearchAnalyticsRepository) {
	s.analytics = repo
}

// SetMetrics enables query metrics
func (s *PlacesQueryService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// Query issues one nearby search. Transport errors, non-OK statuses and
// missing results all yield an empty ResultSet.
func (s *PlacesQueryService) Query(ctx context.Context, req entities.SearchRequest) entities.ResultSet {
	radius := req.RadiusMeters
	if radius <= 0 {
		radius = s.defaultRadius
	}
	category := req.Category
	if category == "" {
		category = s.category
	}

	ctx, span := observability.StartSpan(ctx, "places.nearby_search")
	defer span.End()

	start := time.Now()
	resp, err := s.provider.NearbySearch(ctx, providers.NearbySearchRequest{
		Location:     req.Center,
		RadiusMeters: radius,
		Type:         category,
		OpenNow:      false,
	})
	elapsed := time.Since(start)

	results := entities.ResultSet{}
	var status string
	switch {
	case err != nil:
		status = statusTransportError
		observability.RecordError(span, err)
		log.Warn().
			Err(err).
			Str("widget_id", req.WidgetID).
			Str("center", req.Center.String()).
			Msg("nearby search failed")
	case resp == nil || resp.Results == nil:
		status = statusNoResults
		if resp != nil && resp.Status != "" {
			status = resp.Status
		}
	case resp.Status != providers.PlacesStatusOK:
		status = resp.Status
		log.Debug().
			Str("widget_id", req.WidgetID).
			Str("status", resp.Status).
			Msg("nearby search returned no usable results")
	default:
		status = resp.Status
		results = RankPlaces(resp.Results)
	}

	observability.RecordPlacesQuery(ctx, s.metrics, string(req.Trigger), status, elapsed)
	s.track(req, category, radius, status, len(results), elapsed)

	return results
}

// RankPlaces keeps the first MaxResults places in backend order, then
// stable-sorts them by descending rating with a missing rating counted as 0.
func RankPlaces(places []entities.Place) entities.ResultSet {
	n := min(len(places), entities.MaxResults)
	ranked := make(entities.ResultSet, n)
	copy(ranked, places[:n])
	slices.SortStableFunc(ranked, func(a, b entities.Place) int {
		return cmp.Compare(b.RatingOrZero(), a.RatingOrZero())
	})
	return ranked
}

func (s *PlacesQueryService) track(req entities.SearchRequest, category string, radius float64, status string, count int, elapsed time.Duration) {
	if s.analytics == nil {
		return
	}
	event := &entities.SearchEvent{
		ID:           uuid.New().String(),
		WidgetID:     req.WidgetID,
		Trigger:      req.Trigger,
		Category:     category,
		Latitude:     req.Center.Latitude,
		Longitude:    req.Center.Longitude,
		RadiusMeters: radius,
		Status:       status,
		ResultCount:  count,
		LatencyMs:    int(elapsed.Milliseconds()),
		CreatedAt:    time.Now().UTC(),
	}

	// Recorded in the background so a slow database never delays a render.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.analytics.LogEvent(ctx, event); err != nil {
			log.Warn().Err(err).Msg("failed to log search event")
		}
	}()
}
