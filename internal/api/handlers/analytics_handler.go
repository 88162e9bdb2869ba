package handlers

import (
	"net/http"
	"strconv"

	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/repositories"
)

const defaultAnalyticsLimit = 50

// AnalyticsHandler exposes stored search analytics
type AnalyticsHandler struct {
	repo repositories.SearchAnalyticsRepository
}

// NewAnalyticsHandler creates a new analytics handler. repo may be nil when
// analytics storage is disabled.
func NewAnalyticsHandler(repo repositories.SearchAnalyticsRepository) *AnalyticsHandler {
	return &AnalyticsHandler{repo: repo}
}

// GetZeroResultSearches handles GET /api/analytics/zero-result-searches
func (h *AnalyticsHandler) GetZeroResultSearches(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		respondWithError(w, http.StatusServiceUnavailable, "search analytics are disabled")
		return
	}

	limit := defaultAnalyticsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.repo.GetZeroResultSearches(r.Context(), limit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if events == nil {
		events = []*entities.SearchEvent{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"searches": events,
		"count":    len(events),
	})
}
