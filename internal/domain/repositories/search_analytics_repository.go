package repositories

import (
	"context"

	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
)

// SearchAnalyticsRepository stores one record per nearby search.
type SearchAnalyticsRepository interface {
	LogEvent(ctx context.Context, event *entities.SearchEvent) error
	GetZeroResultSearches(ctx context.Context, limit int) ([]*entities.SearchEvent, error)
}
