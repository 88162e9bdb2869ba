package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/repositories"
	"github.com/zatekoja/nearbyfinder/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/nearbyfinder/pkg/errors"
)

const searchAnalyticsTable = "search_analytics"

// SearchAnalyticsAdapter persists nearby-search records in Postgres.
type SearchAnalyticsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSearchAnalyticsAdapter creates a new search analytics adapter.
func NewSearchAnalyticsAdapter(client *postgres.Client) repositories.SearchAnalyticsRepository {
	return &SearchAnalyticsAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// LogEvent inserts one search record.
func (a *SearchAnalyticsAdapter) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	record := goqu.Record{
		"id":             event.ID,
		"widget_id":      sql.NullString{String: event.WidgetID, Valid: event.WidgetID != ""},
		"search_trigger": string(event.Trigger),
		"category":       event.Category,
		"latitude":       event.Latitude,
		"longitude":      event.Longitude,
		"radius_meters":  event.RadiusMeters,
		"status":         event.Status,
		"result_count":   event.ResultCount,
		"latency_ms":     event.LatencyMs,
		"created_at":     event.CreatedAt,
	}

	query, args, err := a.db.Insert(searchAnalyticsTable).Rows(record).Prepared(true).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build search event insert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to log search event", err)
	}
	return nil
}

// GetZeroResultSearches returns the most recent searches that found nothing.
func (a *SearchAnalyticsAdapter) GetZeroResultSearches(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query, args, err := a.db.From(searchAnalyticsTable).
		Select(
			"id", "widget_id", "search_trigger", "category", "latitude", "longitude",
			"radius_meters", "status", "result_count", "latency_ms", "created_at",
		).
		Where(goqu.C("result_count").Eq(0)).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build zero result query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get zero result searches", err)
	}
	defer rows.Close()

	events := make([]*entities.SearchEvent, 0)
	for rows.Next() {
		e := &entities.SearchEvent{}
		var widgetID sql.NullString
		var trigger string
		if err := rows.Scan(
			&e.ID,
			&widgetID,
			&trigger,
			&e.Category,
			&e.Latitude,
			&e.Longitude,
			&e.RadiusMeters,
			&e.Status,
			&e.ResultCount,
			&e.LatencyMs,
			&e.CreatedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan search event", err)
		}
		e.WidgetID = widgetID.String
		e.Trigger = entities.SearchTrigger(trigger)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate search events", err)
	}

	return events, nil
}
