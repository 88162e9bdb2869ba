package handlers

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/zatekoja/nearbyfinder/internal/application/services"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
	apperrors "github.com/zatekoja/nearbyfinder/pkg/errors"
)

// WidgetHandler handles widget session requests
type WidgetHandler struct {
	registry *services.WidgetRegistry
}

// NewWidgetHandler creates a new widget handler
func NewWidgetHandler(registry *services.WidgetRegistry) *WidgetHandler {
	return &WidgetHandler{registry: registry}
}

// viewportRequest is the map view reported by the browser after a pan or zoom.
type viewportRequest struct {
	Center *entities.Coordinate `json:"center,omitempty"`
	Zoom   *int                 `json:"zoom,omitempty"`
	Bounds *entities.Bounds     `json:"bounds,omitempty"`
}

// positionRequest is a browser geolocation result: a fix or an error code.
// Timestamp is accepted for compatibility but ignored, since the browser clock
// may be skewed; fix age is measured from receipt.
type positionRequest struct {
	Lat       *float64   `json:"lat,omitempty"`
	Lng       *float64   `json:"lng,omitempty"`
	Accuracy  float64    `json:"accuracy,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Error     string     `json:"error,omitempty"`
}

var positionFailures = map[string]error{
	"denied":      providers.ErrPermissionDenied,
	"timeout":     providers.ErrPositionTimeout,
	"unavailable": providers.ErrPositionUnavailable,
	"unsupported": providers.ErrGeolocationUnsupported,
}

// CreateWidget handles POST /api/widgets
func (h *WidgetHandler) CreateWidget(w http.ResponseWriter, r *http.Request) {
	session, err := h.registry.Create(context.WithoutCancel(r.Context()), clientIP(r))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, session.Controller.Snapshot())
}

// GetWidget handles GET /api/widgets/{id}
func (h *WidgetHandler) GetWidget(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, session.Controller.Snapshot())
}

// DeleteWidget handles DELETE /api/widgets/{id}
func (h *WidgetHandler) DeleteWidget(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Remove(r.PathValue("id")); err != nil {
		respondWithAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Locate handles POST /api/widgets/{id}/locate
func (h *WidgetHandler) Locate(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	// Flows belong to the widget, so a dropped connection does not abort them.
	if err := session.Controller.Locate(context.WithoutCancel(r.Context())); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session.Controller.Snapshot())
}

// SearchArea handles POST /api/widgets/{id}/search-area. An optional viewport
// body is applied before the search.
func (h *WidgetHandler) SearchArea(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var viewport viewportRequest
	present, err := decodeJSON(r, &viewport)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if present {
		if _, err := session.Controller.ReportViewport(r.Context(), viewport.Center, viewport.Zoom, viewport.Bounds); err != nil {
			respondWithAppError(w, err)
			return
		}
	}

	if err := session.Controller.SearchThisArea(context.WithoutCancel(r.Context())); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session.Controller.Snapshot())
}

// Cancel handles POST /api/widgets/{id}/cancel
func (h *WidgetHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	cancelled := session.Controller.Cancel()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"cancelled": cancelled,
		"widget":    session.Controller.Snapshot(),
	})
}

// ReportPosition handles POST /api/widgets/{id}/position
func (h *WidgetHandler) ReportPosition(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req positionRequest
	present, err := decodeJSON(r, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if !present {
		respondWithError(w, http.StatusBadRequest, "position body is required")
		return
	}

	if req.Error != "" {
		failure, known := positionFailures[req.Error]
		if !known {
			respondWithError(w, http.StatusBadRequest, "error must be one of denied, timeout, unavailable, unsupported")
			return
		}
		if err := session.ReportPositionFailure(failure); err != nil {
			respondWithAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if req.Lat == nil || req.Lng == nil {
		respondWithError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	pos := providers.Position{
		Coordinate:     entities.Coordinate{Latitude: *req.Lat, Longitude: *req.Lng},
		AccuracyMeters: req.Accuracy,
	}
	if err := session.ReportPosition(pos); err != nil {
		respondWithAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ReportViewport handles POST /api/widgets/{id}/viewport
func (h *WidgetHandler) ReportViewport(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var viewport viewportRequest
	if _, err := decodeJSON(r, &viewport); err != nil {
		respondWithAppError(w, err)
		return
	}
	snapshot, err := session.Controller.ReportViewport(r.Context(), viewport.Center, viewport.Zoom, viewport.Bounds)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snapshot)
}

// SelectRow handles POST /api/widgets/{id}/rows/{rank}/select
func (h *WidgetHandler) SelectRow(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	rank, err := strconv.Atoi(r.PathValue("rank"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "rank must be an integer")
		return
	}
	snapshot, err := session.Controller.SelectRow(r.Context(), rank)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snapshot)
}

// SelectMarker handles POST /api/widgets/{id}/markers/{marker}/select
func (h *WidgetHandler) SelectMarker(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	snapshot, err := session.Controller.ClickMarker(r.Context(), entities.MarkerID(r.PathValue("marker")))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snapshot)
}

// GetResults handles GET /api/widgets/{id}/results and returns the results
// list as an HTML fragment.
func (h *WidgetHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := services.RenderRowsHTML(&buf, session.Controller.Rows()); err != nil {
		respondWithAppError(w, apperrors.NewInternalError("failed to render results", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *WidgetHandler) session(w http.ResponseWriter, r *http.Request) (*services.WidgetSession, bool) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "widget ID is required")
		return nil, false
	}
	session, err := h.registry.Get(id)
	if err != nil {
		respondWithAppError(w, err)
		return nil, false
	}
	return session, true
}
