package routes

import (
	"net/http"

	"github.com/zatekoja/nearbyfinder/internal/api/handlers"
	"github.com/zatekoja/nearbyfinder/internal/api/middleware"
	"github.com/zatekoja/nearbyfinder/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	widgetHandler    *handlers.WidgetHandler
	sseHandler       *handlers.SSEHandler
	mapsHandler      *handlers.MapsHandler
	analyticsHandler *handlers.AnalyticsHandler

	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router. cacheMiddleware and metrics may be nil.
func NewRouter(
	widgetHandler *handlers.WidgetHandler,
	sseHandler *handlers.SSEHandler,
	mapsHandler *handlers.MapsHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		widgetHandler:    widgetHandler,
		sseHandler:       sseHandler,
		mapsHandler:      mapsHandler,
		analyticsHandler: analyticsHandler,
		cacheMiddleware:  cacheMiddleware,
		allowedOrigins:   allowedOrigins,
		metrics:          metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Widget lifecycle
	r.mux.HandleFunc("POST /api/widgets", r.widgetHandler.CreateWidget)
	r.mux.HandleFunc("GET /api/widgets/{id}", r.widgetHandler.GetWidget)
	r.mux.HandleFunc("DELETE /api/widgets/{id}", r.widgetHandler.DeleteWidget)

	// Flows
	r.mux.HandleFunc("POST /api/widgets/{id}/locate", r.widgetHandler.Locate)
	r.mux.HandleFunc("POST /api/widgets/{id}/search-area", r.widgetHandler.SearchArea)
	r.mux.HandleFunc("POST /api/widgets/{id}/cancel", r.widgetHandler.Cancel)

	// Browser reports
	r.mux.HandleFunc("POST /api/widgets/{id}/position", r.widgetHandler.ReportPosition)
	r.mux.HandleFunc("POST /api/widgets/{id}/viewport", r.widgetHandler.ReportViewport)

	// Interactions
	r.mux.HandleFunc("POST /api/widgets/{id}/rows/{rank}/select", r.widgetHandler.SelectRow)
	r.mux.HandleFunc("POST /api/widgets/{id}/markers/{marker}/select", r.widgetHandler.SelectMarker)
	r.mux.HandleFunc("GET /api/widgets/{id}/results", r.widgetHandler.GetResults)

	// Streaming
	r.mux.HandleFunc("GET /api/widgets/{id}/events", r.sseHandler.StreamWidgetEvents)

	// Maps endpoints
	r.mux.HandleFunc("GET /api/widgets/{id}/map.png", r.mapsHandler.GetWidgetMap)
	r.mux.HandleFunc("GET /api/maps/static", r.mapsHandler.GetStaticMap)

	// Analytics endpoints
	r.mux.HandleFunc("GET /api/analytics/zero-result-searches", r.analyticsHandler.GetZeroResultSearches)

	// Apply middleware in reverse order (last middleware wraps first).
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics, r.routePattern)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

// routePattern reports the mux pattern matching req, e.g.
// "POST /api/widgets/{id}/locate".
func (r *Router) routePattern(req *http.Request) string {
	_, pattern := r.mux.Handler(req)
	return pattern
}
