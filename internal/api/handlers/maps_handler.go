package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/nearbyfinder/internal/application/services"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

const (
	staticMapURL          = "https://maps.googleapis.com/maps/api/staticmap"
	defaultStaticMapZoom  = "14"
	defaultStaticMapSize  = "640x360"
	defaultStaticMapScale = "1"
	staticMapCacheTTL     = 7 * 24 * time.Hour
	maxLabeledMarkers     = 9
)

// MapsHandler renders static map images through Google Static Maps and
// caches the bytes.
type MapsHandler struct {
	apiKey   string
	cache    providers.CacheProvider
	client   *http.Client
	baseURL  string
	registry *services.WidgetRegistry
}

type staticMapRequest struct {
	center  string
	zoom    string
	size    string
	scale   string
	markers []string
}

// NewMapsHandler creates a new maps handler.
func NewMapsHandler(apiKey string, cache providers.CacheProvider, registry *services.WidgetRegistry) *MapsHandler {
	return NewMapsHandlerWithOptions(apiKey, cache, registry, staticMapURL, nil)
}

// NewMapsHandlerWithOptions allows overriding base URL and HTTP client (used for tests).
func NewMapsHandlerWithOptions(apiKey string, cache providers.CacheProvider, registry *services.WidgetRegistry, baseURL string, client *http.Client) *MapsHandler {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = staticMapURL
	}
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}
	return &MapsHandler{
		apiKey:   apiKey,
		cache:    cache,
		client:   client,
		baseURL:  baseURL,
		registry: registry,
	}
}

// GetWidgetMap handles GET /api/widgets/{id}/map.png. The image shows the
// widget's current center, zoom, origin marker and numbered result markers.
func (h *MapsHandler) GetWidgetMap(w http.ResponseWriter, r *http.Request) {
	session, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	snapshot := session.Controller.Snapshot()

	req := staticMapRequest{
		center: snapshot.Map.Center.String(),
		zoom:   strconv.Itoa(snapshot.Map.Zoom),
		size:   queryOr(r, "size", defaultStaticMapSize),
		scale:  queryOr(r, "scale", defaultStaticMapScale),
	}
	req.markers = widgetMarkers(snapshot)
	h.serve(w, r, req)
}

// GetStaticMap handles GET /api/maps/static?center=lat,lng or ?lat=&lon=.
func (h *MapsHandler) GetStaticMap(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	center := strings.TrimSpace(query.Get("center"))
	if center == "" {
		lat := strings.TrimSpace(query.Get("lat"))
		lon := strings.TrimSpace(query.Get("lon"))
		if lat == "" || lon == "" {
			respondWithError(w, http.StatusBadRequest, "center or lat/lon required")
			return
		}
		center = fmt.Sprintf("%s,%s", lat, lon)
	}

	h.serve(w, r, staticMapRequest{
		center:  center,
		zoom:    queryOr(r, "zoom", defaultStaticMapZoom),
		size:    queryOr(r, "size", defaultStaticMapSize),
		scale:   queryOr(r, "scale", defaultStaticMapScale),
		markers: normalizeMarkers(query["markers"]),
	})
}

func (h *MapsHandler) serve(w http.ResponseWriter, r *http.Request, req staticMapRequest) {
	if h.apiKey == "" {
		respondWithError(w, http.StatusBadRequest, "maps api key not configured")
		return
	}

	values := req.values()
	cacheKey := "staticmap:" + hashString(values.Encode())
	if h.cache != nil {
		if cached, err := h.cache.Get(r.Context(), cacheKey); err == nil && len(cached) > 0 {
			w.Header().Set("Content-Type", "image/png")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}

	values.Set("key", h.apiKey)
	mapURL := fmt.Sprintf("%s?%s", h.baseURL, values.Encode())
	upstream, err := http.NewRequestWithContext(r.Context(), http.MethodGet, mapURL, nil)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to build map request")
		return
	}

	resp, err := h.client.Do(upstream)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "failed to fetch map image")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respondWithError(w, http.StatusBadGateway, "map provider returned an error")
		return
	}

	imageBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to read map image")
		return
	}

	if h.cache != nil {
		_ = h.cache.Set(r.Context(), cacheKey, imageBytes, staticMapCacheTTL)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(imageBytes)
}

func (req staticMapRequest) values() url.Values {
	values := url.Values{}
	values.Set("center", req.center)
	values.Set("zoom", req.zoom)
	values.Set("size", req.size)
	values.Set("scale", req.scale)
	for _, marker := range req.markers {
		values.Add("markers", marker)
	}
	return values
}

// widgetMarkers draws the origin in blue and results in red. Static Maps
// labels are one character, so only the first nine results are numbered.
func widgetMarkers(snapshot *entities.WidgetSnapshot) []string {
	markers := make([]string, 0, len(snapshot.Map.Markers)+1)
	if origin := snapshot.Map.Origin; origin != nil {
		markers = append(markers, "color:blue|"+origin.Position.String())
	}
	for i, marker := range snapshot.Map.Markers {
		style := "color:red"
		if i < maxLabeledMarkers {
			style += "|label:" + strconv.Itoa(i+1)
		}
		markers = append(markers, style+"|"+marker.Position.String())
	}
	return markers
}

func normalizeMarkers(params []string) []string {
	clean := make([]string, 0, len(params))
	for _, item := range params {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		clean = append(clean, item)
	}
	return clean
}

func queryOr(r *http.Request, key, fallback string) string {
	if value := strings.TrimSpace(r.URL.Query().Get(key)); value != "" {
		return value
	}
	return fallback
}

func hashString(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
