package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/nearbyfinder/internal/application/services"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

const defaultHeartbeatInterval = 30 * time.Second

// SSEHandler streams widget events to the browser over Server-Sent Events
type SSEHandler struct {
	eventBus  providers.EventBus
	registry  *services.WidgetRegistry
	heartbeat time.Duration
	clients   map[string]map[chan *entities.WidgetEvent]bool // channel -> clients
	mu        sync.RWMutex
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus, registry *services.WidgetRegistry) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		registry:  registry,
		heartbeat: defaultHeartbeatInterval,
		clients:   make(map[string]map[chan *entities.WidgetEvent]bool),
	}
}

// SetHeartbeatInterval overrides the keep-alive period
func (h *SSEHandler) SetHeartbeatInterval(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

// StreamWidgetEvents handles GET /api/widgets/{id}/events. The stream opens
// with a snapshot event and ends when the widget closes.
func (h *SSEHandler) StreamWidgetEvents(w http.ResponseWriter, r *http.Request) {
	widgetID := r.PathValue("id")
	if widgetID == "" {
		respondWithError(w, http.StatusBadRequest, "widget ID is required")
		return
	}

	session, err := h.registry.Get(widgetID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventChan, err := h.eventBus.Subscribe(r.Context(), providers.GetWidgetChannel(widgetID))
	if err != nil {
		log.Error().Err(err).Str("widget_id", widgetID).Msg("failed to subscribe to widget events")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	channel := providers.GetWidgetChannel(widgetID)
	clientChan := make(chan *entities.WidgetEvent, 16)
	h.registerClient(channel, clientChan)
	defer h.unregisterClient(channel, clientChan)

	h.sendEvent(w, "snapshot", session.Controller.Snapshot())
	flusher.Flush()

	go h.forwardEvents(r.Context(), eventChan, clientChan)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("widget_id", widgetID).Msg("client disconnected from widget stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event, ok := <-clientChan:
			if !ok {
				return
			}
			h.sendEvent(w, string(event.EventType), event)
			flusher.Flush()
			if event.EventType == entities.WidgetEventClosed {
				return
			}
		}
	}
}

// forwardEvents forwards events from the event bus to a client channel and
// closes it when the subscription ends.
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.WidgetEvent, clientChan chan<- *entities.WidgetEvent) {
	defer close(clientChan)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			select {
			case clientChan <- event:
			default:
				// Client channel full, skip event
			}
		}
	}
}

func (h *SSEHandler) registerClient(channel string, clientChan chan *entities.WidgetEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[channel] == nil {
		h.clients[channel] = make(map[chan *entities.WidgetEvent]bool)
	}
	h.clients[channel][clientChan] = true
}

func (h *SSEHandler) unregisterClient(channel string, clientChan chan *entities.WidgetEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[channel]; exists {
		delete(clients, clientChan)
		if len(clients) == 0 {
			delete(h.clients, channel)
		}
	}
}

// sendEvent sends an SSE event to the client
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients. It backs the
// widget.event_streams.active gauge.
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
