package providers

import (
	"context"

	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.WidgetEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.WidgetEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelWidgetPrefix is the prefix for widget-specific channels
const EventChannelWidgetPrefix = "widget:"

// GetWidgetChannel returns the channel name for a specific widget
func GetWidgetChannel(widgetID string) string {
	return EventChannelWidgetPrefix + widgetID
}
