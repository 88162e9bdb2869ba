package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
	redisclient "github.com/zatekoja/nearbyfinder/internal/infrastructure/clients/redis"
)

// pubSub is the part of *redis.PubSub the bus relies on
type pubSub interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// RedisEventBus implements the EventBus interface using Redis Pub/Sub, so any
// replica can stream events for a widget hosted on another one.
type RedisEventBus struct {
	client        *redisclient.Client
	open          func(ctx context.Context, channel string) (pubSub, error)
	subscriptions map[string]pubSub
	subscribers   map[string]map[chan *entities.WidgetEvent]struct{}
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	b := newRedisEventBus(nil)
	b.client = client
	b.open = func(ctx context.Context, channel string) (pubSub, error) {
		pubsub := client.Client().Subscribe(b.ctx, channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return nil, err
		}
		return pubsub, nil
	}
	return b
}

func newRedisEventBus(open func(ctx context.Context, channel string) (pubSub, error)) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		open:          open,
		subscriptions: make(map[string]pubSub),
		subscribers:   make(map[string]map[chan *entities.WidgetEvent]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Publish publishes an event to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.WidgetEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe subscribes to events on a channel. The Redis round trip for a new
// channel happens outside the bus lock so other channels keep flowing.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.WidgetEvent, error) {
	for {
		b.mu.RLock()
		_, exists := b.subscriptions[channel]
		b.mu.RUnlock()

		var fresh pubSub
		if !exists {
			var err error
			if fresh, err = b.open(ctx, channel); err != nil {
				return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
			}
		}

		b.mu.Lock()
		if b.ctx.Err() != nil {
			b.mu.Unlock()
			if fresh != nil {
				_ = fresh.Close()
			}
			return nil, fmt.Errorf("failed to subscribe to %s: event bus closed", channel)
		}

		_, current := b.subscriptions[channel]
		switch {
		case fresh != nil && !current:
			b.subscriptions[channel] = fresh
			go b.receiveMessages(channel, fresh)
			fresh = nil
		case fresh == nil && !current:
			// The last subscriber left while we looked; open a new subscription.
			b.mu.Unlock()
			continue
		}

		if b.subscribers[channel] == nil {
			b.subscribers[channel] = make(map[chan *entities.WidgetEvent]struct{})
		}
		eventChan := make(chan *entities.WidgetEvent, 32)
		b.subscribers[channel][eventChan] = struct{}{}
		b.mu.Unlock()

		// Another Subscribe stored its subscription first.
		if fresh != nil {
			_ = fresh.Close()
		}

		go func() {
			<-ctx.Done()
			b.removeSubscriber(channel, eventChan)
		}()

		return eventChan, nil
	}
}

// receiveMessages receives messages from Redis and broadcasts them to subscribers
func (b *RedisEventBus) receiveMessages(channel string, pubsub pubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event entities.WidgetEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable widget event")
				continue
			}

			b.mu.RLock()
			for subscriber := range b.subscribers[channel] {
				select {
				case subscriber <- &event:
				default:
					log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber channel full, skipping event")
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, eventChan chan *entities.WidgetEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, exists := b.subscribers[channel]
	if !exists {
		return
	}
	if _, ok := subscribers[eventChan]; !ok {
		return
	}

	delete(subscribers, eventChan)
	close(eventChan)

	if len(subscribers) == 0 {
		delete(b.subscribers, channel)
		if pubsub, ok := b.subscriptions[channel]; ok {
			_ = pubsub.Close()
			delete(b.subscriptions, channel)
		}
	}
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for channel, pubsub := range b.subscriptions {
		if err := pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", channel, err))
		}
		delete(b.subscriptions, channel)
	}
	for channel, subscribers := range b.subscribers {
		for subscriber := range subscribers {
			close(subscriber)
		}
		delete(b.subscribers, channel)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing event bus: %v", errs)
	}
	return nil
}
