package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
)

type fakePubSub struct {
	messages chan *redis.Message
	once     sync.Once
	closed   atomic.Bool
}

func newFakePubSub() *fakePubSub {
	return &fakePubSub{messages: make(chan *redis.Message, 8)}
}

func (p *fakePubSub) Channel(...redis.ChannelOption) <-chan *redis.Message {
	return p.messages
}

func (p *fakePubSub) Close() error {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.messages)
	})
	return nil
}

func TestRedisEventBus_SlowSubscribeDoesNotBlockOtherChannels(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	opened := map[string]*fakePubSub{}

	bus := newRedisEventBus(func(ctx context.Context, channel string) (pubSub, error) {
		if channel == "widget:slow" {
			<-release
		}
		ps := newFakePubSub()
		mu.Lock()
		opened[channel] = ps
		mu.Unlock()
		return ps, nil
	})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slowDone := make(chan error, 1)
	go func() {
		_, err := bus.Subscribe(ctx, "widget:slow")
		slowDone <- err
	}()

	fastDone := make(chan (<-chan *entities.WidgetEvent), 1)
	go func() {
		events, err := bus.Subscribe(ctx, "widget:fast")
		if err == nil {
			fastDone <- events
		}
	}()

	var events <-chan *entities.WidgetEvent
	select {
	case events = <-fastDone:
	case <-time.After(time.Second):
		t.Fatal("subscribe on another channel blocked behind a pending one")
	}

	// Fan-out on the fast channel also proceeds while the slow one waits.
	payload, err := json.Marshal(entities.NewWidgetEvent("fast", entities.WidgetEventResultsRendered, nil))
	require.NoError(t, err)
	mu.Lock()
	fast := opened["widget:fast"]
	mu.Unlock()
	fast.messages <- &redis.Message{Channel: "widget:fast", Payload: string(payload)}

	select {
	case event := <-events:
		assert.Equal(t, "fast", event.WidgetID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	close(release)
	require.NoError(t, <-slowDone)
}

func TestRedisEventBus_ConcurrentSubscribeKeepsOneSubscription(t *testing.T) {
	var mu sync.Mutex
	var opened []*fakePubSub
	start := make(chan struct{})

	bus := newRedisEventBus(func(ctx context.Context, channel string) (pubSub, error) {
		<-start
		ps := newFakePubSub()
		mu.Lock()
		opened = append(opened, ps)
		mu.Unlock()
		return ps, nil
	})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := bus.Subscribe(ctx, "widget:a")
			assert.NoError(t, err)
		}()
	}
	// Both callers find no subscription before either opens one.
	time.Sleep(20 * time.Millisecond)
	close(start)
	wg.Wait()

	bus.mu.RLock()
	assert.Len(t, bus.subscriptions, 1)
	assert.Len(t, bus.subscribers["widget:a"], 2)
	bus.mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	open := 0
	for _, ps := range opened {
		if !ps.closed.Load() {
			open++
		}
	}
	assert.Equal(t, 1, open)
}

func TestRedisEventBus_LastSubscriberClosesSubscription(t *testing.T) {
	ps := newFakePubSub()
	bus := newRedisEventBus(func(ctx context.Context, channel string) (pubSub, error) {
		return ps, nil
	})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, err := bus.Subscribe(ctx, "widget:a")
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed")
	}
	assert.Eventually(t, ps.closed.Load, time.Second, 10*time.Millisecond)
}

func TestRedisEventBus_SubscribeAfterClose(t *testing.T) {
	bus := newRedisEventBus(func(ctx context.Context, channel string) (pubSub, error) {
		return newFakePubSub(), nil
	})
	require.NoError(t, bus.Close())

	_, err := bus.Subscribe(context.Background(), "widget:a")
	assert.Error(t, err)
}
