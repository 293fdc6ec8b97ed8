package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "gradetrack:live:"

// RedisBroker implements Broker over Redis pub/sub so that events reach
// dashboards connected to any instance.
type RedisBroker struct {
	client *redis.Client

	mu     sync.Mutex
	pubsub map[*redis.PubSub]struct{}
	closed bool
}

// NewRedisBroker creates a broker publishing through client
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{
		client: client,
		pubsub: make(map[*redis.PubSub]struct{}),
	}
}

func channelFor(userID string) string {
	return channelPrefix + userID
}

func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode live event: %w", err)
	}
	if err := b.client.Publish(ctx, channelFor(event.UserID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish live event: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrClosed
	}
	b.mu.Unlock()

	ps := b.client.Subscribe(ctx, channelFor(userID))
	// Wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	b.mu.Lock()
	b.pubsub[ps] = struct{}{}
	b.mu.Unlock()

	events := make(chan Event, subscriberBuffer)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.pubsub, ps)
			b.mu.Unlock()
			ps.Close()
		})
	}

	go func() {
		defer close(events)
		messages := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.Warn("ignoring malformed live event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case events <- event:
				default:
					slog.Warn("dropping live event for slow subscriber", "user_id", event.UserID, "kind", event.Kind)
				}
			}
		}
	}()

	return events, cancel, nil
}

// Close ends every subscription opened through b
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for ps := range b.pubsub {
		ps.Close()
		delete(b.pubsub, ps)
	}
	return nil
}
