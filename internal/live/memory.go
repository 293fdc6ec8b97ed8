package live

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryBroker implements Broker inside one process
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

type subscription struct {
	ch   chan Event
	once sync.Once
}

// NewMemoryBroker creates an in-process broker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*subscription]struct{})}
}

func (b *MemoryBroker) Publish(ctx context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[event.UserID] {
		select {
		case sub.ch <- event:
		default:
			slog.Warn("dropping live event for slow subscriber", "user_id", event.UserID, "kind", event.Kind)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrClosed
	}

	sub := &subscription{ch: make(chan Event, subscriberBuffer)}
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*subscription]struct{})
	}
	b.subs[userID][sub] = struct{}{}

	done := make(chan struct{})
	cancel := func() {
		sub.once.Do(func() {
			close(done)
			b.remove(userID, sub)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return sub.ch, cancel, nil
}

func (b *MemoryBroker) remove(userID string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[userID][sub]; !ok {
		return
	}
	delete(b.subs[userID], sub)
	if len(b.subs[userID]) == 0 {
		delete(b.subs, userID)
	}
	close(sub.ch)
}

// Close ends every subscription
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for userID, subs := range b.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(b.subs, userID)
	}
	return nil
}
