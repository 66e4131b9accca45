package events

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

// Broadcaster fans events out to live stream subscribers. Each subscriber
// gets a bounded channel; a subscriber that falls behind loses events rather
// than blocking the engine.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewBroadcaster creates a broadcaster and wires it into the dispatcher.
func NewBroadcaster(dispatcher Dispatcher) *Broadcaster {
	b := &Broadcaster{subs: make(map[int]chan Event)}
	dispatcher.SubscribeAll(func(_ context.Context, event Event) error {
		b.publish(event)
		return nil
	})
	return b
}

// Subscribe registers a stream consumer. The returned cancel func must be
// called when the consumer goes away.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// SubscriberCount returns the number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- event:
		default:
		}
	}
}
