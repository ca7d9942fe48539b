// Package broker fans out captured events to interested subscribers, such
// as the web dashboard's SSE stream and the TUI's live feed.
package broker

import "sync"

// Event is an opaque payload published through a Broker. handlers/capture
// publishes concrete event values; subscribers type-assert as needed.
type Event any

// Broker is a simple pub/sub fan-out. A zero Broker is not usable; use New.
type Broker struct {
	mu          sync.Mutex
	capacity    int
	subscribers map[chan Event]struct{}
}

// New creates a Broker whose subscriber channels are each buffered to cap.
func New(cap int) *Broker {
	return &Broker{
		capacity:    cap,
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its event channel along
// with an unsubscribe function. Callers must call unsubscribe when done, or
// the subscriber channel leaks for the life of the Broker.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.capacity)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish delivers ev to every current subscriber. A subscriber whose
// channel is full has the event dropped for it rather than blocking the
// publisher; a slow TUI or browser tab must not stall packet relaying.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports the current subscriber count, mostly useful for
// metrics and tests.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
