// Package broadcast implements a small generic keyed pub/sub bus used to
// fan out cache-update notifications to typed providers.
//
// Go has no equivalent to Rust's tokio::sync::broadcast in the standard
// library. This bus follows the same non-blocking-send-and-drop-on-full
// pattern the teacher's WebSocket feed dispatcher uses for its own fan-out:
// a lagging subscriber loses a pending notification rather than blocking
// the publisher. Since subscribers always re-read current state on
// receipt rather than trusting the payload's staleness, dropping the
// newest pending notification (our channel-based approach) is
// observationally equivalent to tokio::broadcast's drop-oldest policy —
// both converge the subscriber to the latest state on its next receive.
package broadcast

import "sync"

// Bus is a multi-subscriber fan-out channel for values of type T.
type Bus[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

// NewBus creates an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new subscriber with the given channel capacity and
// returns its receive channel plus an unsubscribe function.
func (b *Bus[T]) Subscribe(capacity int) (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan T, capacity)
	b.subs[id] = ch

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, unsub
}

// Publish sends value to every current subscriber. A subscriber whose
// channel is full does not block the others; it simply misses this value.
// Returns the number of subscribers the value was delivered to.
func (b *Bus[T]) Publish(value T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- value:
			delivered++
		default:
		}
	}
	return delivered
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
