package notify

import "sync"

// subscriberBuffer bounds how far a slow subscriber may lag before events
// addressed to it are skipped.
const subscriberBuffer = 16

// TypedBus is a type-safe publish/subscribe bus for events of type T.
type TypedBus[T any] struct {
	mu     sync.RWMutex
	subs   []chan T
	closed bool
}

// NewTyped creates a new TypedBus.
func NewTyped[T any]() *TypedBus[T] { return &TypedBus[T]{} }

// Publish sends the event to all subscribers without blocking. It returns
// how many subscribers were skipped because their buffer was full.
func (b *TypedBus[T]) Publish(e T) (skipped int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			skipped++
		}
	}
	return skipped
}

// Subscribe registers a subscriber and returns its channel.
func (b *TypedBus[T]) Subscribe() <-chan T {
	ch := make(chan T, subscriberBuffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *TypedBus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Len returns the number of attached subscribers.
func (b *TypedBus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes the bus and all subscriber channels.
func (b *TypedBus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
