package events

import (
	"context"
	"sync"

	"vigil/models"
)

// DefaultBuffer is the per-subscriber queue size. Consumers that fall
// further behind than this start exerting backpressure on publishers.
const DefaultBuffer = 64

// Subscription is one subscriber's view of the bus. Receive from C until
// done with the subscription, then call Unsubscribe to release it.
type Subscription struct {
	C    <-chan models.StatusEvent
	ch   chan models.StatusEvent
	done chan struct{}
	once sync.Once
	bus  *Bus
	id   uint64
}

// Unsubscribe removes the subscription from the bus. Events published
// afterwards are no longer delivered to it. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.bus.remove(s.id)
	})
}

// Done is closed when the subscription has been cancelled.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Bus is an in-memory fan-out bus. Every subscriber gets its own bounded
// queue and receives every event published after it subscribed, in publish
// order. Publish blocks when a queue is full: losing incident events is
// worse than delaying detection of the next one, so slow consumers slow
// down their publishers rather than dropping.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
	}
}

// Subscribe registers a new independent subscriber queue.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan models.StatusEvent, b.buffer)
	sub := &Subscription{
		C:    ch,
		ch:   ch,
		done: make(chan struct{}),
		bus:  b,
		id:   b.nextID,
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers event to every current subscriber. It blocks on full
// subscriber queues until space frees up, the subscriber unsubscribes, or
// ctx is cancelled. One subscriber's slowness never drops another
// subscriber's copy of the event.
func (b *Bus) Publish(ctx context.Context, event models.StatusEvent) error {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- event:
		case <-sub.done:
			// Subscriber went away, skip it.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Size returns the number of active subscribers.
func (b *Bus) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}
