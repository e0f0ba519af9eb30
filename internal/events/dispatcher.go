package events

import (
	"context"
	"sync"
)

// EventHandler handles a published event synchronously.
type EventHandler func(context.Context, Event) error

// Dispatcher allows event publication and subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	// Handle registers a synchronous handler for one event type.
	Handle(eventType EventType, handler EventHandler)
	// Subscribe opens an ordered stream of every event published after the call.
	Subscribe() *Subscription
}

type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	streams   map[uint64]*Subscription
	nextID    uint64
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[EventType][]EventHandler),
		streams:   make(map[uint64]*Subscription),
	}
}

// Publish invokes handlers for the event, then queues it on every open stream.
// Publish never blocks on a slow stream reader.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	streams := make([]*Subscription, 0, len(d.streams))
	for _, s := range d.streams {
		streams = append(streams, s)
	}
	d.mu.RUnlock()

	for _, handler := range handlers {
		// handler errors do not stop delivery to other listeners
		_ = handler(ctx, event)
	}
	for _, s := range streams {
		s.enqueue(event)
	}
	return nil
}

func (d *inMemoryDispatcher) Handle(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

func (d *inMemoryDispatcher) Subscribe() *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	s := newSubscription(func() {
		d.mu.Lock()
		delete(d.streams, id)
		d.mu.Unlock()
	})
	d.streams[id] = s
	return s
}
