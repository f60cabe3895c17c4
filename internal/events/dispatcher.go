package events

import (
	"context"
	"errors"
	"sync"
)

// EventHandler handles a published event. Handlers run on the publisher's
// goroutine and must not block.
type EventHandler func(context.Context, Event) error

// Subscription is the handle returned by Subscribe.
type Subscription interface {
	// Unsubscribe detaches the handler. Safe to call more than once.
	Unsubscribe()
}

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler) Subscription
}

type listener struct {
	id      uint64
	handler EventHandler
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[EventType][]listener
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[EventType][]listener),
	}
}

// Publish synchronously invokes handlers for the given event. Every handler
// runs even if an earlier one fails; failures are joined.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	current := append([]listener{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, l := range current {
		if err := l.handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler for the given event type.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.listeners[eventType] = append(d.listeners[eventType], listener{id: id, handler: handler})
	return &subscription{unsubscribe: func() { d.remove(eventType, id) }}
}

func (d *inMemoryDispatcher) remove(eventType EventType, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	current := d.listeners[eventType]
	for i, l := range current {
		if l.id == id {
			d.listeners[eventType] = append(current[:i:i], current[i+1:]...)
			break
		}
	}
	if len(d.listeners[eventType]) == 0 {
		delete(d.listeners, eventType)
	}
}

// ListenerCount reports registered handlers for eventType.
func ListenerCount(d Dispatcher, eventType EventType) int {
	mem, ok := d.(*inMemoryDispatcher)
	if !ok {
		if r, ok := d.(*RedisDispatcher); ok {
			return ListenerCount(r.local, eventType)
		}
		return -1
	}
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	return len(mem.listeners[eventType])
}

type subscription struct {
	once        sync.Once
	unsubscribe func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.unsubscribe)
}
