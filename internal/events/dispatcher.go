package events

import (
	"fmt"
	"log/slog"
	"sync"
)

// Wildcard subscribes to every published event.
const Wildcard = "*"

// Event is the untyped form of a published event as seen by wildcard and
// name-based subscribers.
type Event struct {
	Name    string
	Payload any
}

// Handler receives an untyped event.
type Handler func(Event)

// Key binds an event name to its payload type. Subscribing and publishing
// through a Key is checked at compile time.
type Key[T any] struct {
	name string
}

// NewKey returns a Key for name.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the event name.
func (k Key[T]) Name() string { return k.name }

// Subscription identifies one registered handler. Pass it to Off to
// unregister that handler.
type Subscription struct {
	name string
	id   uint64
}

// Name returns the event name the subscription was registered for.
func (s Subscription) Name() string { return s.name }

type entry struct {
	id uint64
	fn Handler
}

// Dispatcher is a publish/subscribe registry. Handlers for a name run in
// registration order, followed by wildcard handlers in registration order.
type Dispatcher struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[string][]entry
	nextID uint64
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger: logger,
		subs:   make(map[string][]entry),
	}
}

// On registers h for events named name (or Wildcard).
func (d *Dispatcher) On(name string, h Handler) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.subs[name] = append(d.subs[name], entry{id: d.nextID, fn: h})
	return Subscription{name: name, id: d.nextID}
}

// OnAny registers h for every event.
func (d *Dispatcher) OnAny(h Handler) Subscription {
	return d.On(Wildcard, h)
}

// Off unregisters the handler identified by sub. Unknown subscriptions
// are ignored.
func (d *Dispatcher) Off(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.subs[sub.name]
	for i, e := range list {
		if e.id != sub.id {
			continue
		}
		next := make([]entry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(d.subs, sub.name)
		} else {
			d.subs[sub.name] = next
		}
		return
	}
}

// Count returns the number of handlers registered for name.
func (d *Dispatcher) Count(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[name])
}

// Dispatch delivers ev to the handlers registered for ev.Name and then to
// the wildcard handlers. A panicking handler is logged and skipped.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.RLock()
	named := d.subs[ev.Name]
	wild := d.subs[Wildcard]
	d.mu.RUnlock()

	// On may append into the same backing array, but append never writes
	// below the snapshot's length, and Off builds a new slice.
	for _, e := range named {
		d.invoke(e, ev)
	}
	if ev.Name == Wildcard {
		return
	}
	for _, e := range wild {
		d.invoke(e, ev)
	}
}

func (d *Dispatcher) invoke(e entry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				"event", ev.Name,
				"subscription", e.id,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	e.fn(ev)
}

// On registers a typed handler for k. Events published under the same name
// with a different payload type are not delivered to h.
func On[T any](d *Dispatcher, k Key[T], h func(T)) Subscription {
	return d.On(k.name, func(ev Event) {
		if payload, ok := ev.Payload.(T); ok {
			h(payload)
		}
	})
}

// Publish dispatches payload under k synchronously.
func Publish[T any](d *Dispatcher, k Key[T], payload T) {
	d.Dispatch(Event{Name: k.name, Payload: payload})
}

// Make builds the untyped Event for k, for callers that defer delivery.
func Make[T any](k Key[T], payload T) Event {
	return Event{Name: k.name, Payload: payload}
}
