package store

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Event names a lifecycle notification fired by a Map.
type Event string

const (
	// EventSet fires after a key is stored.
	EventSet Event = "set"
	// EventClear fires after a key is removed, including lazy expiry evictions.
	EventClear Event = "clear"
)

// Handler receives the key affected by an event.
type Handler func(key string)

// ParseEvent converts a caller-supplied event name into an Event.
// Matching is case-insensitive; unknown names fail with ErrInvalidEvent.
func ParseEvent(name string) (Event, error) {
	switch event := Event(strings.ToLower(strings.TrimSpace(name))); event {
	case EventSet, EventClear:
		return event, nil
	default:
		return "", fmt.Errorf("%w: %q; valid values are: %q, %q", ErrInvalidEvent, name, EventSet, EventClear)
	}
}

// eventRegistry keeps the ordered handler lists of one backend.
type eventRegistry struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
}

func newEventRegistry() *eventRegistry {
	return &eventRegistry{
		handlers: map[Event][]Handler{
			EventSet:   nil,
			EventClear: nil,
		},
	}
}

// on appends handler to the list of event.
func (r *eventRegistry) on(event Event, handler Handler) error {
	if handler == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[event]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidEvent, event)
	}

	r.handlers[event] = append(r.handlers[event], handler)

	return nil
}

// fire calls the handlers of event in registration order.
// The list is copied first so a handler may register more handlers.
func (r *eventRegistry) fire(event Event, key string) {
	r.mu.RLock()
	handlers := slices.Clone(r.handlers[event])
	r.mu.RUnlock()

	for _, handler := range handlers {
		handler(key)
	}
}
