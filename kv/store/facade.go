package store

import (
	"fmt"
	"strings"
	"time"
)

// Backend selects which map a Facade request goes to.
type Backend string

const (
	// BackendVolatile is the in-memory map. Accepted selectors: "ram", "memory", "volatile".
	BackendVolatile Backend = "ram"
	// BackendPersistent is the document-backed map. Accepted selectors: "json", "disk", "persistent".
	BackendPersistent Backend = "json"
)

// ParseBackend converts a caller-supplied backend selector into a Backend.
// Matching is case-insensitive; unknown selectors fail with ErrInvalidBackend.
func ParseBackend(selector string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(selector)) {
	case "ram", "memory", "volatile":
		return BackendVolatile, nil
	case "json", "disk", "persistent":
		return BackendPersistent, nil
	default:
		return "", fmt.Errorf(
			"%w: %q; valid values are: %q, %q",
			ErrInvalidBackend, selector, BackendVolatile, BackendPersistent,
		)
	}
}

// Facade presents one request surface over a volatile and a persistent map
// that never share entries.
type Facade struct {
	volatile   *VolatileMap
	persistent *PersistentMap
}

// NewFacade returns a Facade over the given maps. Nil maps are replaced by
// maps built from default configuration.
func NewFacade(volatile *VolatileMap, persistent *PersistentMap) *Facade {
	if volatile == nil {
		volatile = NewVolatileMap(nil)
	}

	if persistent == nil {
		persistent = NewPersistentMap(nil)
	}

	return &Facade{
		volatile:   volatile,
		persistent: persistent,
	}
}

// Dispatch parses the backend selector and operation name and routes the
// request. For "get" the backend's Get is called directly and the returned value
// is the stored value, or nil when absent; otherwise it is a Result.
func (f *Facade) Dispatch(key, operation string, value any, backend string, ttl time.Duration) (any, error) {
	target, err := f.backend(backend)
	if err != nil {
		return nil, err
	}

	op, err := ParseOperation(operation)
	if err != nil {
		return nil, err
	}

	if op == OperationGet {
		value, _ := target.Get(key)

		return value, nil
	}

	return target.Dispatch(key, op, value, ttl)
}

// On registers handler on both maps. Each operation fires it at most once,
// on the map that performed the operation.
func (f *Facade) On(event Event, handler Handler) error {
	if err := f.volatile.On(event, handler); err != nil {
		return err
	}

	return f.persistent.On(event, handler)
}

// LoadAll replaces the persistent map's values with the durable document.
func (f *Facade) LoadAll() error {
	return f.persistent.Load()
}

// SaveAll flushes the persistent map to the durable document.
func (f *Facade) SaveAll() error {
	return f.persistent.Flush()
}

// Volatile returns the volatile map.
func (f *Facade) Volatile() *VolatileMap {
	return f.volatile
}

// Persistent returns the persistent map.
func (f *Facade) Persistent() *PersistentMap {
	return f.persistent
}

// Close releases the persistent map's document.
func (f *Facade) Close() error {
	return f.persistent.Close()
}

// backend returns the map selected by selector.
func (f *Facade) backend(selector string) (Map, error) {
	backend, err := ParseBackend(selector)
	if err != nil {
		return nil, err
	}

	if backend == BackendPersistent {
		return f.persistent, nil
	}

	return f.volatile, nil
}
