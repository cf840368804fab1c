package store

import (
	"log/slog"
	"maps"
	"sync"
	"time"
)

// VolatileConfig holds volatile-map-specific configuration.
type VolatileConfig struct {
	// Now returns the current time used for expiration.
	// If nil, defaults to time.Now.
	Now func() time.Time
	// Logger receives debug logs.
	// If nil, logs are discarded.
	Logger *slog.Logger
}

func (cfg *VolatileConfig) now() func() time.Time {
	if cfg == nil || cfg.Now == nil {
		return time.Now
	}

	return cfg.Now
}

func (cfg *VolatileConfig) logger() *slog.Logger {
	if cfg == nil || cfg.Logger == nil {
		return discardLogger()
	}

	return cfg.Logger
}

// VolatileMap is an in-memory key-value map with lazy per-key expiration.
//
// Values are kept in their native representation. Expirations live in a
// parallel map keyed the same way; a key without an expiration never expires.
// Handlers are called after the internal lock is released, so they may call
// back into the map.
type VolatileMap struct {
	mu          sync.Mutex
	values      map[string]any
	expirations map[string]time.Time

	events *eventRegistry
	now    func() time.Time
	logger *slog.Logger
}

var _ Map = (*VolatileMap)(nil)

// NewVolatileMap creates an empty VolatileMap. A nil cfg uses the defaults.
func NewVolatileMap(cfg *VolatileConfig) *VolatileMap {
	return &VolatileMap{
		values:      map[string]any{},
		expirations: map[string]time.Time{},
		events:      newEventRegistry(),
		now:         cfg.now(),
		logger:      cfg.logger(),
	}
}

// Set stores value under key and fires EventSet. It always succeeds.
func (m *VolatileMap) Set(key string, value any, ttl time.Duration) (Result, error) {
	m.mu.Lock()

	m.values[key] = value
	if ttl > 0 {
		m.expirations[key] = m.now().Add(ttl)
	} else {
		delete(m.expirations, key)
	}

	m.mu.Unlock()

	m.events.fire(EventSet, key)

	return setResult(key), nil
}

// Get returns the value under key, evicting it first when its expiration has passed.
func (m *VolatileMap) Get(key string) (any, bool) {
	m.mu.Lock()

	if expiresAt, ok := m.expirations[key]; ok && m.now().After(expiresAt) {
		// Evict under the lock; a Set racing with this Get must not be undone.
		delete(m.values, key)
		delete(m.expirations, key)
		m.mu.Unlock()

		m.logger.Debug("evicted expired key", slog.String("key", key), slog.Time("expired_at", expiresAt))
		m.events.fire(EventClear, key)

		return nil, false
	}

	value, ok := m.values[key]
	m.mu.Unlock()

	return value, ok
}

// Clear removes key and its expiration and fires EventClear. It always succeeds.
func (m *VolatileMap) Clear(key string) (Result, error) {
	m.mu.Lock()
	delete(m.values, key)
	delete(m.expirations, key)
	m.mu.Unlock()

	m.events.fire(EventClear, key)

	return clearResult(key), nil
}

// Dispatch routes op to Clear, Set or Get.
func (m *VolatileMap) Dispatch(key string, op Operation, value any, ttl time.Duration) (any, error) {
	return dispatch(m, key, op, value, ttl)
}

// On registers handler for event.
func (m *VolatileMap) On(event Event, handler Handler) error {
	return m.events.on(event, handler)
}

// Len returns the number of stored entries, expired or not.
func (m *VolatileMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.values)
}

// snapshot returns a copy of the value map.
func (m *VolatileMap) snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return maps.Clone(m.values)
}

// replace swaps the value map wholesale. Expirations survive only for keys
// present in values.
func (m *VolatileMap) replace(values map[string]any) {
	if values == nil {
		values = map[string]any{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values = values
	maps.DeleteFunc(m.expirations, func(key string, _ time.Time) bool {
		_, ok := values[key]
		return !ok
	})
}
