package kv

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/grafana/sobek"
	"go.k6.io/k6/js/common"
	"go.k6.io/k6/js/modules"
	"go.k6.io/k6/js/promises"

	"github.com/oshokin/xk6-kvmap/kv/store"
)

// KV is the JavaScript-facing wrapper around the shared store Facade.
// Each promise-returning method:
//
//   - Reads and exports its Sobek arguments on the VU event loop.
//   - Executes the store operation in a separate goroutine.
//   - Delivers queued events to JS handlers, then resolves/rejects the promise
//     back on the VU event loop.
//
// Event delivery:
//
//   - on() registers one Go handler per event on the facade (both backends).
//     That handler only queues the key; JS handlers are never called off the loop.
//   - Events are only queued while at least one promise of this KV is pending,
//     and the queue is drained on the event loop before that promise settles, so
//     handlers observe "set"/"clear" before the caller's await resumes. Events
//     fired by other VUs in that window are delivered too; events fired while
//     this VU is idle are dropped.
//   - At most maxPendingEvents are queued; the overflow is dropped and logged.
type KV struct {
	// facade is the shared store, owned by the RootModule.
	facade *store.Facade

	// vu is the owning k6 VU that provides the Sobek runtime and event loop.
	vu modules.VU

	// handlers and subscribed are only touched on the VU event loop.
	handlers   map[store.Event][]sobek.Callable
	subscribed map[store.Event]bool

	// inFlight counts promises created by runAsync that have not settled yet.
	inFlight atomic.Int64

	pendingMu sync.Mutex
	pending   []firedEvent
	dropped   int

	logger *slog.Logger
}

// maxPendingEvents bounds the events queued between two deliveries.
const maxPendingEvents = 4096

// firedEvent is an event waiting to be delivered to JS handlers.
type firedEvent struct {
	event store.Event
	key   string
}

// NewKV constructs a new KV bound to the given VU and Facade.
// A nil logger discards dropped-event warnings.
func NewKV(vu modules.VU, facade *store.Facade, logger *slog.Logger) *KV {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &KV{
		facade:     facade,
		vu:         vu,
		handlers:   make(map[store.Event][]sobek.Callable),
		subscribed: make(map[store.Event]bool),
		logger:     logger,
	}
}

// Dispatch returns a Promise for a single request routed by backend.
//
// Resolution:
//   - "get": the stored value, or null when absent or expired.
//   - "set" / "new": an object {success, message}.
//
// Rejection cases:
//   - InvalidBackendError, InvalidOperationError, OptionsError (bad ttl).
//   - WriteError / SerializerError when the "json" backend cannot flush. The
//     in-memory mutation is kept.
func (k *KV) Dispatch(key, operation, value, backend, ttl sobek.Value) *sobek.Promise {
	duration, err := parseTTL(ttl)
	if err != nil {
		return k.rejected(err)
	}

	var (
		keyString       = stringOf(key)
		operationString = stringOf(operation)
		backendString   = stringOf(backend)
		exportedValue   any
	)

	if !common.IsNullish(value) {
		exportedValue = value.Export()
	}

	return k.runAsync(
		func(facade *store.Facade) (any, error) {
			return facade.Dispatch(keyString, operationString, exportedValue, backendString, duration)
		},
		func(rt *sobek.Runtime, result any) sobek.Value {
			if r, ok := result.(store.Result); ok {
				return rt.ToValue(map[string]any{
					"success": r.Success,
					"message": r.Message,
				})
			}

			if result == nil {
				return sobek.Null()
			}

			return rt.ToValue(result)
		},
	)
}

// On registers handler to be called with the affected key whenever event
// ("set" or "clear") fires on either backend.
func (k *KV) On(event sobek.Value, handler sobek.Value) error {
	if k.facade == nil {
		return k.databaseNotOpenError()
	}

	parsed, err := store.ParseEvent(stringOf(event))
	if err != nil {
		return classifyError(err)
	}

	callable, ok := sobek.AssertFunction(handler)
	if !ok {
		return NewError(HandlerError, "handler must be a function")
	}

	if !k.subscribed[parsed] {
		err := k.facade.On(parsed, func(key string) {
			k.enqueue(parsed, key)
		})
		if err != nil {
			return classifyError(err)
		}

		k.subscribed[parsed] = true
	}

	k.handlers[parsed] = append(k.handlers[parsed], callable)

	return nil
}

// LoadAll returns a Promise that resolves once the persistent backend has been
// replaced by the durable document. Rejects with ReadError.
func (k *KV) LoadAll() *sobek.Promise {
	return k.runAsync(
		func(facade *store.Facade) (any, error) {
			return nil, facade.LoadAll()
		},
		func(_ *sobek.Runtime, _ any) sobek.Value {
			return sobek.Undefined()
		},
	)
}

// SaveAll returns a Promise that resolves once the persistent backend has been
// flushed to the durable document. Rejects with WriteError.
func (k *KV) SaveAll() *sobek.Promise {
	return k.runAsync(
		func(facade *store.Facade) (any, error) {
			return nil, facade.SaveAll()
		},
		func(_ *sobek.Runtime, _ any) sobek.Value {
			return sobek.Undefined()
		},
	)
}

// databaseNotOpenError produces a consistent error when the facade is nil.
func (k *KV) databaseNotOpenError() error {
	return NewError(DatabaseNotOpenError, "database is not open")
}

// enqueue records an event for delivery on the event loop. Safe to call from any goroutine.
func (k *KV) enqueue(event store.Event, key string) {
	if k.inFlight.Load() == 0 {
		return
	}

	k.pendingMu.Lock()
	defer k.pendingMu.Unlock()

	if len(k.pending) >= maxPendingEvents {
		k.dropped++

		return
	}

	k.pending = append(k.pending, firedEvent{event: event, key: key})
}

// deliverEvents calls the JS handlers of every queued event in order.
// Must run on the event loop. A throwing handler does not stop delivery;
// the first error is returned as a HandlerError.
func (k *KV) deliverEvents(rt *sobek.Runtime) error {
	k.pendingMu.Lock()
	pending, dropped := k.pending, k.dropped
	k.pending, k.dropped = nil, 0
	k.pendingMu.Unlock()

	if dropped > 0 {
		k.logger.Warn("event queue full, events dropped",
			slog.Int("dropped", dropped),
			slog.Int("limit", maxPendingEvents),
		)
	}

	var firstErr error

	for _, fired := range pending {
		for _, handler := range k.handlers[fired.event] {
			if _, err := handler(sobek.Undefined(), rt.ToValue(fired.key)); err != nil && firstErr == nil {
				firstErr = NewError(HandlerError, err.Error())
			}
		}
	}

	return firstErr
}

// rejected returns a Promise that rejects with err once control returns to the event loop.
// Must run on the event loop.
func (k *KV) rejected(err error) *sobek.Promise {
	promise, _, reject := promises.New(k.vu)
	reject(classifyError(err))

	return promise
}

// runAsync executes a blocking store operation on a worker goroutine and
// bridges its result back to JavaScript by settling a Sobek promise on the
// VU's event loop. Sobek promises are not goroutine-safe, so resolve/reject and
// the JS handlers always run inside a callback registered with
// VU.RegisterCallback().
func (k *KV) runAsync(
	operation func(facade *store.Facade) (any, error),
	toJS func(rt *sobek.Runtime, result any) sobek.Value,
) *sobek.Promise {
	rt := k.vu.Runtime()
	promise, resolve, reject := rt.NewPromise()

	// Grab the VU's RegisterCallback hook so we can enqueue work back onto
	// the event loop after the store operation completes.
	callback := k.vu.RegisterCallback()

	k.inFlight.Add(1)

	go func() {
		if k.facade == nil {
			callback(func() error {
				k.inFlight.Add(-1)

				return reject(k.databaseNotOpenError())
			})

			return
		}

		goResult, err := operation(k.facade)

		callback(func() error {
			handlerErr := k.deliverEvents(rt)

			k.inFlight.Add(-1)

			switch {
			case err != nil:
				return reject(classifyError(err))
			case handlerErr != nil:
				return reject(handlerErr)
			default:
				return resolve(toJS(rt, goResult))
			}
		})
	}()

	return promise
}

// stringOf converts a Sobek value to a Go string, mapping nullish values to "".
func stringOf(v sobek.Value) string {
	if common.IsNullish(v) {
		return ""
	}

	return v.String()
}

// IsKVError reports whether err is a structured kvmap error with the given name.
func IsKVError(err error, name ErrorName) bool {
	var kvErr *Error

	return errors.As(err, &kvErr) && kvErr.Name == name
}
