package store

import (
	"fmt"
	"strings"
	"time"
)

// Map defines the operations shared by the volatile and persistent backends.
//
// General notes:
//
//   - Keys are strings. Values are arbitrary structured payloads; the persistent
//     backend requires them to be JSON-encodable.
//   - Expiration is lazy: an expired entry is evicted by the Get that observes it,
//     never by a background sweep.
//   - Handlers registered with On run synchronously, in registration order,
//     before the triggering call returns.
//
// Error semantics:
//
//   - Get never fails. A missing or expired key reports found == false.
//   - Set and Clear only fail when a backend cannot persist the mutation. The
//     in-memory mutation has already taken effect when that happens.
type Map interface {
	// Set stores value under key. A positive ttl records an absolute expiration of
	// now + ttl; a ttl <= 0 stores the entry without expiration and drops any
	// expiration left over from a previous Set.
	Set(key string, value any, ttl time.Duration) (Result, error)

	// Get returns the value stored under key. An entry whose expiration has passed
	// is evicted as if Clear had been called, and reported as not found.
	Get(key string) (value any, found bool)

	// Clear removes key and its expiration. Clearing an absent key is not an error.
	Clear(key string) (Result, error)

	// Dispatch routes op to Clear ("new"), Set ("set") or Get ("get"). For "get" the
	// returned value is the stored value, or nil when absent; otherwise it is a Result.
	Dispatch(key string, op Operation, value any, ttl time.Duration) (any, error)

	// On registers handler to be called with the affected key whenever event fires.
	On(event Event, handler Handler) error
}

// Operation names a request routed by Dispatch.
type Operation string

const (
	// OperationNew resets a key. It is routed to Clear.
	OperationNew Operation = "new"
	// OperationSet stores a value.
	OperationSet Operation = "set"
	// OperationGet reads a value.
	OperationGet Operation = "get"
)

// ParseOperation converts a caller-supplied operation name into an Operation.
// Matching is case-insensitive; unknown names fail with ErrInvalidOperation.
func ParseOperation(name string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(name))); op {
	case OperationNew, OperationSet, OperationGet:
		return op, nil
	default:
		return "", fmt.Errorf(
			"%w: %q; valid values are: %q, %q, %q",
			ErrInvalidOperation, name, OperationNew, OperationSet, OperationGet,
		)
	}
}

// Result is the outcome of a mutating operation.
type Result struct {
	Success bool   `js:"success" json:"success"`
	Message string `js:"message" json:"message"`
}

// dispatch is the routing shared by every Map implementation. It goes through
// m so that backend-specific Set/Clear behavior (flushing) applies.
func dispatch(m Map, key string, op Operation, value any, ttl time.Duration) (any, error) {
	switch op {
	case OperationNew:
		return m.Clear(key)
	case OperationSet:
		return m.Set(key, value, ttl)
	case OperationGet:
		value, _ := m.Get(key)

		return value, nil
	default:
		return nil, fmt.Errorf(
			"%w: %q; valid values are: %q, %q, %q",
			ErrInvalidOperation, op, OperationNew, OperationSet, OperationGet,
		)
	}
}

func setResult(key string) Result {
	return Result{Success: true, Message: fmt.Sprintf("key %q set", key)}
}

func clearResult(key string) Result {
	return Result{Success: true, Message: fmt.Sprintf("key %q cleared", key)}
}

func failedResult(err error) Result {
	return Result{Success: false, Message: err.Error()}
}
