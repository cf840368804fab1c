package kv

import (
	"errors"

	"github.com/oshokin/xk6-kvmap/kv/store"
)

var _ error = (*Error)(nil)

// ErrorName represents the name of an error.
type ErrorName string

const (
	// DatabaseNotOpenError is emitted when the store is used before openKv() succeeded.
	DatabaseNotOpenError ErrorName = "DatabaseNotOpenError"

	// DocumentPathError is emitted when the document path cannot be resolved or is a directory.
	DocumentPathError ErrorName = "DocumentPathError"

	// HandlerError is emitted when an event handler is not a function or throws.
	HandlerError ErrorName = "HandlerError"

	// InvalidBackendError is emitted when the backend selector is neither "ram" nor "json".
	InvalidBackendError ErrorName = "InvalidBackendError"

	// InvalidEventError is emitted when an event name is neither "set" nor "clear".
	InvalidEventError ErrorName = "InvalidEventError"

	// InvalidOperationError is emitted when the operation is not one of "new", "set" or "get".
	InvalidOperationError ErrorName = "InvalidOperationError"

	// OptionsConflictError is emitted when openKv() is called with options that differ
	// from the ones the shared store was created with.
	OptionsConflictError ErrorName = "OptionsConflictError"

	// OptionsError is emitted when openKv() or dispatch() options fail validation.
	OptionsError ErrorName = "OptionsError"

	// ReadError is emitted when the durable document is missing or malformed on load.
	ReadError ErrorName = "ReadError"

	// SerializerError is emitted when values cannot be encoded into the document.
	SerializerError ErrorName = "SerializerError"

	// WriteError is emitted when the durable document cannot be written.
	WriteError ErrorName = "WriteError"
)

// Error represents a custom error emitted by the kvmap module.
type Error struct {
	// Name contains one of the strings associated with an error name.
	Name ErrorName `js:"name" json:"name"`

	// Message represents message or description associated with the given error name.
	Message string `js:"message" json:"message"`
}

// NewError returns a new Error instance.
func NewError(name ErrorName, message string) *Error {
	return &Error{
		Name:    name,
		Message: message,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Name) + ": " + e.Message
}

// classifyError downgrades internal Go errors to structured kv errors for JS.
// Order matters: an encode failure during flush is both a write and a
// serializer error and is reported as the serializer error.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var kvErr *Error
	if errors.As(err, &kvErr) {
		return kvErr
	}

	switch {
	case errors.Is(err, store.ErrInvalidOperation):
		return NewError(InvalidOperationError, err.Error())
	case errors.Is(err, store.ErrInvalidBackend):
		return NewError(InvalidBackendError, err.Error())
	case errors.Is(err, store.ErrInvalidEvent):
		return NewError(InvalidEventError, err.Error())
	case errors.Is(err, store.ErrNilHandler):
		return NewError(HandlerError, err.Error())
	case errors.Is(err, store.ErrSerializerEncodeFailed):
		return NewError(SerializerError, err.Error())
	case errors.Is(err, store.ErrDocumentReadFailed):
		return NewError(ReadError, err.Error())
	case errors.Is(err, store.ErrDocumentWriteFailed):
		return NewError(WriteError, err.Error())
	case errors.Is(err, store.ErrDocumentPathResolveFailed),
		errors.Is(err, store.ErrDocumentPathIsDirectory):
		return NewError(DocumentPathError, err.Error())
	case errors.Is(err, store.ErrKVOptionsConflict):
		return NewError(OptionsConflictError, err.Error())
	case errors.Is(err, store.ErrKVOptionsInvalid):
		return NewError(OptionsError, err.Error())
	}

	return err
}
