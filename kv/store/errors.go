package store

import "errors"

var (
	// ErrInvalidOperation is returned when an operation name is not one of "new", "set" or "get".
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidBackend is returned when a backend selector is neither volatile nor persistent.
	ErrInvalidBackend = errors.New("invalid backend")
	// ErrInvalidEvent is returned when an event name is not one of "set" or "clear".
	ErrInvalidEvent = errors.New("invalid event")
	// ErrNilHandler is returned when a nil handler is registered.
	ErrNilHandler = errors.New("event handler is nil")
	// ErrDocumentReadFailed indicates the durable document could not be read or parsed.
	ErrDocumentReadFailed = errors.New("document read failed")
	// ErrDocumentWriteFailed indicates the durable document could not be written.
	ErrDocumentWriteFailed = errors.New("document write failed")
	// ErrDocumentNotFound is returned when the durable document does not exist yet.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentTooLarge is returned when a document exceeds the configured size cap on load.
	ErrDocumentTooLarge = errors.New("document exceeds size cap")
	// ErrDocumentPathResolveFailed indicates document path resolution failed.
	ErrDocumentPathResolveFailed = errors.New("document path resolve failed")
	// ErrDocumentPathIsDirectory is returned when the document path points to a directory.
	ErrDocumentPathIsDirectory = errors.New("document path is a directory")
	// ErrDocumentClosed is returned when a closed document is used.
	ErrDocumentClosed = errors.New("document is closed")
	// ErrBoltOpenFailed indicates opening the bbolt file failed.
	ErrBoltOpenFailed = errors.New("bolt open failed")
	// ErrBoltLocked indicates the bbolt file lock could not be acquired within the configured timeout.
	ErrBoltLocked = errors.New("bolt file is locked")
	// ErrBoltBucketCreateFailed indicates creating the bbolt bucket failed.
	ErrBoltBucketCreateFailed = errors.New("bolt bucket create failed")
	// ErrSerializerEncodeFailed indicates serializing a document failed.
	ErrSerializerEncodeFailed = errors.New("serializer encode failed")
	// ErrSerializerDecodeFailed indicates deserializing a document failed.
	ErrSerializerDecodeFailed = errors.New("serializer decode failed")
	// ErrKVOptionsInvalid is returned when store options fail validation.
	ErrKVOptionsInvalid = errors.New("invalid kv options")
	// ErrKVOptionsConflict is returned when the shared store is reopened with different options.
	ErrKVOptionsConflict = errors.New("kv already opened with different options")
)
