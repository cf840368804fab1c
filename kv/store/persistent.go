package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
)

// PersistentConfig holds persistent-map-specific configuration.
type PersistentConfig struct {
	// Document is the durable medium.
	// If nil, a FileDocument at DefaultDocumentPath is used.
	Document Document
	// Serializer encodes the value map.
	// If nil, a JSONSerializer is used.
	Serializer Serializer
	// MaxDocumentBytes caps the size of a document accepted by Load.
	// If <= 0, documents of any size are accepted.
	MaxDocumentBytes uint64
	// Volatile configures the in-memory map the persistent map is built on.
	Volatile *VolatileConfig
}

// PersistentMap is a VolatileMap whose value map is mirrored to a durable
// document. Set and Clear flush the whole value map after the in-memory
// mutation; a failed flush is reported but never rolled back. Get is the
// volatile Get: a lazy expiry eviction does not flush, so the stale entry stays
// in the document until the next flushing mutation.
//
// A mutation whose encoded map is identical to the last document written or
// loaded skips the write; Flush always writes. Expirations are not part of the document.
type PersistentMap struct {
	mem *VolatileMap

	document   Document
	serializer Serializer
	maxBytes   uint64

	flushMu sync.Mutex // Serializes flushes so two writes never interleave
	synced  bool       // The document is known to hold bytes with digest; guarded by flushMu
	digest  uint64
	logger  *slog.Logger
}

var _ Map = (*PersistentMap)(nil)

// NewPersistentMap creates an empty PersistentMap. Nothing is read until Load.
func NewPersistentMap(cfg *PersistentConfig) *PersistentMap {
	if cfg == nil {
		cfg = &PersistentConfig{}
	}

	document := cfg.Document
	if document == nil {
		document = NewFileDocument(DefaultDocumentPath)
	}

	serializer := cfg.Serializer
	if serializer == nil {
		serializer = NewJSONSerializer()
	}

	return &PersistentMap{
		mem:        NewVolatileMap(cfg.Volatile),
		document:   document,
		serializer: serializer,
		maxBytes:   cfg.MaxDocumentBytes,
		logger:     cfg.Volatile.logger(),
	}
}

// Set stores value under key, fires EventSet and flushes.
// If the flush fails the value stays set in memory and the error is returned.
func (m *PersistentMap) Set(key string, value any, ttl time.Duration) (Result, error) {
	result, _ := m.mem.Set(key, value, ttl)

	if err := m.flush(false); err != nil {
		return failedResult(err), err
	}

	return result, nil
}

// Get returns the value under key, evicting it from memory when expired.
func (m *PersistentMap) Get(key string) (any, bool) {
	return m.mem.Get(key)
}

// Clear removes key, fires EventClear and flushes.
// If the flush fails the key stays removed in memory and the error is returned.
func (m *PersistentMap) Clear(key string) (Result, error) {
	result, _ := m.mem.Clear(key)

	if err := m.flush(false); err != nil {
		return failedResult(err), err
	}

	return result, nil
}

// Dispatch routes op to Clear, Set or Get of the persistent map.
func (m *PersistentMap) Dispatch(key string, op Operation, value any, ttl time.Duration) (any, error) {
	return dispatch(m, key, op, value, ttl)
}

// On registers handler for event.
func (m *PersistentMap) On(event Event, handler Handler) error {
	return m.mem.On(event, handler)
}

// Len returns the number of entries held in memory.
func (m *PersistentMap) Len() int {
	return m.mem.Len()
}

// Flush writes the full current value map to the document.
// Failures wrap ErrDocumentWriteFailed.
func (m *PersistentMap) Flush() error {
	return m.flush(true)
}

// flush encodes the value map and writes it. Unless force is set, the write is
// skipped when the encoding matches what the document is known to hold.
func (m *PersistentMap) flush(force bool) error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	values := m.mem.snapshot()

	data, err := m.serializer.Serialize(values)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDocumentWriteFailed, err)
	}

	digest := xxhash.Sum64(data)
	if !force && m.synced && digest == m.digest {
		m.logger.Debug("document unchanged, write skipped",
			slog.String("location", m.document.Location()),
			slog.String("checksum", formatDigest(digest)),
		)

		return nil
	}

	if err := m.document.Write(data); err != nil {
		m.synced = false

		m.logger.Warn("flush failed",
			slog.String("location", m.document.Location()),
			slog.Any("error", err),
		)

		return fmt.Errorf("%w: %q: %w", ErrDocumentWriteFailed, m.document.Location(), err)
	}

	m.synced, m.digest = true, digest

	m.logger.Debug("flushed document",
		slog.String("location", m.document.Location()),
		slog.Int("entries", len(values)),
		slog.String("size", humanize.Bytes(uint64(len(data)))),
		slog.String("checksum", formatDigest(digest)),
	)

	return nil
}

// Load reads the document and replaces the in-memory value map with its
// contents. A missing, oversized or malformed document fails with an error
// wrapping ErrDocumentReadFailed and leaves the map untouched.
func (m *PersistentMap) Load() error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	data, err := m.document.Read()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDocumentReadFailed, err)
	}

	if m.maxBytes > 0 && uint64(len(data)) > m.maxBytes {
		return fmt.Errorf(
			"%w: %w: %s > %s",
			ErrDocumentReadFailed, ErrDocumentTooLarge,
			humanize.Bytes(uint64(len(data))), humanize.Bytes(m.maxBytes),
		)
	}

	values, err := m.serializer.Deserialize(data)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrDocumentReadFailed, m.document.Location(), err)
	}

	m.mem.replace(values)

	digest := xxhash.Sum64(data)
	m.synced, m.digest = true, digest

	m.logger.Debug("loaded document",
		slog.String("location", m.document.Location()),
		slog.Int("entries", len(values)),
		slog.String("checksum", formatDigest(digest)),
	)

	return nil
}

// Location describes where the document lives.
func (m *PersistentMap) Location() string {
	return m.document.Location()
}

// Close closes the underlying document.
func (m *PersistentMap) Close() error {
	if err := m.document.Close(); err != nil && !errors.Is(err, ErrDocumentClosed) {
		return err
	}

	return nil
}

func formatDigest(digest uint64) string {
	return fmt.Sprintf("%016x", digest)
}
