package store

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"
	boltErrors "go.etcd.io/bbolt/errors"
)

const (
	// DefaultBoltPath is the default filesystem path of the bbolt file.
	DefaultBoltPath = ".kvmap.db"

	// DefaultBoltBucket is the bucket holding the document inside the bbolt file.
	DefaultBoltBucket = "kvmap"

	// boltDocumentKey is the key the document is stored under.
	boltDocumentKey = "document"
)

// BoltDocument keeps the document as a single value in a bbolt file. Every Write
// is one bbolt transaction, so the document is replaced atomically and bbolt's
// file lock keeps a second process from opening the same file.
type BoltDocument struct {
	path    string
	options *bolt.Options
	bucket  []byte

	mu     sync.Mutex // Serializes open/close transitions
	handle *bolt.DB
	closed bool
}

var _ Document = (*BoltDocument)(nil)

// NewBoltDocument returns a BoltDocument at path. An empty path uses DefaultBoltPath.
// The file is opened lazily on first use.
func NewBoltDocument(path string, cfg *BoltConfig) (*BoltDocument, error) {
	if path == "" {
		path = DefaultBoltPath
	}

	opts, err := cfg.boltOptions()
	if err != nil {
		return nil, err
	}

	return &BoltDocument{
		path:    filepath.Clean(path),
		options: opts,
		bucket:  []byte(DefaultBoltBucket),
	}, nil
}

// open returns the bbolt handle, opening the file and creating the bucket on first use.
func (d *BoltDocument) open() (*bolt.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDocumentClosed
	}

	if d.handle != nil {
		return d.handle, nil
	}

	handle, err := bolt.Open(d.path, 0o600, d.options)
	switch {
	case errors.Is(err, boltErrors.ErrTimeout):
		return nil, fmt.Errorf("%w: %q: %w", ErrBoltLocked, d.path, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %q: %w", ErrBoltOpenFailed, d.path, err)
	}

	if d.options == nil || !d.options.ReadOnly {
		err = handle.Update(func(tx *bolt.Tx) error {
			if _, bucketErr := tx.CreateBucketIfNotExists(d.bucket); bucketErr != nil {
				return fmt.Errorf("%w: %q: %w", ErrBoltBucketCreateFailed, d.bucket, bucketErr)
			}

			return nil
		})
		if err != nil {
			_ = handle.Close()

			return nil, err
		}
	}

	d.handle = handle

	return handle, nil
}

// Read returns the stored document.
func (d *BoltDocument) Read() ([]byte, error) {
	handle, err := d.open()
	if err != nil {
		return nil, err
	}

	var data []byte

	err = handle.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(d.bucket)
		if bucket == nil {
			return fmt.Errorf("%w: bucket %q in %q", ErrDocumentNotFound, d.bucket, d.path)
		}

		value := bucket.Get([]byte(boltDocumentKey))
		if value == nil {
			return fmt.Errorf("%w: %q", ErrDocumentNotFound, d.path)
		}

		// Values returned by bbolt are only valid for the life of the transaction.
		data = bytes.Clone(value)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

// Write stores data as the document in a single write transaction.
func (d *BoltDocument) Write(data []byte) error {
	handle, err := d.open()
	if err != nil {
		return err
	}

	return handle.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(d.bucket)
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrBoltBucketCreateFailed, d.bucket, err)
		}

		return bucket.Put([]byte(boltDocumentKey), data)
	})
}

// Location returns the bbolt file path.
func (d *BoltDocument) Location() string {
	return d.path
}

// Close closes the bbolt file. Later calls to Read or Write fail with ErrDocumentClosed.
func (d *BoltDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	d.closed = true

	if d.handle == nil {
		return nil
	}

	err := d.handle.Close()
	d.handle = nil

	return err
}
