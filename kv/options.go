package kv

import (
	"fmt"

	"github.com/grafana/sobek"
	"go.k6.io/k6/js/common"
	"go.k6.io/k6/js/modules"

	"github.com/oshokin/xk6-kvmap/kv/store"
)

const (
	// DocumentFile keeps the durable document in a plain JSON file.
	DocumentFile = "file"
	// DocumentBolt keeps the durable document inside a bbolt file.
	DocumentBolt = "bolt"

	// DefaultDocument is used when the user does not specify a document medium.
	DefaultDocument = DocumentFile
)

// Options controls how the shared store is created on the first call to openKv().
type Options struct {
	// Path points to the durable document of the persistent ("json") backend.
	// When empty, "kvmap.json" (file) or ".kvmap.db" (bolt) in the working directory is used.
	Path string `js:"path"`

	// Document selects the durable medium.
	// Valid values: "file" (default), "bolt".
	Document string `js:"document"`

	// MaxDocumentSize caps the document size accepted by loadAll().
	// Accepts a number of bytes or a size string such as "64MB". Unset means no cap.
	MaxDocumentSize any `js:"maxDocumentSize"`

	// Bolt contains bbolt-specific configuration for the "bolt" document.
	// Ignored by the "file" document.
	Bolt *BoltOptions `js:"bolt"`
}

// settings are Options after validation and parsing. The shared facade is built
// from them, and openKv() calls are compared by them, so "1KiB" and 1024 agree.
type settings struct {
	document         string
	path             string
	maxDocumentBytes uint64
	bolt             *store.BoltConfig
}

// NewOptionsFrom converts a Sobek (JS) value into an Options instance and applies the document default.
// Values are checked later by resolve.
func NewOptionsFrom(vu modules.VU, options sobek.Value) (Options, error) {
	opts := Options{Document: DefaultDocument}

	if !common.IsNullish(options) {
		if err := vu.Runtime().ExportTo(options, &opts); err != nil {
			return opts, fmt.Errorf("%w: %w", store.ErrKVOptionsInvalid, err)
		}
	}

	if opts.Document == "" {
		opts.Document = DefaultDocument
	}

	return opts, nil
}

// resolve validates o strictly, resolves the document path and parses every loosely typed value once.
func (o Options) resolve() (settings, error) {
	resolved := settings{document: o.Document}

	var fallbackPath string

	switch o.Document {
	case DocumentFile:
		fallbackPath = store.DefaultDocumentPath
	case DocumentBolt:
		fallbackPath = store.DefaultBoltPath

		cfg, err := o.Bolt.ToBoltConfig()
		if err != nil {
			return settings{}, err
		}

		resolved.bolt = cfg
	default:
		return settings{}, fmt.Errorf(
			"%w: document %q; valid values are: %q, %q",
			store.ErrKVOptionsInvalid, o.Document, DocumentFile, DocumentBolt,
		)
	}

	path, err := store.ResolveDocumentPath(o.Path, fallbackPath)
	if err != nil {
		return settings{}, err
	}

	resolved.path = path

	if o.MaxDocumentSize != nil {
		size, err := parseSizeValue(o.MaxDocumentSize)
		if err != nil {
			return settings{}, fmt.Errorf("%w: maxDocumentSize: %w", store.ErrKVOptionsInvalid, err)
		}

		resolved.maxDocumentBytes = size
	}

	return resolved, nil
}

// equal reports whether two openKv() calls describe the same store.
func (s settings) equal(other settings) bool {
	return s.document == other.document &&
		s.path == other.path &&
		s.maxDocumentBytes == other.maxDocumentBytes &&
		s.bolt.Equal(other.bolt)
}
