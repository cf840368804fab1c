package kv

import (
	"fmt"
	"math"

	"github.com/oshokin/xk6-kvmap/kv/store"
)

// BoltOptions exposes the bbolt knobs that matter for a single-document file.
// Ignored unless the "bolt" document is selected.
type BoltOptions struct {
	// Timeout controls how long bbolt waits to acquire the file lock.
	// When zero, bbolt waits indefinitely, which hangs a test if another
	// process holds the file.
	//
	// Accepted types:
	//   - number: milliseconds.
	//   - string: Go duration, e.g. "1s", "500ms".
	Timeout any `js:"timeout"`

	// NoSync skips fsync on each commit. Faster, but a crash may lose the latest flush.
	NoSync *bool `js:"noSync"`

	// NoGrowSync skips the fsync that happens when the file grows.
	NoGrowSync *bool `js:"noGrowSync"`

	// FreelistType selects the freelist representation: "array" (default) or "map".
	FreelistType *string `js:"freelistType"`

	// ReadOnly opens the file read-only. loadAll() works, every flush fails with WriteError.
	ReadOnly *bool `js:"readOnly"`

	// InitialMmapSize is the initial mmap size in bytes.
	//
	// Accepted types:
	//   - number: bytes.
	//   - string: size, e.g. "64MB", "1GiB".
	InitialMmapSize any `js:"initialMmapSize"`
}

// ToBoltConfig parses the loosely typed JS values and returns a validated store.BoltConfig.
// Nil options yield a nil config, which keeps the bbolt defaults.
func (bo *BoltOptions) ToBoltConfig() (*store.BoltConfig, error) {
	if bo == nil {
		//nolint:nilnil // nil bolt options are valid and result in the bbolt defaults.
		return nil, nil
	}

	cfg := &store.BoltConfig{
		NoSync:       bo.NoSync,
		NoGrowSync:   bo.NoGrowSync,
		FreelistType: bo.FreelistType,
		ReadOnly:     bo.ReadOnly,
	}

	if bo.Timeout != nil {
		timeout, err := parseDurationValue(bo.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: bolt.timeout: %w", store.ErrKVOptionsInvalid, err)
		}

		cfg.Timeout = &timeout
	}

	if bo.InitialMmapSize != nil {
		size, err := parseSizeValue(bo.InitialMmapSize)
		if err != nil {
			return nil, fmt.Errorf("%w: bolt.initialMmapSize: %w", store.ErrKVOptionsInvalid, err)
		}

		if size > math.MaxInt {
			return nil, fmt.Errorf("%w: bolt.initialMmapSize too large: %d", store.ErrKVOptionsInvalid, size)
		}

		mmapSize := int(size)
		cfg.InitialMmapSize = &mmapSize
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
