package store

import (
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltConfig holds bbolt tuning knobs for a BoltDocument.
// Nil fields keep the bbolt defaults; a nil or all-nil config opens with bolt.DefaultOptions.
type BoltConfig struct {
	// Timeout is how long Open waits for the file lock. Zero waits forever.
	Timeout *time.Duration
	// NoSync skips fsync after each commit.
	NoSync *bool
	// NoGrowSync skips the fsync when the file grows.
	NoGrowSync *bool
	// FreelistType is "array" (bbolt default) or "map", case-insensitive.
	FreelistType *string
	// ReadOnly opens the file read-only. Writes then fail with bbolt's ErrDatabaseReadOnly.
	ReadOnly *bool
	// InitialMmapSize is the initial mmap size in bytes.
	InitialMmapSize *int
}

// Validate reports the first knob bbolt would not accept. Errors wrap ErrKVOptionsInvalid.
func (cfg *BoltConfig) Validate() error {
	if cfg == nil {
		return nil
	}

	if cfg.Timeout != nil && *cfg.Timeout < 0 {
		return fmt.Errorf("%w: bolt timeout %s is negative", ErrKVOptionsInvalid, *cfg.Timeout)
	}

	if cfg.InitialMmapSize != nil && *cfg.InitialMmapSize < 0 {
		return fmt.Errorf("%w: bolt initialMmapSize %d is negative", ErrKVOptionsInvalid, *cfg.InitialMmapSize)
	}

	if cfg.FreelistType != nil {
		if _, err := parseFreelistType(*cfg.FreelistType); err != nil {
			return err
		}
	}

	return nil
}

// Equal reports whether both configs open the file the same way.
// An unset knob only equals another unset knob, even if bbolt's default matches.
func (cfg *BoltConfig) Equal(other *BoltConfig) bool {
	if cfg.isDefault() || other.isDefault() {
		return cfg.isDefault() && other.isDefault()
	}

	return pointeesEqual(cfg.Timeout, other.Timeout) &&
		pointeesEqual(cfg.NoSync, other.NoSync) &&
		pointeesEqual(cfg.NoGrowSync, other.NoGrowSync) &&
		pointeesEqual(cfg.freelist(), other.freelist()) &&
		pointeesEqual(cfg.ReadOnly, other.ReadOnly) &&
		pointeesEqual(cfg.InitialMmapSize, other.InitialMmapSize)
}

func (cfg *BoltConfig) isDefault() bool {
	return cfg == nil || *cfg == BoltConfig{}
}

// freelist is the parsed FreelistType, nil when unset or invalid.
func (cfg *BoltConfig) freelist() *bolt.FreelistType {
	if cfg.FreelistType == nil {
		return nil
	}

	freelist, err := parseFreelistType(*cfg.FreelistType)
	if err != nil {
		return nil
	}

	return &freelist
}

// boltOptions validates cfg and overlays it on bolt.DefaultOptions.
func (cfg *BoltConfig) boltOptions() (*bolt.Options, error) {
	if cfg.isDefault() {
		//nolint:nilnil // nil options mean "bbolt defaults".
		return nil, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := *bolt.DefaultOptions

	overlay(&opts.Timeout, cfg.Timeout)
	overlay(&opts.NoSync, cfg.NoSync)
	overlay(&opts.NoGrowSync, cfg.NoGrowSync)
	overlay(&opts.FreelistType, cfg.freelist())
	overlay(&opts.ReadOnly, cfg.ReadOnly)
	overlay(&opts.InitialMmapSize, cfg.InitialMmapSize)

	return &opts, nil
}

// parseFreelistType is the only place freelist names are checked.
func parseFreelistType(name string) (bolt.FreelistType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "array":
		return bolt.FreelistArrayType, nil
	case "map":
		return bolt.FreelistMapType, nil
	default:
		return "", fmt.Errorf("%w: bolt freelistType %q; valid values are: %q, %q",
			ErrKVOptionsInvalid, name, "array", "map")
	}
}

// overlay copies *src into *dst when src is set.
func overlay[T any](dst, src *T) {
	if src != nil {
		*dst = *src
	}
}

// pointeesEqual compares what two optional values point to; two nils are equal.
func pointeesEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}
