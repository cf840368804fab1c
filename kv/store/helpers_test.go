package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced clock for expiration tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// keyRecorder collects the keys a handler was called with.
type keyRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *keyRecorder) handle(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.keys = append(r.keys, key)
}

func (r *keyRecorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.keys...)
}

// newTestPersistentMap returns a PersistentMap writing a JSON file in a temp dir.
func newTestPersistentMap(t *testing.T, clock *testClock) (*PersistentMap, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "store.json")

	cfg := &PersistentConfig{Document: NewFileDocument(path)}
	if clock != nil {
		cfg.Volatile = &VolatileConfig{Now: clock.Now}
	}

	return NewPersistentMap(cfg), path
}

// readDocument decodes the JSON document at path.
func readDocument(t *testing.T, path string) map[string]any {
	t.Helper()

	//nolint:forbidigo // tests inspect the document directly.
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	values, err := NewJSONSerializer().Deserialize(data)
	require.NoError(t, err)

	return values
}

// unwritablePath returns a document path whose parent is a regular file,
// so every write fails regardless of the user running the tests.
func unwritablePath(t *testing.T) string {
	t.Helper()

	blocker := filepath.Join(t.TempDir(), "blocker")

	//nolint:forbidigo // tests need a file in the way of the document directory.
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	return filepath.Join(blocker, "store.json")
}

// countingDocument counts the writes that reach the wrapped Document.
type countingDocument struct {
	Document

	mu     sync.Mutex
	writes int
}

func (d *countingDocument) Write(data []byte) error {
	d.mu.Lock()
	d.writes++
	d.mu.Unlock()

	return d.Document.Write(data)
}

func (d *countingDocument) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.writes
}
