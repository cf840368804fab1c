package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDocumentPath is the default filesystem path of the JSON document.
const DefaultDocumentPath = "kvmap.json"

// Document is the durable medium a PersistentMap flushes to and loads from.
// It stores one opaque, already-serialized document.
type Document interface {
	// Read returns the current document. A document that was never written
	// fails with an error wrapping ErrDocumentNotFound.
	Read() ([]byte, error)

	// Write replaces the document with data.
	Write(data []byte) error

	// Location describes where the document lives, for logs and errors.
	Location() string

	// Close releases any resources held by the document. It SHOULD be idempotent.
	Close() error
}

// FileDocument keeps the document in a plain file. Writes go to a temporary file
// next to the destination which is then renamed over it, so readers never see a
// half-written document.
type FileDocument struct {
	path string
}

var _ Document = (*FileDocument)(nil)

// NewFileDocument returns a FileDocument at path. An empty path uses DefaultDocumentPath.
// The path is not touched until the first Read or Write.
func NewFileDocument(path string) *FileDocument {
	if path == "" {
		path = DefaultDocumentPath
	}

	return &FileDocument{path: filepath.Clean(path)}
}

// Read returns the file contents.
func (d *FileDocument) Read() ([]byte, error) {
	//nolint:forbidigo // file I/O is the purpose of this type.
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrDocumentNotFound, d.path)
		}

		return nil, fmt.Errorf("read %q: %w", d.path, err)
	}

	return data, nil
}

// Write atomically replaces the file with data, creating parent directories as needed.
func (d *FileDocument) Write(data []byte) error {
	targetDir := filepath.Dir(d.path)
	targetBase := filepath.Base(d.path)

	//nolint:forbidigo // file I/O is the purpose of this type.
	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return fmt.Errorf("create directory %q: %w", targetDir, err)
	}

	//nolint:forbidigo // file I/O is the purpose of this type.
	tempHandle, err := os.CreateTemp(targetDir, targetBase+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	tempFile := tempHandle.Name()

	if err := writeAndSync(tempHandle, data); err != nil {
		//nolint:forbidigo // cleanup is best-effort, the caller already has err.
		_ = os.Remove(tempFile)

		return err
	}

	//nolint:forbidigo // file I/O is the purpose of this type.
	if err := os.Rename(tempFile, d.path); err != nil {
		//nolint:forbidigo // cleanup is best-effort, the caller already has err.
		_ = os.Remove(tempFile)

		return fmt.Errorf("rename %q to %q: %w", tempFile, d.path, err)
	}

	return nil
}

// Location returns the file path.
func (d *FileDocument) Location() string {
	return d.path
}

// Close is a no-op; the file is opened per operation.
func (d *FileDocument) Close() error {
	return nil
}

// writeAndSync writes data to f, fsyncs it and closes it.
// Without the sync a crash after Rename could leave an empty document.
func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()

		return fmt.Errorf("write temporary file: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()

		return fmt.Errorf("sync temporary file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close temporary file: %w", err)
	}

	return nil
}
