package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ResolveDocumentPath normalizes user-provided paths and applies fast-fail defaults.
// Empty strings revert to fallback, which is resolved against the working directory.
func ResolveDocumentPath(documentPath, fallback string) (string, error) {
	trimmedPath := strings.TrimSpace(documentPath)
	if trimmedPath == "" {
		defaultPath, err := filepath.Abs(fallback)
		if err != nil {
			return "", fmt.Errorf("%w: default path %q: %w", ErrDocumentPathResolveFailed, fallback, err)
		}

		return defaultPath, nil
	}

	cleanedPath := filepath.Clean(trimmedPath)

	absPath, err := filepath.Abs(cleanedPath)
	if err != nil {
		return "", fmt.Errorf("%w: path %q: %w", ErrDocumentPathResolveFailed, cleanedPath, err)
	}

	info, err := os.Stat(absPath)
	switch {
	case err == nil:
		if info.IsDir() {
			return absPath, fmt.Errorf("%w: %q", ErrDocumentPathIsDirectory, absPath)
		}

		return absPath, nil
	case errors.Is(err, os.ErrNotExist):
		return absPath, nil
	default:
		return absPath, fmt.Errorf("%w: %q: %w", ErrDocumentPathResolveFailed, absPath, err)
	}
}

// discardLogger returns a logger that drops every record.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
