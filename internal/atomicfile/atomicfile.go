// Package atomicfile writes files by writing a temporary file in the target
// directory and renaming it over the destination.
package atomicfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// Write atomically replaces path with data. An existing file keeps its mode,
// a new file gets perm. A partially written temporary file is removed on failure.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	_, err := os.Stat(path)
	created := errors.Is(err, os.ErrNotExist)

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if created {
		if err := os.Chmod(path, perm); err != nil {
			return fmt.Errorf("failed to chmod %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// WriteJSON encodes v as indented JSON and atomically writes it to path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return Write(path, data, 0o644)
}
