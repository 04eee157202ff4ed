// Package atomicfile replaces files by writing a sibling temp file and
// renaming it over the destination.
package atomicfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Write creates or replaces path with the bytes produced by fill.
// Readers see either the previous content or the complete new content.
// On any failure the temp file is removed and path is left untouched.
func Write(path string, perm os.FileMode, fill func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	// #nosec G304 -- temp file lives next to a caller-chosen destination
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	writeErr := func() error {
		defer func() { _ = f.Close() }()
		if err := fill(f); err != nil {
			return err
		}
		if err := f.Chmod(perm); err != nil {
			return fmt.Errorf("chmod temp file: %w", err)
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync temp file: %w", err)
		}
		return nil
	}()
	if writeErr != nil {
		_ = os.Remove(tmp)
		return writeErr
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// WriteBytes is Write for an in-memory payload.
func WriteBytes(path string, data []byte, perm os.FileMode) error {
	return Write(path, perm, func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	})
}
