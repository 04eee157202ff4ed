package progress

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/polar9527/tag-audio/internal/atomicfile"
)

// FileStore keeps snapshots as JSON files in a directory.
type FileStore struct {
	dir string
	options
}

// NewFileStore creates a store writing into dir. An empty dir means the
// working directory.
func NewFileStore(dir string, opts ...Option) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{dir: dir, options: newOptions(opts)}
}

// Location returns the snapshot file path for sourcePath.
func (s *FileStore) Location(sourcePath string) string {
	return filepath.Join(s.dir, FileName(sourcePath))
}

// Save writes snap atomically. The directory is created if needed.
func (s *FileStore) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap.Metadata.Timestamp = s.now().UTC()
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create progress directory: %w", err)
	}
	path := s.Location(snap.AudioInfo.Path)
	if err := atomicfile.WriteBytes(path, data, 0o644); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	s.logger.Info("progress saved", "path", path, "stage", string(snap.Stage))
	return nil
}

// Load reads the snapshot for sourcePath.
func (s *FileStore) Load(_ context.Context, sourcePath string) (Snapshot, bool) {
	path := s.Location(sourcePath)
	data, err := os.ReadFile(path) // #nosec G304 -- path derived from configured progress dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("no progress snapshot", "path", path)
		} else {
			s.logger.Warn("cannot read progress snapshot", "path", path, "error", err)
		}
		return Snapshot{}, false
	}
	return decodeOrReject(s.logger, data, sourcePath, path)
}
