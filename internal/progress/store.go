package progress

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// Store persists snapshots keyed by input file.
type Store interface {
	// Save writes snap, replacing any previous snapshot for the same input.
	Save(ctx context.Context, snap Snapshot) error
	// Load returns the snapshot for sourcePath. A missing, unreadable or
	// invalid snapshot yields false; the reason is logged, never returned.
	Load(ctx context.Context, sourcePath string) (Snapshot, bool)
	// Location describes where the snapshot for sourcePath lives.
	Location(sourcePath string) string
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger *slog.Logger
	now    func() time.Time
}

// WithLogger sets the logger used for save and load diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the clock used to stamp snapshots on save.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// FileName returns the default snapshot name for an input, "<stem>_progress.json".
func FileName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_progress.json"
}

// decodeOrReject logs why data cannot be used for sourcePath.
func decodeOrReject(logger *slog.Logger, data []byte, sourcePath, location string) (Snapshot, bool) {
	snap, err := Decode(data, sourcePath)
	if err != nil {
		logger.Warn("ignoring progress snapshot", "location", location, "error", err)
		return Snapshot{}, false
	}
	logger.Info("resuming from progress snapshot",
		"location", location, "run_id", snap.Metadata.RunID, "chapters", len(snap.Chapters), "markers", len(snap.Markers))
	return snap, true
}
