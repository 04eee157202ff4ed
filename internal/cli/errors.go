package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.
var (
	// ErrNoChapters indicates a file has no chapter table to inspect or split.
	ErrNoChapters = errors.New("no chapters found")

	// ErrOutputExists indicates a per-chapter output file already exists.
	ErrOutputExists = errors.New("output file already exists")
)
