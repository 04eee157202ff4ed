package progress

import "errors"

// Sentinel errors for snapshot handling. Load reports these through its log
// line only; a rejected snapshot is treated as a cold start.
var (
	// ErrCorruptSnapshot indicates the payload is not a well-formed snapshot.
	ErrCorruptSnapshot = errors.New("corrupt progress snapshot")

	// ErrIncompatibleVersion indicates a snapshot written by an incompatible format version.
	ErrIncompatibleVersion = errors.New("incompatible progress snapshot version")

	// ErrPathMismatch indicates the snapshot belongs to a different input file.
	ErrPathMismatch = errors.New("progress snapshot is for another file")
)
