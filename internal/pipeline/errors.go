package pipeline

import "errors"

// ErrTagWrite indicates chapters were computed but could not be embedded.
// The snapshot is saved, so a rerun only repeats tag writing.
var ErrTagWrite = errors.New("cannot write chapter tags")
