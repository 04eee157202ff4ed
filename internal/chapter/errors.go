package chapter

import "errors"

// ErrInvalidChapters indicates a chapter list does not partition the track.
var ErrInvalidChapters = errors.New("invalid chapter list")
