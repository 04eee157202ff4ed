package audio

import "errors"

// ErrFileNotFound indicates the specified input file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrDecodeFailed indicates the input could not be decoded as audio
// or reported no usable duration.
var ErrDecodeFailed = errors.New("audio decode failed")

// ErrChunkingFailed indicates FFmpeg failed while extracting a chunk.
var ErrChunkingFailed = errors.New("audio chunking failed")

// ErrInvalidWAV indicates a payload is not a PCM WAV stream this package understands.
var ErrInvalidWAV = errors.New("invalid wav payload")
