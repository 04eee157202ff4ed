package transcribe

import "errors"

// ErrAPIKeyMissing indicates OPENAI_API_KEY environment variable is not set.
var ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

// ErrEmptyTranscript indicates the engine returned no words for a chunk.
var ErrEmptyTranscript = errors.New("empty transcript")

// ErrUnknownBackend indicates the configured recognition backend does not exist.
var ErrUnknownBackend = errors.New("unknown recognition backend")

// ErrBackendUnavailable indicates the backend was not compiled into this binary.
var ErrBackendUnavailable = errors.New("recognition backend not available in this build")

// ErrModelLoad indicates a local recognition model could not be loaded.
var ErrModelLoad = errors.New("recognition model load failed")
