// Package transcribe turns audio chunks into text using a pluggable
// speech recognition backend.
package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/polar9527/tag-audio/internal/audio"
)

// Transcriber converts one chunk's WAV payload to text.
// Implementations are not required to be safe for concurrent use;
// each worker obtains its own instance from a Factory.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk audio.Chunk) (string, error)
}

// Factory creates an independent Transcriber.
type Factory func() (Transcriber, error)

// Backend names a recognition engine.
type Backend string

// Supported backends.
const (
	BackendOpenAI        Backend = "openai"
	BackendWhisperServer Backend = "whisper-server"
	BackendWhisperNative Backend = "whisper-native"
)

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendOpenAI, BackendWhisperServer, BackendWhisperNative:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: openai, whisper-server, whisper-native)", ErrUnknownBackend, s)
	}
}

// Default retry configuration for remote backends.
const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// chunkFileName names a payload for APIs that infer the format from the file name.
func chunkFileName(c audio.Chunk) string {
	return fmt.Sprintf("chunk_%03d.wav", c.Index)
}

// nonEmpty returns ErrEmptyTranscript for blank text.
func nonEmpty(text string, c audio.Chunk) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", c, ErrEmptyTranscript)
	}
	return text, nil
}
