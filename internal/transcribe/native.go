//go:build whisper

// The native backend links whisper.cpp through cgo. Build with -tags whisper
// and make libwhisper.a and whisper.h visible via LIBRARY_PATH and C_INCLUDE_PATH.

package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/polar9527/tag-audio/internal/audio"
)

// NativeAvailable reports whether the whisper.cpp backend is compiled in.
const NativeAvailable = true

// nativeTranscriber owns one whisper context, created once and reused for
// every chunk the worker handles. All contexts of a model drive the model's
// single whisper state, so inference runs under the model lock.
type nativeTranscriber struct {
	mu   *sync.Mutex
	wctx whisperlib.Context
}

// NewNativeFactory loads the model once and returns a Factory creating one
// context per transcriber. The returned closer releases the model.
func NewNativeFactory(modelPath, language string) (Factory, io.Closer, error) {
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrModelLoad, modelPath, err)
	}
	if language == "" {
		language = "en"
	}
	var mu sync.Mutex
	factory := func() (Transcriber, error) {
		wctx, err := model.NewContext()
		if err != nil {
			return nil, fmt.Errorf("whisper context: %w", err)
		}
		if err := wctx.SetLanguage(language); err != nil {
			return nil, fmt.Errorf("whisper language %q: %w", language, err)
		}
		return &nativeTranscriber{mu: &mu, wctx: wctx}, nil
	}
	return factory, model, nil
}

// Transcribe implements Transcriber.
func (n *nativeTranscriber) Transcribe(ctx context.Context, chunk audio.Chunk) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	samples, rate, err := audio.DecodeWAV(chunk.Payload)
	if err != nil {
		return "", err
	}
	if rate != whisperlib.SampleRate {
		return "", fmt.Errorf("%w: sample rate %d, want %d", audio.ErrInvalidWAV, rate, whisperlib.SampleRate)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var b strings.Builder
	for {
		segment, err := n.wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper segment: %w", err)
		}
		b.WriteString(segment.Text)
		b.WriteByte(' ')
	}
	return nonEmpty(b.String(), chunk)
}
