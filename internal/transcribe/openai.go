package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/polar9527/tag-audio/internal/apierr"
	"github.com/polar9527/tag-audio/internal/audio"
)

// DefaultOpenAIModel is the transcription model used when none is configured.
const DefaultOpenAIModel = openai.Whisper1

// audioTranscriber is the subset of *openai.Client used here, injectable in tests.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Transcriber      = (*OpenAITranscriber)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// OpenAITranscriber transcribes chunks with OpenAI's audio API.
// Transient failures are retried with exponential backoff.
type OpenAITranscriber struct {
	client   audioTranscriber
	model    string
	language string
	retry    apierr.Backoff
	logger   *slog.Logger
}

// OpenAIOption configures an OpenAITranscriber.
type OpenAIOption func(*OpenAITranscriber)

// WithModel sets the transcription model.
func WithModel(model string) OpenAIOption {
	return func(t *OpenAITranscriber) {
		if model != "" {
			t.model = model
		}
	}
}

// WithLanguage sets the ISO 639-1 language hint.
func WithLanguage(lang string) OpenAIOption {
	return func(t *OpenAITranscriber) { t.language = lang }
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) OpenAIOption {
	return func(t *OpenAITranscriber) {
		if n >= 0 {
			t.retry.MaxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, maxDelay time.Duration) OpenAIOption {
	return func(t *OpenAITranscriber) {
		if base > 0 {
			t.retry.BaseDelay = base
		}
		if maxDelay > 0 {
			t.retry.MaxDelay = maxDelay
		}
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(l *slog.Logger) OpenAIOption {
	return func(t *OpenAITranscriber) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewOpenAITranscriber creates a transcriber around an OpenAI client.
func NewOpenAITranscriber(client *openai.Client, opts ...OpenAIOption) *OpenAITranscriber {
	return newOpenAITranscriber(client, opts...)
}

func newOpenAITranscriber(client audioTranscriber, opts ...OpenAIOption) *OpenAITranscriber {
	t := &OpenAITranscriber{
		client: client,
		model:  DefaultOpenAIModel,
		retry: apierr.Backoff{
			MaxRetries: defaultMaxRetries,
			BaseDelay:  defaultBaseDelay,
			MaxDelay:   defaultMaxDelay,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewOpenAIFactory returns a Factory whose transcribers share one HTTP client.
// go-openai clients are safe for concurrent use, so sharing costs nothing.
func NewOpenAIFactory(apiKey string, opts ...OpenAIOption) (Factory, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	client := openai.NewClient(apiKey)
	return func() (Transcriber, error) {
		return NewOpenAITranscriber(client, opts...), nil
	}, nil
}

// Transcribe implements Transcriber.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, chunk audio.Chunk) (string, error) {
	b := t.retry
	b.OnRetry = func(retry int, wait time.Duration, err error) {
		t.logger.Warn("retrying transcription", "chunk", chunk.Index, "retry", retry, "wait", wait, "error", err)
	}

	text, err := apierr.Do(ctx, b, func(ctx context.Context) (string, error) {
		// The reader is consumed by each attempt, so build the request inside the retry.
		req := openai.AudioRequest{
			Model:    t.model,
			Reader:   bytes.NewReader(chunk.Payload),
			FilePath: chunkFileName(chunk),
			Format:   openai.AudioResponseFormatJSON,
			Language: t.language,
		}
		resp, err := t.client.CreateTranscription(ctx, req)
		if err != nil {
			return "", classifyError(err)
		}
		return resp.Text, nil
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return nonEmpty(text, chunk)
}

// classifyError maps go-openai errors to apierr sentinels.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if classified := apierr.FromStatus(apiErr.HTTPStatusCode, apiErr.Message); classified != nil {
			return classified
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if classified := apierr.FromStatus(reqErr.HTTPStatusCode, reqErr.Error()); classified != nil {
			return classified
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}
	return err
}
