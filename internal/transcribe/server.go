package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/polar9527/tag-audio/internal/apierr"
	"github.com/polar9527/tag-audio/internal/audio"
)

// DefaultServerURL is where whisper.cpp's example server listens by default.
const DefaultServerURL = "http://127.0.0.1:8080"

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ Transcriber = (*ServerTranscriber)(nil)

// ServerTranscriber posts chunks to a whisper.cpp server's /inference endpoint.
type ServerTranscriber struct {
	baseURL  string
	model    string
	language string
	http     httpDoer
	retry    apierr.Backoff
	logger   *slog.Logger
}

// ServerOption configures a ServerTranscriber.
type ServerOption func(*ServerTranscriber)

// WithServerModel forwards a model name to the server. Empty uses the server's loaded model.
func WithServerModel(model string) ServerOption {
	return func(s *ServerTranscriber) { s.model = model }
}

// WithServerLanguage sets the language hint.
func WithServerLanguage(lang string) ServerOption {
	return func(s *ServerTranscriber) { s.language = lang }
}

// WithServerHTTPClient sets the HTTP client (for testing).
func WithServerHTTPClient(c httpDoer) ServerOption {
	return func(s *ServerTranscriber) { s.http = c }
}

// WithServerRetry sets retry parameters.
func WithServerRetry(maxRetries int, base, maxDelay time.Duration) ServerOption {
	return func(s *ServerTranscriber) {
		s.retry = apierr.Backoff{MaxRetries: maxRetries, BaseDelay: base, MaxDelay: maxDelay}
	}
}

// WithServerLogger sets the logger used for retry notices.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *ServerTranscriber) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServerTranscriber creates a transcriber for the server at baseURL.
func NewServerTranscriber(baseURL string, opts ...ServerOption) *ServerTranscriber {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	s := &ServerTranscriber{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Minute},
		retry: apierr.Backoff{
			MaxRetries: defaultMaxRetries,
			BaseDelay:  defaultBaseDelay,
			MaxDelay:   defaultMaxDelay,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServerFactory returns a Factory of server transcribers sharing one HTTP client.
func NewServerFactory(baseURL string, opts ...ServerOption) Factory {
	shared := &http.Client{Timeout: 10 * time.Minute}
	opts = append([]ServerOption{WithServerHTTPClient(shared)}, opts...)
	return func() (Transcriber, error) {
		return NewServerTranscriber(baseURL, opts...), nil
	}
}

// Transcribe implements Transcriber.
func (s *ServerTranscriber) Transcribe(ctx context.Context, chunk audio.Chunk) (string, error) {
	b := s.retry
	b.OnRetry = func(retry int, wait time.Duration, err error) {
		s.logger.Warn("retrying transcription", "chunk", chunk.Index, "retry", retry, "wait", wait, "error", err)
	}
	text, err := apierr.Do(ctx, b, func(ctx context.Context) (string, error) {
		return s.infer(ctx, chunk)
	})
	if err != nil {
		return "", fmt.Errorf("whisper server: %w", err)
	}
	return nonEmpty(text, chunk)
}

func (s *ServerTranscriber) infer(ctx context.Context, chunk audio.Chunk) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", chunkFileName(chunk))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(chunk.Payload); err != nil {
		return "", fmt.Errorf("write wav data: %w", err)
	}
	fields := map[string]string{
		"response_format": "json",
		"language":        s.language,
		"model":           s.model,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if classified := apierr.FromStatus(resp.StatusCode, strings.TrimSpace(string(data))); classified != nil {
		return "", apierr.WithRetryAfter(classified, resp.Header.Get("Retry-After"), time.Now())
	}

	var result struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("parse JSON response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("server error %q: %w", result.Error, apierr.ErrBadRequest)
	}
	return result.Text, nil
}
