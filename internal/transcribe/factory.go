package transcribe

import (
	"io"
	"log/slog"

	"github.com/polar9527/tag-audio/internal/lang"
)

// Settings selects and configures a backend.
type Settings struct {
	Backend    Backend
	Model      string
	Language   string
	ServerURL  string
	ModelPath  string
	APIKey     string
	MaxRetries int
	Logger     *slog.Logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewFactory builds a Factory for the configured backend. The closer releases
// shared resources (the native model) once all workers are done.
func NewFactory(s Settings) (Factory, io.Closer, error) {
	s.Language = lang.BaseCode(s.Language)
	switch s.Backend {
	case BackendOpenAI, "":
		f, err := NewOpenAIFactory(s.APIKey,
			WithModel(s.Model),
			WithLanguage(s.Language),
			WithMaxRetries(s.MaxRetries),
			WithLogger(s.Logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return f, nopCloser{}, nil
	case BackendWhisperServer:
		f := NewServerFactory(s.ServerURL,
			WithServerModel(s.Model),
			WithServerLanguage(s.Language),
			WithServerRetry(s.MaxRetries, defaultBaseDelay, defaultMaxDelay),
			WithServerLogger(s.Logger),
		)
		return f, nopCloser{}, nil
	case BackendWhisperNative:
		return NewNativeFactory(s.ModelPath, s.Language)
	default:
		_, err := ParseBackend(string(s.Backend))
		return nil, nil, err
	}
}
