package transcribe_test

import (
	"errors"
	"testing"

	"github.com/polar9527/tag-audio/internal/transcribe"
)

func TestParseBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    transcribe.Backend
		wantErr bool
	}{
		{input: "openai", want: transcribe.BackendOpenAI},
		{input: " Whisper-Server ", want: transcribe.BackendWhisperServer},
		{input: "whisper-native", want: transcribe.BackendWhisperNative},
		{input: "google", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := transcribe.ParseBackend(tt.input)
			if tt.wantErr {
				if !errors.Is(err, transcribe.ErrUnknownBackend) {
					t.Errorf("ParseBackend(%q) error = %v, want ErrUnknownBackend", tt.input, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseBackend(%q) = %q, %v, want %q", tt.input, got, err, tt.want)
			}
		})
	}
}

func TestNewFactory(t *testing.T) {
	t.Parallel()

	t.Run("openai without key", func(t *testing.T) {
		t.Parallel()

		_, _, err := transcribe.NewFactory(transcribe.Settings{Backend: transcribe.BackendOpenAI})
		if !errors.Is(err, transcribe.ErrAPIKeyMissing) {
			t.Errorf("error = %v, want ErrAPIKeyMissing", err)
		}
	})

	t.Run("openai builds independent transcribers", func(t *testing.T) {
		t.Parallel()

		f, closer, err := transcribe.NewFactory(transcribe.Settings{Backend: transcribe.BackendOpenAI, APIKey: "sk-test"})
		if err != nil {
			t.Fatalf("NewFactory() unexpected error: %v", err)
		}
		defer func() { _ = closer.Close() }()
		a, _ := f()
		b, _ := f()
		if a == b {
			t.Error("factory returned the same transcriber twice")
		}
	})

	t.Run("whisper server", func(t *testing.T) {
		t.Parallel()

		f, closer, err := transcribe.NewFactory(transcribe.Settings{Backend: transcribe.BackendWhisperServer})
		if err != nil || f == nil || closer == nil {
			t.Fatalf("NewFactory() = %v, %v, %v", f, closer, err)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Parallel()

		_, _, err := transcribe.NewFactory(transcribe.Settings{Backend: "vosk"})
		if !errors.Is(err, transcribe.ErrUnknownBackend) {
			t.Errorf("error = %v, want ErrUnknownBackend", err)
		}
	})

	t.Run("native without build tag", func(t *testing.T) {
		t.Parallel()

		if transcribe.NativeAvailable {
			t.Skip("built with whisper tag")
		}
		_, _, err := transcribe.NewFactory(transcribe.Settings{Backend: transcribe.BackendWhisperNative, ModelPath: "m.bin"})
		if !errors.Is(err, transcribe.ErrBackendUnavailable) {
			t.Errorf("error = %v, want ErrBackendUnavailable", err)
		}
	})
}
