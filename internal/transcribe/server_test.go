package transcribe_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/polar9527/tag-audio/internal/apierr"
	"github.com/polar9527/tag-audio/internal/transcribe"
)

func TestServerTranscriber_Transcribe(t *testing.T) {
	t.Parallel()

	var gotLang, gotFormat, gotFile string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotBody, _ = io.ReadAll(f)
		gotFile = hdr.Filename
		gotLang = r.FormValue("language")
		gotFormat = r.FormValue("response_format")
		_, _ = io.WriteString(w, `{"text":" Chapter Two. "}`)
	}))
	t.Cleanup(srv.Close)

	tr := transcribe.NewServerTranscriber(srv.URL+"/", transcribe.WithServerLanguage("en"))
	got, err := tr.Transcribe(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Transcribe() unexpected error: %v", err)
	}
	if got != "Chapter Two." {
		t.Errorf("Transcribe() = %q, want %q", got, "Chapter Two.")
	}
	if string(gotBody) != "RIFF-payload" || gotFile != "chunk_007.wav" {
		t.Errorf("upload = %q (%s), want chunk payload", gotBody, gotFile)
	}
	if gotLang != "en" || gotFormat != "json" {
		t.Errorf("fields language=%q response_format=%q", gotLang, gotFormat)
	}
}

func TestServerTranscriber_StatusHandling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		wantCalls int32
	}{
		{name: "5xx retried", status: http.StatusInternalServerError, body: "oops", wantErr: apierr.ErrServer, wantCalls: 3},
		{name: "4xx not retried", status: http.StatusBadRequest, body: "bad file", wantErr: apierr.ErrBadRequest, wantCalls: 1},
		{name: "error field", status: http.StatusOK, body: `{"error":"failed to read WAV"}`, wantErr: apierr.ErrBadRequest, wantCalls: 1},
		{name: "empty text", status: http.StatusOK, body: `{"text":""}`, wantErr: transcribe.ErrEmptyTranscript, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			tr := transcribe.NewServerTranscriber(srv.URL,
				transcribe.WithServerRetry(2, time.Millisecond, time.Millisecond))
			_, err := tr.Transcribe(context.Background(), testChunk())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Transcribe() error = %v, want %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestServerTranscriber_HonorsRetryAfter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var first, second atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			first.Store(time.Now().UnixNano())
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		second.Store(time.Now().UnixNano())
		_, _ = io.WriteString(w, `{"text":"Chapter Three"}`)
	}))
	t.Cleanup(srv.Close)

	// The one-second hint is capped at the 50ms max delay.
	tr := transcribe.NewServerTranscriber(srv.URL,
		transcribe.WithServerRetry(1, time.Millisecond, 50*time.Millisecond))
	got, err := tr.Transcribe(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Transcribe() unexpected error: %v", err)
	}
	if got != "Chapter Three" {
		t.Errorf("Transcribe() = %q, want %q", got, "Chapter Three")
	}
	if gap := time.Duration(second.Load() - first.Load()); gap < 50*time.Millisecond || gap > time.Second {
		t.Errorf("gap between attempts = %v, want the capped Retry-After wait", gap)
	}
}

func TestNewServerTranscriber_DefaultURL(t *testing.T) {
	t.Parallel()

	f := transcribe.NewServerFactory("")
	tr, err := f()
	if err != nil || tr == nil {
		t.Fatalf("factory() = %v, %v", tr, err)
	}
}
