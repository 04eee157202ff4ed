package cli

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/polar9527/tag-audio/internal/audio"
	"github.com/polar9527/tag-audio/internal/config"
	"github.com/polar9527/tag-audio/internal/pipeline"
	"github.com/polar9527/tag-audio/internal/progress"
	"github.com/polar9527/tag-audio/internal/transcribe"
)

// ---------------------------------------------------------------------------
// Mock FFmpegResolver
// ---------------------------------------------------------------------------

type mockFFmpegResolver struct {
	ResolveFunc func(ctx context.Context) (string, error)

	mu           sync.Mutex
	resolveCalls int
}

func (m *mockFFmpegResolver) Resolve(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.resolveCalls++
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx)
	}
	return "/usr/bin/ffmpeg", nil
}

func (m *mockFFmpegResolver) CheckVersion(context.Context, string) {}

func (m *mockFFmpegResolver) ResolveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveCalls
}

// ---------------------------------------------------------------------------
// Mock FFmpegRunner
// ---------------------------------------------------------------------------

type mockFFmpegRunner struct {
	RunOutputFunc func(ctx context.Context, ffmpegPath string, args []string) (string, error)

	mu    sync.Mutex
	calls [][]string
}

func (m *mockFFmpegRunner) RunOutput(ctx context.Context, ffmpegPath string, args []string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, args)
	m.mu.Unlock()

	if m.RunOutputFunc != nil {
		return m.RunOutputFunc(ctx, ffmpegPath, args)
	}
	return "", nil
}

func (m *mockFFmpegRunner) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func(file string) (config.Config, error)

	mu       sync.Mutex
	lastFile string
}

func (m *mockConfigLoader) Load(_ context.Context, file string) (config.Config, error) {
	m.mu.Lock()
	m.lastFile = file
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(file)
	}
	return config.Default(), nil
}

func (m *mockConfigLoader) File(file string) (string, error) {
	if file != "" {
		return file, nil
	}
	return "/home/user/.config/tag-audio/config.yaml", nil
}

func (m *mockConfigLoader) LastFile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFile
}

// ---------------------------------------------------------------------------
// Mock AudioFactory
// ---------------------------------------------------------------------------

// mockAudioFactory serves a fixed track cut into fixed chunks and a detector
// that reports the configured silent runs.
type mockAudioFactory struct {
	Duration   int64
	ChunkLen   int64
	Silences   []audio.Silence
	ProbeErr   error
	ChunkerErr error

	mu          sync.Mutex
	detectCalls int
}

func (m *mockAudioFactory) NewProber(string) pipeline.Prober {
	return mockProber{duration: m.Duration, err: m.ProbeErr}
}

func (m *mockAudioFactory) NewChunker(string, time.Duration) (Chunker, error) {
	if m.ChunkerErr != nil {
		return nil, m.ChunkerErr
	}
	return mockChunker{length: m.ChunkLen}, nil
}

func (m *mockAudioFactory) NewDetector(string, config.Silence) audio.SilenceDetector {
	return m
}

func (m *mockAudioFactory) DetectSilence(_ context.Context, _ string, from, to int64) ([]audio.Silence, error) {
	m.mu.Lock()
	m.detectCalls++
	m.mu.Unlock()

	var out []audio.Silence
	for _, s := range m.Silences {
		if s.End > from && s.Start < to {
			out = append(out, audio.Silence{Start: max(s.Start, from), End: min(s.End, to)})
		}
	}
	return out, nil
}

func (m *mockAudioFactory) DetectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detectCalls
}

type mockProber struct {
	duration int64
	err      error
}

func (p mockProber) Probe(_ context.Context, path string) (audio.Track, error) {
	if p.err != nil {
		return audio.Track{}, p.err
	}
	return audio.Track{Path: path, Duration: p.duration}, nil
}

type mockChunker struct{ length int64 }

func (c mockChunker) Count(track audio.Track) int {
	return int((track.Duration + c.length - 1) / c.length)
}

func (c mockChunker) Chunks(ctx context.Context, track audio.Track) iter.Seq2[audio.Chunk, error] {
	return func(yield func(audio.Chunk, error) bool) {
		for i := range c.Count(track) {
			if err := ctx.Err(); err != nil {
				yield(audio.Chunk{}, err)
				return
			}
			start := int64(i) * c.length
			chunk := audio.Chunk{Index: i, Start: start, End: min(start+c.length, track.Duration)}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Mock RecognizerFactory
// ---------------------------------------------------------------------------

// mockRecognizerFactory transcribes chunk i as Texts[i].
type mockRecognizerFactory struct {
	Texts map[int]string
	Err   error

	mu       sync.Mutex
	settings transcribe.Settings
	spotted  int
	closed   bool
}

func (m *mockRecognizerFactory) New(s transcribe.Settings) (transcribe.Factory, io.Closer, error) {
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()

	if m.Err != nil {
		return nil, nil, m.Err
	}
	return func() (transcribe.Transcriber, error) { return m, nil }, m, nil
}

func (m *mockRecognizerFactory) Transcribe(_ context.Context, chunk audio.Chunk) (string, error) {
	m.mu.Lock()
	m.spotted++
	m.mu.Unlock()
	return m.Texts[chunk.Index], nil
}

func (m *mockRecognizerFactory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockRecognizerFactory) Settings() transcribe.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

func (m *mockRecognizerFactory) Transcribed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spotted
}

func (m *mockRecognizerFactory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ---------------------------------------------------------------------------
// Mock StoreFactory
// ---------------------------------------------------------------------------

// mockStoreFactory keeps snapshots in a file store under Dir.
type mockStoreFactory struct {
	Dir string
	Err error
}

func (m *mockStoreFactory) New(_ context.Context, _ config.Progress, logger *slog.Logger) (progress.Store, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return progress.NewFileStore(m.Dir, progress.WithLogger(logger)), nil
}

var errMock = errors.New("mock failure")

// Compile-time interface verification.
var (
	_ FFmpegResolver    = (*mockFFmpegResolver)(nil)
	_ FFmpegRunner      = (*mockFFmpegRunner)(nil)
	_ ConfigLoader      = (*mockConfigLoader)(nil)
	_ AudioFactory      = (*mockAudioFactory)(nil)
	_ RecognizerFactory = (*mockRecognizerFactory)(nil)
	_ StoreFactory      = (*mockStoreFactory)(nil)
)
