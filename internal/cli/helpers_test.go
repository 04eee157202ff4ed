package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct for grouping all mocks
// ---------------------------------------------------------------------------

type testMocks struct {
	ffmpegResolver *mockFFmpegResolver
	ffmpegRunner   *mockFFmpegRunner
	configLoader   *mockConfigLoader
	audio          *mockAudioFactory
	recognizer     *mockRecognizerFactory
	store          *mockStoreFactory
}

// hourMS is the length of the standard test track.
const hourMS = int64(3_600_000)

func newTestMocks(t *testing.T) *testMocks {
	t.Helper()
	return &testMocks{
		ffmpegResolver: &mockFFmpegResolver{},
		ffmpegRunner:   &mockFFmpegRunner{},
		configLoader:   &mockConfigLoader{},
		audio:          &mockAudioFactory{Duration: hourMS, ChunkLen: 300_000},
		recognizer:     &mockRecognizerFactory{Texts: map[int]string{}},
		store:          &mockStoreFactory{Dir: t.TempDir()},
	}
}

// ---------------------------------------------------------------------------
// testEnv - creates a fully mocked Env for testing
// ---------------------------------------------------------------------------

type testOutput struct {
	stdout *syncBuffer
	stderr *syncBuffer
}

func testEnv(m *testMocks) (*Env, testOutput) {
	out := testOutput{stdout: &syncBuffer{}, stderr: &syncBuffer{}}
	return NewEnv(
		WithStdout(out.stdout),
		WithStderr(out.stderr),
		WithFFmpegResolver(m.ffmpegResolver),
		WithFFmpegRunner(m.ffmpegRunner),
		WithConfigLoader(m.configLoader),
		WithAudioFactory(m.audio),
		WithRecognizerFactory(m.recognizer),
		WithStoreFactory(m.store),
	), out
}

// execute runs the root command with args.
func execute(ctx context.Context, env *Env, args ...string) error {
	cmd := NewRootCmd(env, "test")
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(ctx)
}

// writeAudio creates a fake audio file without an ID3 tag.
func writeAudio(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x00}, 256), 0o600); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}
