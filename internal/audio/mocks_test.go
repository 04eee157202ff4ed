package audio_test

import (
	"context"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/polar9527/tag-audio/internal/audio"
)

// mockRunner records invocations and answers with canned output.
type mockRunner struct {
	mu       sync.Mutex
	calls    [][]string
	combined func(args []string) ([]byte, error)
	output   func(args []string) ([]byte, error)
}

var _ audio.CommandRunner = (*mockRunner)(nil)

func (m *mockRunner) CombinedOutput(_ context.Context, _ string, args []string) ([]byte, error) {
	m.record(args)
	if m.combined == nil {
		return nil, errors.New("unexpected CombinedOutput")
	}
	return m.combined(args)
}

func (m *mockRunner) Output(_ context.Context, _ string, args []string) ([]byte, error) {
	m.record(args)
	if m.output == nil {
		return nil, errors.New("unexpected Output")
	}
	return m.output(args)
}

func (m *mockRunner) record(args []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]string(nil), args...))
}

func (m *mockRunner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type fakeInfo struct{ dir bool }

func (f fakeInfo) Name() string       { return "x" }
func (f fakeInfo) Size() int64        { return 1 }
func (f fakeInfo) Mode() fs.FileMode  { return 0o644 }
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return f.dir }
func (f fakeInfo) Sys() any           { return nil }

type mockStatter struct {
	err error
	dir bool
}

var _ audio.FileStatter = mockStatter{}

func (m mockStatter) Stat(string) (os.FileInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return fakeInfo{dir: m.dir}, nil
}

// argAfter returns the value following flag in args.
func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// parseTimestamp parses HH:MM:SS.mmm into milliseconds.
func parseTimestamp(ts string) int64 {
	parts := strings.Split(ts, ":")
	h, _ := strconv.ParseInt(parts[0], 10, 64)
	m, _ := strconv.ParseInt(parts[1], 10, 64)
	sec, frac, _ := strings.Cut(parts[2], ".")
	s, _ := strconv.ParseInt(sec, 10, 64)
	ms, _ := strconv.ParseInt(frac, 10, 64)
	return ((h*60+m)*60+s)*1000 + ms
}

// pcmFor returns s16le samples of the given length, filled from level(ms).
func pcmFor(lengthMS int64, level func(ms int64) int16) []byte {
	n := lengthMS * audio.SampleRate / 1000
	out := make([]byte, n*2)
	for i := int64(0); i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(level(i*1000/audio.SampleRate)))
	}
	return out
}

func samplesFor(lengthMS int64, level func(ms int64) int16) []int16 {
	pcm := pcmFor(lengthMS, level)
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
