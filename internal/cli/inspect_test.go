package cli

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/polar9527/tag-audio/internal/chapter"
	"github.com/polar9527/tag-audio/internal/id3"
)

var threeChapters = []chapter.Chapter{
	{Start: 0, End: 298_000, Title: "Opening"},
	{Start: 298_000, End: 899_500, Title: "Chapter 0 Prologue"},
	{Start: 899_500, End: hourMS, Title: "Chapter 1"},
}

// writeTagged creates a fake audio file carrying chapters.
func writeTagged(t *testing.T, dir, name string, chapters []chapter.Chapter, opts ...id3.WriterOption) string {
	t.Helper()
	path := writeAudio(t, dir, name)
	if err := id3.NewWriter(opts...).WriteChapters(path, path, chapters); err != nil {
		t.Fatalf("WriteChapters() error = %v", err)
	}
	return path
}

func TestRunInspect(t *testing.T) {
	t.Parallel()

	path := writeTagged(t, t.TempDir(), "book.mp3", threeChapters, id3.WithUserText("Source", "tag-audio"))
	env, out := testEnv(newTestMocks(t))

	if err := execute(context.Background(), env, "inspect", path); err != nil {
		t.Fatalf("inspect error = %v", err)
	}

	got := out.stdout.String()
	for _, want := range []string{
		"ID3v2.3, 3 chapters",
		"00:00:00.000  00:04:58.000  Opening",
		"00:04:58.000  00:14:59.500  Chapter 0 Prologue",
		"00:14:59.500  01:00:00.000  Chapter 1",
		"[top-level, ordered]",
		"TXXX Source: tag-audio",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunInspect_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"untagged file", writeAudio(t, dir, "plain.mp3"), id3.ErrNoTag},
		{"missing file", filepath.Join(dir, "missing.mp3"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, _ := testEnv(newTestMocks(t))
			err := execute(context.Background(), env, "inspect", tt.path)
			if err == nil {
				t.Fatal("inspect expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("inspect error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
