package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"time"
)

// Track is a decoded audio source. Offsets across the module are milliseconds.
type Track struct {
	Path     string
	Duration int64 // ms
}

// Prober reads a track's duration with FFmpeg.
type Prober struct {
	ffmpegPath string
	cmd        commandRunner
	stat       fileStatter
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithProberCommandRunner sets the command runner (for testing).
func WithProberCommandRunner(r commandRunner) ProberOption {
	return func(p *Prober) { p.cmd = r }
}

// WithProberFileStatter sets the stat implementation (for testing).
func WithProberFileStatter(s fileStatter) ProberOption {
	return func(p *Prober) { p.stat = s }
}

// NewProber creates a Prober using the given ffmpeg binary.
func NewProber(ffmpegPath string, opts ...ProberOption) *Prober {
	p := &Prober{
		ffmpegPath: ffmpegPath,
		cmd:        osCommandRunner{},
		stat:       osFileStatter{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe returns the track at path. A missing file is ErrFileNotFound; anything
// FFmpeg cannot decode, or a zero-length result, is ErrDecodeFailed.
func (p *Prober) Probe(ctx context.Context, path string) (Track, error) {
	info, err := p.stat.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Track{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return Track{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Track{}, fmt.Errorf("%w: %s is a directory", ErrDecodeFailed, path)
	}

	// "ffmpeg -i" without an output exits non-zero but still prints the header.
	out, _ := p.cmd.CombinedOutput(ctx, p.ffmpegPath, []string{"-hide_banner", "-i", path})
	if err := ctx.Err(); err != nil {
		return Track{}, err
	}

	d, err := parseDurationFromFFmpegOutput(string(out))
	if err != nil {
		return Track{}, fmt.Errorf("%w: %s: %w", ErrDecodeFailed, path, err)
	}
	if d <= 0 {
		return Track{}, fmt.Errorf("%w: %s: zero duration", ErrDecodeFailed, path)
	}
	return Track{Path: path, Duration: d.Milliseconds()}, nil
}

var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// parseDurationFromFFmpegOutput extracts the container duration from FFmpeg's header dump.
func parseDurationFromFFmpegOutput(output string) (time.Duration, error) {
	matches := durationRe.FindStringSubmatch(output)
	if matches == nil {
		return 0, errors.New("no duration in ffmpeg output")
	}
	return parseTimeComponents(matches[1], matches[2], matches[3], matches[4]), nil
}

// parseTimeComponents builds a duration from "HH", "MM", "SS" and a
// fractional part of any precision, truncated to milliseconds.
func parseTimeComponents(hours, minutes, seconds, fractional string) time.Duration {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)

	if len(fractional) > 3 {
		fractional = fractional[:3]
	}
	for len(fractional) < 3 {
		fractional += "0"
	}
	ms, _ := strconv.Atoi(fractional)

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond
}
