package audio

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os/exec"
	"strings"
	"time"

	"github.com/polar9527/tag-audio/internal/format"
)

// Chunk is a bounded slice of a track, carried as a self-contained WAV payload
// so it can be handed to any worker.
type Chunk struct {
	Index   int
	Start   int64 // ms, inclusive
	End     int64 // ms, exclusive; the last chunk may be shorter than the rest
	Payload []byte
}

// Length returns the actual span covered by the chunk in milliseconds.
func (c Chunk) Length() int64 {
	return c.End - c.Start
}

// String returns a human-readable representation of the chunk.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d [%s - %s]",
		c.Index, format.Duration(format.Millis(c.Start)), format.Duration(format.Millis(c.End)))
}

// DefaultChunkDuration is the nominal chunk length.
const DefaultChunkDuration = 5 * time.Minute

// TimeChunker cuts a track into fixed-length chunks.
type TimeChunker struct {
	ffmpegPath string
	length     int64 // ms
	cmd        commandRunner
}

// TimeChunkerOption configures a TimeChunker.
type TimeChunkerOption func(*TimeChunker)

// WithTimeChunkerCommandRunner sets the command runner (for testing).
func WithTimeChunkerCommandRunner(r commandRunner) TimeChunkerOption {
	return func(tc *TimeChunker) { tc.cmd = r }
}

// NewTimeChunker creates a chunker producing chunks of the given nominal duration.
func NewTimeChunker(ffmpegPath string, chunkDuration time.Duration, opts ...TimeChunkerOption) (*TimeChunker, error) {
	if chunkDuration < time.Second {
		return nil, fmt.Errorf("chunk duration must be at least 1s, got %v", chunkDuration)
	}
	tc := &TimeChunker{
		ffmpegPath: ffmpegPath,
		length:     chunkDuration.Milliseconds(),
		cmd:        osCommandRunner{},
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc, nil
}

// Count returns how many chunks Chunks will produce for track.
func (tc *TimeChunker) Count(track Track) int {
	if track.Duration <= 0 {
		return 0
	}
	return int((track.Duration + tc.length - 1) / tc.length)
}

// Chunks returns a lazy sequence over the track: each chunk is extracted only
// when the consumer pulls it, and every call starts again at offset 0.
// A failed extraction is yielded with the chunk's bounds and a nil payload;
// iteration continues with the next chunk unless ctx is done.
func (tc *TimeChunker) Chunks(ctx context.Context, track Track) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		n := tc.Count(track)
		for i := range n {
			c := Chunk{
				Index: i,
				Start: int64(i) * tc.length,
				End:   min(int64(i+1)*tc.length, track.Duration),
			}
			if err := ctx.Err(); err != nil {
				yield(c, err)
				return
			}

			pcm, err := extractPCM(ctx, tc.cmd, tc.ffmpegPath, track.Path, c.Start, c.Length())
			if err != nil {
				if ctx.Err() != nil {
					yield(c, ctx.Err())
					return
				}
				if !yield(c, fmt.Errorf("%w: %s: %w", ErrChunkingFailed, c, err)) {
					return
				}
				continue
			}
			c.Payload = EncodeWAV(pcm)
			if !yield(c, nil) {
				return
			}
		}
	}
}

// extractPCM decodes [startMS, startMS+lengthMS) of path to raw 16 kHz mono s16le.
func extractPCM(ctx context.Context, cmd commandRunner, ffmpegPath, path string, startMS, lengthMS int64) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-ss", format.Timestamp(format.Millis(startMS)),
		"-t", format.Timestamp(format.Millis(lengthMS)),
		"-i", path,
	}
	args = append(args, pcmArgs()...)

	out, err := cmd.Output(ctx, ffmpegPath, args)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("ffmpeg produced no samples")
	}
	return out, nil
}
