package cli

import (
	"context"
	"fmt"
	"io"
	"iter"
	"sync/atomic"

	"github.com/polar9527/tag-audio/internal/audio"
	"github.com/polar9527/tag-audio/internal/chapter"
	"github.com/polar9527/tag-audio/internal/format"
	"github.com/polar9527/tag-audio/internal/keyword"
)

// countingChunker records the chunk count of the track being split so
// progress lines can show "i/N".
type countingChunker struct {
	Chunker
	total atomic.Int64
}

func (c *countingChunker) Chunks(ctx context.Context, track audio.Track) iter.Seq2[audio.Chunk, error] {
	c.total.Store(int64(c.Count(track)))
	return c.Chunker.Chunks(ctx, track)
}

// chunkProgress returns a spotter callback that reports finished chunks to w.
func chunkProgress(w io.Writer, c *countingChunker) func(keyword.ChunkResult) {
	done := 0
	return func(res keyword.ChunkResult) {
		done++
		at := format.Duration(format.Millis(res.Start))
		switch {
		case res.Err != nil:
			_, _ = fmt.Fprintf(w, "  Chunk %d/%d at %s failed: %v\n", done, c.total.Load(), at, res.Err)
		case len(res.Markers) > 0:
			_, _ = fmt.Fprintf(w, "  Chunk %d/%d at %s: %d marker(s)\n", done, c.total.Load(), at, len(res.Markers))
		default:
			_, _ = fmt.Fprintf(w, "  Chunk %d/%d at %s\n", done, c.total.Load(), at)
		}
	}
}

// refineProgress returns a builder callback that reports refined markers to w.
func refineProgress(w io.Writer) func(done, total int) {
	return func(done, total int) {
		_, _ = fmt.Fprintf(w, "  Refining split %d/%d...\n", done, total)
	}
}

// printChapters writes one line per chapter: index, start, end and title.
func printChapters(w io.Writer, chapters []chapter.Chapter) {
	for i, c := range chapters {
		_, _ = fmt.Fprintf(w, "%3d  %s  %s  %s\n", i+1,
			format.Timestamp(format.Millis(c.Start)),
			format.Timestamp(format.Millis(c.End)),
			c.Title)
	}
}
