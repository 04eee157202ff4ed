package pipeline

import (
	"context"
	"iter"

	"github.com/polar9527/tag-audio/internal/audio"
	"github.com/polar9527/tag-audio/internal/chapter"
	"github.com/polar9527/tag-audio/internal/keyword"
)

// Prober measures the input track.
type Prober interface {
	Probe(ctx context.Context, path string) (audio.Track, error)
}

// Chunker splits a track into recognition chunks.
type Chunker interface {
	Chunks(ctx context.Context, track audio.Track) iter.Seq2[audio.Chunk, error]
}

// Spotter finds keyword markers in chunks.
type Spotter interface {
	Spot(ctx context.Context, chunks iter.Seq2[audio.Chunk, error]) ([]keyword.Marker, keyword.Summary, error)
}

// Splitter turns marker positions into split points.
type Splitter interface {
	SplitPoints(ctx context.Context, track audio.Track, markers []int64) ([]int64, error)
}

// TagWriter embeds chapters into a copy of src at dst.
type TagWriter interface {
	WriteChapters(src, dst string, chapters []chapter.Chapter) error
}
