package chapter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/polar9527/tag-audio/internal/audio"
	"github.com/polar9527/tag-audio/internal/format"
	"github.com/polar9527/tag-audio/internal/observe"
)

// DefaultMinChapterLength is the minimum distance between accepted split points.
const DefaultMinChapterLength = 5 * time.Second

// Chapter is a titled time range in milliseconds, end exclusive.
type Chapter struct {
	Start int64
	End   int64
	Title string
}

// Length returns the chapter span in milliseconds.
func (c Chapter) Length() int64 {
	return c.End - c.Start
}

// Builder assembles split points from keyword positions.
type Builder struct {
	refiner  *Refiner
	minLen   int64
	logger   *slog.Logger
	metrics  *observe.Metrics
	progress func(done, total int)
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithMinChapterLength sets the minimum gap between accepted split points.
// Values under a millisecond are ignored: a zero gap would allow empty chapters.
func WithMinChapterLength(d time.Duration) BuilderOption {
	return func(b *Builder) {
		if d >= time.Millisecond {
			b.minLen = d.Milliseconds()
		}
	}
}

// WithBuilderLogger sets the logger.
func WithBuilderLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithBuilderMetrics sets the metric instruments.
func WithBuilderMetrics(m *observe.Metrics) BuilderOption {
	return func(b *Builder) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithRefineProgress registers a callback invoked after each refined marker.
func WithRefineProgress(fn func(done, total int)) BuilderOption {
	return func(b *Builder) { b.progress = fn }
}

// NewBuilder creates a Builder using refiner.
func NewBuilder(refiner *Refiner, opts ...BuilderOption) *Builder {
	b := &Builder{
		refiner: refiner,
		minLen:  DefaultMinChapterLength.Milliseconds(),
		logger:  slog.Default(),
		metrics: observe.Noop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SplitPoints refines each marker in ascending order and keeps those at least
// the minimum chapter length past the previous accepted point. The result
// starts at 0 and ends at the track duration. Rejected points are dropped.
// Only cancellation of ctx returns an error.
func (b *Builder) SplitPoints(ctx context.Context, track audio.Track, markers []int64) ([]int64, error) {
	sorted := slices.Clone(markers)
	slices.Sort(sorted)

	points := []int64{0}
	for i, pos := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		refined := b.refiner.Refine(ctx, track, pos)
		last := points[len(points)-1]
		accepted := refined-last >= b.minLen
		b.metrics.RecordSplit(ctx, accepted)

		if accepted {
			points = append(points, refined)
			b.logger.Info("split point accepted",
				"marker", format.HMS(format.Millis(pos)), "split", format.HMS(format.Millis(refined)))
		} else {
			b.logger.Debug("split point rejected", "marker_ms", pos, "refined_ms", refined, "previous_ms", last)
		}
		if b.progress != nil {
			b.progress(i+1, len(sorted))
		}
	}

	if points[len(points)-1] != track.Duration {
		points = append(points, track.Duration)
	}
	return points, nil
}

// Title returns the title of the i-th chapter (0-based).
// The first cue opens a prologue, so numbering of later chapters starts at 0.
func Title(i int) string {
	switch i {
	case 0:
		return "Opening"
	case 1:
		return "Chapter 0 Prologue"
	default:
		return fmt.Sprintf("Chapter %d", i-1)
	}
}

// Build converts split points into consecutive chapters.
// Fewer than two points yields no chapters.
func Build(points []int64) []Chapter {
	if len(points) < 2 {
		return nil
	}
	chapters := make([]Chapter, 0, len(points)-1)
	for i := range len(points) - 1 {
		chapters = append(chapters, Chapter{Start: points[i], End: points[i+1], Title: Title(i)})
	}
	return chapters
}

// Timelines describes each interior split point, e.g. "split at 0h1m59s".
func Timelines(points []int64) []string {
	if len(points) <= 2 {
		return []string{}
	}
	lines := make([]string, 0, len(points)-2)
	for _, p := range points[1 : len(points)-1] {
		lines = append(lines, "split at "+format.HMS(format.Millis(p)))
	}
	return lines
}

// Validate checks that chapters exactly partition [0, duration).
func Validate(chapters []Chapter, duration int64) error {
	if len(chapters) == 0 {
		return fmt.Errorf("%w: no chapters", ErrInvalidChapters)
	}
	var next int64
	for i, c := range chapters {
		if c.Start != next {
			return fmt.Errorf("%w: chapter %d starts at %d, want %d", ErrInvalidChapters, i, c.Start, next)
		}
		if c.End <= c.Start {
			return fmt.Errorf("%w: chapter %d is empty [%d, %d)", ErrInvalidChapters, i, c.Start, c.End)
		}
		next = c.End
	}
	if next != duration {
		return fmt.Errorf("%w: chapters end at %d, want %d", ErrInvalidChapters, next, duration)
	}
	return nil
}
