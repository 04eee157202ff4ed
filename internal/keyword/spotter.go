package keyword

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/polar9527/tag-audio/internal/audio"
	"github.com/polar9527/tag-audio/internal/observe"
	"github.com/polar9527/tag-audio/internal/transcribe"
)

// ChunkResult is the outcome of one chunk: markers on success, Err on failure.
type ChunkResult struct {
	Index   int
	Start   int64
	Markers []Marker
	Err     error
	Elapsed time.Duration
}

// Summary counts chunk outcomes for a run.
type Summary struct {
	Chunks int
	Failed int
}

// DefaultWorkers leaves one CPU for the coordinator and FFmpeg.
func DefaultWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}

// Spotter runs recognition over chunks with a bounded worker pool.
type Spotter struct {
	matcher  *Matcher
	factory  transcribe.Factory
	workers  int
	logger   *slog.Logger
	metrics  *observe.Metrics
	progress func(ChunkResult)
}

// Option configures a Spotter.
type Option func(*Spotter)

// WithWorkers sets the pool size. Values below 1 keep the default.
func WithWorkers(n int) Option {
	return func(s *Spotter) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Spotter) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Spotter) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithProgress registers a callback invoked from the coordinator after each chunk.
func WithProgress(fn func(ChunkResult)) Option {
	return func(s *Spotter) { s.progress = fn }
}

// NewSpotter creates a Spotter. Each worker calls factory once for its own engine.
func NewSpotter(matcher *Matcher, factory transcribe.Factory, opts ...Option) *Spotter {
	s := &Spotter{
		matcher: matcher,
		factory: factory,
		workers: DefaultWorkers(),
		logger:  slog.Default(),
		metrics: observe.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type job struct {
	chunk audio.Chunk
	err   error
}

// Spot transcribes every chunk and returns all markers sorted by position.
// Failed chunks are logged and counted but contribute nothing; only
// cancellation of ctx (or a failure to set up a worker's engine) aborts the run,
// in which case no markers are returned.
func (s *Spotter) Spot(ctx context.Context, chunks iter.Seq2[audio.Chunk, error]) ([]Marker, Summary, error) {
	engines := make([]transcribe.Transcriber, s.workers)
	for i := range engines {
		tr, err := s.factory()
		if err != nil {
			return nil, Summary{}, fmt.Errorf("%w: worker %d: %w", ErrRecognizerSetup, i, err)
		}
		engines[i] = tr
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job)
	results := make(chan ChunkResult)

	g.Go(func() error {
		defer close(jobs)
		for c, err := range chunks {
			if err != nil && isCancel(err) {
				return err
			}
			select {
			case jobs <- job{chunk: c, err: err}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for _, tr := range engines {
		g.Go(func() error {
			for j := range jobs {
				res := s.process(gctx, tr, j)
				if res.Err != nil && gctx.Err() != nil {
					return gctx.Err()
				}
				select {
				case results <- res:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
		close(results)
	}()

	var (
		markers []Marker
		sum     Summary
	)
	for res := range results {
		sum.Chunks++
		s.metrics.RecordChunk(ctx, res.Elapsed, res.Err != nil)
		if res.Err != nil {
			sum.Failed++
			s.logger.Warn("chunk failed", "chunk", res.Index, "start_ms", res.Start, "error", res.Err)
		} else {
			for _, m := range res.Markers {
				s.logger.Debug("keyword detected", "keyword", m.Keyword, "position_ms", m.Position, "chunk", m.Chunk)
				s.metrics.RecordMarker(ctx, m.Keyword)
			}
			markers = append(markers, res.Markers...)
		}
		if s.progress != nil {
			s.progress(res)
		}
	}

	if err := <-done; err != nil {
		return nil, sum, err
	}
	SortMarkers(markers)
	return markers, sum, nil
}

func (s *Spotter) process(ctx context.Context, tr transcribe.Transcriber, j job) ChunkResult {
	res := ChunkResult{Index: j.chunk.Index, Start: j.chunk.Start}
	if j.err != nil {
		res.Err = j.err
		return res
	}

	ctx, span := observe.StartSpan(ctx, "keyword.chunk",
		trace.WithAttributes(attribute.Int("chunk.index", j.chunk.Index), attribute.Int64("chunk.start_ms", j.chunk.Start)))
	start := time.Now()
	text, err := tr.Transcribe(ctx, j.chunk)
	res.Elapsed = time.Since(start)
	observe.EndSpan(span, err)

	if err != nil {
		res.Err = err
		return res
	}
	res.Markers = s.matcher.Match(text, j.chunk)
	return res
}

// SortMarkers orders markers by position, breaking ties by chunk then keyword,
// so the order never depends on worker completion order.
func SortMarkers(markers []Marker) {
	slices.SortFunc(markers, func(a, b Marker) int {
		return cmp.Or(
			cmp.Compare(a.Position, b.Position),
			cmp.Compare(a.Chunk, b.Chunk),
			cmp.Compare(a.Keyword, b.Keyword),
		)
	})
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
