// Package pipeline runs the resumable chapter segmentation flow:
// probe, spot keywords, refine split points, build chapters, write tags.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polar9527/tag-audio/internal/audio"
	"github.com/polar9527/tag-audio/internal/chapter"
	"github.com/polar9527/tag-audio/internal/observe"
	"github.com/polar9527/tag-audio/internal/progress"
)

// Stage is how far a run has progressed.
type Stage int

// Stages in order. Built is the last persisted stage; tagging always reruns.
const (
	Cold Stage = iota
	Spotted
	Refined
	Built
	Tagged
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case Cold:
		return "cold"
	case Spotted:
		return "spotted"
	case Refined:
		return "refined"
	case Built:
		return "built"
	case Tagged:
		return "tagged"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Result describes a run, complete or not.
type Result struct {
	Track       audio.Track
	Stage       Stage
	ResumedFrom Stage // Cold when nothing was loaded
	Markers     []int64
	SplitPoints []int64
	Timelines   []string
	Chapters    []chapter.Chapter
	Output      string
	Tagged      bool
	Snapshot    string // where progress is kept
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Prober   Prober
	Chunker  Chunker
	Spotter  Spotter
	Splitter Splitter
	Writer   TagWriter
	Store    progress.Store
}

// Pipeline runs the segmentation stages.
type Pipeline struct {
	deps   Deps
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Pipeline.
func New(deps Deps, opts ...Option) *Pipeline {
	p := &Pipeline{deps: deps, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run carries the mutable state of one Run call.
type run struct {
	res   Result
	snap  progress.Snapshot
	saved bool
}

// Run processes input and writes the tagged result to output (input when
// empty). A valid snapshot for input skips the stages it covers. On failure
// the returned Result holds whatever was computed, and the latest stage is
// checkpointed even if ctx was canceled.
func (p *Pipeline) Run(ctx context.Context, input, output string) (res Result, err error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.run")
	defer func() { observe.EndSpan(span, err) }()

	if output == "" {
		output = input
	}

	track, err := p.deps.Prober.Probe(ctx, input)
	if err != nil {
		return Result{Output: output}, err
	}

	r := &run{res: Result{Track: track, Output: output, Snapshot: p.deps.Store.Location(input)}}
	p.resume(ctx, r, input)

	defer func() {
		if err != nil && !r.saved && r.res.Stage >= Spotted {
			p.checkpoint(context.WithoutCancel(ctx), r)
		}
		res = r.res
	}()

	if r.res.Stage == Cold {
		if err := p.spot(ctx, r); err != nil {
			return r.res, err
		}
	}
	if r.res.Stage == Spotted {
		if err := p.build(ctx, r); err != nil {
			return r.res, err
		}
	}
	return r.res, p.tag(ctx, r, input, output)
}

// resume adopts a stored snapshot when it matches the probed track.
func (p *Pipeline) resume(ctx context.Context, r *run, input string) {
	snap, ok := p.deps.Store.Load(ctx, input)
	if ok && snap.AudioInfo.Duration > 0 && snap.AudioInfo.Duration != r.res.Track.Duration {
		p.logger.Warn("progress snapshot duration differs from track, starting over",
			"snapshot_ms", snap.AudioInfo.Duration, "track_ms", r.res.Track.Duration)
		ok = false
	}
	if !ok {
		r.snap = progress.New(input, r.res.Track.Duration)
		return
	}

	r.snap = snap
	r.snap.AudioInfo.Duration = r.res.Track.Duration
	r.saved = true
	switch {
	case snap.Built():
		r.res.Stage = Built
		r.res.Markers = snap.Markers
		r.res.SplitPoints = snap.SplitPoints
		r.res.Chapters = snap.Chapters
		r.res.Timelines = snap.Timelines
		if len(r.res.Timelines) == 0 {
			r.res.Timelines = chapter.Timelines(snap.SplitPoints)
		}
	case snap.Spotted():
		r.res.Stage = Spotted
		r.res.Markers = snap.Markers
	default:
		r.snap = progress.New(input, r.res.Track.Duration)
		r.saved = false
		return
	}
	r.res.ResumedFrom = r.res.Stage
	p.logger.Info("resuming", "stage", r.res.Stage.String(), "snapshot", r.res.Snapshot)
}

func (p *Pipeline) spot(ctx context.Context, r *run) error {
	ctx, span := observe.StartSpan(ctx, "pipeline.spot")
	markers, summary, err := p.deps.Spotter.Spot(ctx, p.deps.Chunker.Chunks(ctx, r.res.Track))
	observe.EndSpan(span, err)
	if err != nil {
		return fmt.Errorf("keyword spotting: %w", err)
	}

	positions := make([]int64, 0, len(markers))
	for _, m := range markers {
		positions = append(positions, m.Position)
	}
	p.logger.Info("keyword spotting finished",
		"chunks", summary.Chunks, "failed_chunks", summary.Failed, "markers", len(positions))

	r.res.Markers = positions
	r.res.Stage = Spotted
	r.snap.Stage = progress.StageSpotted
	r.snap.Markers = positions
	r.saved = false
	p.checkpoint(ctx, r)
	return nil
}

func (p *Pipeline) build(ctx context.Context, r *run) error {
	ctx, span := observe.StartSpan(ctx, "pipeline.refine")
	points, err := p.deps.Splitter.SplitPoints(ctx, r.res.Track, r.res.Markers)
	observe.EndSpan(span, err)
	if err != nil {
		return fmt.Errorf("refining split points: %w", err)
	}
	r.res.Stage = Refined

	chapters := chapter.Build(points)
	if err := chapter.Validate(chapters, r.res.Track.Duration); err != nil {
		return err
	}
	r.res.SplitPoints = points
	r.res.Chapters = chapters
	r.res.Timelines = chapter.Timelines(points)
	r.res.Stage = Built

	r.snap.Stage = progress.StageBuilt
	r.snap.SplitPoints = points
	r.snap.Chapters = chapters
	r.snap.Timelines = r.res.Timelines
	r.saved = false
	p.checkpoint(ctx, r)
	return nil
}

func (p *Pipeline) tag(ctx context.Context, r *run, input, output string) error {
	_, span := observe.StartSpan(ctx, "pipeline.tag")
	err := p.deps.Writer.WriteChapters(input, output, r.res.Chapters)
	observe.EndSpan(span, err)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTagWrite, err)
	}
	r.res.Tagged = true
	r.res.Stage = Tagged
	return nil
}

// checkpoint saves the snapshot. Failures are logged; the run goes on.
func (p *Pipeline) checkpoint(ctx context.Context, r *run) {
	if err := p.deps.Store.Save(ctx, r.snap); err != nil {
		p.logger.Warn("cannot save progress", "location", r.res.Snapshot, "error", err)
		return
	}
	r.saved = true
}
