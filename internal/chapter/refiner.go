// Package chapter turns keyword positions into chapter boundaries: each
// position is pulled back to a nearby silence, too-close boundaries are
// dropped, and the survivors become titled chapters.
package chapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/polar9527/tag-audio/internal/audio"
)

// Refinement defaults.
const (
	DefaultLookBack       = 5 * time.Second
	DefaultFallbackOffset = 500 * time.Millisecond
)

// Refiner moves a keyword position to the middle of the closest preceding silence.
type Refiner struct {
	detector audio.SilenceDetector
	lookBack int64 // ms
	fallback int64 // ms
	logger   *slog.Logger
}

// RefinerOption configures a Refiner.
type RefinerOption func(*Refiner)

// WithLookBack sets how far before the keyword to search for silence.
func WithLookBack(d time.Duration) RefinerOption {
	return func(r *Refiner) {
		if d > 0 {
			r.lookBack = d.Milliseconds()
		}
	}
}

// WithFallbackOffset sets how far before the keyword to cut when no silence is found.
func WithFallbackOffset(d time.Duration) RefinerOption {
	return func(r *Refiner) {
		if d >= 0 {
			r.fallback = d.Milliseconds()
		}
	}
}

// WithRefinerLogger sets the logger.
func WithRefinerLogger(l *slog.Logger) RefinerOption {
	return func(r *Refiner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRefiner creates a Refiner over detector.
func NewRefiner(detector audio.SilenceDetector, opts ...RefinerOption) *Refiner {
	r := &Refiner{
		detector: detector,
		lookBack: DefaultLookBack.Milliseconds(),
		fallback: DefaultFallbackOffset.Milliseconds(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refine returns the cut point for a keyword at pos.
// It searches [max(0, pos-lookBack), pos) and returns the midpoint of the last
// silent run found there, or max(0, pos-fallback) when there is none.
// The result always lies in [max(0, pos-lookBack), pos]. Detector errors are
// logged and handled as "no silence".
func (r *Refiner) Refine(ctx context.Context, track audio.Track, pos int64) int64 {
	pos = min(max(pos, 0), track.Duration)
	lo := max(0, pos-r.lookBack)
	fallback := max(0, pos-r.fallback)

	if pos <= lo {
		return fallback
	}

	runs, err := r.detector.DetectSilence(ctx, track.Path, lo, pos)
	if err != nil {
		r.logger.Warn("silence detection failed, using fallback",
			"position_ms", pos, "fallback_ms", fallback, "error", err)
		return max(fallback, lo)
	}
	if len(runs) == 0 {
		return max(fallback, lo)
	}

	mid := runs[len(runs)-1].Midpoint()
	return min(max(mid, lo), pos)
}
