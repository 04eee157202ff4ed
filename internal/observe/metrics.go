// Package observe provides OpenTelemetry metrics and tracing for a
// chapter detection run. Components take a *Metrics; tests build one over a
// ManualReader, production uses the global provider or a Stats collector.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope for all tag-audio metrics.
const meterName = "github.com/polar9527/tag-audio"

// Metric names.
const (
	MetricChunkDuration = "tag_audio.chunk.duration"
	MetricChunks        = "tag_audio.chunks"
	MetricMarkers       = "tag_audio.markers"
	MetricSplitPoints   = "tag_audio.split_points"
)

// Metrics holds the instruments for one process. Safe for concurrent use.
type Metrics struct {
	// ChunkDuration tracks recognition latency per chunk, in seconds.
	ChunkDuration metric.Float64Histogram

	// Chunks counts processed chunks by attribute status=ok|failed.
	Chunks metric.Int64Counter

	// Markers counts keyword markers found, by attribute keyword.
	Markers metric.Int64Counter

	// SplitPoints counts refined candidates by attribute result=accepted|rejected.
	SplitPoints metric.Int64Counter
}

// chunkBuckets are histogram boundaries in seconds sized for multi-minute chunks.
var chunkBuckets = []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120, 300}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ChunkDuration, err = m.Float64Histogram(MetricChunkDuration,
		metric.WithDescription("Latency of speech recognition for one chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(chunkBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Chunks, err = m.Int64Counter(MetricChunks,
		metric.WithDescription("Chunks processed by the keyword spotter."),
	); err != nil {
		return nil, err
	}
	if met.Markers, err = m.Int64Counter(MetricMarkers,
		metric.WithDescription("Keyword markers detected."),
	); err != nil {
		return nil, err
	}
	if met.SplitPoints, err = m.Int64Counter(MetricSplitPoints,
		metric.WithDescription("Refined split point candidates."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Global returns Metrics bound to the globally registered MeterProvider,
// falling back to no-op instruments if creation fails.
func Global() *Metrics {
	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return Noop()
	}
	return m
}

// Noop returns Metrics that record nothing.
func Noop() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

// RecordChunk records one finished chunk.
func (m *Metrics) RecordChunk(ctx context.Context, elapsed time.Duration, failed bool) {
	status := "ok"
	if failed {
		status = "failed"
	}
	m.ChunkDuration.Record(ctx, elapsed.Seconds())
	m.Chunks.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordMarker records one detected keyword.
func (m *Metrics) RecordMarker(ctx context.Context, keyword string) {
	m.Markers.Add(ctx, 1, metric.WithAttributes(attribute.String("keyword", keyword)))
}

// RecordSplit records whether a refined candidate was kept.
func (m *Metrics) RecordSplit(ctx context.Context, accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.SplitPoints.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
