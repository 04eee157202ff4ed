package observe

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Stats collects metrics in-process so a summary can be printed at exit.
type Stats struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	metrics  *Metrics
}

// NewStats creates a collector backed by a manual reader.
func NewStats() (*Stats, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(provider)
	if err != nil {
		return nil, err
	}
	return &Stats{reader: reader, provider: provider, metrics: m}, nil
}

// Metrics returns the instruments recording into this collector.
func (s *Stats) Metrics() *Metrics {
	return s.metrics
}

// Shutdown releases the meter provider.
func (s *Stats) Shutdown(ctx context.Context) error {
	return s.provider.Shutdown(ctx)
}

// Summary is a flattened view of one run's metrics.
type Summary struct {
	ChunksOK       int64
	ChunksFailed   int64
	Markers        int64
	SplitsAccepted int64
	SplitsRejected int64
	RecognitionSec float64 // summed recognition time across workers
}

// Summary collects the current values.
func (s *Stats) Summary(ctx context.Context) (Summary, error) {
	var rm metricdata.ResourceMetrics
	if err := s.reader.Collect(ctx, &rm); err != nil {
		return Summary{}, fmt.Errorf("collect metrics: %w", err)
	}

	var sum Summary
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					switch m.Name {
					case MetricChunks:
						if attrIs(dp.Attributes, "status", "failed") {
							sum.ChunksFailed += dp.Value
						} else {
							sum.ChunksOK += dp.Value
						}
					case MetricMarkers:
						sum.Markers += dp.Value
					case MetricSplitPoints:
						if attrIs(dp.Attributes, "result", "accepted") {
							sum.SplitsAccepted += dp.Value
						} else {
							sum.SplitsRejected += dp.Value
						}
					}
				}
			case metricdata.Histogram[float64]:
				if m.Name == MetricChunkDuration {
					for _, dp := range data.DataPoints {
						sum.RecognitionSec += dp.Sum
					}
				}
			}
		}
	}
	return sum, nil
}

// Write prints the summary in a short human-readable block.
func (s Summary) Write(w io.Writer) {
	fmt.Fprintf(w, "Chunks:       %d ok, %d failed\n", s.ChunksOK, s.ChunksFailed)
	fmt.Fprintf(w, "Markers:      %d\n", s.Markers)
	fmt.Fprintf(w, "Split points: %d accepted, %d rejected\n", s.SplitsAccepted, s.SplitsRejected)
	fmt.Fprintf(w, "Recognition:  %.1fs total\n", s.RecognitionSec)
}

func attrIs(set attribute.Set, key, want string) bool {
	v, ok := set.Value(attribute.Key(key))
	return ok && v.AsString() == want
}
