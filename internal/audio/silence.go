package audio

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/polar9527/tag-audio/internal/format"
)

// Silence is a silent run in absolute track milliseconds.
type Silence struct {
	Start int64
	End   int64
}

// Midpoint returns the middle of the run, rounded down.
func (s Silence) Midpoint() int64 {
	return (s.Start + s.End) / 2
}

// SilenceDetector finds silent runs inside [from, to) of a track.
// Returned runs are ordered by start and lie within the window.
type SilenceDetector interface {
	DetectSilence(ctx context.Context, path string, from, to int64) ([]Silence, error)
}

// Detection defaults.
const (
	DefaultThresholdDB      = -45.0
	DefaultMinSilenceLength = 4 * time.Second
)

// PCMDetector decodes the window and scans RMS levels in Go.
// A run is any span of at least minLen whose RMS stays at or below the threshold,
// evaluated on minLen-wide slices advanced one millisecond at a time.
type PCMDetector struct {
	ffmpegPath  string
	thresholdDB float64
	minLen      int64 // ms
	cmd         commandRunner
}

// DetectorOption configures a silence detector.
type DetectorOption func(*detectorDeps)

type detectorDeps struct {
	cmd commandRunner
}

// WithDetectorCommandRunner sets the command runner (for testing).
func WithDetectorCommandRunner(r commandRunner) DetectorOption {
	return func(d *detectorDeps) { d.cmd = r }
}

func applyDetectorOptions(opts []DetectorOption) detectorDeps {
	d := detectorDeps{cmd: osCommandRunner{}}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// NewPCMDetector creates a detector with the given threshold (dBFS) and minimum run length.
func NewPCMDetector(ffmpegPath string, thresholdDB float64, minLen time.Duration, opts ...DetectorOption) *PCMDetector {
	d := applyDetectorOptions(opts)
	return &PCMDetector{
		ffmpegPath:  ffmpegPath,
		thresholdDB: thresholdDB,
		minLen:      minLen.Milliseconds(),
		cmd:         d.cmd,
	}
}

// DetectSilence implements SilenceDetector.
func (d *PCMDetector) DetectSilence(ctx context.Context, path string, from, to int64) ([]Silence, error) {
	if to-from < d.minLen {
		return nil, nil
	}
	pcm, err := extractPCM(ctx, d.cmd, d.ffmpegPath, path, from, to-from)
	if err != nil {
		return nil, fmt.Errorf("decode silence window: %w", err)
	}
	runs := detectSilentRuns(pcmToInt16(pcm), d.thresholdDB, d.minLen)
	for i := range runs {
		runs[i].Start += from
		runs[i].End += from
	}
	return runs, nil
}

// detectSilentRuns returns silent runs in window-relative milliseconds.
// Mean squares over each slice come from a prefix sum, so the scan is linear.
func detectSilentRuns(samples []int16, thresholdDB float64, minLen int64) []Silence {
	lengthMS := int64(len(samples)) / samplesPerMS
	if minLen <= 0 || lengthMS < minLen {
		return nil
	}

	prefix := make([]int64, len(samples)+1)
	for i, s := range samples {
		v := int64(s)
		prefix[i+1] = prefix[i] + v*v
	}

	limit := math.Pow(10, thresholdDB/20) * 32768
	sliceSamples := minLen * samplesPerMS

	var starts []int64
	for ms := int64(0); ms <= lengthMS-minLen; ms++ {
		lo := ms * samplesPerMS
		hi := lo + sliceSamples
		rms := math.Sqrt(float64(prefix[hi]-prefix[lo]) / float64(sliceSamples))
		if rms <= limit {
			starts = append(starts, ms)
		}
	}
	if len(starts) == 0 {
		return nil
	}

	var runs []Silence
	runStart, prev := starts[0], starts[0]
	for _, s := range starts[1:] {
		if s != prev+1 && s > prev+minLen {
			runs = append(runs, Silence{Start: runStart, End: prev + minLen})
			runStart = s
		}
		prev = s
	}
	return append(runs, Silence{Start: runStart, End: prev + minLen})
}

// FFmpegDetector delegates detection to FFmpeg's silencedetect filter.
type FFmpegDetector struct {
	ffmpegPath  string
	thresholdDB float64
	minLen      time.Duration
	cmd         commandRunner
}

// NewFFmpegDetector creates a detector backed by silencedetect.
func NewFFmpegDetector(ffmpegPath string, thresholdDB float64, minLen time.Duration, opts ...DetectorOption) *FFmpegDetector {
	d := applyDetectorOptions(opts)
	return &FFmpegDetector{
		ffmpegPath:  ffmpegPath,
		thresholdDB: thresholdDB,
		minLen:      minLen,
		cmd:         d.cmd,
	}
}

// DetectSilence implements SilenceDetector.
func (d *FFmpegDetector) DetectSilence(ctx context.Context, path string, from, to int64) ([]Silence, error) {
	if to <= from {
		return nil, nil
	}
	args := []string{
		"-hide_banner", "-nostats", "-nostdin",
		"-ss", format.Timestamp(format.Millis(from)),
		"-t", format.Timestamp(format.Millis(to - from)),
		"-i", path,
		"-af", fmt.Sprintf("silencedetect=noise=%gdB:d=%g", d.thresholdDB, d.minLen.Seconds()),
		"-f", "null", "-",
	}
	out, err := d.cmd.CombinedOutput(ctx, d.ffmpegPath, args)
	if err != nil {
		return nil, fmt.Errorf("silencedetect: %w", err)
	}

	runs := parseSilenceOutput(string(out), to-from)
	for i := range runs {
		runs[i].Start += from
		runs[i].End += from
	}
	return runs, nil
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[\d.]+)`)
)

// parseSilenceOutput extracts runs from silencedetect output, relative to the window.
// A run still open at end of input is closed at windowLen.
func parseSilenceOutput(output string, windowLen int64) []Silence {
	var (
		runs     []Silence
		curStart int64
		hasStart bool
	)

	for line := range strings.SplitSeq(output, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			if ms, ok := secondsToMS(m[1]); ok {
				curStart = max(ms, 0)
				hasStart = true
			}
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && hasStart {
			if ms, ok := secondsToMS(m[1]); ok {
				runs = append(runs, Silence{Start: curStart, End: min(ms, windowLen)})
				hasStart = false
			}
		}
	}
	if hasStart && curStart < windowLen {
		runs = append(runs, Silence{Start: curStart, End: windowLen})
	}
	return runs
}

func secondsToMS(s string) (int64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(f * 1000)), true
}
