// Package progress checkpoints pipeline results so an interrupted run can
// resume without repeating keyword spotting.
package progress

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/polar9527/tag-audio/internal/chapter"
)

// Version is the snapshot format version. Only the major component is
// checked on load.
const Version = "1.0"

// Stage records how far the pipeline got before the snapshot was written.
type Stage string

// Snapshot stages.
const (
	// StageSpotted means keyword markers are known but not yet refined.
	StageSpotted Stage = "spotted"
	// StageBuilt means split points and chapters are final.
	StageBuilt Stage = "built"
)

// Metadata identifies when and by which run a snapshot was written.
type Metadata struct {
	Timestamp time.Time
	Version   string
	RunID     string
}

// timestampLayouts are tried in order on decode. The second accepts
// timestamps written without a UTC offset.
var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"}

// isoTime is encoded as RFC 3339 and decoded from either layout.
type isoTime time.Time

func (t isoTime) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *isoTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = isoTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("timestamp %q is not ISO-8601", s)
}

type metadataDoc struct {
	Timestamp isoTime `json:"timestamp" validate:"required"`
	Version   string  `json:"version" validate:"required"`
	RunID     string  `json:"run_id,omitempty" validate:"omitempty,uuid"`
}

// AudioInfo identifies the input file.
type AudioInfo struct {
	Path     string `json:"path" validate:"required"`
	Duration int64  `json:"duration_ms,omitempty" validate:"gte=0"`
}

// Snapshot is the persisted pipeline state.
type Snapshot struct {
	Metadata    Metadata
	Stage       Stage
	Markers     []int64
	SplitPoints []int64
	Timelines   []string
	Chapters    []chapter.Chapter
	AudioInfo   AudioInfo
}

// New starts a snapshot for sourcePath with a fresh run id.
func New(sourcePath string, duration int64) Snapshot {
	return Snapshot{
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
			Version:   Version,
			RunID:     uuid.NewString(),
		},
		AudioInfo: AudioInfo{Path: absPath(sourcePath), Duration: duration},
	}
}

// Spotted reports whether the snapshot carries markers ready for refinement.
func (s Snapshot) Spotted() bool {
	return s.Stage == StageSpotted
}

// Built reports whether the snapshot carries final split points and chapters.
// Snapshots without a stage field are built when they have split points.
func (s Snapshot) Built() bool {
	switch s.Stage {
	case StageBuilt:
		return true
	case "":
		return len(s.SplitPoints) > 0
	default:
		return false
	}
}

// chapterTuple serializes as [start_ms, end_ms, title].
type chapterTuple chapter.Chapter

func (c chapterTuple) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Start, c.End, c.Title})
}

func (c *chapterTuple) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("chapter entry has %d fields, want 3", len(raw))
	}
	if err := json.Unmarshal(raw[0], &c.Start); err != nil {
		return fmt.Errorf("chapter start: %w", err)
	}
	if err := json.Unmarshal(raw[1], &c.End); err != nil {
		return fmt.Errorf("chapter end: %w", err)
	}
	if err := json.Unmarshal(raw[2], &c.Title); err != nil {
		return fmt.Errorf("chapter title: %w", err)
	}
	return nil
}

type document struct {
	Metadata    metadataDoc    `json:"metadata"`
	Stage       Stage          `json:"stage,omitempty" validate:"omitempty,oneof=spotted built"`
	Markers     []int64        `json:"markers,omitempty" validate:"dive,gte=0"`
	SplitPoints []int64        `json:"split_points" validate:"dive,gte=0"`
	Timelines   []string       `json:"timelines"`
	Chapters    []chapterTuple `json:"chapters"`
	AudioInfo   AudioInfo      `json:"audio_info"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if t, ok := field.Interface().(isoTime); ok {
			return time.Time(t)
		}
		return nil
	}, isoTime{})
	return v
}

// Encode renders s as indented JSON. Nil slices are written as empty arrays.
func Encode(s Snapshot) ([]byte, error) {
	doc := document{
		Metadata: metadataDoc{
			Timestamp: isoTime(s.Metadata.Timestamp),
			Version:   s.Metadata.Version,
			RunID:     s.Metadata.RunID,
		},
		Stage:       s.Stage,
		Markers:     s.Markers,
		SplitPoints: nonNil(s.SplitPoints),
		Timelines:   nonNil(s.Timelines),
		Chapters:    make([]chapterTuple, 0, len(s.Chapters)),
		AudioInfo:   s.AudioInfo,
	}
	if doc.Stage == StageSpotted && doc.Markers == nil {
		doc.Markers = []int64{}
	}
	for _, c := range s.Chapters {
		doc.Chapters = append(doc.Chapters, chapterTuple(c))
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses and validates a snapshot for sourcePath.
// Returned errors wrap ErrCorruptSnapshot, ErrIncompatibleVersion or ErrPathMismatch.
func Decode(data []byte, sourcePath string) (Snapshot, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := validate.Struct(doc); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if !compatible(doc.Metadata.Version) {
		return Snapshot{}, fmt.Errorf("%w: %q, want %s.x", ErrIncompatibleVersion, doc.Metadata.Version, major(Version))
	}
	if absPath(doc.AudioInfo.Path) != absPath(sourcePath) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrPathMismatch, doc.AudioInfo.Path)
	}

	s := Snapshot{
		Metadata: Metadata{
			Timestamp: time.Time(doc.Metadata.Timestamp),
			Version:   doc.Metadata.Version,
			RunID:     doc.Metadata.RunID,
		},
		Stage:       doc.Stage,
		Markers:     doc.Markers,
		SplitPoints: doc.SplitPoints,
		Timelines:   doc.Timelines,
		Chapters:    make([]chapter.Chapter, 0, len(doc.Chapters)),
		AudioInfo:   doc.AudioInfo,
	}
	for _, c := range doc.Chapters {
		s.Chapters = append(s.Chapters, chapter.Chapter(c))
	}
	if s.Built() {
		if err := checkBuilt(s); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
	}
	return s, nil
}

// checkBuilt verifies that chapters partition the span of the split points
// and that both lists agree.
func checkBuilt(s Snapshot) error {
	n := len(s.SplitPoints)
	if n < 2 {
		return fmt.Errorf("need at least 2 split points, have %d", n)
	}
	end := s.SplitPoints[n-1]
	if s.AudioInfo.Duration > 0 && end != s.AudioInfo.Duration {
		return fmt.Errorf("last split point %d differs from duration %d", end, s.AudioInfo.Duration)
	}
	if err := chapter.Validate(s.Chapters, end); err != nil {
		return err
	}
	if len(s.Chapters) != n-1 {
		return fmt.Errorf("%d chapters for %d split points", len(s.Chapters), n)
	}
	for i, c := range s.Chapters {
		if c.Start != s.SplitPoints[i] {
			return fmt.Errorf("chapter %d starts at %d, split point is %d", i, c.Start, s.SplitPoints[i])
		}
	}
	return nil
}

func compatible(v string) bool {
	return major(v) == major(Version)
}

func major(v string) string {
	m, _, _ := strings.Cut(strings.TrimPrefix(v, "v"), ".")
	return m
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
