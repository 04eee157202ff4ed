// Package id3 reads and writes the ID3v2 chapter table: CHAP frames, one per
// chapter, referenced in order by a single CTOC frame.
package id3

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/bogem/id3v2/v2"

	"github.com/polar9527/tag-audio/internal/atomicfile"
	"github.com/polar9527/tag-audio/internal/chapter"
)

// DefaultPadding is the number of zero bytes reserved after the frames so
// later edits can grow the tag in place.
const DefaultPadding = 1024

// tocElementID is the element id of the table of contents.
const tocElementID = "toc"

// Writer embeds chapter tables into audio files.
type Writer struct {
	padding  int
	userText *UserText
	logger   *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithPadding sets the padding written after the frames.
func WithPadding(n int) WriterOption {
	return func(w *Writer) {
		if n >= 0 {
			w.padding = n
		}
	}
}

// WithUserText adds a TXXX frame. An existing TXXX frame with the same
// description is replaced.
func WithUserText(description, value string) WriterOption {
	return func(w *Writer) {
		if description != "" {
			w.userText = &UserText{Description: description, Value: value}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWriter creates a Writer.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{padding: DefaultPadding, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteChapters copies src to dst with its chapter table replaced by chapters.
// Existing frames other than CHAP and CTOC are kept. A v2.4 tag stays v2.4;
// anything else is written as v2.3. An untagged src must be an MPEG audio
// stream. dst may equal src; the file is replaced atomically either way.
func (w *Writer) WriteChapters(src, dst string, chapters []chapter.Chapter) error {
	if len(chapters) == 0 {
		return fmt.Errorf("%w: no chapters", ErrBadChapter)
	}
	if len(chapters) > MaxChapters {
		return fmt.Errorf("%w: %d > %d", ErrTooManyChapters, len(chapters), MaxChapters)
	}

	in, err := os.Open(src) // #nosec G304 -- user-specified input file
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	tag, version, audioStart, err := openTag(in, src)
	if err != nil {
		return err
	}
	replaced := len(tag.GetFrames("CHAP")) + len(tag.GetFrames("CTOC"))
	tag.DeleteFrames("CHAP")
	tag.DeleteFrames("CTOC")

	if err := w.addChapterTable(tag, chapters, version); err != nil {
		return err
	}
	data, err := w.encode(tag)
	if err != nil {
		return err
	}
	if _, err := in.Seek(audioStart, io.SeekStart); err != nil {
		return fmt.Errorf("seek audio data: %w", err)
	}

	err = atomicfile.Write(dst, info.Mode().Perm(), func(out io.Writer) error {
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("write tag: %w", err)
		}
		if _, err := io.Copy(out, in); err != nil {
			return fmt.Errorf("copy audio data: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.logger.Info("chapter table written",
		"path", dst, "chapters", len(chapters), "version", fmt.Sprintf("2.%d", version), "replaced_frames", replaced)
	return nil
}

// CheckWritable reports whether WriteChapters can tag path: its tag, if
// any, must be readable, and an untagged file must be MPEG audio.
func CheckWritable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- user-specified input file
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	_, _, _, err = openTag(f, path)
	return err
}

// openTag parses the tag at the start of f, or returns an empty v2.3 tag
// when there is none and f starts with an MPEG frame.
func openTag(f *os.File, name string) (*id3v2.Tag, byte, int64, error) {
	raw, audioStart, err := readRawTag(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read tag of %s: %w", name, err)
	}

	if raw == nil {
		var sync [2]byte
		if _, err := f.ReadAt(sync[:], audioStart); err != nil && !errors.Is(err, io.EOF) {
			return nil, 0, 0, fmt.Errorf("read %s: %w", name, err)
		}
		if !mpegSync(sync[:]) {
			return nil, 0, 0, fmt.Errorf("%s: %w: no ID3 tag and no MPEG frame sync", name, ErrUnsupportedContainer)
		}
		tag := id3v2.NewEmptyTag()
		tag.SetVersion(3)
		return tag, 3, audioStart, nil
	}

	tag, err := raw.parse()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read tag of %s: %w", name, err)
	}
	tag.SetVersion(raw.version)
	return tag, raw.version, audioStart, nil
}

// addChapterTable adds one CHAP per chapter, the CTOC referencing them in
// order, and the optional TXXX frame, which replaces a TXXX frame with the
// same description.
func (w *Writer) addChapterTable(tag *id3v2.Tag, chapters []chapter.Chapter, version byte) error {
	toc := TOC{ElementID: tocElementID, TopLevel: true, Ordered: true}

	for i, c := range chapters {
		id := fmt.Sprintf("ch%d", i)
		if c.Start < 0 || c.End <= c.Start || c.End > math.MaxInt32 {
			return fmt.Errorf("%w: %s spans [%d, %d)", ErrBadChapter, id, c.Start, c.End)
		}
		cf := id3v2.ChapterFrame{
			ElementID:   id,
			StartTime:   time.Duration(c.Start) * time.Millisecond,
			EndTime:     time.Duration(c.End) * time.Millisecond,
			StartOffset: noOffset,
			EndOffset:   noOffset,
		}
		if c.Title != "" {
			cf.Title = &id3v2.TextFrame{Encoding: textEncoding(c.Title, version), Text: c.Title}
		}
		tag.AddFrame("CHAP", cf)
		toc.Children = append(toc.Children, id)
	}

	f, err := newTOCFrame(toc)
	if err != nil {
		return err
	}
	tag.AddFrame("CTOC", f)

	if w.userText != nil {
		u := *w.userText
		tag.AddFrame("TXXX", id3v2.UserDefinedTextFrame{
			Encoding:    textEncoding(u.Description+u.Value, version),
			Description: u.Description,
			Value:       u.Value,
		})
	}
	return nil
}

// encode serializes tag followed by the configured padding. id3v2 writes no
// padding, so the header size is patched to cover it.
func (w *Writer) encode(tag *id3v2.Tag) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := tag.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode tag: %w", err)
	}
	data := buf.Bytes()
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: encoded tag has no header", ErrMalformedTag)
	}

	total := len(data) - headerSize + w.padding
	if total > maxSyncsafe {
		return nil, fmt.Errorf("%w: %d bytes", ErrTagTooLarge, total)
	}
	copy(data[6:10], appendSyncsafe(nil, total))
	return append(data, make([]byte, w.padding)...), nil
}
