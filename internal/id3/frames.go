package id3

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bogem/id3v2/v2"
	"golang.org/x/text/encoding/charmap"
)

// MaxChapters is the largest number of chapters a single table of contents
// can reference; its entry count is one byte.
const MaxChapters = 255

// noOffset marks CHAP byte offsets as unused, so players seek by time.
const noOffset uint32 = 0xFFFFFFFF

// CTOC flag bits.
const (
	tocOrdered  = 0x01
	tocTopLevel = 0x02
)

// Chapter is a decoded CHAP frame. Times are milliseconds.
type Chapter struct {
	ElementID   string
	Start       int64
	End         int64
	StartOffset uint32
	EndOffset   uint32
	Title       string
}

// TOC is a decoded CTOC frame.
type TOC struct {
	ElementID string
	TopLevel  bool
	Ordered   bool
	Children  []string
}

// UserText is a TXXX frame.
type UserText struct {
	Description string
	Value       string
}

// textEncoding picks ISO-8859-1 when s fits, otherwise the Unicode encoding
// the tag version supports best.
func textEncoding(s string, version byte) id3v2.Encoding {
	for _, r := range s {
		if r > 0xFF {
			if version == 4 {
				return id3v2.EncodingUTF8
			}
			return id3v2.EncodingUTF16
		}
	}
	return id3v2.EncodingISO
}

// tocFrame is a CTOC frame. id3v2 keeps unknown frames as raw bytes on
// read but has no CTOC type to write, so the body is built here.
type tocFrame struct {
	elementID string
	body      []byte
}

func newTOCFrame(t TOC) (tocFrame, error) {
	if len(t.Children) > MaxChapters {
		return tocFrame{}, fmt.Errorf("%w: %d > %d", ErrTooManyChapters, len(t.Children), MaxChapters)
	}
	var flags byte
	if t.TopLevel {
		flags |= tocTopLevel
	}
	if t.Ordered {
		flags |= tocOrdered
	}

	enc := charmap.ISO8859_1.NewEncoder()
	id, err := enc.String(t.ElementID)
	if err != nil {
		return tocFrame{}, fmt.Errorf("%w: element id %q: %v", ErrBadChapter, t.ElementID, err)
	}
	b := append([]byte(id), 0, flags, byte(len(t.Children)))
	for _, child := range t.Children {
		c, err := enc.String(child)
		if err != nil {
			return tocFrame{}, fmt.Errorf("%w: element id %q: %v", ErrBadChapter, child, err)
		}
		b = append(b, c...)
		b = append(b, 0)
	}
	return tocFrame{elementID: t.ElementID, body: b}, nil
}

func (f tocFrame) Size() int { return len(f.body) }

func (f tocFrame) UniqueIdentifier() string { return f.elementID }

func (f tocFrame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.body)
	return int64(n), err
}

// decodeTOC parses a CTOC body. Element ids are ISO-8859-1.
func decodeTOC(body []byte) (TOC, error) {
	dec := charmap.ISO8859_1.NewDecoder()
	id, rest, ok := bytes.Cut(body, []byte{0})
	if !ok || len(rest) < 2 {
		return TOC{}, fmt.Errorf("%w: CTOC frame truncated", ErrMalformedTag)
	}
	elementID, err := dec.Bytes(id)
	if err != nil {
		return TOC{}, fmt.Errorf("%w: CTOC element id: %v", ErrMalformedTag, err)
	}
	t := TOC{
		ElementID: string(elementID),
		TopLevel:  rest[0]&tocTopLevel != 0,
		Ordered:   rest[0]&tocOrdered != 0,
	}
	count := int(rest[1])
	rest = rest[2:]
	for i := range count {
		child, next, ok := bytes.Cut(rest, []byte{0})
		if !ok {
			return TOC{}, fmt.Errorf("%w: CTOC %s entry %d truncated", ErrMalformedTag, t.ElementID, i)
		}
		name, err := dec.Bytes(child)
		if err != nil {
			return TOC{}, fmt.Errorf("%w: CTOC %s entry %d: %v", ErrMalformedTag, t.ElementID, i, err)
		}
		t.Children = append(t.Children, string(name))
		rest = next
	}
	return t, nil
}
