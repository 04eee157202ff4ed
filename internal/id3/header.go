package id3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bogem/id3v2/v2"
)

const (
	headerSize  = 10
	maxSyncsafe = 1<<28 - 1
)

const (
	flagUnsync   = 0x80
	flagExtended = 0x40
	flagFooter   = 0x10
)

// rawTag is the tag found at the start of a file with its extended header
// stripped, so body begins with the first frame.
type rawTag struct {
	version byte
	body    []byte
}

// readRawTag reads the tag at the start of r. It returns a nil tag when r
// does not start with one, and the offset where audio data begins.
func readRawTag(r io.Reader) (*rawTag, int64, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read tag header: %w", err)
	}
	if string(hdr[:3]) != "ID3" {
		return nil, 0, nil
	}

	version, flags := hdr[3], hdr[5]
	switch version {
	case 3, 4:
	default:
		return nil, 0, fmt.Errorf("%w: ID3v2.%d", ErrUnsupportedTag, version)
	}
	if flags&flagUnsync != 0 {
		return nil, 0, fmt.Errorf("%w: tag-level unsynchronisation", ErrUnsupportedTag)
	}
	size, ok := decodeSyncsafe(hdr[6:10])
	if !ok {
		return nil, 0, fmt.Errorf("%w: tag size is not syncsafe", ErrMalformedTag)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, 0, fmt.Errorf("%w: tag truncated: %v", ErrMalformedTag, err)
	}

	audioStart := int64(headerSize + size)
	if version == 4 && flags&flagFooter != 0 {
		audioStart += headerSize
	}

	if flags&flagExtended != 0 {
		skip, err := extendedHeaderSize(body, version)
		if err != nil {
			return nil, 0, err
		}
		body = body[skip:]
	}
	return &rawTag{version: version, body: body}, audioStart, nil
}

// extendedHeaderSize returns how many bytes the extended header occupies.
// The v2.3 size field excludes itself; the v2.4 one is syncsafe and includes itself.
func extendedHeaderSize(body []byte, version byte) (int, error) {
	if len(body) < 4 {
		return 0, fmt.Errorf("%w: extended header truncated", ErrMalformedTag)
	}
	var n int
	if version == 4 {
		v, ok := decodeSyncsafe(body[:4])
		if !ok {
			return 0, fmt.Errorf("%w: extended header size is not syncsafe", ErrMalformedTag)
		}
		n = v
	} else {
		n = 4 + int(binary.BigEndian.Uint32(body[:4]))
	}
	if n < 4 || n > len(body) {
		return 0, fmt.Errorf("%w: extended header size %d", ErrMalformedTag, n)
	}
	return n, nil
}

// parse decodes the frames. The header is rebuilt without flags because the
// extended header is already gone.
func (t *rawTag) parse() (*id3v2.Tag, error) {
	data := make([]byte, 0, headerSize+len(t.body))
	data = append(data, 'I', 'D', '3', t.version, 0, 0)
	data = appendSyncsafe(data, len(t.body))
	data = append(data, t.body...)

	tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTag, err)
	}
	return tag, nil
}

// mpegSync reports whether b starts with an MPEG audio frame sync.
func mpegSync(b []byte) bool {
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0
}

func decodeSyncsafe(b []byte) (int, bool) {
	n := 0
	for _, c := range b[:4] {
		if c&0x80 != 0 {
			return 0, false
		}
		n = n<<7 | int(c)
	}
	return n, true
}

func appendSyncsafe(dst []byte, n int) []byte {
	return append(dst, byte(n>>21&0x7f), byte(n>>14&0x7f), byte(n>>7&0x7f), byte(n&0x7f))
}
