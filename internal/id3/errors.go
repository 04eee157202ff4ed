package id3

import "errors"

// Sentinel errors for ID3v2 handling.
var (
	// ErrNoTag indicates the file does not start with an ID3v2 tag.
	ErrNoTag = errors.New("no ID3v2 tag")

	// ErrUnsupportedTag indicates a tag version or feature that cannot be
	// rewritten safely (ID3v2.2, tag-level unsynchronisation).
	ErrUnsupportedTag = errors.New("unsupported ID3v2 tag")

	// ErrUnsupportedContainer indicates an untagged file that is not an MPEG
	// audio stream. Prepending a tag would corrupt its container header.
	ErrUnsupportedContainer = errors.New("unsupported audio container")

	// ErrMalformedTag indicates a tag whose sizes or frames are inconsistent.
	ErrMalformedTag = errors.New("malformed ID3v2 tag")

	// ErrTooManyChapters indicates more chapters than a table of contents can reference.
	ErrTooManyChapters = errors.New("too many chapters")

	// ErrBadChapter indicates a chapter that cannot be encoded.
	ErrBadChapter = errors.New("chapter cannot be encoded")

	// ErrTagTooLarge indicates the encoded tag exceeds the 28-bit size limit.
	ErrTagTooLarge = errors.New("ID3v2 tag too large")
)
