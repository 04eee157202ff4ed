package id3

import (
	"cmp"
	"fmt"
	"os"
	"slices"

	"github.com/bogem/id3v2/v2"

	"github.com/polar9527/tag-audio/internal/chapter"
)

// Tag is the chapter-related content of an ID3v2 tag.
type Tag struct {
	Version  byte
	Chapters []Chapter // CHAP frames in tag order
	TOC      *TOC      // first CTOC frame, if any
	UserText []UserText
}

// ReadChapters parses the ID3v2 tag at the start of path.
// A file without a tag returns ErrNoTag.
func ReadChapters(path string) (Tag, error) {
	f, err := os.Open(path) // #nosec G304 -- user-specified input file
	if err != nil {
		return Tag{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	raw, _, err := readRawTag(f)
	if err != nil {
		return Tag{}, err
	}
	if raw == nil {
		return Tag{}, fmt.Errorf("%s: %w", path, ErrNoTag)
	}
	parsed, err := raw.parse()
	if err != nil {
		return Tag{}, err
	}
	return chapterContent(raw.version, parsed)
}

func chapterContent(version byte, parsed *id3v2.Tag) (Tag, error) {
	tag := Tag{Version: version}
	for _, f := range parsed.GetFrames("CHAP") {
		cf, ok := f.(id3v2.ChapterFrame)
		if !ok {
			continue
		}
		c := Chapter{
			ElementID:   cf.ElementID,
			Start:       cf.StartTime.Milliseconds(),
			End:         cf.EndTime.Milliseconds(),
			StartOffset: cf.StartOffset,
			EndOffset:   cf.EndOffset,
		}
		if cf.Title != nil {
			c.Title = cf.Title.Text
		}
		tag.Chapters = append(tag.Chapters, c)
	}
	for _, f := range parsed.GetFrames("CTOC") {
		uf, ok := f.(id3v2.UnknownFrame)
		if !ok {
			continue
		}
		t, err := decodeTOC(uf.Body)
		if err != nil {
			return Tag{}, err
		}
		tag.TOC = &t
		break
	}
	for _, f := range parsed.GetFrames("TXXX") {
		if u, ok := f.(id3v2.UserDefinedTextFrame); ok {
			tag.UserText = append(tag.UserText, UserText{Description: u.Description, Value: u.Value})
		}
	}
	return tag, nil
}

// Ordered returns the chapters in table-of-contents order, falling back to
// start time when there is no table or it references unknown elements.
func (t Tag) Ordered() []Chapter {
	if t.TOC != nil && len(t.TOC.Children) == len(t.Chapters) {
		byID := make(map[string]Chapter, len(t.Chapters))
		for _, c := range t.Chapters {
			byID[c.ElementID] = c
		}
		out := make([]Chapter, 0, len(t.TOC.Children))
		for _, id := range t.TOC.Children {
			c, ok := byID[id]
			if !ok {
				break
			}
			out = append(out, c)
		}
		if len(out) == len(t.Chapters) {
			return out
		}
	}
	out := slices.Clone(t.Chapters)
	slices.SortStableFunc(out, func(a, b Chapter) int { return cmp.Compare(a.Start, b.Start) })
	return out
}

// ChapterList converts the ordered chapters to pipeline chapters.
func (t Tag) ChapterList() []chapter.Chapter {
	ordered := t.Ordered()
	out := make([]chapter.Chapter, 0, len(ordered))
	for _, c := range ordered {
		out = append(out, chapter.Chapter{Start: c.Start, End: c.End, Title: c.Title})
	}
	return out
}
