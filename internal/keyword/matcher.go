// Package keyword finds spoken cue words ("chapter", "prologue") in a track
// by transcribing chunks in parallel and estimating where each cue was said.
package keyword

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/polar9527/tag-audio/internal/audio"
)

// DefaultKeywords are the cues that open a new section.
var DefaultKeywords = []string{"chapter", "prologue"}

// Marker is the approximate position of a detected keyword.
type Marker struct {
	Position int64  // ms from track start
	Keyword  string // matched keyword, lowercased
	Chunk    int    // index of the chunk it was found in
}

// Matcher tokenizes transcripts and matches keywords.
// A token matches only if it equals a keyword exactly after lowercasing;
// punctuation is not stripped, so "chapter," does not match.
type Matcher struct {
	keywords map[string]struct{}
}

// NewMatcher creates a matcher for the given keywords.
func NewMatcher(keywords []string) (*Matcher, error) {
	m := &Matcher{keywords: make(map[string]struct{}, len(keywords))}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if strings.ContainsFunc(k, unicode.IsSpace) {
			return nil, fmt.Errorf("keyword %q contains whitespace", k)
		}
		m.keywords[k] = struct{}{}
	}
	if len(m.keywords) == 0 {
		return nil, ErrNoKeywords
	}
	return m, nil
}

// Match returns a marker for every keyword token in text.
// A token at word index p of n words lands at start + p/n of the chunk's
// actual length, so markers never fall past the chunk end.
func (m *Matcher) Match(text string, chunk audio.Chunk) []Marker {
	words := strings.Fields(strings.ToLower(text))
	n := int64(len(words))
	if n == 0 {
		return nil
	}

	var markers []Marker
	for p, w := range words {
		if _, ok := m.keywords[w]; !ok {
			continue
		}
		markers = append(markers, Marker{
			Position: chunk.Start + int64(p)*chunk.Length()/n,
			Keyword:  w,
			Chunk:    chunk.Index,
		})
	}
	return markers
}
