// Package search finds keyword occurrences across assembled transcript and
// screen sessions. Matching is case-insensitive substring matching; every
// hit carries enough surrounding context to be read on its own.
package search

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/recallkit/recall-engine/pkg/session"
)

// Kind distinguishes the two hit sources.
type Kind string

const (
	KindTranscript Kind = "transcript"
	KindScreen     Kind = "screen"
)

// Hit is one keyword occurrence.
type Hit struct {
	Kind      Kind      `json:"kind"`
	SessionID int64     `json:"session_id"`
	Position  int       `json:"position"`
	Timestamp time.Time `json:"timestamp"`
	App       string    `json:"app,omitempty"`
	Window    string    `json:"window,omitempty"`
	Match     string    `json:"match"`
	Before    string    `json:"context_before,omitempty"`
	After     string    `json:"context_after,omitempty"`
}

// Results groups hits by source.
type Results struct {
	Transcript []Hit `json:"transcript"`
	Screen     []Hit `json:"screen"`
}

// Total returns the combined hit count.
func (r Results) Total() int { return len(r.Transcript) + len(r.Screen) }

// Merged interleaves both hit lists by timestamp. On identical timestamps
// transcript hits sort first.
func (r Results) Merged() []Hit {
	merged := make([]Hit, 0, r.Total())
	merged = append(merged, r.Transcript...)
	merged = append(merged, r.Screen...)
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].Timestamp.Before(merged[j].Timestamp)
		}
		return merged[i].Kind == KindTranscript && merged[j].Kind == KindScreen
	})
	return merged
}

// Options tunes context extraction.
type Options struct {
	// ContextWords is how many words to keep on each side of a transcript
	// hit. Zero means the default of 3.
	ContextWords int
	// ContextChars is how many characters to keep on each side of a screen
	// hit. Zero means the default of 200.
	ContextChars int
}

const (
	DefaultContextWords = 3
	DefaultContextChars = 200
)

func (o Options) contextWords() int {
	if o.ContextWords > 0 {
		return o.ContextWords
	}
	return DefaultContextWords
}

func (o Options) contextChars() int {
	if o.ContextChars > 0 {
		return o.ContextChars
	}
	return DefaultContextChars
}

// Search scans both session kinds for keyword. An empty keyword matches
// nothing. Identical (session, position) pairs are reported once; distinct
// overlapping occurrences are all kept.
func Search(keyword string, transcripts []session.TranscriptSession, screens []session.ScreenSession, opts Options) Results {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return Results{Transcript: []Hit{}, Screen: []Hit{}}
	}

	res := Results{
		Transcript: searchTranscripts(needle, transcripts, opts.contextWords()),
		Screen:     searchScreens(needle, screens, opts.contextChars()),
	}
	return res
}

// searchTranscripts matches at word granularity: a word hits when it
// contains the needle. Context is whole neighboring words, clipped at the
// session bounds, so a hit near the start simply has less leading context.
func searchTranscripts(needle string, sessions []session.TranscriptSession, contextWords int) []Hit {
	hits := []Hit{}
	seen := map[[2]int64]bool{}

	for _, s := range sessions {
		for i, w := range s.Words {
			if !strings.Contains(strings.ToLower(w.Word), needle) {
				continue
			}
			key := [2]int64{s.AudioID, int64(i)}
			if seen[key] {
				continue
			}
			seen[key] = true

			lo := i - contextWords
			if lo < 0 {
				lo = 0
			}
			hi := i + contextWords + 1
			if hi > len(s.Words) {
				hi = len(s.Words)
			}

			hits = append(hits, Hit{
				Kind:      KindTranscript,
				SessionID: s.AudioID,
				Position:  i,
				Timestamp: w.AbsoluteTime,
				App:       s.App,
				Match:     w.Word,
				Before:    joinWords(s.Words[lo:i]),
				After:     joinWords(s.Words[i+1 : hi]),
			})
		}
	}
	return hits
}

// searchScreens matches at character granularity over the reconstructed
// frame text. Context is a character window on each side, clipped at the
// text bounds. Overlapping occurrences each produce a hit. Matching runs
// over case-folded text, but every reported slice comes from the original:
// folding can change a rune's byte width, so folded offsets are mapped back
// before slicing.
func searchScreens(needle string, sessions []session.ScreenSession, contextChars int) []Hit {
	hits := []Hit{}
	seen := map[[2]int64]bool{}

	for _, s := range sessions {
		lower, offsets := foldCase(s.Text)
		for from := 0; ; {
			idx := strings.Index(lower[from:], needle)
			if idx < 0 {
				break
			}
			lpos := from + idx
			from = lpos + 1

			start := offsets[lpos]
			end := offsets[lpos+len(needle)]

			key := [2]int64{s.FrameID, int64(start)}
			if seen[key] {
				continue
			}
			seen[key] = true

			hits = append(hits, Hit{
				Kind:      KindScreen,
				SessionID: s.FrameID,
				Position:  start,
				Timestamp: s.CapturedAt,
				App:       s.App,
				Window:    s.Window,
				Match:     s.Text[start:end],
				Before:    lastRunes(s.Text[:start], contextChars),
				After:     firstRunes(s.Text[end:], contextChars),
			})
		}
	}
	return hits
}

// foldCase lowercases s rune by rune and returns the folded string plus a
// table mapping every folded byte index (and the end position) back to the
// byte offset of the originating rune in s.
func foldCase(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s)+1)
	for i, r := range s {
		lr := unicode.ToLower(r)
		for j := 0; j < utf8.RuneLen(lr); j++ {
			offsets = append(offsets, i)
		}
		b.WriteRune(lr)
	}
	offsets = append(offsets, len(s))
	return b.String(), offsets
}

// lastRunes returns the suffix of s holding at most n runes.
func lastRunes(s string, n int) string {
	i := len(s)
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:]
}

// firstRunes returns the prefix of s holding at most n runes.
func firstRunes(s string, n int) string {
	i := 0
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}

func joinWords(words []session.Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, w.Word)
	}
	return strings.Join(parts, " ")
}
