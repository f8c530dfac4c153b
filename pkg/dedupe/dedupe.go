// Package dedupe collapses near-duplicate screen captures. Consecutive
// frames of an unchanged screen produce OCR text that differs only in
// clocks, cursors, and recognition noise; collapsing them keeps the
// output readable without losing when the content was first and last seen.
package dedupe

import (
	"strings"
	"time"
	"unicode"

	"github.com/agext/levenshtein"

	"github.com/recallkit/recall-engine/pkg/session"
)

// DefaultThreshold is the similarity above which two texts count as the
// same content. High enough that genuinely different screens survive,
// low enough to absorb OCR jitter.
const DefaultThreshold = 0.92

// lengthGate skips the edit-distance computation when byte lengths differ
// by more than this fraction; such pairs cannot reach the threshold.
const lengthGate = 0.10

// Observation is a run of near-identical screen sessions collapsed into
// one. FirstSeen and the representative text come from the earliest
// session in the run.
type Observation struct {
	session.ScreenSession
	// FirstSeen is when the content first appeared.
	FirstSeen time.Time `json:"first_seen"`
	// ObservedUntil is the capture time of the last collapsed duplicate.
	// Equal to FirstSeen when nothing was collapsed.
	ObservedUntil time.Time `json:"observed_until"`
	// Collapsed counts the duplicates folded into this observation.
	Collapsed int `json:"collapsed"`
}

// Filter collapses duplicate runs.
type Filter struct {
	threshold float64
	params    *levenshtein.Params
}

// New returns a Filter with the given similarity threshold. Values outside
// (0, 1] fall back to DefaultThreshold.
func New(threshold float64) *Filter {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Filter{
		threshold: threshold,
		// MinScore lets the scorer bail out as soon as the pair cannot
		// reach the threshold.
		params: levenshtein.NewParams().MinScore(threshold),
	}
}

// Collapse folds consecutive near-duplicate sessions into observations.
// Sessions must be in capture order. Runs never cross an application
// boundary: the same text in two different apps is two observations.
func (f *Filter) Collapse(sessions []session.ScreenSession) []Observation {
	out := []Observation{}
	for _, s := range sessions {
		if n := len(out); n > 0 && f.sameContent(&out[n-1], s) {
			out[n-1].ObservedUntil = s.CapturedAt
			out[n-1].Collapsed++
			continue
		}
		out = append(out, Observation{
			ScreenSession: s,
			FirstSeen:     s.CapturedAt,
			ObservedUntil: s.CapturedAt,
		})
	}
	return out
}

func (f *Filter) sameContent(prev *Observation, next session.ScreenSession) bool {
	if prev.App != next.App {
		return false
	}

	a := normalize(prev.Text)
	b := normalize(next.Text)

	// Comparison fails open: without text there is no evidence the
	// frames show the same content.
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}

	shorter, longer := len(a), len(b)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if float64(longer-shorter) > lengthGate*float64(longer) {
		return false
	}

	return levenshtein.Similarity(a, b, f.params) >= f.threshold
}

// normalize strips the differences OCR noise introduces: letter case,
// punctuation, and whitespace runs.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	space := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
