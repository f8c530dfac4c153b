// Package timeutil resolves user time expressions and normalizes the two
// on-disk timestamp encodings used by the activity store.
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/recallkit/recall-engine/pkg/apperrors"
)

// Window is a resolved pair of timezone-aware instants with Start <= End.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t falls inside the window (inclusive bounds).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

var relativeExpr = regexp.MustCompile(`^(\d+)\s*([a-zA-Z]+)$`)

// unitDurations maps the recognized unit tokens, long and short forms, to
// their duration. Months and years are deliberately absent: the recorder
// keeps weeks of history at most, and calendar-month arithmetic is a trap.
var unitDurations = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second,
	"second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute,
	"minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour,
	"hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

// ResolveRelative parses a relative duration expression ("2h", "30 minutes",
// "1 week") into a window ending at now.
func ResolveRelative(expr string, now time.Time) (Window, error) {
	m := relativeExpr.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return Window{}, fmt.Errorf("%w: %q is not a relative duration", apperrors.ErrInvalidTimeExpression, expr)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidTimeExpression, expr)
	}
	unit, ok := unitDurations[strings.ToLower(m[2])]
	if !ok {
		return Window{}, fmt.Errorf("%w: unknown unit %q in %q", apperrors.ErrInvalidTimeExpression, m[2], expr)
	}
	d := time.Duration(n) * unit
	return Window{Start: now.Add(-d), End: now}, nil
}

// ResolveAbsolute parses a from/to pair of absolute expressions into a
// window. Date-only bounds expand to the enclosing calendar day in loc
// (start of day for from, end of day for to); time-only bounds are anchored
// to now's date. An empty to means now, so a lone from reads "from that
// instant until the present". Returns ErrInvalidTimeExpression when
// from > to; bounds are never silently swapped.
func ResolveAbsolute(from, to string, now time.Time, loc *time.Location) (Window, error) {
	start, err := parseAbsolute(from, now, loc, false)
	if err != nil {
		return Window{}, err
	}
	end := now
	if strings.TrimSpace(to) != "" {
		end, err = parseAbsolute(to, now, loc, true)
		if err != nil {
			return Window{}, err
		}
	}
	if start.After(end) {
		return Window{}, fmt.Errorf("%w: from %q is after to %q", apperrors.ErrInvalidTimeExpression, from, to)
	}
	return Window{Start: start, End: end}, nil
}

// Resolve handles a single expression: a relative duration resolves to a
// window ending at now, a date-only expression to the whole calendar day,
// and any other absolute expression to [instant, now].
func Resolve(expr string, now time.Time, loc *time.Location) (Window, error) {
	trimmed := strings.TrimSpace(expr)
	if relativeExpr.MatchString(trimmed) {
		return ResolveRelative(trimmed, now)
	}
	if isDateOnly(trimmed) {
		return ResolveAbsolute(trimmed, trimmed, now, loc)
	}
	start, err := parseAbsolute(trimmed, now, loc, false)
	if err != nil {
		return Window{}, err
	}
	if start.After(now) {
		return Window{}, fmt.Errorf("%w: %q is in the future", apperrors.ErrInvalidTimeExpression, expr)
	}
	return Window{Start: start, End: now}, nil
}

// datetimeLayouts are tried in order for full datetime expressions. Layouts
// without a zone designator are interpreted in the caller's location.
var datetimeLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{time.RFC3339, true},
	{"2006-01-02T15:04:05.999", false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02 15:04:05.999", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02 15:04", false},
}

var timeOnlyLayouts = []string{"15:04:05.999", "15:04:05", "15:04"}

func isDateOnly(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// parseAbsolute resolves one absolute bound. endOfBound selects the closing
// millisecond of the day for date-only input so a date pair covers the whole
// last day.
func parseAbsolute(s string, now time.Time, loc *time.Location, endOfBound bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty expression", apperrors.ErrInvalidTimeExpression)
	}

	if isDateOnly(s) {
		d, _ := time.ParseInLocation("2006-01-02", s, loc)
		if endOfBound {
			return d.AddDate(0, 0, 1).Add(-time.Millisecond), nil
		}
		return d, nil
	}

	for _, l := range datetimeLayouts {
		var t time.Time
		var err error
		if l.zoned {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, loc)
		}
		if err == nil {
			return t, nil
		}
	}

	// Time-only input is anchored to now's date in loc.
	for _, layout := range timeOnlyLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			y, mo, d := now.In(loc).Date()
			return time.Date(y, mo, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: cannot parse %q", apperrors.ErrInvalidTimeExpression, s)
}
