// Package activity aggregates usage segments into per-application totals,
// hourly breakdowns, and active periods. All aggregation clips segments to
// the requested window first, so totals never exceed the window length.
package activity

import (
	"sort"
	"time"

	"github.com/recallkit/recall-engine/pkg/store"
	"github.com/recallkit/recall-engine/pkg/timeutil"
)

// AppUsage is the aggregate for one application over a window.
type AppUsage struct {
	App          string    `json:"app"`
	TotalSeconds float64   `json:"total_seconds"`
	SegmentCount int       `json:"segment_count"`
	Earliest     time.Time `json:"earliest"`
	Latest       time.Time `json:"latest"`
}

// HourBucket is usage within one clock hour.
type HourBucket struct {
	Hour         time.Time `json:"hour"`
	TotalSeconds float64   `json:"total_seconds"`
	SegmentCount int       `json:"segment_count"`
}

// Period is a contiguous span of activity, segments joined across gaps
// shorter than the gap tolerance.
type Period struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	SegmentCount int       `json:"segment_count"`
}

// DefaultGap is the longest pause between segments that still counts as
// continuous activity.
const DefaultGap = 60 * time.Second

// clip returns the part of [start, end] inside the window, and whether any
// part remains.
func clip(start, end time.Time, w timeutil.Window) (time.Time, time.Time, bool) {
	if start.Before(w.Start) {
		start = w.Start
	}
	if end.After(w.End) {
		end = w.End
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// Aggregate rolls segments up per application, ordered by total time
// descending. Segments straddling the window edges contribute only their
// in-window part.
func Aggregate(segments []store.Segment, w timeutil.Window) []AppUsage {
	byApp := map[string]*AppUsage{}
	for _, seg := range segments {
		start, end, ok := clip(seg.Start, seg.End, w)
		if !ok {
			continue
		}

		u := byApp[seg.App]
		if u == nil {
			u = &AppUsage{App: seg.App, Earliest: start, Latest: end}
			byApp[seg.App] = u
		}
		u.TotalSeconds += end.Sub(start).Seconds()
		u.SegmentCount++
		if start.Before(u.Earliest) {
			u.Earliest = start
		}
		if end.After(u.Latest) {
			u.Latest = end
		}
	}

	out := make([]AppUsage, 0, len(byApp))
	for _, u := range byApp {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSeconds != out[j].TotalSeconds {
			return out[i].TotalSeconds > out[j].TotalSeconds
		}
		return out[i].App < out[j].App
	})
	return out
}

// HourlyBreakdown splits in-window usage into clock-hour buckets in loc.
// A segment crossing an hour boundary contributes to each hour it touches.
// Only hours with activity appear; buckets are ordered chronologically.
func HourlyBreakdown(segments []store.Segment, w timeutil.Window, loc *time.Location) []HourBucket {
	if loc == nil {
		loc = time.Local
	}

	byHour := map[time.Time]*HourBucket{}
	for _, seg := range segments {
		start, end, ok := clip(seg.Start, seg.End, w)
		if !ok {
			continue
		}

		for cur := start.In(loc).Truncate(time.Hour); cur.Before(end); cur = cur.Add(time.Hour) {
			sliceStart, sliceEnd := cur, cur.Add(time.Hour)
			if sliceStart.Before(start) {
				sliceStart = start
			}
			if sliceEnd.After(end) {
				sliceEnd = end
			}

			b := byHour[cur]
			if b == nil {
				b = &HourBucket{Hour: cur}
				byHour[cur] = b
			}
			b.TotalSeconds += sliceEnd.Sub(sliceStart).Seconds()
			b.SegmentCount++
		}
	}

	out := make([]HourBucket, 0, len(byHour))
	for _, b := range byHour {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out
}

// ActivePeriods merges clipped segments into contiguous periods, treating
// gaps up to maxGap as continuous. Zero or negative maxGap means
// DefaultGap.
func ActivePeriods(segments []store.Segment, w timeutil.Window, maxGap time.Duration) []Period {
	if maxGap <= 0 {
		maxGap = DefaultGap
	}

	type span struct{ start, end time.Time }
	spans := make([]span, 0, len(segments))
	for _, seg := range segments {
		if start, end, ok := clip(seg.Start, seg.End, w); ok {
			spans = append(spans, span{start, end})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	periods := []Period{}
	for _, sp := range spans {
		if n := len(periods); n > 0 && !sp.start.After(periods[n-1].End.Add(maxGap)) {
			if sp.end.After(periods[n-1].End) {
				periods[n-1].End = sp.end
			}
			periods[n-1].SegmentCount++
			continue
		}
		periods = append(periods, Period{Start: sp.start, End: sp.end, SegmentCount: 1})
	}
	return periods
}

// MeetingStats summarizes calendar events in a window.
type MeetingStats struct {
	Count        int     `json:"count"`
	TotalSeconds float64 `json:"total_seconds"`
}

// SummarizeMeetings totals event time clipped to the window.
func SummarizeMeetings(events []store.Event, w timeutil.Window) MeetingStats {
	var stats MeetingStats
	for _, e := range events {
		start, end, ok := clip(e.Start, e.End, w)
		if !ok {
			continue
		}
		stats.Count++
		stats.TotalSeconds += end.Sub(start).Seconds()
	}
	return stats
}
