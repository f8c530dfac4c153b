package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallkit/recall-engine/pkg/store"
	"github.com/recallkit/recall-engine/pkg/timeutil"
)

func window(startHour, endHour int) timeutil.Window {
	day := time.Date(2023, 5, 11, 0, 0, 0, 0, time.UTC)
	return timeutil.Window{
		Start: day.Add(time.Duration(startHour) * time.Hour),
		End:   day.Add(time.Duration(endHour) * time.Hour),
	}
}

func segment(app string, start, end time.Time) store.Segment {
	return store.Segment{App: app, Start: start, End: end}
}

func TestAggregateClipsToWindow(t *testing.T) {
	w := window(13, 14)

	// Segment runs 12:30 to 13:30; only the 1800 in-window seconds count.
	segs := []store.Segment{
		segment("com.apple.Safari", w.Start.Add(-30*time.Minute), w.Start.Add(30*time.Minute)),
	}

	usage := Aggregate(segs, w)
	require.Len(t, usage, 1)
	assert.Equal(t, 1800.0, usage[0].TotalSeconds)
	assert.Equal(t, w.Start, usage[0].Earliest)
	assert.Equal(t, w.Start.Add(30*time.Minute), usage[0].Latest)
}

func TestAggregateSortsByTotalDescending(t *testing.T) {
	w := window(13, 17)
	segs := []store.Segment{
		segment("com.apple.Safari", w.Start, w.Start.Add(10*time.Minute)),
		segment("us.zoom.xos", w.Start, w.Start.Add(time.Hour)),
		segment("com.apple.Safari", w.Start.Add(2*time.Hour), w.Start.Add(2*time.Hour+20*time.Minute)),
	}

	usage := Aggregate(segs, w)
	require.Len(t, usage, 2)
	assert.Equal(t, "us.zoom.xos", usage[0].App)
	assert.Equal(t, "com.apple.Safari", usage[1].App)
	assert.Equal(t, 2, usage[1].SegmentCount)
	assert.Equal(t, 1800.0, usage[1].TotalSeconds)
}

func TestAggregateSkipsOutOfWindow(t *testing.T) {
	w := window(13, 14)
	segs := []store.Segment{
		segment("com.apple.Safari", w.End.Add(time.Hour), w.End.Add(2*time.Hour)),
	}
	assert.Empty(t, Aggregate(segs, w))
}

func TestAggregateTotalNeverExceedsWindow(t *testing.T) {
	w := window(13, 14)
	segs := []store.Segment{
		segment("com.apple.Safari", w.Start.Add(-5*time.Hour), w.End.Add(5*time.Hour)),
	}

	usage := Aggregate(segs, w)
	require.Len(t, usage, 1)
	assert.Equal(t, w.Duration().Seconds(), usage[0].TotalSeconds)
}

func TestHourlyBreakdownSplitsAcrossHours(t *testing.T) {
	w := window(13, 17)
	// 13:30 to 15:30 touches three hour buckets.
	segs := []store.Segment{
		segment("com.apple.Safari", w.Start.Add(30*time.Minute), w.Start.Add(150*time.Minute)),
	}

	buckets := HourlyBreakdown(segs, w, time.UTC)
	require.Len(t, buckets, 3)

	assert.Equal(t, w.Start, buckets[0].Hour)
	assert.Equal(t, 1800.0, buckets[0].TotalSeconds)
	assert.Equal(t, 3600.0, buckets[1].TotalSeconds)
	assert.Equal(t, 1800.0, buckets[2].TotalSeconds)
}

func TestActivePeriodsMergesSmallGaps(t *testing.T) {
	w := window(13, 17)
	segs := []store.Segment{
		segment("a", w.Start, w.Start.Add(10*time.Minute)),
		// 30 second gap: continuous.
		segment("b", w.Start.Add(10*time.Minute+30*time.Second), w.Start.Add(20*time.Minute)),
		// 10 minute gap: new period.
		segment("c", w.Start.Add(30*time.Minute), w.Start.Add(40*time.Minute)),
	}

	periods := ActivePeriods(segs, w, DefaultGap)
	require.Len(t, periods, 2)
	assert.Equal(t, w.Start, periods[0].Start)
	assert.Equal(t, w.Start.Add(20*time.Minute), periods[0].End)
	assert.Equal(t, 2, periods[0].SegmentCount)
	assert.Equal(t, 1, periods[1].SegmentCount)
}

func TestActivePeriodsUnsortedInput(t *testing.T) {
	w := window(13, 17)
	segs := []store.Segment{
		segment("b", w.Start.Add(2*time.Hour), w.Start.Add(3*time.Hour)),
		segment("a", w.Start, w.Start.Add(time.Hour)),
	}

	periods := ActivePeriods(segs, w, 0)
	require.Len(t, periods, 2)
	assert.True(t, periods[0].Start.Before(periods[1].Start))
}

func TestSummarizeMeetings(t *testing.T) {
	w := window(13, 17)
	events := []store.Event{
		{Title: "standup", Start: w.Start, End: w.Start.Add(30 * time.Minute)},
		{Title: "review", Start: w.Start.Add(-time.Hour), End: w.Start.Add(time.Hour)},
		{Title: "out of range", Start: w.End.Add(time.Hour), End: w.End.Add(2 * time.Hour)},
	}

	stats := SummarizeMeetings(events, w)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1800.0+3600.0, stats.TotalSeconds)
}
