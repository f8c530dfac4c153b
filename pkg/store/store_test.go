package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recallkit/recall-engine/pkg/apperrors"
	"github.com/recallkit/recall-engine/pkg/timeutil"
)

const testKey = "test-store-key"

// Timestamp columns are declared without a type so the fixture can carry
// both encodings the recorder writes: epoch milliseconds and ISO strings.
const fixtureSchema = `
CREATE TABLE segment (
	id INTEGER PRIMARY KEY,
	startDate,
	endDate,
	bundleID TEXT,
	windowName TEXT,
	browserUrl TEXT
);
CREATE TABLE audio (
	id INTEGER PRIMARY KEY,
	segmentId INTEGER,
	path TEXT,
	startTime,
	duration INTEGER
);
CREATE TABLE transcript_word (
	id INTEGER PRIMARY KEY,
	segmentId INTEGER,
	word TEXT,
	timeOffset INTEGER,
	duration INTEGER,
	speechSource TEXT,
	textOffset INTEGER
);
CREATE TABLE frame (
	id INTEGER PRIMARY KEY,
	segmentId INTEGER,
	createdAt,
	imageFileName TEXT,
	isStarred INTEGER
);
CREATE TABLE node (
	id INTEGER PRIMARY KEY,
	frameId INTEGER,
	orderIndex INTEGER,
	textOffset INTEGER,
	textLength INTEGER,
	leftX REAL,
	topY REAL,
	width REAL,
	height REAL
);
CREATE TABLE searchRanking_content (
	id INTEGER PRIMARY KEY,
	c0 TEXT,
	c1 TEXT,
	c2 TEXT
);
CREATE TABLE search_content (
	docid INTEGER PRIMARY KEY,
	c0text TEXT,
	c1otherText TEXT
);
CREATE TABLE event (
	id INTEGER PRIMARY KEY,
	title TEXT,
	startDate,
	endDate,
	location TEXT,
	notes TEXT,
	calendarName TEXT,
	segmentId INTEGER
);
`

func newTestStore(t *testing.T, seed func(db *sql.DB)) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "activity.sqlite3")
	dsn := fmt.Sprintf("file:%s?_pragma_key=%s&_pragma_cipher_compatibility=4", path, testKey)

	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	_, err = db.Exec(fixtureSchema)
	require.NoError(t, err)
	if seed != nil {
		seed(db)
	}
	require.NoError(t, db.Close())

	s, err := Open(path, testKey, zap.NewNop(), WithLocation(time.UTC))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err)
}

func testWindow() timeutil.Window {
	return timeutil.Window{
		Start: time.Date(2023, 5, 11, 13, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 5, 11, 17, 0, 0, 0, time.UTC),
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.sqlite3"), testKey, zap.NewNop())
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

func TestOpenWrongKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.sqlite3")
	dsn := fmt.Sprintf("file:%s?_pragma_key=%s", path, testKey)
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path, "not-the-key", zap.NewNop())
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

func TestTranscriptWordsMixedEncodings(t *testing.T) {
	// 13:05:00 UTC as epoch ms and a second recording stored as ISO text.
	msStart := time.Date(2023, 5, 11, 13, 5, 0, 0, time.UTC).UnixMilli()

	s := newTestStore(t, func(db *sql.DB) {
		mustExec(t, db, `INSERT INTO audio VALUES (1, 10, '/tmp/a.m4a', ?, 60000)`, msStart)
		mustExec(t, db, `INSERT INTO audio VALUES (2, 20, NULL, '2023-05-11T14:30:00.000', 30000)`)
		mustExec(t, db, `INSERT INTO transcript_word VALUES (1, 10, 'hello', 0, 400, 'me', 0)`)
		mustExec(t, db, `INSERT INTO transcript_word VALUES (2, 10, 'world', 500, 400, 'me', 6)`)
		mustExec(t, db, `INSERT INTO transcript_word VALUES (3, 20, 'later', 0, 300, 'others', 0)`)
	})

	words, err := s.TranscriptWords(context.Background(), testWindow(), WordFilter{})
	require.NoError(t, err)
	require.Len(t, words, 3, "both encodings must be found by one range query")

	assert.Equal(t, "hello", words[0].Word)
	assert.Equal(t, "world", words[1].Word)
	assert.Equal(t, time.Date(2023, 5, 11, 13, 5, 0, 500000000, time.UTC), words[1].AbsoluteTime())
	assert.Equal(t, "later", words[2].Word)
	assert.Equal(t, time.Date(2023, 5, 11, 14, 30, 0, 0, time.UTC), words[2].AudioStart)
}

func TestTranscriptWordsSpeechSourceFilter(t *testing.T) {
	msStart := time.Date(2023, 5, 11, 13, 5, 0, 0, time.UTC).UnixMilli()

	s := newTestStore(t, func(db *sql.DB) {
		mustExec(t, db, `INSERT INTO audio VALUES (1, 10, NULL, ?, 60000)`, msStart)
		mustExec(t, db, `INSERT INTO transcript_word VALUES (1, 10, 'mine', 0, 400, 'me', 0)`)
		mustExec(t, db, `INSERT INTO transcript_word VALUES (2, 10, 'theirs', 500, 400, 'others', 5)`)
	})

	words, err := s.TranscriptWords(context.Background(), testWindow(), WordFilter{SpeechSource: "others"})
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "theirs", words[0].Word)
}

func TestSegmentsOverlapSemantics(t *testing.T) {
	w := testWindow()
	s := newTestStore(t, func(db *sql.DB) {
		// Starts before the window, ends inside it.
		mustExec(t, db, `INSERT INTO segment VALUES (1, ?, ?, 'com.apple.Safari', 'Docs', NULL)`,
			w.Start.Add(-time.Hour).UnixMilli(), w.Start.Add(30*time.Minute).UnixMilli())
		// Fully inside, ISO encoding.
		mustExec(t, db, `INSERT INTO segment VALUES (2, '2023-05-11T14:00:00.000', '2023-05-11T15:00:00.000', 'com.microsoft.VSCode', 'main.go', NULL)`)
		// Spans the entire window.
		mustExec(t, db, `INSERT INTO segment VALUES (3, ?, ?, 'us.zoom.xos', 'Standup', NULL)`,
			w.Start.Add(-time.Hour).UnixMilli(), w.End.Add(time.Hour).UnixMilli())
		// Entirely before the window.
		mustExec(t, db, `INSERT INTO segment VALUES (4, ?, ?, 'com.apple.Mail', 'Inbox', NULL)`,
			w.Start.Add(-3*time.Hour).UnixMilli(), w.Start.Add(-2*time.Hour).UnixMilli())
	})

	segments, err := s.Segments(context.Background(), w, SegmentFilter{})
	require.NoError(t, err)
	require.Len(t, segments, 3)

	apps := []string{segments[0].App, segments[1].App, segments[2].App}
	assert.NotContains(t, apps, "com.apple.Mail")
}

func TestSegmentsAppFilterIsCaseInsensitive(t *testing.T) {
	w := testWindow()
	s := newTestStore(t, func(db *sql.DB) {
		mustExec(t, db, `INSERT INTO segment VALUES (1, ?, ?, 'com.apple.Safari', 'Docs', NULL)`,
			w.Start.UnixMilli(), w.End.UnixMilli())
		mustExec(t, db, `INSERT INTO segment VALUES (2, ?, ?, 'us.zoom.xos', 'Standup', NULL)`,
			w.Start.UnixMilli(), w.End.UnixMilli())
	})

	segments, err := s.Segments(context.Background(), w, SegmentFilter{AppContains: "SAFARI"})
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "com.apple.Safari", segments[0].App)
}

func TestFramesStarredAndLimit(t *testing.T) {
	w := testWindow()
	s := newTestStore(t, func(db *sql.DB) {
		mustExec(t, db, `INSERT INTO segment VALUES (10, ?, ?, 'com.apple.Safari', 'Docs', NULL)`,
			w.Start.UnixMilli(), w.End.UnixMilli())
		for i := 1; i <= 5; i++ {
			starred := 0
			if i == 3 {
				starred = 1
			}
			mustExec(t, db, `INSERT INTO frame VALUES (?, 10, ?, ?, ?)`,
				i, w.Start.Add(time.Duration(i)*time.Minute).UnixMilli(),
				fmt.Sprintf("202305/11/chunk-%d", i), starred)
		}
	})

	frames, err := s.Frames(context.Background(), w, FrameFilter{StarredOnly: true})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Starred)
	assert.Equal(t, int64(3), frames[0].ID)

	frames, err = s.Frames(context.Background(), w, FrameFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, frames, 2)
}

func TestFrameByID(t *testing.T) {
	w := testWindow()
	s := newTestStore(t, func(db *sql.DB) {
		mustExec(t, db, `INSERT INTO segment VALUES (10, ?, ?, 'com.apple.Safari', 'Docs', NULL)`,
			w.Start.UnixMilli(), w.End.UnixMilli())
		mustExec(t, db, `INSERT INTO frame VALUES (7, 10, ?, '202305/11/chunk-7', 0)`,
			w.Start.UnixMilli())
	})

	frame, err := s.FrameByID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, "com.apple.Safari", frame.App)

	missing, err := s.FrameByID(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, missing, "missing frame is an empty result, not an error")
}

func TestNodesOrderedByOrderIndex(t *testing.T) {
	s := newTestStore(t, func(db *sql.DB) {
		mustExec(t, db, `INSERT INTO node VALUES (1, 7, 2, 10, 5, 0, 0, 10, 10)`)
		mustExec(t, db, `INSERT INTO node VALUES (2, 7, 0, 0, 5, 0, 0, 10, 10)`)
		mustExec(t, db, `INSERT INTO node VALUES (3, 7, 1, 5, 5, 0, 0, 10, 10)`)
		mustExec(t, db, `INSERT INTO node VALUES (4, 8, 0, 0, 5, 0, 0, 10, 10)`)
	})

	nodes, err := s.Nodes(context.Background(), []int64{7})
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, []int64{0, 1, 2}, []int64{nodes[0].OrderIndex, nodes[1].OrderIndex, nodes[2].OrderIndex})
}

func TestOCRBlocksMatching(t *testing.T) {
	w := testWindow()
	s := newTestStore(t, func(db *sql.DB) {
		mustExec(t, db, `INSERT INTO segment VALUES (10, ?, ?, 'com.apple.Safari', 'Docs', NULL)`,
			w.Start.UnixMilli(), w.End.UnixMilli())
		mustExec(t, db, `INSERT INTO frame VALUES (1, 10, ?, 'f1', 0)`, w.Start.Add(time.Minute).UnixMilli())
		mustExec(t, db, `INSERT INTO frame VALUES (2, 10, ?, 'f2', 0)`, w.Start.Add(-2*time.Hour).UnixMilli())
		mustExec(t, db, `INSERT INTO searchRanking_content VALUES (1, 'quarterly planning Meeting notes', '13:01', 'Safari')`)
		mustExec(t, db, `INSERT INTO searchRanking_content VALUES (2, 'meeting agenda from yesterday', '11:00', 'Safari')`)
		mustExec(t, db, `INSERT INTO searchRanking_content VALUES (3, 'unrelated text', '13:02', 'Safari')`)
	})

	blocks, err := s.OCRBlocksMatching(context.Background(), w, "MEETING", 10)
	require.NoError(t, err)
	require.Len(t, blocks, 1, "frame outside the window must be excluded")
	assert.Equal(t, int64(1), blocks[0].ID)
}

func TestOCRBlocksFallBackToSearchIndex(t *testing.T) {
	s := newTestStore(t, func(db *sql.DB) {
		mustExec(t, db, `INSERT INTO searchRanking_content VALUES (1, 'ranked text', '13:01', 'Safari')`)
		mustExec(t, db, `INSERT INTO searchRanking_content VALUES (2, '', '13:02', 'Safari')`)
		mustExec(t, db, `INSERT INTO search_content VALUES (2, 'indexed text', NULL)`)
		mustExec(t, db, `INSERT INTO search_content VALUES (3, NULL, 'window chrome text')`)
	})

	blocks, err := s.OCRBlocks(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	byID := map[int64]OCRTextBlock{}
	for _, b := range blocks {
		byID[b.ID] = b
	}
	assert.Equal(t, "ranked text", byID[1].Text)
	assert.False(t, byID[1].Raw)
	assert.Equal(t, "indexed text", byID[2].Text, "empty ranking text must be replaced from the search index")
	assert.True(t, byID[2].Raw)
	assert.Equal(t, "window chrome text", byID[3].Text, "c1otherText covers rows without primary text")
	assert.True(t, byID[3].Raw)
}

func TestOCRBlocksMatchingFallsBackToSearchIndex(t *testing.T) {
	w := testWindow()
	s := newTestStore(t, func(db *sql.DB) {
		mustExec(t, db, `INSERT INTO segment VALUES (10, ?, ?, 'com.apple.Safari', 'Docs', NULL)`,
			w.Start.UnixMilli(), w.End.UnixMilli())
		mustExec(t, db, `INSERT INTO frame VALUES (1, 10, ?, 'f1', 0)`, w.Start.Add(time.Minute).UnixMilli())
		mustExec(t, db, `INSERT INTO searchRanking_content VALUES (1, 'nothing relevant here', '13:01', 'Safari')`)
		mustExec(t, db, `INSERT INTO search_content VALUES (1, 'budget review spreadsheet', NULL)`)
	})

	blocks, err := s.OCRBlocksMatching(context.Background(), w, "budget", 10)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, int64(1), blocks[0].ID)
	assert.Equal(t, "budget review spreadsheet", blocks[0].Text)
	assert.True(t, blocks[0].Raw)
}

func TestEventsSegmentLinkOptional(t *testing.T) {
	w := testWindow()
	s := newTestStore(t, func(db *sql.DB) {
		mustExec(t, db, `INSERT INTO event VALUES (1, 'Standup', ?, ?, 'Zoom', NULL, 'Work', 10)`,
			w.Start.Add(time.Hour).UnixMilli(), w.Start.Add(90*time.Minute).UnixMilli())
		mustExec(t, db, `INSERT INTO event VALUES (2, '1:1', ?, ?, NULL, NULL, 'Work', NULL)`,
			w.Start.Add(2*time.Hour).UnixMilli(), w.Start.Add(150*time.Minute).UnixMilli())
	})

	events, err := s.Events(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(10), events[0].SegmentID)
	assert.Zero(t, events[1].SegmentID, "absent segment link scans as zero")
}

func TestTableStats(t *testing.T) {
	w := testWindow()
	s := newTestStore(t, func(db *sql.DB) {
		mustExec(t, db, `INSERT INTO segment VALUES (10, ?, ?, 'com.apple.Safari', 'Docs', NULL)`,
			w.Start.UnixMilli(), w.End.UnixMilli())
		mustExec(t, db, `INSERT INTO audio VALUES (1, 10, NULL, ?, 60000)`, w.Start.UnixMilli())
		mustExec(t, db, `INSERT INTO transcript_word VALUES (1, 10, 'hello', 0, 400, 'me', 0)`)
		mustExec(t, db, `INSERT INTO frame VALUES (1, 10, ?, 'f1', 0)`, w.Start.UnixMilli())
		mustExec(t, db, `INSERT INTO node VALUES (1, 1, 0, 0, 5, 0, 0, 10, 10)`)
	})

	stats, err := s.TableStats(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Segments)
	assert.Equal(t, int64(1), stats.AudioRecordings)
	assert.Equal(t, int64(1), stats.TranscriptWords)
	assert.Equal(t, int64(1), stats.Frames)
	assert.Equal(t, int64(1), stats.Nodes)
	assert.Equal(t, int64(0), stats.Events)
}

func TestEmptyWindowIsEmptyResultNotError(t *testing.T) {
	s := newTestStore(t, nil)

	words, err := s.TranscriptWords(context.Background(), testWindow(), WordFilter{})
	require.NoError(t, err)
	assert.Empty(t, words)

	segments, err := s.Segments(context.Background(), testWindow(), SegmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, segments)
}
