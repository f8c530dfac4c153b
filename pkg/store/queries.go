package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/recallkit/recall-engine/pkg/apperrors"
	"github.com/recallkit/recall-engine/pkg/timeutil"
)

// Segments returns application usage segments overlapping the window,
// ordered by start time.
func (s *Store) Segments(ctx context.Context, w timeutil.Window, f SegmentFilter) ([]Segment, error) {
	cond, args := s.overlapPredicate("startDate", "endDate", w)
	query := `
		SELECT id, startDate, endDate, bundleID, windowName, browserUrl
		FROM segment
		WHERE ` + cond
	if f.AppContains != "" {
		query += " AND INSTR(LOWER(bundleID), ?) > 0"
		args = append(args, strings.ToLower(f.AppContains))
	}
	query += " ORDER BY startDate"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryError("segment", "select", err)
	}
	defer rows.Close()

	var out []Segment
	for rows.Next() {
		var (
			seg                  Segment
			rawStart, rawEnd     any
			app, win, browserURL sql.NullString
		)
		if err := rows.Scan(&seg.ID, &rawStart, &rawEnd, &app, &win, &browserURL); err != nil {
			return nil, apperrors.NewQueryError("segment", "scan", err)
		}
		if seg.Start, err = s.scanInstant(rawStart); err != nil {
			return nil, apperrors.NewQueryError("segment", "scan", err)
		}
		if seg.End, err = s.scanInstant(rawEnd); err != nil {
			return nil, apperrors.NewQueryError("segment", "scan", err)
		}
		seg.App = app.String
		seg.Window = win.String
		seg.BrowserURL = browserURL.String
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryError("segment", "iterate", err)
	}
	return out, nil
}

// TranscriptWords returns transcribed words whose recording starts inside
// the window, joined with recording metadata and ordered by recording start
// then time offset. That ordering is the only way to reconstruct continuous
// speech, so it is enforced here rather than left to callers.
func (s *Store) TranscriptWords(ctx context.Context, w timeutil.Window, f WordFilter) ([]TranscriptWord, error) {
	cond, args := s.timeRangePredicate("a.startTime", w)
	query := `
		SELECT
			a.id, a.segmentId, a.startTime, a.duration,
			tw.id, tw.word, tw.timeOffset, tw.duration, tw.speechSource, tw.textOffset,
			s.bundleID
		FROM audio a
		JOIN transcript_word tw ON a.segmentId = tw.segmentId
		LEFT JOIN segment s ON a.segmentId = s.id
		WHERE ` + cond
	if f.SpeechSource != "" {
		query += " AND tw.speechSource = ?"
		args = append(args, f.SpeechSource)
	}
	query += " ORDER BY a.startTime, tw.timeOffset"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryError("transcript_word", "select", err)
	}
	defer rows.Close()

	var out []TranscriptWord
	for rows.Next() {
		var (
			word     TranscriptWord
			rawStart any
			source   sql.NullString
			textOff  sql.NullInt64
			app      sql.NullString
		)
		if err := rows.Scan(
			&word.AudioID, &word.SegmentID, &rawStart, &word.AudioDurationMS,
			&word.ID, &word.Word, &word.TimeOffsetMS, &word.DurationMS, &source, &textOff,
			&app,
		); err != nil {
			return nil, apperrors.NewQueryError("transcript_word", "scan", err)
		}
		if word.AudioStart, err = s.scanInstant(rawStart); err != nil {
			return nil, apperrors.NewQueryError("transcript_word", "scan", err)
		}
		word.SpeechSource = source.String
		word.TextOffset = textOff.Int64
		word.App = app.String
		out = append(out, word)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryError("transcript_word", "iterate", err)
	}
	return out, nil
}

// AudioRecordings returns audio sessions starting inside the window.
func (s *Store) AudioRecordings(ctx context.Context, w timeutil.Window) ([]AudioRecording, error) {
	cond, args := s.timeRangePredicate("startTime", w)
	query := `
		SELECT id, segmentId, path, startTime, duration
		FROM audio
		WHERE ` + cond + `
		ORDER BY startTime`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryError("audio", "select", err)
	}
	defer rows.Close()

	var out []AudioRecording
	for rows.Next() {
		var (
			rec      AudioRecording
			rawStart any
			path     sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.SegmentID, &path, &rawStart, &rec.DurationMS); err != nil {
			return nil, apperrors.NewQueryError("audio", "scan", err)
		}
		if rec.Start, err = s.scanInstant(rawStart); err != nil {
			return nil, apperrors.NewQueryError("audio", "scan", err)
		}
		rec.Path = path.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryError("audio", "iterate", err)
	}
	return out, nil
}

// Frames returns screen captures inside the window joined with their owning
// segment, ordered by creation time.
func (s *Store) Frames(ctx context.Context, w timeutil.Window, f FrameFilter) ([]Frame, error) {
	cond, args := s.timeRangePredicate("f.createdAt", w)
	query := `
		SELECT f.id, f.createdAt, f.segmentId, f.imageFileName, f.isStarred,
		       s.bundleID, s.windowName
		FROM frame f
		JOIN segment s ON f.segmentId = s.id
		WHERE ` + cond
	if f.AppContains != "" {
		query += " AND INSTR(LOWER(s.bundleID), ?) > 0"
		args = append(args, strings.ToLower(f.AppContains))
	}
	if f.StarredOnly {
		query += " AND f.isStarred = 1"
	}
	query += " ORDER BY f.createdAt"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryError("frame", "select", err)
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		frame, err := s.scanFrame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *frame)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryError("frame", "iterate", err)
	}
	return out, nil
}

// FrameByID returns one frame, or nil when it does not exist.
func (s *Store) FrameByID(ctx context.Context, id int64) (*Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.createdAt, f.segmentId, f.imageFileName, f.isStarred,
		       s.bundleID, s.windowName
		FROM frame f
		LEFT JOIN segment s ON f.segmentId = s.id
		WHERE f.id = ?`, id)
	if err != nil {
		return nil, apperrors.NewQueryError("frame", "select", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, apperrors.NewQueryError("frame", "iterate", err)
		}
		return nil, nil
	}
	return s.scanFrame(rows)
}

func (s *Store) scanFrame(rows *sql.Rows) (*Frame, error) {
	var (
		frame      Frame
		rawCreated any
		image      sql.NullString
		starred    sql.NullInt64
		app, win   sql.NullString
	)
	if err := rows.Scan(&frame.ID, &rawCreated, &frame.SegmentID, &image, &starred, &app, &win); err != nil {
		return nil, apperrors.NewQueryError("frame", "scan", err)
	}
	created, err := s.scanInstant(rawCreated)
	if err != nil {
		return nil, apperrors.NewQueryError("frame", "scan", err)
	}
	frame.CreatedAt = created
	frame.ImageFileName = image.String
	frame.Starred = starred.Int64 != 0
	frame.App = app.String
	frame.Window = win.String
	return &frame, nil
}

// Nodes returns the OCR fragments for the given frames, ordered by frame
// then order index.
func (s *Store) Nodes(ctx context.Context, frameIDs []int64) ([]Node, error) {
	if len(frameIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(frameIDs))
	for i, id := range frameIDs {
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT id, frameId, orderIndex, textOffset, textLength,
		       leftX, topY, width, height
		FROM node
		WHERE frameId IN (%s)
		ORDER BY frameId, orderIndex`, placeholders(len(frameIDs)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryError("node", "select", err)
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.FrameID, &n.OrderIndex, &n.TextOffset, &n.TextLength,
			&n.Left, &n.Top, &n.Width, &n.Height); err != nil {
			return nil, apperrors.NewQueryError("node", "scan", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryError("node", "iterate", err)
	}
	return out, nil
}

// OCRBlocks returns the full-text OCR blocks for the given frame ids. The
// ranking table is consulted first; frames it has no usable text for are
// retried against the secondary search index, whose rows come back with
// Raw set.
func (s *Store) OCRBlocks(ctx context.Context, ids []int64) ([]OCRTextBlock, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT id, c0, c1, c2
		FROM searchRanking_content
		WHERE id IN (%s)
		ORDER BY id`, placeholders(len(ids)))

	all, err := s.queryBlocks(ctx, query, args)
	if err != nil {
		return nil, err
	}

	// Textless ranking rows are dropped here; the retry below covers their
	// frames.
	blocks := all[:0]
	haveText := make(map[int64]bool, len(all))
	for _, b := range all {
		if b.Text != "" {
			blocks = append(blocks, b)
			haveText[b.ID] = true
		}
	}
	var missing []int64
	for _, id := range ids {
		if !haveText[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return blocks, nil
	}

	raw, err := s.rawBlocks(ctx, missing)
	if err != nil {
		return nil, err
	}
	return append(blocks, raw...), nil
}

// rawBlocks reads the secondary search index for frames the ranking table
// has no text for.
func (s *Store) rawBlocks(ctx context.Context, ids []int64) ([]OCRTextBlock, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT docid, c0text, c1otherText
		FROM search_content
		WHERE docid IN (%s)
		ORDER BY docid`, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryError("search_content", "select", err)
	}
	defer rows.Close()

	var out []OCRTextBlock
	for rows.Next() {
		var (
			b           OCRTextBlock
			text, other sql.NullString
		)
		if err := rows.Scan(&b.ID, &text, &other); err != nil {
			return nil, apperrors.NewQueryError("search_content", "scan", err)
		}
		b.Text = text.String
		if b.Text == "" {
			b.Text = other.String
		}
		b.Raw = true
		if b.Text != "" {
			out = append(out, b)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryError("search_content", "iterate", err)
	}
	return out, nil
}

// OCRBlocksMatching returns full-text OCR blocks containing keyword
// (case-insensitive) whose frame falls inside the window. Blocks without a
// joined frame are kept: the frame row may have been pruned while the text
// block survived, and dropping them would silently hide matches. The
// secondary search index is consulted only when the ranking table has no
// matches at all.
func (s *Store) OCRBlocksMatching(ctx context.Context, w timeutil.Window, keyword string, limit int) ([]OCRTextBlock, error) {
	needle := strings.ToLower(keyword)
	cond, condArgs := s.timeRangePredicate("f.createdAt", w)
	query := `
		SELECT src.id, src.c0, src.c1, src.c2
		FROM searchRanking_content src
		LEFT JOIN frame f ON src.id = f.id
		WHERE INSTR(LOWER(src.c0), ?) > 0
		  AND (f.id IS NULL OR ` + cond + `)
		ORDER BY src.id`
	args := append([]any{needle}, condArgs...)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	blocks, err := s.queryBlocks(ctx, query, args)
	if err != nil || len(blocks) > 0 {
		return blocks, err
	}
	return s.rawBlocksMatching(ctx, w, needle, limit)
}

func (s *Store) rawBlocksMatching(ctx context.Context, w timeutil.Window, needle string, limit int) ([]OCRTextBlock, error) {
	cond, condArgs := s.timeRangePredicate("f.createdAt", w)
	query := `
		SELECT sc.docid, sc.c0text, sc.c1otherText
		FROM search_content sc
		LEFT JOIN frame f ON sc.docid = f.id
		WHERE (INSTR(LOWER(sc.c0text), ?) > 0 OR INSTR(LOWER(sc.c1otherText), ?) > 0)
		  AND (f.id IS NULL OR ` + cond + `)
		ORDER BY sc.docid`
	args := append([]any{needle, needle}, condArgs...)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryError("search_content", "select", err)
	}
	defer rows.Close()

	var out []OCRTextBlock
	for rows.Next() {
		var (
			b           OCRTextBlock
			text, other sql.NullString
		)
		if err := rows.Scan(&b.ID, &text, &other); err != nil {
			return nil, apperrors.NewQueryError("search_content", "scan", err)
		}
		b.Text = text.String
		if b.Text == "" {
			b.Text = other.String
		}
		b.Raw = true
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryError("search_content", "iterate", err)
	}
	return out, nil
}

func (s *Store) queryBlocks(ctx context.Context, query string, args []any) ([]OCRTextBlock, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryError("searchRanking_content", "select", err)
	}
	defer rows.Close()

	var out []OCRTextBlock
	for rows.Next() {
		var (
			b             OCRTextBlock
			text, ts, win sql.NullString
		)
		if err := rows.Scan(&b.ID, &text, &ts, &win); err != nil {
			return nil, apperrors.NewQueryError("searchRanking_content", "scan", err)
		}
		b.Text = text.String
		b.TimestampInfo = ts.String
		b.WindowInfo = win.String
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryError("searchRanking_content", "iterate", err)
	}
	return out, nil
}

// Events returns calendar events overlapping the window, ordered by start.
func (s *Store) Events(ctx context.Context, w timeutil.Window) ([]Event, error) {
	cond, args := s.overlapPredicate("startDate", "endDate", w)
	query := `
		SELECT id, title, startDate, endDate, location, notes, calendarName, segmentId
		FROM event
		WHERE ` + cond + `
		ORDER BY startDate`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryError("event", "select", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev                               Event
			rawStart, rawEnd                 any
			title, location, notes, calendar sql.NullString
			segmentID                        sql.NullInt64
		)
		if err := rows.Scan(&ev.ID, &title, &rawStart, &rawEnd, &location, &notes, &calendar, &segmentID); err != nil {
			return nil, apperrors.NewQueryError("event", "scan", err)
		}
		if ev.Start, err = s.scanInstant(rawStart); err != nil {
			return nil, apperrors.NewQueryError("event", "scan", err)
		}
		if ev.End, err = s.scanInstant(rawEnd); err != nil {
			return nil, apperrors.NewQueryError("event", "scan", err)
		}
		ev.Title = title.String
		ev.Location = location.String
		ev.Notes = notes.String
		ev.Calendar = calendar.String
		ev.SegmentID = segmentID.Int64
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryError("event", "iterate", err)
	}
	return out, nil
}

// TableStats returns record counts per table for the window.
func (s *Store) TableStats(ctx context.Context, w timeutil.Window) (*Stats, error) {
	stats := &Stats{}

	segCond, segArgs := s.overlapPredicate("startDate", "endDate", w)
	if err := s.countInto(ctx, "segment",
		"SELECT COUNT(*) FROM segment WHERE "+segCond, segArgs, &stats.Segments); err != nil {
		return nil, err
	}

	audioCond, audioArgs := s.timeRangePredicate("startTime", w)
	if err := s.countInto(ctx, "audio",
		"SELECT COUNT(*) FROM audio WHERE "+audioCond, audioArgs, &stats.AudioRecordings); err != nil {
		return nil, err
	}

	wordCond, wordArgs := s.timeRangePredicate("a.startTime", w)
	if err := s.countInto(ctx, "transcript_word",
		`SELECT COUNT(*) FROM transcript_word tw
		 JOIN audio a ON tw.segmentId = a.segmentId
		 WHERE `+wordCond, wordArgs, &stats.TranscriptWords); err != nil {
		return nil, err
	}

	frameCond, frameArgs := s.timeRangePredicate("createdAt", w)
	if err := s.countInto(ctx, "frame",
		"SELECT COUNT(*) FROM frame WHERE "+frameCond, frameArgs, &stats.Frames); err != nil {
		return nil, err
	}

	nodeCond, nodeArgs := s.timeRangePredicate("f.createdAt", w)
	if err := s.countInto(ctx, "node",
		`SELECT COUNT(*) FROM node n
		 JOIN frame f ON n.frameId = f.id
		 WHERE `+nodeCond, nodeArgs, &stats.Nodes); err != nil {
		return nil, err
	}

	evCond, evArgs := s.overlapPredicate("startDate", "endDate", w)
	if err := s.countInto(ctx, "event",
		"SELECT COUNT(*) FROM event WHERE "+evCond, evArgs, &stats.Events); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *Store) countInto(ctx context.Context, table, query string, args []any, dst *int64) error {
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(dst); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			*dst = 0
			return nil
		}
		return apperrors.NewQueryError(table, "count", err)
	}
	return nil
}
