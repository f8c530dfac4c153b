// Package store provides read-only access to the SQLCipher-encrypted
// activity database. Every row leaves this package as a typed struct; the
// dual timestamp encodings (epoch milliseconds and ISO-8601 strings) are
// normalized at scan time and never escape.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4"
	"go.uber.org/zap"

	"github.com/recallkit/recall-engine/pkg/apperrors"
	"github.com/recallkit/recall-engine/pkg/logging"
	"github.com/recallkit/recall-engine/pkg/timeutil"
)

// Store is a scoped handle on the activity database. One Store is opened
// per operation and closed on every exit path; it is not shared across
// calls.
type Store struct {
	db     *sql.DB
	loc    *time.Location
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLocation sets the location used to interpret zone-less ISO timestamps.
// Defaults to the process-local zone, which is what the recorder writes.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// Open connects to the encrypted database at path, unlocking it with key.
// A missing file, a bad key, or a corrupt header all surface as
// ErrStoreUnavailable; none of these resolve by retrying.
func Open(path, key string, logger *zap.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: activity database not found at %s", apperrors.ErrStoreUnavailable, path)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma_key=%s&_pragma_cipher_compatibility=4",
		path, url.QueryEscape(key))

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrStoreUnavailable, logging.SanitizeError(err))
	}

	// The key pragma is only validated on first read. Probe sqlite_master
	// so a wrong key fails here instead of deep inside a range query.
	var tables int
	if err := db.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&tables); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: cannot unlock database (wrong key?): %s",
			apperrors.ErrStoreUnavailable, logging.SanitizeError(err))
	}

	logger.Debug("activity store opened",
		zap.String("path", path),
		zap.Int("tables", tables))

	s := &Store{db: db, loc: time.Local, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Location returns the location used for zone-less store timestamps.
func (s *Store) Location() *time.Location { return s.loc }

// timeRangePredicate builds the range condition for a column whose encoding
// is unknown ahead of time. The store cannot cast between its two encodings
// inside a query, so the predicate is two ORed sub-predicates, one per
// encoding.
func (s *Store) timeRangePredicate(col string, w timeutil.Window) (string, []any) {
	cond := fmt.Sprintf("(%s BETWEEN ? AND ? OR %s BETWEEN ? AND ?)", col, col)
	args := []any{
		timeutil.FromInstant(w.Start, timeutil.EncodingEpochMillis, s.loc),
		timeutil.FromInstant(w.End, timeutil.EncodingEpochMillis, s.loc),
		timeutil.FromInstant(w.Start, timeutil.EncodingISO8601, s.loc),
		timeutil.FromInstant(w.End, timeutil.EncodingISO8601, s.loc),
	}
	return cond, args
}

// overlapPredicate matches intervals [startCol, endCol] that intersect the
// window: either bound inside it, or the interval spanning it entirely.
func (s *Store) overlapPredicate(startCol, endCol string, w timeutil.Window) (string, []any) {
	startIn, startArgs := s.timeRangePredicate(startCol, w)
	endIn, endArgs := s.timeRangePredicate(endCol, w)

	spans := fmt.Sprintf("((%s <= ? AND %s >= ?) OR (%s <= ? AND %s >= ?))",
		startCol, endCol, startCol, endCol)
	spanArgs := []any{
		timeutil.FromInstant(w.Start, timeutil.EncodingEpochMillis, s.loc),
		timeutil.FromInstant(w.End, timeutil.EncodingEpochMillis, s.loc),
		timeutil.FromInstant(w.Start, timeutil.EncodingISO8601, s.loc),
		timeutil.FromInstant(w.End, timeutil.EncodingISO8601, s.loc),
	}

	cond := fmt.Sprintf("(%s OR %s OR %s)", startIn, endIn, spans)
	args := append(append(startArgs, endArgs...), spanArgs...)
	return cond, args
}

// scanInstant converts a raw scanned timestamp (int64, string, or []byte
// depending on column affinity) into an instant.
func (s *Store) scanInstant(raw any) (time.Time, error) {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	return timeutil.ToInstant(raw, s.loc)
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
