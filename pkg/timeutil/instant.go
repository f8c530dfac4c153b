package timeutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/recallkit/recall-engine/pkg/apperrors"
)

// Encoding identifies one of the two timestamp representations found in the
// activity store: integer milliseconds since the epoch, or an ISO-8601
// string without a zone designator. Which encoding a column uses varies per
// table and per recorder version, so both must be handled everywhere.
type Encoding int

const (
	EncodingEpochMillis Encoding = iota
	EncodingISO8601
)

func (e Encoding) String() string {
	switch e {
	case EncodingEpochMillis:
		return "epoch-millis"
	case EncodingISO8601:
		return "iso8601"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// isoMillis is the canonical store string form: second fraction always
// present at millisecond precision, no zone designator.
const isoMillis = "2006-01-02T15:04:05.000"

// storeStringLayouts tolerate the variations the recorder has written over
// time: missing fraction, occasional space separator.
var storeStringLayouts = []string{
	isoMillis,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
}

// EncodingOf detects the representation of a raw store value.
func EncodingOf(raw any) (Encoding, error) {
	switch raw.(type) {
	case int, int32, int64, float64:
		return EncodingEpochMillis, nil
	case string:
		return EncodingISO8601, nil
	default:
		return 0, fmt.Errorf("unsupported timestamp type %T", raw)
	}
}

// ToInstant converts a raw store timestamp into a timezone-aware instant.
// Numeric values are epoch milliseconds; strings are ISO-8601, interpreted
// in loc when no zone designator is present.
func ToInstant(raw any, loc *time.Location) (time.Time, error) {
	switch v := raw.(type) {
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	case int32:
		return time.UnixMilli(int64(v)).UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	case string:
		s := strings.TrimSpace(v)
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, nil
		}
		for _, layout := range storeStringLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: unparseable store timestamp %q", apperrors.ErrInvalidTimeExpression, v)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", raw)
	}
}

// FromInstant encodes an instant back into the representation a given
// column uses, for building query predicates. Round-tripping through
// ToInstant reproduces the original value to millisecond precision.
func FromInstant(t time.Time, enc Encoding, loc *time.Location) any {
	switch enc {
	case EncodingISO8601:
		return t.In(loc).Format(isoMillis)
	default:
		return t.UnixMilli()
	}
}
