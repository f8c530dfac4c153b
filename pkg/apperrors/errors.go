// Package apperrors defines the error taxonomy shared across recall-engine.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimeExpression reports an unparseable or self-contradictory
	// time input (unknown unit, from > to). Surfaced to the caller
	// immediately, never retried.
	ErrInvalidTimeExpression = errors.New("invalid time expression")

	// ErrStoreUnavailable reports that the activity store could not be
	// opened or unlocked. Fatal per call; retrying does not help.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// QueryError reports an I/O or corruption failure raised mid-read by a
// well-formed query. The originating table is attached for diagnostics.
type QueryError struct {
	Table string
	Op    string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s on table %s failed: %v", e.Op, e.Table, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// NewQueryError wraps err with the table and operation that produced it.
func NewQueryError(table, op string, err error) *QueryError {
	return &QueryError{Table: table, Op: op, Err: err}
}
