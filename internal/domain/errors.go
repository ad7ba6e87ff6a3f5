package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies task and query failures for callers.
type ErrorKind string

const (
	// ErrorKindValidation covers malformed input rows: missing columns,
	// non-numeric values, unparsable timestamps.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindStore covers backing-store failures during reads or writes.
	ErrorKindStore ErrorKind = "store"

	// ErrorKindCanceled covers tasks aborted by context cancellation.
	ErrorKindCanceled ErrorKind = "canceled"
)

var (
	// ErrNoData signals an analytics query that matched zero readings.
	// Absence of data is distinct from a zero-valued result.
	ErrNoData = errors.New("no data for the specified criteria")
)

// TaskError is a classified ingestion failure. Row is 1-based (counting data
// rows, not the header) and zero when the failure is not tied to a row.
type TaskError struct {
	Kind ErrorKind
	Row  int
	Err  error
}

// Error implements the error interface.
// Parameters: none.
// Returns:
//   - string: human-readable message including the row number when known.
func (e *TaskError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
// Parameters: none.
// Returns:
//   - error: underlying cause.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a TaskError of kind validation for a row.
func NewValidationError(row int, err error) *TaskError {
	return &TaskError{Kind: ErrorKindValidation, Row: row, Err: err}
}

// NewStoreError builds a TaskError of kind store for a row.
func NewStoreError(row int, err error) *TaskError {
	return &TaskError{Kind: ErrorKindStore, Row: row, Err: err}
}
