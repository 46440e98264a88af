// Package etlerr defines the error taxonomy shared by the discovery, extract
// and load stages. Every type wraps an underlying cause (when there is one) so
// callers can use errors.As for the category and errors.Is for the cause.
//
// Errors are never retried or swallowed inside the pipeline: they propagate to
// the runner, which stops the run on the first one.
package etlerr

import (
	"errors"
	"fmt"
)

// DiscoveryError reports a data root that does not exist, is not a directory,
// or cannot be walked.
type DiscoveryError struct {
	Root string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s: %v", e.Root, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// MalformedRecordError reports input that is not valid JSON, a JSON value of
// the wrong type, or a song file that does not contain exactly one record.
// Line is 1-based; 0 means the error is not tied to a single line.
type MalformedRecordError struct {
	Path string
	Line int
	Err  error
}

func (e *MalformedRecordError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed record %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("malformed record %s: %v", e.Path, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// MissingFieldError reports a required field that is absent or null.
type MissingFieldError struct {
	Path  string
	Line  int
	Field string
}

func (e *MissingFieldError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("missing field %q in %s:%d", e.Field, e.Path, e.Line)
	}
	return fmt.Sprintf("missing field %q in %s", e.Field, e.Path)
}

// ConstraintViolationError reports a write rejected by a foreign key, NOT NULL
// or uniqueness constraint, or a record that lacks a required key before it
// reaches the datastore.
type ConstraintViolationError struct {
	Op  string
	Err error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint violation in %s: %v", e.Op, e.Err)
}

func (e *ConstraintViolationError) Unwrap() error { return e.Err }

// ConnectionError reports a datastore that could not be reached or dropped
// the connection mid-statement.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("datastore connection failed during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ErrNullUserID is the cause attached to a ConstraintViolationError when a
// user or songplay row has no user_id.
var ErrNullUserID = errors.New("user_id is required")

// Kind returns a short, stable label for the category of err, suitable for
// metric labels and log fields. Unknown errors map to "other".
func Kind(err error) string {
	var (
		de *DiscoveryError
		me *MalformedRecordError
		fe *MissingFieldError
		ce *ConstraintViolationError
		ne *ConnectionError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &de):
		return "discovery"
	case errors.As(err, &me):
		return "malformed_record"
	case errors.As(err, &fe):
		return "missing_field"
	case errors.As(err, &ce):
		return "constraint_violation"
	case errors.As(err, &ne):
		return "connection"
	default:
		return "other"
	}
}
