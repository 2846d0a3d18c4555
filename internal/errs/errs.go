// Package errs defines the error taxonomy shared by the matching, suggestion
// and linking layers. Each type survives eris wrapping and is detected with
// errors.As through the Is* predicates.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed configuration or input, such as a
// threshold out of range or missing provenance fields. Never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// Validation returns a ValidationError for field.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced entity, orphan or suggestion that does
// not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// NotFound returns a NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports a lost race on a concurrent merge or link. Callers
// should re-fetch state and retry the whole operation.
type ConflictError struct {
	Resource string
	ID       string
	Msg      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %q: %s", e.Resource, e.ID, e.Msg)
}

// Conflict returns a ConflictError.
func Conflict(resource, id, msg string) error {
	return &ConflictError{Resource: resource, ID: id, Msg: msg}
}

// PartialResultError reports a matching run that was cut off before the whole
// candidate pool was scanned. The results collected so far are returned next
// to the error, never in place of it.
type PartialResultError struct {
	Scanned int
	Total   int
	Err     error
}

func (e *PartialResultError) Error() string {
	return fmt.Sprintf("partial result: scanned %d of %d candidates: %v", e.Scanned, e.Total, e.Err)
}

func (e *PartialResultError) Unwrap() error {
	return e.Err
}

// Partial returns a PartialResultError.
func Partial(scanned, total int, cause error) error {
	return &PartialResultError{Scanned: scanned, Total: total, Err: cause}
}

// StoreUnavailableError reports an I/O failure in the underlying store. It is
// propagated as-is; retry policy belongs to the caller.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable returns a StoreUnavailableError wrapping cause.
func Unavailable(op string, cause error) error {
	return &StoreUnavailableError{Op: op, Err: cause}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err carries a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsPartial reports whether err carries a PartialResultError.
func IsPartial(err error) bool {
	var target *PartialResultError
	return errors.As(err, &target)
}

// IsStoreUnavailable reports whether err carries a StoreUnavailableError.
func IsStoreUnavailable(err error) bool {
	var target *StoreUnavailableError
	return errors.As(err, &target)
}
