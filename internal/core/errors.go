package core

import (
	"errors"
	"fmt"
)

// Rule violations reported through ValidationError.
var (
	ErrEmptyLineItems         = errors.New("ticket needs at least one line item")
	ErrInvalidQuantity        = errors.New("line item quantity must be positive")
	ErrInvalidUnitPrice       = errors.New("line item unit price cannot be negative")
	ErrEmptyLabel             = errors.New("line item label is required")
	ErrNoParticipants         = errors.New("shared ticket needs at least one participant")
	ErrNonPositiveAttendance  = errors.New("attendee count must be positive")
	ErrDuplicateParticipant   = errors.New("participant selected more than once")
	ErrNegativeAmount         = errors.New("amount cannot be negative")
	ErrMissingOwner           = errors.New("ticket owner is required")
	ErrParticipantsOnPersonal = errors.New("personal ticket cannot have participants")
	ErrAttendanceTooLarge     = errors.New("total attendee count is too large")
	ErrAmountTooLarge         = errors.New("ticket amount is too large")
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrReportExists signals that a report for the same period and mode
	// is already recorded or being generated.
	ErrReportExists = errors.New("monthly report already exists")
)

// ValidationError carries the rule that rejected an input. It unwraps to
// the rule sentinel so callers can match with errors.Is.
type ValidationError struct {
	Field string
	Rule  error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Rule.Error()
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Rule)
}

func (e *ValidationError) Unwrap() error { return e.Rule }

func invalid(field string, rule error) error {
	return &ValidationError{Field: field, Rule: rule}
}

// StorageError reports a failed read or write against artifact storage.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NotificationFailure records one recipient that could not be notified.
type NotificationFailure struct {
	MemberID string
	Err      error
}

func (f NotificationFailure) Error() string {
	return fmt.Sprintf("notify %s: %v", f.MemberID, f.Err)
}

func (f NotificationFailure) Unwrap() error { return f.Err }

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err is, or wraps, a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
