package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrLocked   = errors.New("movement is locked")
)

// ValidationError is a local, pre-submission failure tied to one form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidationErrors collects every failing field of a form.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, len(es))
	for i := range es {
		parts[i] = es[i].Error()
	}
	return strings.Join(parts, "; ")
}

// As lets errors.As find the first field error.
func (es ValidationErrors) As(target any) bool {
	if t, ok := target.(**ValidationError); ok && len(es) > 0 {
		e := es[0]
		*t = &e
		return true
	}
	return false
}

// Field returns the message for field, or "".
func (es ValidationErrors) Field(field string) string {
	for _, e := range es {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

// OrNil returns nil when the collection is empty.
func (es ValidationErrors) OrNil() error {
	if len(es) == 0 {
		return nil
	}
	return es
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// LockedRecordError is returned when an edit or delete targets a movement that
// is part of a submitted reconciliation.
type LockedRecordError struct {
	MovementID string
	Operation  string
}

func (e *LockedRecordError) Error() string {
	return fmt.Sprintf("cannot %s movement %s: included in a reconciliation under review", e.Operation, e.MovementID)
}

func (e *LockedRecordError) Is(target error) bool {
	return target == ErrLocked
}

// TransportError wraps network and authentication failures. It is surfaced as
// a retryable notification; nothing retries automatically.
type TransportError struct {
	Operation  string
	StatusCode int
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	msg := "transport error during " + e.Operation
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable is false for rejections the user cannot fix by retrying.
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == 429
}

// PartialTransferFailure reports a transfer where one leg was accepted and
// the other rejected. The ledger is knowingly inconsistent until someone
// reconciles it by hand.
type PartialTransferFailure struct {
	AcceptedLeg MovementType
	AcceptedID  string
	RejectedLeg MovementType
	LinkID      string
	Cause       error
}

func (e *PartialTransferFailure) Error() string {
	msg := fmt.Sprintf("partial transfer %s: %s leg %s accepted, %s leg rejected",
		e.LinkID, e.AcceptedLeg, e.AcceptedID, e.RejectedLeg)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PartialTransferFailure) Unwrap() error { return e.Cause }
