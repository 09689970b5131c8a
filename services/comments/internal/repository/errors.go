package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any store call.
	ErrValidation = errors.New("validation failed")
	// ErrStoreUnavailable marks a failure talking to the comment store.
	ErrStoreUnavailable = errors.New("comment store unavailable")
	// ErrNotFound marks an edit or delete of an id the store no longer has.
	ErrNotFound = errors.New("comment not found")
)

// ValidationError names the offending field. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UserMessage is the transient notice shown for err. Not-found is reported
// like an unreachable store because the usual cause is a stale view.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr) && verr.Field == "text":
		return "Comment text must not be empty."
	case errors.Is(err, ErrValidation):
		return "Please check your input and try again."
	default:
		return "Something went wrong while saving. Please try again."
	}
}
