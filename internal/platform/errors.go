package platform

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a run, application or version is absent on the
// platform. User-correctable.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// ValidationError indicates malformed user input: a bad version id, a schema
// violation, an unsupported bucket scheme. User-correctable, raised before any
// network side effect.
type ValidationError struct {
	Message string
	Field   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// TransientError indicates a network or upstream failure that a caller may
// retry. The client itself never retries.
type TransientError struct {
	Op    string
	Cause error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient error during %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("transient error during %s", e.Op)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// IOError indicates a local filesystem failure: missing source file, disk
// full, unwritable destination.
type IOError struct {
	Path    string
	Message string
	Cause   error
}

func (e *IOError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("io error for %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("io error for %s: %s", e.Path, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err classifies as a not-found condition.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err classifies as a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsUserError reports whether err is user-correctable (exit code 2 on the CLI).
func IsUserError(err error) bool {
	return IsNotFound(err) || IsValidation(err)
}
