package model

import (
	"errors"
	"fmt"
)

// InputError is a fatal, never-retried problem with what the user supplied.
// Slug is a stable identifier for the class of problem.
type InputError struct {
	Slug    string
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// InputErrorf builds an InputError with a formatted message
func InputErrorf(slug, format string, args ...any) error {
	return &InputError{Slug: slug, Message: fmt.Sprintf(format, args...)}
}

// IsInputError reports whether err (or anything it wraps) is an InputError
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// ReportedError is a failure the user was already told about. The command
// layer exits non-zero without printing it again.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string {
	return e.Err.Error()
}

func (e *ReportedError) Unwrap() error {
	return e.Err
}
