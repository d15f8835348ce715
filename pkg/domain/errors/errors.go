package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors of the domain layer.
//
// Typed errors elsewhere unwrap to one of these, so callers can branch
// with errors.Is without knowing the concrete type.
var (
	// ErrMissing: a referenced entity or file does not exist.
	ErrMissing = errors.New("missing")

	// ErrConflict: concurrent writers collided and recovery failed.
	ErrConflict = errors.New("conflict")

	// ErrJobDescription: a batch is structurally invalid or absent.
	ErrJobDescription = errors.New("invalid job description")

	// ErrInvalidArgument: a caller-supplied value is out of contract.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRequiresSchemaDrop: a tenancy-root entity was handed to a
	// generic delete; it can only go through the schema-drop path.
	ErrRequiresSchemaDrop = errors.New("requires schema drop")
)

// JobDescription reports a structurally invalid batch description.
//
// Fatal to the calling step. Surfaced to the operator, not retried.
type JobDescription struct {
	Reason string
}

var _ error = JobDescription{}

func (j JobDescription) Error() string {
	return fmt.Sprintf("invalid job description: %s", j.Reason)
}

func (j JobDescription) Unwrap() error {
	return ErrJobDescription
}

// NotFound reports an absent batch or log file.
type NotFound struct {
	Path string
	Hint string
}

var _ error = NotFound{}

func (n NotFound) Error() string {
	if n.Hint == "" {
		return fmt.Sprintf("%s does not exist", n.Path)
	}
	return fmt.Sprintf("%s does not exist. %s", n.Path, n.Hint)
}

func (n NotFound) Unwrap() error {
	return ErrMissing
}

// InvalidArgument reports a caller-supplied value out of contract.
type InvalidArgument struct {
	Name   string
	Reason string
}

var _ error = InvalidArgument{}

func (i InvalidArgument) Error() string {
	return fmt.Sprintf(`argument "%s": %s`, i.Name, i.Reason)
}

func (i InvalidArgument) Unwrap() error {
	return ErrInvalidArgument
}
