package command

import (
	"errors"
	"fmt"
)

// Validation failure reasons. A *ValidationError wraps exactly one of these.
var (
	// ErrUnknownType indicates a command type other than ADD, EDIT, or DELETE.
	ErrUnknownType = errors.New("unknown command type")

	// ErrNegativePosition indicates an ADD with a position below zero.
	ErrNegativePosition = errors.New("negative position")

	// ErrPositionOutOfRange indicates an EDIT or DELETE outside [1, length].
	ErrPositionOutOfRange = errors.New("position out of range")

	// ErrMissingValue indicates an ADD or EDIT without a value.
	ErrMissingValue = errors.New("missing value")

	// ErrUnknownTag indicates an explicit format tag outside the vocabulary.
	ErrUnknownTag = errors.New("unknown format tag")
)

// ErrMalformedBatch indicates a command batch that could not be decoded.
var ErrMalformedBatch = errors.New("malformed command batch")

// ValidationError identifies the first command in a batch that failed
// validation. No command of the batch has been applied.
type ValidationError struct {
	// Index is the 0-based index of the offending command.
	Index   int
	Command Command
	// Length is the running document length the command was checked against.
	Length int
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("command %d (%s): %v (document has %d lines)", e.Index+1, e.Command, e.Err, e.Length)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
