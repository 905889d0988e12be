package engine

import (
	"errors"
	"fmt"
)

// Errors returned by controller operations.
var (
	// ErrStaleBatch indicates a batch computed against an older revision
	// was rejected under StalePolicyReject.
	ErrStaleBatch = errors.New("command batch is stale")

	// ErrNoSelection indicates an operation that needs a selected line
	// was called with no caret, or the caret's line no longer exists.
	ErrNoSelection = errors.New("no line selected")

	// ErrLineNotFound indicates a line id that is not in the document.
	ErrLineNotFound = errors.New("line not found")

	// ErrNoPersistence indicates a persistence operation on a controller
	// configured without a persistence service.
	ErrNoPersistence = errors.New("no persistence service configured")
)

// OperationError wraps a failure with the controller operation and the
// source that requested it.
type OperationError struct {
	Op     string // apply, cycle-format, save, submit-edits, open
	Source string // human, ai, system
	Err    error
}

func (e *OperationError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
