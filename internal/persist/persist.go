// Package persist defines the persistence and versioning collaborator the
// document controller talks to, and provides a SQLite implementation.
//
// ApplyEdits applies a command batch to the content the caller holds and
// records a new version only when the batch modified the document. A nil
// EditResult means nothing changed and no version was recorded.
package persist

import (
	"context"
	"errors"

	"github.com/dshills/scriptstorm/internal/engine/command"
)

// Errors returned by persistence operations.
var (
	// ErrNotFound indicates no script is stored under the given id.
	ErrNotFound = errors.New("script not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store closed")
)

// EditResult is the outcome of a modifying edit batch.
type EditResult struct {
	Results []command.Result
	// Content is the new canonical envelope.
	Content string
}

// ScriptInfo describes the stored script after an operation.
type ScriptInfo struct {
	VersionNumber int
}

// EditResponse is returned by ApplyEdits.
type EditResponse struct {
	// EditResult is nil when the batch did not modify the document.
	EditResult *EditResult
	Script     ScriptInfo
}

// Service is the persistence collaborator.
type Service interface {
	// ApplyEdits applies commands to currentContent and stores the result
	// as a new version if anything changed.
	ApplyEdits(ctx context.Context, documentID string, commands []command.Command, currentContent string) (EditResponse, error)

	// Save stores content as a new version and acknowledges with the
	// version number. Saving unchanged content records no new version.
	Save(ctx context.Context, documentID string, content string) (ScriptInfo, error)
}
