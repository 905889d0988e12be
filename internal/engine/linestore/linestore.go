// Package linestore converts between persisted script content and the
// in-memory script.Document.
//
// Parse accepts three shapes, tried in order:
//
//   - the canonical envelope, recognised by metadata.formatVersion "2.0",
//     whose content holds one "[TAG]text[/TAG]" entry per line;
//   - legacy structured JSON without that marker, whose content lines are
//     rewrapped as action lines;
//   - anything else, including malformed JSON, treated as plain text with
//     one action line per text line.
//
// Parse never fails. Content that yields no lines becomes the seed
// document. Serialize always writes the canonical envelope.
package linestore

import (
	"time"

	"github.com/dshills/scriptstorm/internal/engine/script"
	"github.com/dshills/scriptstorm/internal/logging"
)

// Shape identifies which input shape Parse recognised.
type Shape int

const (
	// ShapeEmpty is blank input, replaced by the seed document.
	ShapeEmpty Shape = iota
	// ShapeCanonical is the versioned envelope.
	ShapeCanonical
	// ShapeLegacyJSON is structured JSON without the version marker.
	ShapeLegacyJSON
	// ShapePlain is plain text or unparsable input.
	ShapePlain
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeEmpty:
		return "empty"
	case ShapeCanonical:
		return "canonical"
	case ShapeLegacyJSON:
		return "legacy-json"
	case ShapePlain:
		return "plain"
	default:
		return "unknown"
	}
}

// Store parses and serializes documents.
type Store struct {
	now    func() time.Time
	logger *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for metadata.lastModified.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used to report degraded parses.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store.
func New(opts ...Option) *Store {
	s := &Store{
		now:    time.Now,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("linestore")
	return s
}

var defaultStore = New()

// Parse parses raw content with the default store.
func Parse(raw string) *script.Document {
	return defaultStore.Parse(raw)
}

// Serialize serializes d with the default store.
func Serialize(d *script.Document) (string, error) {
	return defaultStore.Serialize(d)
}
