package script

import (
	"github.com/google/uuid"
)

// LineID is a stable, opaque line identity. It survives edits and position
// shifts for the lifetime of a loaded document but is never persisted.
type LineID uuid.UUID

// NilLineID is the zero identity.
var NilLineID LineID

// NewLineID returns a fresh random identity.
func NewLineID() LineID {
	return LineID(uuid.New())
}

// IsNil reports whether id is the zero identity.
func (id LineID) IsNil() bool {
	return id == NilLineID
}

// String returns the canonical UUID text form.
func (id LineID) String() string {
	return uuid.UUID(id).String()
}

// Short returns the first eight hex digits, used in log fields.
func (id LineID) Short() string {
	return id.String()[:8]
}

// Line is one unit of screenplay content.
type Line struct {
	ID   LineID
	Tag  FormatTag
	Text string
}

// NewLine creates a line with a fresh identity.
func NewLine(tag FormatTag, text string) Line {
	return Line{ID: NewLineID(), Tag: tag, Text: text}
}

// Tagged returns the line in its wire form.
func (l Line) Tagged() string {
	return Wrap(l.Tag, l.Text)
}

// SameContent reports whether two lines carry the same tag and text,
// regardless of identity.
func (l Line) SameContent(other Line) bool {
	return l.Tag == other.Tag && l.Text == other.Text
}
