package command

import (
	"fmt"
	"strings"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

// Type is the kind of a command.
type Type string

// Command types.
const (
	TypeAdd    Type = "ADD"
	TypeEdit   Type = "EDIT"
	TypeDelete Type = "DELETE"
)

// Valid reports whether t is a known command type.
func (t Type) Valid() bool {
	switch t {
	case TypeAdd, TypeEdit, TypeDelete:
		return true
	}
	return false
}

// Command is a single line mutation addressed by 1-based position.
//
// For ADD, Position is the line after which the new line is inserted
// (0 inserts at the start, values past the end append). For EDIT and
// DELETE it is the line itself.
type Command struct {
	Type     Type
	Position int

	// Value is required for ADD and EDIT. A value enclosed in tag markers
	// ("[DIALOG]Hi[/DIALOG]") supplies the line's format tag as well.
	Value *string

	// Tag, when set, overrides any tag carried by Value.
	Tag script.FormatTag
}

// Add returns an ADD command.
func Add(after int, value string) Command {
	return Command{Type: TypeAdd, Position: after, Value: &value}
}

// Edit returns an EDIT command.
func Edit(pos int, value string) Command {
	return Command{Type: TypeEdit, Position: pos, Value: &value}
}

// Delete returns a DELETE command.
func Delete(pos int) Command {
	return Command{Type: TypeDelete, Position: pos}
}

// WithTag returns a copy of c with an explicit format tag.
func (c Command) WithTag(tag script.FormatTag) Command {
	c.Tag = tag
	return c
}

// String returns a compact description used in logs and errors.
func (c Command) String() string {
	if c.Value == nil {
		return fmt.Sprintf("%s %d", c.Type, c.Position)
	}
	v := *c.Value
	if r := []rune(v); len(r) > 32 {
		v = string(r[:32]) + "..."
	}
	return fmt.Sprintf("%s %d %q", c.Type, c.Position, v)
}

// content resolves the tag and text a command writes. hasTag is false when
// neither Tag nor a tagged Value supplied one.
func (c Command) content() (tag script.FormatTag, text string, hasTag bool) {
	if c.Value != nil {
		text = *c.Value
		if t, inner, ok := script.Unwrap(strings.TrimSpace(text)); ok {
			tag, text, hasTag = t, inner, true
		}
	}
	if c.Tag != "" {
		tag, hasTag = c.Tag, true
	}
	return tag, text, hasTag
}

// Result reports the outcome of one command. Results are produced one per
// input command, in input order.
type Result struct {
	Command Command
	Success bool
	Error   string

	// LineID is the line added, edited, or deleted.
	LineID script.LineID

	// Changed is false for an EDIT that left the line as it was.
	Changed bool
}
