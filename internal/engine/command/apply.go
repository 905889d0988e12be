package command

import (
	"github.com/dshills/scriptstorm/internal/engine/script"
)

// Outcome is the result of applying a batch.
type Outcome struct {
	// Doc is the new snapshot. It is the input document itself when
	// nothing was modified.
	Doc     *script.Document
	Results []Result

	// Modified is false when the batch was empty or every command was a no-op.
	Modified bool
}

// Validate checks every command against the running document length and
// returns a *ValidationError for the first failure.
func Validate(commands []Command, doc *script.Document) error {
	length := doc.Len()
	for i, c := range commands {
		if err := check(c, length); err != nil {
			return &ValidationError{Index: i, Command: c, Length: length, Err: err}
		}
		switch c.Type {
		case TypeAdd:
			length++
		case TypeDelete:
			length--
		}
	}
	return nil
}

func check(c Command, length int) error {
	if !c.Type.Valid() {
		return ErrUnknownType
	}
	if c.Tag != "" && !c.Tag.Valid() {
		return ErrUnknownTag
	}

	switch c.Type {
	case TypeAdd:
		if c.Position < 0 {
			return ErrNegativePosition
		}
		if c.Value == nil {
			return ErrMissingValue
		}
	case TypeEdit:
		if c.Position < 1 || c.Position > length {
			return ErrPositionOutOfRange
		}
		if c.Value == nil {
			return ErrMissingValue
		}
	case TypeDelete:
		if c.Position < 1 || c.Position > length {
			return ErrPositionOutOfRange
		}
	}
	return nil
}

// Apply validates commands and applies them in order against a running
// snapshot of doc. On a validation error the returned Outcome is zero and
// doc is untouched.
func Apply(commands []Command, doc *script.Document) (Outcome, error) {
	if doc == nil {
		doc = script.Seed()
	}
	if err := Validate(commands, doc); err != nil {
		return Outcome{}, err
	}

	running := doc
	results := make([]Result, 0, len(commands))
	modified := false

	for _, c := range commands {
		var r Result
		running, r = applyOne(c, running)
		results = append(results, r)
		modified = modified || r.Changed
	}

	if !modified {
		return Outcome{Doc: doc, Results: results}, nil
	}

	running.Revision = doc.Revision + 1
	return Outcome{Doc: running, Results: results, Modified: true}, nil
}

// applyOne applies a validated command. running is always a snapshot the
// caller may replace, never the caller's input.
func applyOne(c Command, running *script.Document) (*script.Document, Result) {
	r := Result{Command: c, Success: true}

	switch c.Type {
	case TypeAdd:
		tag, text, hasTag := c.content()
		if !hasTag {
			tag = script.TagAction
		}
		line := script.NewLine(tag, text)
		r.LineID = line.ID
		r.Changed = true
		return running.Insert(min(c.Position, running.Len()), line), r

	case TypeEdit:
		old, _ := running.At(c.Position)
		tag, text, hasTag := c.content()
		if !hasTag {
			tag = old.Tag
		}
		r.LineID = old.ID
		if old.Tag == tag && old.Text == text {
			return running, r
		}
		r.Changed = true
		return running.Replace(c.Position, script.Line{ID: old.ID, Tag: tag, Text: text}), r

	case TypeDelete:
		old, _ := running.At(c.Position)
		r.LineID = old.ID
		r.Changed = true
		return running.Remove(c.Position), r
	}

	// Unreachable after validation.
	r.Success = false
	r.Error = ErrUnknownType.Error()
	return running, r
}

// SetTag returns a snapshot with only the format tag of line id changed.
// It is the single-line tag reassignment used by format cycling, cheaper
// than a batch since no text changes.
func SetTag(doc *script.Document, id script.LineID, tag script.FormatTag) (*script.Document, bool, error) {
	if !tag.Valid() {
		return doc, false, ErrUnknownTag
	}
	pos := doc.Position(id)
	if pos == 0 {
		return doc, false, ErrPositionOutOfRange
	}
	old := doc.Lines[pos-1]
	if old.Tag == tag {
		return doc, false, nil
	}
	next := doc.Replace(pos, script.Line{ID: id, Tag: tag, Text: old.Text})
	next.Revision = doc.Revision + 1
	return next, true, nil
}
