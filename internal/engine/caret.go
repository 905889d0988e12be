package engine

import (
	"unicode/utf8"

	"github.com/dshills/scriptstorm/internal/engine/command"
	"github.com/dshills/scriptstorm/internal/engine/queue"
	"github.com/dshills/scriptstorm/internal/engine/script"
	"github.com/dshills/scriptstorm/internal/notify"
	"github.com/dshills/scriptstorm/internal/renderer/caret"
	"github.com/dshills/scriptstorm/internal/renderer/surface"
)

// CaretState is the transient caret: a line and an optional logical
// offset into its text. A nil Offset means the position within the line
// is unknown.
type CaretState struct {
	LineID script.LineID
	Offset *int
}

// Caret returns a copy of the caret state.
func (c *Controller) Caret() CaretState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.caret.clone()
}

func (s CaretState) clone() CaretState {
	if s.Offset != nil {
		off := *s.Offset
		s.Offset = &off
	}
	return s
}

// Select moves the caret to line id. With a non-nil offset the caret is
// placed on the surface at that offset, clamped to the line's text.
func (c *Controller) Select(id script.LineID, offset *int) error {
	line, ok := c.Snapshot().Find(id)
	if !ok {
		return ErrLineNotFound
	}

	state := CaretState{LineID: id}
	if offset != nil {
		off := c.place(line, caret.AtOffset(*offset))
		state.Offset = &off
	}

	c.mu.Lock()
	c.caret = state
	c.mu.Unlock()

	c.notifier.Notify(notify.Change{Kind: notify.KindCaret, Revision: c.Snapshot().Revision, Source: string(queue.SourceHuman)})
	return nil
}

// SelectFromSurface records a caret reported by the surface as a
// (container, offset) position inside line id.
func (c *Controller) SelectFromSurface(id script.LineID, container surface.Node, offset int) error {
	logical, ok := c.carets.ToLogicalOffset(id, container, offset)
	if !ok {
		return ErrLineNotFound
	}
	return c.Select(id, &logical)
}

// CaptureCaret reads the surface's current selection into the caret state
// for line id.
func (c *Controller) CaptureCaret(id script.LineID) (int, bool) {
	off, ok := c.carets.CurrentOffset(id)
	if !ok {
		return 0, false
	}

	c.mu.Lock()
	c.caret = CaretState{LineID: id, Offset: &off}
	c.mu.Unlock()
	return off, true
}

// place puts the caret on the surface and returns the logical offset
// used. When the line is not realized the target is clamped against the
// line's text instead.
func (c *Controller) place(line script.Line, target caret.Target) int {
	if h := c.carets.PlaceCaret(line.ID, target); h != nil {
		return h.Offset
	}

	n := utf8.RuneCountInString(line.Text)
	switch target.Anchor {
	case caret.AnchorStart:
		return 0
	case caret.AnchorEnd:
		return n
	default:
		return max(0, min(target.Offset, n))
	}
}

// rederiveCaret restores the caret after a commit and reports whether it
// moved.
//
// A human ADD puts the caret at the end of the added line. Otherwise a
// caret on a surviving line is clamped and re-placed, and a caret on a
// deleted line moves to the start of the line now at its old position, or
// the last line.
func (c *Controller) rederiveCaret(prev, next *script.Document, source queue.Source, results []command.Result) bool {
	if source == queue.SourceHuman {
		if id, ok := lastAdded(results); ok {
			if line, found := next.Find(id); found {
				off := c.place(line, caret.AtEnd())
				c.setCaret(CaretState{LineID: id, Offset: &off})
				return true
			}
		}
	}

	current := c.Caret()
	if current.LineID.IsNil() {
		return false
	}

	if line, ok := next.Find(current.LineID); ok {
		if current.Offset == nil {
			return false
		}
		off := c.place(line, caret.AtOffset(*current.Offset))
		c.setCaret(CaretState{LineID: line.ID, Offset: &off})
		return off != *current.Offset
	}

	pos := prev.Position(current.LineID)
	pos = min(max(pos, 1), next.Len())
	line, ok := next.At(pos)
	if !ok {
		c.setCaret(CaretState{})
		return true
	}
	off := c.place(line, caret.AtStart())
	c.setCaret(CaretState{LineID: line.ID, Offset: &off})
	return true
}

func (c *Controller) setCaret(state CaretState) {
	c.mu.Lock()
	c.caret = state
	c.mu.Unlock()
}

func lastAdded(results []command.Result) (script.LineID, bool) {
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		if r.Changed && r.Command.Type == command.TypeAdd {
			return r.LineID, true
		}
	}
	return script.LineID{}, false
}
