// Package caret translates between logical character offsets inside a
// line and positions in a rendering surface's selection model.
//
// A logical offset counts runes from the start of the line's text and
// does not depend on how the surface splits that text into nodes. Both
// directions walk the line's text fragments in document order.
//
// A line that is not realized on the surface is a soft failure: the
// translator logs it and reports false or nil so the caller can retry
// after the next render.
package caret

import (
	"github.com/dshills/scriptstorm/internal/engine/script"
	"github.com/dshills/scriptstorm/internal/logging"
	"github.com/dshills/scriptstorm/internal/renderer/surface"
)

// Anchor selects where PlaceCaret puts the caret.
type Anchor int

const (
	// AnchorOffset places the caret at Target.Offset.
	AnchorOffset Anchor = iota
	// AnchorStart places the caret before the first character.
	AnchorStart
	// AnchorEnd places the caret after the last character.
	AnchorEnd
)

// Target is a caret destination within a line.
type Target struct {
	Anchor Anchor
	Offset int
}

// AtStart targets the start of the line.
func AtStart() Target { return Target{Anchor: AnchorStart} }

// AtEnd targets the end of the line.
func AtEnd() Target { return Target{Anchor: AnchorEnd} }

// AtOffset targets a logical offset, clamped to the line's text length.
func AtOffset(n int) Target { return Target{Anchor: AnchorOffset, Offset: n} }

// Handle identifies a line whose caret was placed.
type Handle struct {
	LineID script.LineID
	Node   surface.Node
	// Offset is the logical offset the caret was placed at.
	Offset int
}

// Translator converts caret positions for one surface.
type Translator struct {
	surface surface.Surface
	logger  *logging.Logger
}

// New creates a translator.
func New(s surface.Surface, logger *logging.Logger) *Translator {
	return &Translator{
		surface: s,
		logger:  logging.OrDiscard(logger).WithComponent("caret"),
	}
}

// ToLogicalOffset returns the number of characters between the start of
// line id's rendered subtree and (container, offset). ok is false if the
// line is not realized or container is outside it.
func (t *Translator) ToLogicalOffset(id script.LineID, container surface.Node, offset int) (int, bool) {
	root, found := t.surface.Lookup(id)
	if !found {
		t.logger.Debug("line %s not realized", id.Short())
		return 0, false
	}
	if !surface.Contains(root, container) {
		t.logger.Debug("selection container is outside line %s", id.Short())
		return 0, false
	}

	count := 0
	var walk func(n surface.Node) bool
	walk = func(n surface.Node) bool {
		if n == container {
			if n.IsText() {
				count += clamp(offset, 0, surface.TextLength(n))
			} else {
				children := n.Children()
				for _, c := range children[:clamp(offset, 0, len(children))] {
					count += surface.TextLength(c)
				}
			}
			return true
		}
		if n.IsText() {
			count += surface.TextLength(n)
			return false
		}
		for _, c := range n.Children() {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return count, true
}

// CurrentOffset converts the surface's current selection focus into a
// logical offset within line id.
func (t *Translator) CurrentOffset(id script.LineID) (int, bool) {
	r, active := t.surface.CurrentSelection().Range()
	if !active {
		return 0, false
	}
	return t.ToLogicalOffset(id, r.End.Node, r.End.Offset)
}

// PlaceCaret focuses line id and collapses the selection at target. It
// returns nil if the line cannot be located.
func (t *Translator) PlaceCaret(id script.LineID, target Target) *Handle {
	root, found := t.surface.Lookup(id)
	if !found {
		t.logger.Debug("cannot place caret: line %s not realized", id.Short())
		return nil
	}
	if err := t.surface.Focus(root); err != nil {
		t.logger.Debug("cannot focus line %s: %v", id.Short(), err)
		return nil
	}

	total := surface.TextLength(root)
	var logical int
	switch target.Anchor {
	case AnchorStart:
		logical = 0
	case AnchorEnd:
		logical = total
	default:
		logical = clamp(target.Offset, 0, total)
	}

	p := locate(root, logical)
	r := t.surface.CreateSelectionRange()
	r.SetStart(p.Node, p.Offset)
	r.Collapse(true)
	t.surface.CurrentSelection().Select(*r)

	return &Handle{LineID: id, Node: root, Offset: logical}
}

// locate finds the tree point for a logical offset. An offset on a fragment
// boundary resolves to the end of the earlier fragment.
func locate(root surface.Node, logical int) surface.Point {
	texts := surface.TextNodes(root)
	if len(texts) == 0 {
		return surface.Point{Node: root, Offset: 0}
	}
	remaining := logical
	for _, tn := range texts {
		n := surface.TextLength(tn)
		if remaining <= n {
			return surface.Point{Node: tn, Offset: remaining}
		}
		remaining -= n
	}
	last := texts[len(texts)-1]
	return surface.Point{Node: last, Offset: surface.TextLength(last)}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
