// Package surface defines the rendering-surface port consumed by the
// pagination and caret packages, with two implementations: Memory, a
// headless tree used by tests and tooling, and Terminal, backed by tcell.
//
// The node model mirrors the small part of a DOM that caret placement
// needs. A rendered line is an element whose subtree holds one or more
// text fragments. Positions inside the tree are (node, offset) pairs: for a
// text node the offset counts runes, for an element it counts children.
package surface

import (
	"errors"
	"unicode/utf8"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

// ErrDetached is returned when a node is not part of the rendered tree.
var ErrDetached = errors.New("node is not attached to the surface")

// Node is a node of the rendered tree.
type Node interface {
	// Children returns child nodes in document order. Text nodes have none.
	Children() []Node
	// IsText reports whether the node is a text fragment.
	IsText() bool
	// Text returns the fragment text of a text node, "" otherwise.
	Text() string
}

// Geometry is the measured box of a node.
type Geometry struct {
	Width  float64
	Height float64
}

// Point is a position in the rendered tree.
type Point struct {
	Node   Node
	Offset int
}

// Range spans two points. A collapsed range is a caret.
type Range struct {
	Start Point
	End   Point
}

// SetStart moves the start point.
func (r *Range) SetStart(n Node, offset int) {
	r.Start = Point{Node: n, Offset: offset}
}

// SetEnd moves the end point.
func (r *Range) SetEnd(n Node, offset int) {
	r.End = Point{Node: n, Offset: offset}
}

// Collapse moves one end onto the other.
func (r *Range) Collapse(toStart bool) {
	if toStart {
		r.End = r.Start
	} else {
		r.Start = r.End
	}
}

// Collapsed reports whether the range is a caret.
func (r Range) Collapsed() bool {
	return r.Start == r.End
}

// Selection is the surface's current selection.
type Selection interface {
	// Range returns the active range, if any.
	Range() (Range, bool)
	// Select replaces any active range with r.
	Select(r Range)
	// Clear removes the active range.
	Clear()
}

// Surface is the capability set the engine needs from a renderer.
type Surface interface {
	Focus(n Node) error
	CreateSelectionRange() *Range
	CurrentSelection() Selection
	MeasureGeometry(n Node) (Geometry, error)

	// Lookup returns the rendered node for a line, or false when the line
	// is not currently realized.
	Lookup(id script.LineID) (Node, bool)
}

// Syncer is implemented by surfaces that can re-render a whole document.
type Syncer interface {
	Sync(doc *script.Document)
}

// TextLength returns the number of runes in all text fragments under n.
func TextLength(n Node) int {
	if n == nil {
		return 0
	}
	if n.IsText() {
		return utf8.RuneCountInString(n.Text())
	}
	total := 0
	for _, c := range n.Children() {
		total += TextLength(c)
	}
	return total
}

// TextNodes returns the text fragments under n in document order.
func TextNodes(n Node) []Node {
	var out []Node
	var walk func(Node)
	walk = func(n Node) {
		if n == nil {
			return
		}
		if n.IsText() {
			out = append(out, n)
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(n)
	return out
}

// Contains reports whether target is root or a descendant of root.
func Contains(root, target Node) bool {
	if root == nil || target == nil {
		return false
	}
	if root == target {
		return true
	}
	for _, c := range root.Children() {
		if Contains(c, target) {
			return true
		}
	}
	return false
}
