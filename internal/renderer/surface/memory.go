package surface

import (
	"math"
	"sync"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

// MeasureFunc computes the geometry of a rendered line for Memory.
type MeasureFunc func(line script.Line, width float64) Geometry

// Memory is an in-memory Surface with a simulated layout engine.
//
// Any write to the surface (rendering, focus, selection) marks layout
// stale; the next MeasureGeometry then counts a reflow. Reflows therefore
// show how often measurement was interleaved with writes.
type Memory struct {
	mu sync.Mutex

	width   float64
	measure MeasureFunc

	nodes map[script.LineID]*Element
	lines map[*Element]script.Line

	focused Node
	sel     selection

	layoutStale bool
	reflows     int
	reads       int
	onMeasure   func(Node)
}

// MemoryOption configures a Memory surface.
type MemoryOption func(*Memory)

// WithWidth sets the layout width used by the default measure function.
func WithWidth(w float64) MemoryOption {
	return func(m *Memory) {
		if w > 0 {
			m.width = w
		}
	}
}

// WithMeasure replaces the default measure function.
func WithMeasure(fn MeasureFunc) MemoryOption {
	return func(m *Memory) {
		if fn != nil {
			m.measure = fn
		}
	}
}

// WithMeasureHook registers a callback run on every MeasureGeometry call.
func WithMeasureHook(fn func(Node)) MemoryOption {
	return func(m *Memory) {
		m.onMeasure = fn
	}
}

// NewMemory creates an empty memory surface.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		width:   600,
		measure: DefaultMeasure,
		nodes:   make(map[script.LineID]*Element),
		lines:   make(map[*Element]script.Line),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Row heights used by DefaultMeasure, in surface units.
const (
	HeaderRowHeight = 24
	RowHeight       = 20
	charWidth       = 8
)

// DefaultMeasure wraps text at width assuming fixed-width characters.
func DefaultMeasure(line script.Line, width float64) Geometry {
	row := float64(RowHeight)
	if line.Tag == script.TagHeader {
		row = HeaderRowHeight
	}
	perRow := max(1, int(width)/charWidth)
	rows := 0
	for _, part := range splitParagraphs(line.Text) {
		rows += max(1, int(math.Ceil(float64(len([]rune(part)))/float64(perRow))))
	}
	return Geometry{Width: width, Height: float64(rows) * row}
}

// Render realizes lines as single-text-node elements, replacing any
// previous node for the same line.
func (m *Memory) Render(lines ...script.Line) {
	for _, l := range lines {
		m.RenderFragments(l, l.Text)
	}
}

// RenderFragments realizes a line whose text is split across several text
// nodes, as rich formatting produces. The fragments should concatenate to
// the line text.
func (m *Memory) RenderFragments(line script.Line, fragments ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.nodes[line.ID]; ok {
		delete(m.lines, old)
	}

	el := NewElement(string(line.Tag))
	if len(fragments) > 1 {
		// Wrap the middle fragments in a nested element, as an inline
		// emphasis span would be.
		el.Append(NewText(fragments[0]))
		span := NewElement("span")
		for _, f := range fragments[1 : len(fragments)-1] {
			span.Append(NewText(f))
		}
		if len(span.Children()) > 0 {
			el.Append(span)
		}
		el.Append(NewText(fragments[len(fragments)-1]))
	} else {
		for _, f := range fragments {
			el.Append(NewText(f))
		}
	}

	m.nodes[line.ID] = el
	m.lines[el] = line
	m.layoutStale = true
}

// Sync re-renders every line of doc and drops lines no longer present.
func (m *Memory) Sync(doc *script.Document) {
	keep := make(map[script.LineID]bool, doc.Len())
	for _, l := range doc.Lines {
		keep[l.ID] = true
		m.mu.Lock()
		el, ok := m.nodes[l.ID]
		same := ok && m.lines[el] == l
		m.mu.Unlock()
		if !same {
			m.Render(l)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, el := range m.nodes {
		if !keep[id] {
			delete(m.nodes, id)
			delete(m.lines, el)
			m.layoutStale = true
		}
	}
}

// Remove unrealizes a line.
func (m *Memory) Remove(id script.LineID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.nodes[id]; ok {
		delete(m.nodes, id)
		delete(m.lines, el)
		m.layoutStale = true
	}
}

// Resize changes the layout width.
func (m *Memory) Resize(width float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.width = width
	m.layoutStale = true
}

// Lookup returns the rendered element for a line.
func (m *Memory) Lookup(id script.LineID) (Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.nodes[id]
	if !ok {
		return nil, false
	}
	return el, true
}

// Focus records the focused node.
func (m *Memory) Focus(n Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ownerLocked(n) == nil {
		return ErrDetached
	}
	m.focused = n
	m.layoutStale = true
	return nil
}

// Focused returns the focused node.
func (m *Memory) Focused() Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// CreateSelectionRange returns a new empty range.
func (m *Memory) CreateSelectionRange() *Range {
	return &Range{}
}

// CurrentSelection returns the surface selection.
func (m *Memory) CurrentSelection() Selection {
	return &memorySelection{m: m}
}

// MeasureGeometry measures a rendered line element or any node inside one.
func (m *Memory) MeasureGeometry(n Node) (Geometry, error) {
	m.mu.Lock()
	hook := m.onMeasure
	el := m.ownerLocked(n)
	if el == nil {
		m.mu.Unlock()
		return Geometry{}, ErrDetached
	}
	if m.layoutStale {
		m.reflows++
		m.layoutStale = false
	}
	m.reads++
	line, width := m.lines[el], m.width
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return m.measure(line, width), nil
}

// Reflows returns how many times a measurement forced layout.
func (m *Memory) Reflows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reflows
}

// Reads returns the number of MeasureGeometry calls.
func (m *Memory) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// ownerLocked returns the line element containing n.
func (m *Memory) ownerLocked(n Node) *Element {
	if el, ok := n.(*Element); ok {
		if _, ok := m.lines[el]; ok {
			return el
		}
	}
	for el := range m.lines {
		if Contains(el, n) {
			return el
		}
	}
	return nil
}

type memorySelection struct {
	m *Memory
}

func (s *memorySelection) Range() (Range, bool) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.sel.Range()
}

func (s *memorySelection) Select(r Range) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.sel.Select(r)
	s.m.layoutStale = true
}

func (s *memorySelection) Clear() {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.sel.Clear()
}

func splitParagraphs(s string) []string {
	var parts []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
