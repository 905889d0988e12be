package surface

// Element is a container node.
type Element struct {
	Tag      string
	children []Node
}

// NewElement creates an element with the given children.
func NewElement(tag string, children ...Node) *Element {
	return &Element{Tag: tag, children: children}
}

// Children returns the element's children.
func (e *Element) Children() []Node { return e.children }

// IsText returns false.
func (e *Element) IsText() bool { return false }

// Text returns "".
func (e *Element) Text() string { return "" }

// Append adds children to the end of the element.
func (e *Element) Append(children ...Node) {
	e.children = append(e.children, children...)
}

// TextNode is a text fragment.
type TextNode struct {
	text string
}

// NewText creates a text fragment.
func NewText(text string) *TextNode {
	return &TextNode{text: text}
}

// Children returns nil.
func (t *TextNode) Children() []Node { return nil }

// IsText returns true.
func (t *TextNode) IsText() bool { return true }

// Text returns the fragment text.
func (t *TextNode) Text() string { return t.text }

// selection is the Selection used by both surface implementations.
type selection struct {
	r      Range
	active bool
	onSet  func(Range)
}

func (s *selection) Range() (Range, bool) {
	return s.r, s.active
}

func (s *selection) Select(r Range) {
	s.r, s.active = r, true
	if s.onSet != nil {
		s.onSet(r)
	}
}

func (s *selection) Clear() {
	s.r, s.active = Range{}, false
}
