package surface

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

// tagIndent is the left margin, in cells, for each format tag.
var tagIndent = map[script.FormatTag]int{
	script.TagHeader:       0,
	script.TagAction:       0,
	script.TagSpeaker:      20,
	script.TagDialog:       10,
	script.TagDirections:   15,
	script.TagChapterBreak: 0,
}

// tagStyle is the cell style for each format tag.
var tagStyle = map[script.FormatTag]tcell.Style{
	script.TagHeader:       tcell.StyleDefault.Bold(true),
	script.TagAction:       tcell.StyleDefault,
	script.TagSpeaker:      tcell.StyleDefault.Bold(true),
	script.TagDialog:       tcell.StyleDefault,
	script.TagDirections:   tcell.StyleDefault.Italic(true),
	script.TagChapterBreak: tcell.StyleDefault.Dim(true),
}

type termLine struct {
	line script.Line
	top  int
}

// Terminal is a Surface drawing lines onto a tcell screen. A line's height
// is its wrapped row count times the row height.
type Terminal struct {
	mu sync.Mutex

	screen    tcell.Screen
	rowHeight float64

	nodes  map[script.LineID]*Element
	layout map[*Element]*termLine

	focused Node
	sel     selection
}

// NewTerminal wraps an initialised tcell screen.
func NewTerminal(screen tcell.Screen, rowHeight float64) *Terminal {
	if rowHeight <= 0 {
		rowHeight = RowHeight
	}
	return &Terminal{
		screen:    screen,
		rowHeight: rowHeight,
		nodes:     make(map[script.LineID]*Element),
		layout:    make(map[*Element]*termLine),
	}
}

// Render clears the screen and draws lines from the top row. Lines that
// start below the bottom of the screen are not realized.
func (t *Terminal) Render(lines []script.Line) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Clear()
	t.nodes = make(map[script.LineID]*Element)
	t.layout = make(map[*Element]*termLine)

	width, height := t.screen.Size()
	row := 0
	for _, l := range lines {
		if row >= height {
			break
		}
		el := NewElement(string(l.Tag), NewText(l.Text))
		t.nodes[l.ID] = el
		t.layout[el] = &termLine{line: l, top: row}

		indent := indentFor(l.Tag, width)
		style := tagStyle[l.Tag]
		rows := wrapRows([]rune(l.Text), width-indent)
		for i, wr := range rows {
			x := indent
			for _, r := range wr.runes {
				t.screen.SetContent(x, row+i, r, nil, style)
				x += runewidth.RuneWidth(r)
			}
		}
		row += len(rows)
	}
	t.screen.Show()
}

// Sync renders the lines of doc.
func (t *Terminal) Sync(doc *script.Document) {
	t.Render(doc.Lines)
}

// Lookup returns the rendered element for a line.
func (t *Terminal) Lookup(id script.LineID) (Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.nodes[id]
	if !ok {
		return nil, false
	}
	return el, true
}

// Focus records the focused node.
func (t *Terminal) Focus(n Node) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ownerLocked(n) == nil {
		return ErrDetached
	}
	t.focused = n
	return nil
}

// CreateSelectionRange returns a new empty range.
func (t *Terminal) CreateSelectionRange() *Range {
	return &Range{}
}

// CurrentSelection returns the selection; selecting a collapsed range
// moves the terminal cursor.
func (t *Terminal) CurrentSelection() Selection {
	return &terminalSelection{t: t}
}

// MeasureGeometry returns the wrapped height of the line containing n.
func (t *Terminal) MeasureGeometry(n Node) (Geometry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	el := t.ownerLocked(n)
	if el == nil {
		return Geometry{}, ErrDetached
	}
	width, _ := t.screen.Size()
	l := t.layout[el].line
	rows := len(wrapRows([]rune(l.Text), width-indentFor(l.Tag, width)))
	return Geometry{Width: float64(width), Height: float64(rows) * t.rowHeight}, nil
}

// CursorCell returns the cell the caret was last placed in.
func (t *Terminal) CursorCell() (x, y int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, active := t.sel.Range()
	if !active {
		return 0, 0, false
	}
	return t.cellLocked(r.End)
}

func (t *Terminal) ownerLocked(n Node) *Element {
	if el, ok := n.(*Element); ok {
		if _, ok := t.layout[el]; ok {
			return el
		}
	}
	for el := range t.layout {
		if Contains(el, n) {
			return el
		}
	}
	return nil
}

// cellLocked maps a tree point to a screen cell.
func (t *Terminal) cellLocked(p Point) (x, y int, ok bool) {
	el := t.ownerLocked(p.Node)
	if el == nil {
		return 0, 0, false
	}
	tl := t.layout[el]

	offset := 0
	for _, tn := range TextNodes(el) {
		if tn == p.Node {
			offset += p.Offset
			break
		}
		offset += TextLength(tn)
	}
	if !p.Node.IsText() {
		offset = 0
		for _, c := range el.Children()[:min(p.Offset, len(el.Children()))] {
			offset += TextLength(c)
		}
	}

	width, _ := t.screen.Size()
	indent := indentFor(tl.line.Tag, width)
	rows := wrapRows([]rune(tl.line.Text), width-indent)
	for i, row := range rows {
		last := i == len(rows)-1
		if offset <= row.start+len(row.runes) || last {
			col := 0
			for _, r := range row.runes[:max(0, min(offset-row.start, len(row.runes)))] {
				col += runewidth.RuneWidth(r)
			}
			return indent + col, tl.top + i, true
		}
	}
	return indent, tl.top, true
}

type terminalSelection struct {
	t *Terminal
}

func (s *terminalSelection) Range() (Range, bool) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.t.sel.Range()
}

func (s *terminalSelection) Select(r Range) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.sel.Select(r)
	if x, y, ok := s.t.cellLocked(r.End); ok {
		s.t.screen.ShowCursor(x, y)
	}
}

func (s *terminalSelection) Clear() {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.sel.Clear()
	s.t.screen.HideCursor()
}

func indentFor(tag script.FormatTag, width int) int {
	return min(tagIndent[tag], width/3)
}

type wrapRow struct {
	start int // rune index of the row's first rune in the line text
	runes []rune
}

// wrapRows splits text into rows no wider than width cells, breaking at
// newlines. It always returns at least one row.
func wrapRows(text []rune, width int) []wrapRow {
	width = max(width, 1)
	var rows []wrapRow
	cur := wrapRow{}
	cells := 0
	for i, r := range text {
		if r == '\n' {
			rows = append(rows, cur)
			cur, cells = wrapRow{start: i + 1}, 0
			continue
		}
		w := runewidth.RuneWidth(r)
		if cells+w > width && len(cur.runes) > 0 {
			rows = append(rows, cur)
			cur, cells = wrapRow{start: i}, 0
		}
		cur.runes = append(cur.runes, r)
		cells += w
	}
	return append(rows, cur)
}
