package script

// FormatVersion is the canonical envelope version written by this package.
const FormatVersion = "2.0"

// DefaultFormat is the format name written for new documents.
const DefaultFormat = "screenplay"

// Chapter marks a titled section beginning at a 1-based line position.
type Chapter struct {
	Title         string `json:"title"`
	StartPosition int    `json:"startPosition"`
}

// Document is an ordered sequence of lines plus document-level metadata.
//
// Treat a Document as a value: the mutating helpers below copy the line
// slice before changing it.
type Document struct {
	Lines         []Line
	Chapters      []Chapter
	Format        string
	FormatVersion string

	// PageCount is the page count last recorded in the envelope, if any.
	PageCount int

	// Revision counts modifying batches applied to this document.
	Revision uint64
}

// Seed returns the document created for empty content: a single empty header line.
func Seed() *Document {
	return &Document{
		Lines:         []Line{NewLine(TagHeader, "")},
		Format:        DefaultFormat,
		FormatVersion: FormatVersion,
	}
}

// Len returns the number of lines.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Lines)
}

// At returns the line at a 1-based position.
func (d *Document) At(pos int) (Line, bool) {
	if pos < 1 || pos > d.Len() {
		return Line{}, false
	}
	return d.Lines[pos-1], true
}

// Position returns the 1-based position of the line with the given identity,
// or 0 if no such line exists.
func (d *Document) Position(id LineID) int {
	for i, l := range d.Lines {
		if l.ID == id {
			return i + 1
		}
	}
	return 0
}

// Find returns the line with the given identity.
func (d *Document) Find(id LineID) (Line, bool) {
	pos := d.Position(id)
	if pos == 0 {
		return Line{}, false
	}
	return d.Lines[pos-1], true
}

// Clone returns a copy that shares no slices with d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Lines = append([]Line(nil), d.Lines...)
	c.Chapters = append([]Chapter(nil), d.Chapters...)
	return &c
}

// Insert returns a copy with line inserted after position after
// (0 inserts at the start). after is clamped to [0, Len].
func (d *Document) Insert(after int, line Line) *Document {
	after = max(0, min(after, d.Len()))
	c := d.Clone()
	c.Lines = append(c.Lines, Line{})
	copy(c.Lines[after+1:], c.Lines[after:])
	c.Lines[after] = line
	return c
}

// Replace returns a copy with the line at pos replaced.
// It returns d unchanged if pos is out of range.
func (d *Document) Replace(pos int, line Line) *Document {
	if pos < 1 || pos > d.Len() {
		return d
	}
	c := d.Clone()
	c.Lines[pos-1] = line
	return c
}

// Remove returns a copy without the line at pos.
// It returns d unchanged if pos is out of range.
func (d *Document) Remove(pos int) *Document {
	if pos < 1 || pos > d.Len() {
		return d
	}
	c := d.Clone()
	c.Lines = append(c.Lines[:pos-1], c.Lines[pos:]...)
	return c
}

// Equal reports whether two documents hold the same content. Line
// identities and the revision counter are not compared: both are
// session-local.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.Format != other.Format || d.FormatVersion != other.FormatVersion || d.PageCount != other.PageCount {
		return false
	}
	if len(d.Lines) != len(other.Lines) || len(d.Chapters) != len(other.Chapters) {
		return false
	}
	for i := range d.Lines {
		if !d.Lines[i].SameContent(other.Lines[i]) {
			return false
		}
	}
	for i := range d.Chapters {
		if d.Chapters[i] != other.Chapters[i] {
			return false
		}
	}
	return true
}
