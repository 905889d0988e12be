package caret

import (
	"testing"

	"github.com/dshills/scriptstorm/internal/engine/script"
	"github.com/dshills/scriptstorm/internal/renderer/surface"
)

func setup(lines ...script.Line) (*surface.Memory, *Translator) {
	mem := surface.NewMemory()
	mem.Render(lines...)
	return mem, New(mem, nil)
}

func TestCaretRoundTripSingleTextNode(t *testing.T) {
	line := script.NewLine(script.TagDialog, "0123456789")
	mem, tr := setup(line)

	h := tr.PlaceCaret(line.ID, AtOffset(4))
	if h == nil {
		t.Fatal("PlaceCaret returned nil")
	}

	r, ok := mem.CurrentSelection().Range()
	if !ok || !r.Collapsed() {
		t.Fatalf("expected collapsed selection, got %+v %v", r, ok)
	}
	got, ok := tr.ToLogicalOffset(line.ID, r.Start.Node, r.Start.Offset)
	if !ok || got != 4 {
		t.Errorf("round trip offset = %d, %v; want 4", got, ok)
	}
	if mem.Focused() != h.Node {
		t.Error("line node was not focused")
	}
}

func TestPlaceCaretAnchorsAndClamping(t *testing.T) {
	line := script.NewLine(script.TagAction, "héllo")
	_, tr := setup(line)

	tests := []struct {
		name   string
		target Target
		want   int
	}{
		{"start", AtStart(), 0},
		{"end", AtEnd(), 5},
		{"negative clamps", AtOffset(-3), 0},
		{"past end clamps", AtOffset(99), 5},
		{"middle", AtOffset(2), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tr.PlaceCaret(line.ID, tt.target)
			if h == nil || h.Offset != tt.want {
				t.Fatalf("PlaceCaret = %+v, want offset %d", h, tt.want)
			}
			got, ok := tr.CurrentOffset(line.ID)
			if !ok || got != tt.want {
				t.Errorf("CurrentOffset = %d, %v; want %d", got, ok, tt.want)
			}
		})
	}
}

func TestCaretAcrossFragments(t *testing.T) {
	line := script.NewLine(script.TagDialog, "I said no, twice.")
	mem := surface.NewMemory()
	mem.RenderFragments(line, "I said ", "no", ", twice.")
	tr := New(mem, nil)

	for offset := 0; offset <= 17; offset++ {
		if tr.PlaceCaret(line.ID, AtOffset(offset)) == nil {
			t.Fatalf("PlaceCaret(%d) returned nil", offset)
		}
		got, ok := tr.CurrentOffset(line.ID)
		if !ok || got != offset {
			t.Errorf("offset %d round tripped to %d (%v)", offset, got, ok)
		}
	}

	// Offset 8 lands inside the emphasised fragment.
	tr.PlaceCaret(line.ID, AtOffset(8))
	r, _ := mem.CurrentSelection().Range()
	if r.Start.Node.Text() != "no" || r.Start.Offset != 1 {
		t.Errorf("expected point inside %q at 1, got %q at %d", "no", r.Start.Node.Text(), r.Start.Offset)
	}
}

func TestToLogicalOffsetElementContainer(t *testing.T) {
	line := script.NewLine(script.TagDialog, "abcdef")
	mem := surface.NewMemory()
	mem.RenderFragments(line, "ab", "cd", "ef")
	tr := New(mem, nil)

	root, _ := mem.Lookup(line.ID)
	tests := []struct {
		offset int
		want   int
	}{
		{0, 0},
		{1, 2},
		{2, 4},
		{3, 6},
		{10, 6},
	}
	for _, tt := range tests {
		got, ok := tr.ToLogicalOffset(line.ID, root, tt.offset)
		if !ok || got != tt.want {
			t.Errorf("element offset %d -> %d (%v), want %d", tt.offset, got, ok, tt.want)
		}
	}
}

func TestLookupMissIsSoft(t *testing.T) {
	shown := script.NewLine(script.TagAction, "here")
	absent := script.NewLine(script.TagAction, "gone")
	mem, tr := setup(shown)

	if h := tr.PlaceCaret(absent.ID, AtStart()); h != nil {
		t.Errorf("expected nil handle, got %+v", h)
	}
	if _, ok := tr.ToLogicalOffset(absent.ID, nil, 0); ok {
		t.Error("expected miss for unrealized line")
	}

	// A container from another line is also a miss.
	other, _ := mem.Lookup(shown.ID)
	mem.Render(absent)
	if _, ok := tr.ToLogicalOffset(absent.ID, surface.TextNodes(other)[0], 1); ok {
		t.Error("expected miss for foreign container")
	}
}

func TestPlaceCaretEmptyLine(t *testing.T) {
	line := script.NewLine(script.TagHeader, "")
	mem := surface.NewMemory()
	mem.RenderFragments(line)
	tr := New(mem, nil)

	h := tr.PlaceCaret(line.ID, AtEnd())
	if h == nil || h.Offset != 0 {
		t.Fatalf("PlaceCaret on empty line = %+v", h)
	}
	r, _ := mem.CurrentSelection().Range()
	if r.Start.Node != h.Node || r.Start.Offset != 0 {
		t.Errorf("expected caret on the line element, got %+v", r.Start)
	}
}
