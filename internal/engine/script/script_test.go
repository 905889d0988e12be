package script

import (
	"testing"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		in   string
		want FormatTag
		ok   bool
	}{
		{"HEADER", TagHeader, true},
		{"dialog", TagDialog, true},
		{" Speaker ", TagSpeaker, true},
		{"CHAPTER-BREAK", TagChapterBreak, true},
		{"SCENE", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseTag(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseTag(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestUnwrap(t *testing.T) {
	tests := []struct {
		in   string
		tag  FormatTag
		text string
		ok   bool
	}{
		{"[HEADER]INT. KITCHEN - DAY[/HEADER]", TagHeader, "INT. KITCHEN - DAY", true},
		{"[DIALOG][/DIALOG]", TagDialog, "", true},
		{"[DIALOG]Hi[/SPEAKER]", "", "[DIALOG]Hi[/SPEAKER]", false},
		{"plain", "", "plain", false},
		{"[/ACTION]", "", "[/ACTION]", false},
		{"[ACTION]unterminated", "", "[ACTION]unterminated", false},
	}

	for _, tt := range tests {
		tag, text, ok := Unwrap(tt.in)
		if tag != tt.tag || text != tt.text || ok != tt.ok {
			t.Errorf("Unwrap(%q) = %q, %q, %v; want %q, %q, %v", tt.in, tag, text, ok, tt.tag, tt.text, tt.ok)
		}
	}
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	for _, tag := range Tags {
		wrapped := Wrap(tag, "some [bracketed] text")
		got, text, ok := Unwrap(wrapped)
		if !ok || got != tag || text != "some [bracketed] text" {
			t.Errorf("round trip for %s failed: %q -> %q, %q, %v", tag, wrapped, got, text, ok)
		}
	}
}

func TestSeed(t *testing.T) {
	d := Seed()
	if d.Len() != 1 {
		t.Fatalf("expected 1 line, got %d", d.Len())
	}
	if d.Lines[0].Tag != TagHeader {
		t.Errorf("expected header, got %s", d.Lines[0].Tag)
	}
	if d.FormatVersion != FormatVersion {
		t.Errorf("expected format version %s, got %s", FormatVersion, d.FormatVersion)
	}
	if d.Lines[0].ID.IsNil() {
		t.Error("expected seed line to carry an identity")
	}
}

func TestInsertReplaceRemove(t *testing.T) {
	a, b, c := NewLine(TagHeader, "a"), NewLine(TagAction, "b"), NewLine(TagDialog, "c")
	d := &Document{Lines: []Line{a, b}}

	d2 := d.Insert(1, c)
	if d.Len() != 2 {
		t.Fatalf("insert mutated receiver: len %d", d.Len())
	}
	if d2.Len() != 3 || d2.Position(c.ID) != 2 {
		t.Fatalf("expected c at position 2, got %d", d2.Position(c.ID))
	}

	d3 := d2.Insert(99, NewLine(TagAction, "tail"))
	if d3.Lines[3].Text != "tail" {
		t.Errorf("expected clamped insert to append, got %q", d3.Lines[3].Text)
	}

	d4 := d3.Replace(1, Line{ID: a.ID, Tag: TagHeader, Text: "A"})
	if d3.Lines[0].Text != "a" || d4.Lines[0].Text != "A" {
		t.Errorf("replace: receiver %q, result %q", d3.Lines[0].Text, d4.Lines[0].Text)
	}

	d5 := d4.Remove(2)
	if d5.Position(c.ID) != 0 || d5.Position(b.ID) != 2 {
		t.Errorf("remove did not shift positions: c=%d b=%d", d5.Position(c.ID), d5.Position(b.ID))
	}
	if d5.Remove(0) != d5 || d5.Remove(10) != d5 {
		t.Error("out of range remove should return receiver")
	}
}

func TestEqualIgnoresIdentity(t *testing.T) {
	d1 := &Document{Lines: []Line{NewLine(TagAction, "x")}, FormatVersion: FormatVersion, Revision: 4}
	d2 := &Document{Lines: []Line{NewLine(TagAction, "x")}, FormatVersion: FormatVersion}
	if !d1.Equal(d2) {
		t.Error("documents with same content should be equal")
	}
	d2.Lines[0].Tag = TagDialog
	if d1.Equal(d2) {
		t.Error("documents with different tags should differ")
	}
}
