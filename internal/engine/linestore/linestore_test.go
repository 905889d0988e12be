package linestore

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/tidwall/gjson"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

var ignoreIdentity = []cmp.Option{
	cmpopts.IgnoreFields(script.Line{}, "ID"),
	cmpopts.EquateEmpty(),
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 14, 30, 0, 123000000, time.UTC)
}

const canonical = `{
  "content": "[HEADER]INT. DINER - NIGHT[/HEADER]\n[ACTION]Rain hammers the glass.[/ACTION]\n[SPEAKER]MAYA[/SPEAKER]\n[DIALOG]You came back.[/DIALOG]\n[DIRECTIONS](quietly)[/DIRECTIONS]\n[CHAPTER-BREAK][/CHAPTER-BREAK]",
  "format": "screenplay",
  "chapters": [{"title": "Act One", "startPosition": 1}],
  "pageCount": 2,
  "metadata": {"lastModified": "2024-01-01T00:00:00.000Z", "version": "7", "formatVersion": "2.0"}
}`

func TestParseCanonical(t *testing.T) {
	d, shape := New().ParseShape(canonical)
	if shape != ShapeCanonical {
		t.Fatalf("expected canonical shape, got %s", shape)
	}

	want := []script.Line{
		{Tag: script.TagHeader, Text: "INT. DINER - NIGHT"},
		{Tag: script.TagAction, Text: "Rain hammers the glass."},
		{Tag: script.TagSpeaker, Text: "MAYA"},
		{Tag: script.TagDialog, Text: "You came back."},
		{Tag: script.TagDirections, Text: "(quietly)"},
		{Tag: script.TagChapterBreak, Text: ""},
	}
	if diff := cmp.Diff(want, d.Lines, ignoreIdentity...); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	if d.Revision != 7 || d.PageCount != 2 {
		t.Errorf("expected revision 7 and page count 2, got %d and %d", d.Revision, d.PageCount)
	}
	if len(d.Chapters) != 1 || d.Chapters[0].Title != "Act One" {
		t.Errorf("unexpected chapters %+v", d.Chapters)
	}
	for _, l := range d.Lines {
		if l.ID.IsNil() {
			t.Fatal("parsed line has no identity")
		}
	}
}

func TestRoundTrip(t *testing.T) {
	s := New(WithClock(fixedClock))
	inputs := []string{
		canonical,
		`{"content":"","format":"screenplay","chapters":[],"metadata":{"formatVersion":"2.0","version":"0"}}`,
		`{"content":"[DIALOG]first\n\nthird[/DIALOG]\n[ACTION]a [bracket] inside[/ACTION]","format":"stageplay","chapters":[],"metadata":{"formatVersion":"2.0","version":"3"}}`,
	}

	for _, in := range inputs {
		d := s.Parse(in)
		out, err := s.Serialize(d)
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		again := s.Parse(out)
		if !d.Equal(again) {
			t.Errorf("round trip changed document:\n%s", cmp.Diff(d, again, ignoreIdentity...))
		}
		if again.Revision != d.Revision {
			t.Errorf("revision not preserved: %d -> %d", d.Revision, again.Revision)
		}
	}
}

func TestParseMultiLineEntry(t *testing.T) {
	d := Parse(`{"content":"[DIALOG]one\ntwo[/DIALOG]\n[ACTION]x[/ACTION]","metadata":{"formatVersion":"2.0"}}`)
	if d.Len() != 2 {
		t.Fatalf("expected 2 lines, got %d", d.Len())
	}
	if d.Lines[0].Text != "one\ntwo" || d.Lines[0].Tag != script.TagDialog {
		t.Errorf("unexpected first line %+v", d.Lines[0])
	}
}

func TestParseUnclosedAndUnknownMarkers(t *testing.T) {
	d := Parse(`{"content":"[SPEAKER]BOB\n[SCENE]nope[/SCENE]\nbare words","metadata":{"formatVersion":"2.0"}}`)
	want := []script.Line{
		{Tag: script.TagSpeaker, Text: "BOB"},
		{Tag: script.TagAction, Text: "[SCENE]nope[/SCENE]"},
		{Tag: script.TagAction, Text: "bare words"},
	}
	if diff := cmp.Diff(want, d.Lines, ignoreIdentity...); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLegacyJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"string content", `{"content":"FADE IN:\nA room.","format":"screenplay"}`, []string{"FADE IN:", "A room."}},
		{"array content", `{"content":["one","two\nthree"]}`, []string{"one", "two", "three"}},
		{"old version marker", `{"content":"x","metadata":{"formatVersion":"1.0"}}`, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, shape := New().ParseShape(tt.raw)
			if shape != ShapeLegacyJSON {
				t.Fatalf("expected legacy shape, got %s", shape)
			}
			if d.Len() != len(tt.want) {
				t.Fatalf("expected %d lines, got %d", len(tt.want), d.Len())
			}
			for i, text := range tt.want {
				if d.Lines[i].Tag != script.TagAction || d.Lines[i].Text != text {
					t.Errorf("line %d = %+v, want action %q", i+1, d.Lines[i], text)
				}
			}
			if d.FormatVersion != script.FormatVersion {
				t.Errorf("expected upgraded format version, got %q", d.FormatVersion)
			}
		})
	}
}

func TestParseDegradesToPlain(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		lines int
	}{
		{"plain text", "EXT. FIELD\r\nWind.\n", 2},
		{"truncated json", `{"content": "[HEADER]x`, 1},
		{"json array", `["a","b"]`, 1},
		{"json scalar", `42`, 1},
		{"object without content", `{"title":"nothing"}`, 1},
		{"canonical with non-string content", `{"content":5,"metadata":{"formatVersion":"2.0"}}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, shape := New().ParseShape(tt.raw)
			if shape != ShapePlain {
				t.Fatalf("expected plain shape, got %s", shape)
			}
			if d.Len() != tt.lines {
				t.Fatalf("expected %d lines, got %d", tt.lines, d.Len())
			}
			for _, l := range d.Lines {
				if l.Tag != script.TagAction {
					t.Errorf("expected action line, got %s", l.Tag)
				}
			}
		})
	}
}

func TestParseEmptySeeds(t *testing.T) {
	for _, raw := range []string{"", "   \n", `{"content":"","metadata":{"formatVersion":"2.0"}}`} {
		d := Parse(raw)
		if d.Len() != 1 || d.Lines[0].Tag != script.TagHeader || d.Lines[0].Text != "" {
			t.Errorf("Parse(%q) = %+v, want seed document", raw, d.Lines)
		}

		out, err := Serialize(d)
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		if got := gjson.Get(out, "metadata.formatVersion").String(); got != "2.0" {
			t.Errorf("expected formatVersion 2.0, got %q", got)
		}
		if got := gjson.Get(out, "content").String(); got != "[HEADER][/HEADER]" {
			t.Errorf("expected seed content, got %q", got)
		}
	}
}

func TestSerializeEnvelope(t *testing.T) {
	d := &script.Document{
		Lines: []script.Line{
			script.NewLine(script.TagHeader, "INT. HALL"),
			script.NewLine(script.TagAction, "<footsteps> & echoes"),
		},
		Revision: 12,
	}

	out, err := New(WithClock(fixedClock)).Serialize(d)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	checks := map[string]string{
		"content":                "[HEADER]INT. HALL[/HEADER]\n[ACTION]<footsteps> & echoes[/ACTION]",
		"format":                 script.DefaultFormat,
		"metadata.lastModified":  "2024-03-09T14:30:00.123Z",
		"metadata.version":       "12",
		"metadata.formatVersion": "2.0",
	}
	for path, want := range checks {
		if got := gjson.Get(out, path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if !gjson.Get(out, "chapters").IsArray() {
		t.Error("chapters should always be an array")
	}
	if gjson.Get(out, "pageCount").Exists() {
		t.Error("pageCount should be omitted when zero")
	}
	if !strings.HasPrefix(out, `{"content":`) {
		t.Errorf("unexpected field order: %s", out)
	}
}

func TestMergeKeepsForeignFields(t *testing.T) {
	base := `{"title":"Night Shift","content":"[ACTION]old[/ACTION]","format":"screenplay","chapters":[],"pageCount":3,"metadata":{"author":"kd","lastModified":"2020-01-01T00:00:00.000Z","version":"1","formatVersion":"2.0"}}`
	s := New(WithClock(fixedClock))
	d := s.Parse(base)
	d = d.Replace(1, script.Line{ID: d.Lines[0].ID, Tag: script.TagAction, Text: "new"})
	d.Revision = 2
	d.PageCount = 0

	out, err := s.Merge(base, d)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	checks := map[string]string{
		"title":                 "Night Shift",
		"metadata.author":       "kd",
		"content":               "[ACTION]new[/ACTION]",
		"metadata.version":      "2",
		"metadata.lastModified": "2024-03-09T14:30:00.123Z",
	}
	for path, want := range checks {
		if got := gjson.Get(out, path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if gjson.Get(out, "pageCount").Exists() {
		t.Error("pageCount should be dropped when the document has none")
	}
	if diff := cmp.Diff(d.Lines, s.Parse(out).Lines, ignoreIdentity...); diff != "" {
		t.Errorf("merged envelope does not round-trip (-want +got):\n%s", diff)
	}
}

func TestMergeInvalidBase(t *testing.T) {
	s := New(WithClock(fixedClock))
	d := s.Parse("plain text line")
	for _, base := range []string{"", "plain text line", `["a"]`} {
		merged, err := s.Merge(base, d)
		if err != nil {
			t.Fatalf("merge %q: %v", base, err)
		}
		fresh, _ := s.Serialize(d)
		if merged != fresh {
			t.Errorf("base %q: merge should equal serialize", base)
		}
	}
}

func TestMergeReplacesScalarMetadata(t *testing.T) {
	s := New(WithClock(fixedClock))
	out, err := s.Merge(`{"content":"","metadata":"legacy"}`, script.Seed())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := gjson.Get(out, "metadata.formatVersion").String(); got != "2.0" {
		t.Errorf("formatVersion = %q", got)
	}
}
