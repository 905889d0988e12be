package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

func TestFormatCycleRepeatedTrigger(t *testing.T) {
	f := NewFormatCycle()
	id := script.NewLineID()

	want := []script.FormatTag{
		script.TagSpeaker,
		script.TagDialog,
		script.TagDirections,
		script.TagHeader,
		script.TagAction,
		script.TagSpeaker,
	}
	current := script.TagAction
	for i, w := range want {
		got := f.Next(id, current)
		if got != w {
			t.Fatalf("trigger %d: got %s, want %s", i, got, w)
		}
		current = got
	}
}

func TestFormatCycleRestartsOnNewLine(t *testing.T) {
	f := NewFormatCycle(script.TagAction, script.TagDialog, script.TagSpeaker)
	a, b := script.NewLineID(), script.NewLineID()

	if got := f.Next(a, script.TagAction); got != script.TagDialog {
		t.Fatalf("got %s, want dialog", got)
	}
	if got := f.Next(b, script.TagSpeaker); got != script.TagAction {
		t.Errorf("new line should restart from its own tag, got %s", got)
	}
	if f.Index() != 0 {
		t.Errorf("index = %d, want 0", f.Index())
	}
}

func TestFormatCycleTagOutsideCycle(t *testing.T) {
	f := NewFormatCycle(script.TagAction, script.TagDialog)
	if got := f.Next(script.NewLineID(), script.TagChapterBreak); got != script.TagAction {
		t.Errorf("got %s, want first tag of the cycle", got)
	}
}

func TestFormatCycleSanitizes(t *testing.T) {
	f := NewFormatCycle(script.TagDialog, "montage", script.TagDialog, script.TagAction)
	if diff := cmp.Diff([]script.FormatTag{script.TagDialog, script.TagAction}, f.Tags()); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}

	empty := NewFormatCycle()
	if diff := cmp.Diff(DefaultFormatCycle, empty.Tags()); diff != "" {
		t.Errorf("default mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatCycleReset(t *testing.T) {
	f := NewFormatCycle()
	f.Next(script.NewLineID(), script.TagAction)
	f.Reset()
	if f.Index() != -1 {
		t.Errorf("index after reset = %d, want -1", f.Index())
	}
}
