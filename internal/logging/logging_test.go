package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"WARNING", LevelWarn},
		{"error", LevelError},
		{"unknown", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown %d", 1)
	l.Error("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected debug/info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 1") || !strings.Contains(out, "[ERROR] shown 2") {
		t.Errorf("missing warn/error lines in %q", out)
	}
}

func TestLoggerFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf, Prefix: "test"})

	l.WithComponent("queue").WithField("depth", 3).Info("drained")

	out := buf.String()
	if !strings.Contains(out, "test: drained {component=queue, depth=3}") {
		t.Errorf("unexpected line %q", out)
	}
}

func TestDerivedLoggerSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := New(Config{Level: LevelError, Output: &buf})
	child := root.WithComponent("pagination")

	child.Info("before")
	root.SetLevel(LevelDebug)
	child.Info("after")

	out := buf.String()
	if strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Errorf("level change not shared with derived logger: %q", out)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.Enabled(LevelError) {
		t.Error("discard logger should not be enabled")
	}
	l.Error("nothing")

	if OrDiscard(nil) == nil {
		t.Error("OrDiscard(nil) returned nil")
	}
}
