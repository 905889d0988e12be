package loader

import (
	"errors"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type mapFS map[string]string

func (m mapFS) ReadFile(path string) ([]byte, error) {
	s, ok := m[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return []byte(s), nil
}

func (m mapFS) Stat(path string) (fs.FileInfo, error) {
	return nil, &fs.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
}

func TestForPathTOML(t *testing.T) {
	fsys := mapFS{"app.toml": "[pagination]\npageCapacity = 900\n\n[editor]\nformatCycle = [\"action\", \"dialog\"]\n"}
	got, err := ForPath(fsys, "app.toml").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := map[string]any{
		"pagination": map[string]any{"pageCapacity": int64(900)},
		"editor":     map[string]any{"formatCycle": []any{"action", "dialog"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TOML mismatch (-want +got):\n%s", diff)
	}
}

func TestForPathYAML(t *testing.T) {
	fsys := mapFS{"app.yml": "pagination:\n  pageCapacity: 900\nlogging:\n  level: debug\n"}
	got, err := ForPath(fsys, "app.yml").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := map[string]any{
		"pagination": map[string]any{"pageCapacity": 900},
		"logging":    map[string]any{"level": "debug"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("YAML mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	for _, path := range []string{"none.toml", "none.yaml"} {
		got, err := ForPath(mapFS{}, path).Load()
		if err != nil || got != nil {
			t.Errorf("%s: expected nil, nil; got %v, %v", path, got, err)
		}
	}
}

func TestParseErrors(t *testing.T) {
	_, err := ParseTOML("bad.toml", []byte("pagination = [\n"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Path != "bad.toml" {
		t.Errorf("unexpected path %q", pe.Path)
	}

	_, err = ParseYAML("bad.yaml", []byte("pagination: [unclosed\n"))
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
}

func TestEnvLoader(t *testing.T) {
	l := NewEnvLoaderFrom(EnvPrefix, []string{
		"SCRIPTSTORM_LOG_LEVEL=debug",
		"SCRIPTSTORM_PAGINATION_RESIZE_DEBOUNCE=250ms",
		"SCRIPTSTORM_PAGINATION_LINE_HEIGHT=22",
		"SCRIPTSTORM_EDITOR_FORMAT_CYCLE=action, dialog",
		"HOME=/root",
	})
	got, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := map[string]any{
		"logging": map[string]any{"level": "debug"},
		"pagination": map[string]any{
			"resizeDebounce": 250 * time.Millisecond,
			"lineHeight":     int64(22),
		},
		"editor": map[string]any{"formatCycle": []any{"action", "dialog"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("env mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvToPath(t *testing.T) {
	l := NewEnvLoader(EnvPrefix)
	tests := []struct {
		env  string
		want string
	}{
		{"SCRIPTSTORM_STORAGE_PATH", "storage.path"},
		{"SCRIPTSTORM_PAGINATION_PAGE_CAPACITY", "pagination.pageCapacity"},
		{"SCRIPTSTORM_EDITOR_FORMAT_CYCLE", "editor.formatCycle"},
		{"SCRIPTSTORM_VERBOSE", "verbose"},
	}
	for _, tt := range tests {
		if got := l.envToPath(tt.env); got != tt.want {
			t.Errorf("envToPath(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestDeepMergeAndLookup(t *testing.T) {
	base := map[string]any{
		"pagination": map[string]any{"pageCapacity": 864, "lineHeight": 20},
		"logging":    map[string]any{"level": "info"},
	}
	override := map[string]any{
		"pagination": map[string]any{"pageCapacity": 900},
	}
	merged := DeepMerge(base, override)

	if v, ok := Lookup(merged, "pagination.pageCapacity"); !ok || v != 900 {
		t.Errorf("pageCapacity = %v, %v", v, ok)
	}
	if v, ok := Lookup(merged, "pagination.lineHeight"); !ok || v != 20 {
		t.Errorf("lineHeight = %v, %v", v, ok)
	}
	if _, ok := Lookup(merged, "logging.level.extra"); ok {
		t.Error("lookup through a scalar should fail")
	}
	if _, ok := Lookup(merged, "storage.path"); ok {
		t.Error("missing section should fail")
	}
}
