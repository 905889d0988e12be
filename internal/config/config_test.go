package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

func noEnv() []string { return nil }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWith("", Options{Environ: noEnv})
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "scriptstorm.toml", `
[pagination]
pageCapacity = 900
resizeDebounce = "250ms"

[editor]
formatCycle = ["action", "DIALOG"]
stalePolicy = "reject"
`)
	cfg, err := LoadWith(path, Options{Environ: noEnv})
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}

	want := Default()
	want.Pagination.PageCapacity = 900
	want.Pagination.ResizeDebounce = 250 * time.Millisecond
	want.Editor.FormatCycle = []script.FormatTag{script.TagAction, script.TagDialog}
	want.Editor.StalePolicy = StalePolicyReject
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := writeFile(t, "scriptstorm.yaml", "logging:\n  level: warn\nsurface:\n  width: 480\n")
	env := func() []string {
		return []string{"SCRIPTSTORM_LOG_LEVEL=debug", "SCRIPTSTORM_DB=/tmp/s.db"}
	}
	cfg, err := LoadWith(path, Options{Environ: env})
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("env should override file, got level %q", cfg.Logging.Level)
	}
	if cfg.Surface.Width != 480 {
		t.Errorf("width = %v", cfg.Surface.Width)
	}
	if cfg.Storage.Path != "/tmp/s.db" {
		t.Errorf("storage path = %q", cfg.Storage.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	if _, err := LoadWith(path, Options{Environ: noEnv}); err != nil {
		t.Errorf("optional missing file should load defaults, got %v", err)
	}
	_, err := LoadWith(path, Options{Environ: noEnv, Required: true})
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  error
	}{
		{"negative capacity", "[pagination]\npageCapacity = -1\n", ErrValidationFailed},
		{"bad policy", "[editor]\nstalePolicy = \"maybe\"\n", ErrValidationFailed},
		{"unknown tag", "[editor]\nformatCycle = [\"action\", \"montage\"]\n", ErrValidationFailed},
		{"wrong type", "[logging]\nlevel = 3\n", ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "c.toml", tt.content)
			_, err := LoadWith(path, Options{Environ: noEnv})
			if !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestCloneIsolatesCycle(t *testing.T) {
	a := Default()
	b := a.Clone()
	b.Editor.FormatCycle[0] = script.TagDialog
	if a.Editor.FormatCycle[0] != script.TagHeader {
		t.Error("Clone should copy the format cycle")
	}
}

func TestReloaderPicksUpChanges(t *testing.T) {
	path := writeFile(t, "scriptstorm.toml", "[pagination]\npageCapacity = 500\n")
	r, err := NewReloader(path, Options{Environ: noEnv}, nil)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	defer r.Close()

	if got := r.Current().Pagination.PageCapacity; got != 500 {
		t.Fatalf("initial capacity = %v", got)
	}

	reloaded := make(chan *Config, 4)
	r.OnReload(func(c *Config) { reloaded <- c })

	if err := os.WriteFile(path, []byte("[pagination]\npageCapacity = 700\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.Pagination.PageCapacity == 700 {
				if r.Current().Pagination.PageCapacity != 700 {
					t.Error("Current should reflect the reload")
				}
				return
			}
		case <-deadline:
			t.Fatal("reload not observed")
		}
	}
}

func TestReloaderKeepsPreviousOnError(t *testing.T) {
	path := writeFile(t, "scriptstorm.toml", "[pagination]\npageCapacity = 500\n")
	r, err := NewReloader(path, Options{Environ: noEnv}, nil)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	defer r.Close()

	if err := os.WriteFile(path, []byte("[pagination]\npageCapacity = -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if got := r.Current().Pagination.PageCapacity; got != 500 {
		t.Errorf("capacity = %v, want previous 500", got)
	}
}

func TestReloaderRunsEveryHandler(t *testing.T) {
	path := writeFile(t, "scriptstorm.toml", "[pagination]\npageCapacity = 500\n")
	r, err := NewReloader(path, Options{Environ: noEnv}, nil)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	defer r.Close()

	var got []float64
	r.OnReload(func(c *Config) { got = append(got, c.Pagination.PageCapacity) })
	r.OnReload(func(c *Config) { got = append(got, c.Pagination.PageCapacity*2) })

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if diff := cmp.Diff([]float64{500, 1000}, got); diff != "" {
		t.Errorf("handler values (-want +got):\n%s", diff)
	}
}
