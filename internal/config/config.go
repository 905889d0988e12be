package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dshills/scriptstorm/internal/config/loader"
	"github.com/dshills/scriptstorm/internal/engine/script"
)

// Stale batch policies.
const (
	StalePolicyAccept = "accept"
	StalePolicyReject = "reject"
)

// Config holds all scriptstorm settings.
type Config struct {
	Pagination PaginationConfig
	Surface    SurfaceConfig
	Editor     EditorConfig
	Logging    LoggingConfig
	Storage    StorageConfig
}

// PaginationConfig holds page layout settings, in surface units.
type PaginationConfig struct {
	PageCapacity   float64
	HeaderHeight   float64
	LineHeight     float64
	ResizeDebounce time.Duration
}

// SurfaceConfig holds settings for the headless surface.
type SurfaceConfig struct {
	Width float64
}

// EditorConfig holds editing behaviour settings.
type EditorConfig struct {
	// FormatCycle is the tag order stepped through by format cycling.
	FormatCycle []script.FormatTag
	// StalePolicy is StalePolicyAccept or StalePolicyReject.
	StalePolicy string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string
}

// StorageConfig holds persistence settings. An empty Path disables the
// SQLite service.
type StorageConfig struct {
	Path       string
	DocumentID string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Pagination: PaginationConfig{
			PageCapacity:   864,
			HeaderHeight:   24,
			LineHeight:     20,
			ResizeDebounce: 100 * time.Millisecond,
		},
		Surface: SurfaceConfig{Width: 600},
		Editor: EditorConfig{
			FormatCycle: []script.FormatTag{
				script.TagHeader,
				script.TagAction,
				script.TagSpeaker,
				script.TagDialog,
				script.TagDirections,
			},
			StalePolicy: StalePolicyAccept,
		},
		Logging: LoggingConfig{Level: "info"},
		Storage: StorageConfig{DocumentID: "default"},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Editor.FormatCycle = append([]script.FormatTag(nil), c.Editor.FormatCycle...)
	return &out
}

// Options controls where Load reads from.
type Options struct {
	// FS reads the config file. Defaults to the OS.
	FS loader.FileSystem
	// Environ supplies KEY=VALUE pairs. Defaults to os.Environ.
	Environ func() []string
	// Required makes a missing file an error.
	Required bool
}

// Load builds a Config from defaults, the file at path (if any), and the
// environment, then validates it.
func Load(path string) (*Config, error) {
	return LoadWith(path, Options{})
}

// LoadWith is Load with explicit sources.
func LoadWith(path string, opts Options) (*Config, error) {
	if opts.FS == nil {
		opts.FS = loader.DefaultFS()
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}

	merged := make(map[string]any)
	if path != "" {
		fileMap, err := loader.ForPath(opts.FS, path).Load()
		if err != nil {
			return nil, err
		}
		if fileMap == nil && opts.Required {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		merged = loader.DeepMerge(merged, fileMap)
	}

	envMap, err := loader.NewEnvLoaderFrom(loader.EnvPrefix, opts.Environ()).Load()
	if err != nil {
		return nil, err
	}
	merged = loader.DeepMerge(merged, envMap)

	cfg := Default()
	if err := cfg.apply(merged); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply overlays settings present in data.
func (c *Config) apply(data map[string]any) error {
	var errs []error
	r := reader{data: data, errs: &errs}

	r.float("pagination.pageCapacity", &c.Pagination.PageCapacity)
	r.float("pagination.headerHeight", &c.Pagination.HeaderHeight)
	r.float("pagination.lineHeight", &c.Pagination.LineHeight)
	r.duration("pagination.resizeDebounce", &c.Pagination.ResizeDebounce)
	r.float("surface.width", &c.Surface.Width)
	r.tags("editor.formatCycle", &c.Editor.FormatCycle)
	r.str("editor.stalePolicy", &c.Editor.StalePolicy)
	r.str("logging.level", &c.Logging.Level)
	r.str("storage.path", &c.Storage.Path)
	r.str("storage.documentId", &c.Storage.DocumentID)

	return errors.Join(errs...)
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	positive := func(path string, v float64) {
		if v <= 0 {
			errs = append(errs, &ValidationError{Path: path, Message: "must be positive", Value: v, Code: ErrCodeOutOfRange})
		}
	}

	positive("pagination.pageCapacity", c.Pagination.PageCapacity)
	positive("pagination.headerHeight", c.Pagination.HeaderHeight)
	positive("pagination.lineHeight", c.Pagination.LineHeight)
	positive("surface.width", c.Surface.Width)
	if c.Pagination.ResizeDebounce < 0 {
		errs = append(errs, &ValidationError{Path: "pagination.resizeDebounce", Message: "must not be negative", Value: c.Pagination.ResizeDebounce, Code: ErrCodeOutOfRange})
	}
	if len(c.Editor.FormatCycle) == 0 {
		errs = append(errs, &ValidationError{Path: "editor.formatCycle", Message: "must name at least one tag", Value: c.Editor.FormatCycle, Code: ErrCodeInvalidEnum})
	}
	switch c.Editor.StalePolicy {
	case StalePolicyAccept, StalePolicyReject:
	default:
		errs = append(errs, &ValidationError{Path: "editor.stalePolicy", Message: "must be accept or reject", Value: c.Editor.StalePolicy, Code: ErrCodeInvalidEnum})
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, &ValidationError{Path: "logging.level", Message: "unknown level", Value: c.Logging.Level, Code: ErrCodeInvalidEnum})
	}

	return errors.Join(errs...)
}

// reader pulls typed values out of a merged settings map.
type reader struct {
	data map[string]any
	errs *[]error
}

func (r reader) mismatch(path, expected string, v any) {
	*r.errs = append(*r.errs, &TypeError{Path: path, Expected: expected, Actual: fmt.Sprintf("%T", v)})
}

func (r reader) float(path string, dst *float64) {
	v, ok := loader.Lookup(r.data, path)
	if !ok {
		return
	}
	switch n := v.(type) {
	case int:
		*dst = float64(n)
	case int64:
		*dst = float64(n)
	case uint64:
		*dst = float64(n)
	case float64:
		*dst = n
	default:
		r.mismatch(path, "number", v)
	}
}

// duration accepts a duration, a string such as "150ms", or an integer
// number of milliseconds.
func (r reader) duration(path string, dst *time.Duration) {
	v, ok := loader.Lookup(r.data, path)
	if !ok {
		return
	}
	switch d := v.(type) {
	case time.Duration:
		*dst = d
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			r.mismatch(path, "duration", v)
			return
		}
		*dst = parsed
	case int:
		*dst = time.Duration(d) * time.Millisecond
	case int64:
		*dst = time.Duration(d) * time.Millisecond
	default:
		r.mismatch(path, "duration", v)
	}
}

func (r reader) str(path string, dst *string) {
	v, ok := loader.Lookup(r.data, path)
	if !ok {
		return
	}
	s, ok := v.(string)
	if !ok {
		r.mismatch(path, "string", v)
		return
	}
	*dst = s
}

// tags accepts a list or a single comma-separated string of tag names.
func (r reader) tags(path string, dst *[]script.FormatTag) {
	v, ok := loader.Lookup(r.data, path)
	if !ok {
		return
	}

	var names []string
	switch list := v.(type) {
	case string:
		names = strings.Split(list, ",")
	case []any:
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				r.mismatch(path, "list of tag names", v)
				return
			}
			names = append(names, s)
		}
	case []string:
		names = list
	default:
		r.mismatch(path, "list of tag names", v)
		return
	}

	out := make([]script.FormatTag, 0, len(names))
	for _, name := range names {
		tag, ok := script.ParseTag(name)
		if !ok {
			*r.errs = append(*r.errs, &ValidationError{Path: path, Message: "unknown format tag", Value: name, Code: ErrCodeInvalidEnum})
			return
		}
		out = append(out, tag)
	}
	*dst = out
}
