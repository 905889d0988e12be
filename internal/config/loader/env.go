package loader

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is the prefix of recognised environment variables.
const EnvPrefix = "SCRIPTSTORM_"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string
	mapping map[string]string // env var -> config path
	environ func() []string
}

// NewEnvLoader creates an environment loader with the default mappings.
// The prefix should include the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(),
		environ: os.Environ,
	}
}

// NewEnvLoaderFrom creates a loader reading from a fixed KEY=VALUE list.
func NewEnvLoaderFrom(prefix string, environ []string) *EnvLoader {
	l := NewEnvLoader(prefix)
	l.environ = func() []string { return environ }
	return l
}

func defaultEnvMapping() map[string]string {
	return map[string]string{
		"SCRIPTSTORM_LOG_LEVEL":     "logging.level",
		"SCRIPTSTORM_DB":            "storage.path",
		"SCRIPTSTORM_PAGE_CAPACITY": "pagination.pageCapacity",
		"SCRIPTSTORM_STALE_POLICY":  "editor.stalePolicy",
	}
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	l.mapping[envVar] = configPath
}

// Load reads prefixed environment variables. Mapped names go to their
// configured path; others are converted, so SCRIPTSTORM_PAGINATION_LINE_HEIGHT
// becomes pagination.lineHeight. Empty values are kept.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		if !strings.HasPrefix(env, l.prefix) {
			continue
		}
		name, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		setByPath(config, path, parseValue(value))
	}

	return config, nil
}

// envToPath converts SCRIPTSTORM_EDITOR_FORMAT_CYCLE to editor.formatCycle.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.TrimPrefix(env, l.prefix)
	parts := strings.Split(name, "_")
	if len(parts) < 2 || parts[0] == "" {
		return strings.ToLower(name)
	}

	setting := strings.ToLower(parts[1])
	for _, part := range parts[2:] {
		if part != "" {
			setting += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
		}
	}
	return strings.ToLower(parts[0]) + "." + setting
}

// parseValue converts an env string into a bool, int, duration, list, or
// string. Comma-separated values become []any.
func parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		list := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		return list
	}

	return s
}
