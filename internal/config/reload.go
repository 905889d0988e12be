package config

import (
	"slices"
	"sync"

	"github.com/dshills/scriptstorm/internal/config/watcher"
	"github.com/dshills/scriptstorm/internal/logging"
)

// Reloader keeps a Config current with its file.
type Reloader struct {
	mu       sync.RWMutex
	path     string
	opts     Options
	current  *Config
	watcher  *watcher.Watcher
	handlers []func(*Config)
	logger   *logging.Logger
}

// NewReloader loads path and starts watching it. The initial load must
// succeed.
func NewReloader(path string, opts Options, logger *logging.Logger) (*Reloader, error) {
	cfg, err := LoadWith(path, opts)
	if err != nil {
		return nil, err
	}

	r := &Reloader{
		path:    path,
		opts:    opts,
		current: cfg,
		logger:  logging.OrDiscard(logger).WithComponent("config"),
	}

	w, err := watcher.New(watcher.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Close()
		return nil, err
	}
	w.OnChange(func(watcher.Event) { r.Reload() })
	r.watcher = w
	return r, nil
}

// Current returns the active configuration. Callers must not modify it.
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// OnReload registers a handler called with each newly applied Config.
func (r *Reloader) OnReload(fn func(*Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, fn)
}

// Reload re-reads the file. An invalid file leaves the current Config in
// place and returns the error.
func (r *Reloader) Reload() error {
	cfg, err := LoadWith(r.path, r.opts)
	if err != nil {
		r.logger.Warn("reload %s failed, keeping previous settings: %v", r.path, err)
		return err
	}

	r.mu.Lock()
	r.current = cfg
	handlers := slices.Clone(r.handlers)
	r.mu.Unlock()

	r.logger.Info("reloaded %s", r.path)
	for _, fn := range handlers {
		fn(cfg)
	}
	return nil
}

// Close stops watching.
func (r *Reloader) Close() error {
	return r.watcher.Close()
}
