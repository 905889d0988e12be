package engine

import (
	"strings"

	"github.com/dshills/scriptstorm/internal/config"
	"github.com/dshills/scriptstorm/internal/engine/linestore"
	"github.com/dshills/scriptstorm/internal/engine/script"
	"github.com/dshills/scriptstorm/internal/logging"
	"github.com/dshills/scriptstorm/internal/notify"
	"github.com/dshills/scriptstorm/internal/persist"
	"github.com/dshills/scriptstorm/internal/renderer/pagination"
	"github.com/dshills/scriptstorm/internal/renderer/surface"
)

// StalePolicy decides what happens to a batch whose base revision is not
// the live revision.
type StalePolicy int

const (
	// StalePolicyAccept applies stale batches against the live document.
	StalePolicyAccept StalePolicy = iota
	// StalePolicyReject fails stale batches with ErrStaleBatch.
	StalePolicyReject
)

// String returns the policy name as used in configuration.
func (p StalePolicy) String() string {
	if p == StalePolicyReject {
		return config.StalePolicyReject
	}
	return config.StalePolicyAccept
}

// ParseStalePolicy converts a configuration value. Unknown values accept.
func ParseStalePolicy(s string) StalePolicy {
	if strings.EqualFold(strings.TrimSpace(s), config.StalePolicyReject) {
		return StalePolicyReject
	}
	return StalePolicyAccept
}

// Option configures a Controller during creation.
type Option func(*Controller)

// WithSurface sets the rendering surface. Defaults to a headless
// surface.Memory.
func WithSurface(s surface.Surface) Option {
	return func(c *Controller) {
		if s != nil {
			c.surface = s
		}
	}
}

// WithPersistence sets the persistence service and the document id used
// with it.
func WithPersistence(svc persist.Service, documentID string) Option {
	return func(c *Controller) {
		c.persist = svc
		c.documentID = documentID
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNotifier sets the change notifier. Defaults to a synchronous one.
func WithNotifier(n *notify.Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLineStore sets the parser/serializer.
func WithLineStore(s *linestore.Store) Option {
	return func(c *Controller) {
		if s != nil {
			c.store = s
		}
	}
}

// WithPaginationConfig sets page capacity, estimates, and resize debounce.
func WithPaginationConfig(cfg pagination.Config) Option {
	return func(c *Controller) {
		c.pageConfig = cfg
	}
}

// WithFormatCycle sets the tags stepped through by CycleFormat.
func WithFormatCycle(tags ...script.FormatTag) Option {
	return func(c *Controller) {
		c.cycle = NewFormatCycle(tags...)
	}
}

// WithStalePolicy sets the stale batch policy.
func WithStalePolicy(p StalePolicy) Option {
	return func(c *Controller) {
		c.stale = p
	}
}

// WithConfig applies the engine-relevant parts of a loaded Config.
func WithConfig(cfg *config.Config) Option {
	return func(c *Controller) {
		if cfg == nil {
			return
		}
		c.pageConfig = paginationConfig(cfg)
		c.cycle = NewFormatCycle(cfg.Editor.FormatCycle...)
		c.stale = ParseStalePolicy(cfg.Editor.StalePolicy)
		if cfg.Storage.DocumentID != "" && c.documentID == "" {
			c.documentID = cfg.Storage.DocumentID
		}
	}
}

func paginationConfig(cfg *config.Config) pagination.Config {
	return pagination.Config{
		PageCapacity:   cfg.Pagination.PageCapacity,
		HeaderHeight:   cfg.Pagination.HeaderHeight,
		DefaultHeight:  cfg.Pagination.LineHeight,
		ResizeDebounce: cfg.Pagination.ResizeDebounce,
	}
}
