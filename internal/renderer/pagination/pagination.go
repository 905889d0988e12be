// Package pagination measures rendered line heights and assigns lines to
// pages.
//
// Measurement goes through a surface.Surface. BatchMeasure reads the
// geometry of every uncached line first and writes the cache only after
// the last read, so a batch forces at most one layout pass. Lines the
// surface has not realized get an estimated height that is never cached.
//
// Page assignment is greedy first-fit. A line taller than the page
// capacity is placed alone on its own page and never split.
package pagination

import (
	"sync"
	"time"

	"github.com/dshills/scriptstorm/internal/engine/script"
	"github.com/dshills/scriptstorm/internal/logging"
	"github.com/dshills/scriptstorm/internal/renderer/surface"
)

// Default configuration values.
const (
	DefaultPageCapacity   = 864
	DefaultHeaderHeight   = 24
	DefaultLineHeight     = 20
	DefaultResizeDebounce = 100 * time.Millisecond
)

// Config configures an Engine.
type Config struct {
	PageCapacity   float64
	HeaderHeight   float64
	DefaultHeight  float64
	ResizeDebounce time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PageCapacity:   DefaultPageCapacity,
		HeaderHeight:   DefaultHeaderHeight,
		DefaultHeight:  DefaultLineHeight,
		ResizeDebounce: DefaultResizeDebounce,
	}
}

// Page is a derived group of consecutive lines.
type Page struct {
	Number int
	Lines  []script.Line
	Height float64
}

// Measurement is the height used for one line.
type Measurement struct {
	Line   script.Line
	Height float64

	// Cached is true when the height came from the cache.
	Cached bool
	// Estimated is true when the line was not realized on the surface.
	Estimated bool
}

// BatchResult is the outcome of BatchMeasure.
type BatchResult struct {
	TotalHeight  float64
	Measurements []Measurement
}

// Heights returns the measured heights in line order.
func (b BatchResult) Heights() []float64 {
	out := make([]float64, len(b.Measurements))
	for i, m := range b.Measurements {
		out[i] = m.Height
	}
	return out
}

// Engine paginates lines against a surface.
type Engine struct {
	surface surface.Surface
	cache   *HeightCache
	logger  *logging.Logger

	mu          sync.Mutex
	cfg         Config
	resizeTimer *time.Timer
	onResized   []func()
	closed      bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = mergeConfig(e.cfg, cfg)
	}
}

// WithCache shares an existing height cache.
func WithCache(c *HeightCache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine measuring against s.
func New(s surface.Surface, opts ...Option) *Engine {
	e := &Engine{
		surface: s,
		cache:   NewHeightCache(),
		cfg:     DefaultConfig(),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("pagination")
	return e
}

// Cache returns the engine's height cache.
func (e *Engine) Cache() *HeightCache {
	return e.cache
}

// Config returns the current configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetConfig replaces the configuration. Changing estimate heights does not
// touch cached measurements.
func (e *Engine) SetConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = mergeConfig(DefaultConfig(), cfg)
}

// EstimateLineHeight returns the height assumed for a line that has not
// been rendered yet.
func (e *Engine) EstimateLineHeight(tag script.FormatTag) float64 {
	cfg := e.Config()
	if tag == script.TagHeader {
		return cfg.HeaderHeight
	}
	return cfg.DefaultHeight
}

// LineHeight returns the cached height of line, measuring and caching it
// on a miss. Unrealized lines return an estimate.
func (e *Engine) LineHeight(line script.Line) float64 {
	if entry, ok := e.cache.Get(line); ok {
		return entry.Height
	}
	gen := e.cache.Generation()
	m, ok := e.read(line)
	if ok {
		e.cache.PutAll(gen, []Pending{{Line: line, Height: m.Height}})
	}
	return m.Height
}

// BatchMeasure measures lines, reading every uncached geometry before
// writing any cache entry.
func (e *Engine) BatchMeasure(lines []script.Line) BatchResult {
	gen := e.cache.Generation()
	res := BatchResult{Measurements: make([]Measurement, 0, len(lines))}
	var pending []Pending

	// Reads.
	for _, line := range lines {
		if entry, ok := e.cache.Get(line); ok {
			res.Measurements = append(res.Measurements, Measurement{Line: line, Height: entry.Height, Cached: true})
			res.TotalHeight += entry.Height
			continue
		}
		m, measured := e.read(line)
		if measured {
			pending = append(pending, Pending{Line: line, Height: m.Height})
		}
		res.Measurements = append(res.Measurements, m)
		res.TotalHeight += m.Height
	}

	// Writes.
	if len(pending) > 0 && !e.cache.PutAll(gen, pending) {
		e.logger.Debug("discarded %d measurements taken before a resize", len(pending))
	}
	return res
}

// read measures one line on the surface without touching the cache.
// measured is false when an estimate was used.
func (e *Engine) read(line script.Line) (m Measurement, measured bool) {
	node, ok := e.surface.Lookup(line.ID)
	if !ok {
		return Measurement{Line: line, Height: e.EstimateLineHeight(line.Tag), Estimated: true}, false
	}
	g, err := e.surface.MeasureGeometry(node)
	if err != nil {
		e.logger.Debug("measure line %s: %v", line.ID.Short(), err)
		return Measurement{Line: line, Height: e.EstimateLineHeight(line.Tag), Estimated: true}, false
	}
	return Measurement{Line: line, Height: g.Height}, true
}

// Paginate measures lines and assigns them to pages.
func (e *Engine) Paginate(lines []script.Line) []Page {
	res := e.BatchMeasure(lines)
	return Assign(lines, res.Heights(), e.Config().PageCapacity)
}

// Assign places lines on pages greedily. heights must parallel lines.
// A capacity of zero or less puts everything on one page.
func Assign(lines []script.Line, heights []float64, capacity float64) []Page {
	var pages []Page
	cur := Page{Number: 1}

	flush := func() {
		if len(cur.Lines) == 0 {
			return
		}
		pages = append(pages, cur)
		cur = Page{Number: cur.Number + 1}
	}

	for i, line := range lines {
		h := heights[i]
		if capacity > 0 && h > capacity {
			flush()
			cur.Lines = []script.Line{line}
			cur.Height = h
			flush()
			continue
		}
		if capacity > 0 && len(cur.Lines) > 0 && cur.Height+h > capacity {
			flush()
		}
		cur.Lines = append(cur.Lines, line)
		cur.Height += h
	}
	flush()
	return pages
}

// InvalidateLines drops the cached heights of lines changed by a mutation.
// Heights of other lines stay valid even though their pages may shift.
func (e *Engine) InvalidateLines(ids ...script.LineID) {
	e.cache.Invalidate(ids...)
}

// OnResized registers fn to run after a debounced resize has reset the cache.
func (e *Engine) OnResized(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onResized = append(e.onResized, fn)
}

// NotifyResize reports a viewport resize. Bursts of calls within the
// debounce window coalesce into one cache reset.
func (e *Engine) NotifyResize() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.resizeTimer != nil {
		e.resizeTimer.Stop()
	}
	e.resizeTimer = time.AfterFunc(e.cfg.ResizeDebounce, e.applyResize)
}

func (e *Engine) applyResize() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.resizeTimer = nil
	callbacks := append([]func(){}, e.onResized...)
	e.mu.Unlock()

	e.cache.Reset()
	e.logger.Debug("viewport resized, height cache reset")
	for _, fn := range callbacks {
		fn()
	}
}

// Close stops any pending resize timer.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.resizeTimer != nil {
		e.resizeTimer.Stop()
		e.resizeTimer = nil
	}
}

func mergeConfig(base, over Config) Config {
	if over.PageCapacity != 0 {
		base.PageCapacity = over.PageCapacity
	}
	if over.HeaderHeight > 0 {
		base.HeaderHeight = over.HeaderHeight
	}
	if over.DefaultHeight > 0 {
		base.DefaultHeight = over.DefaultHeight
	}
	if over.ResizeDebounce > 0 {
		base.ResizeDebounce = over.ResizeDebounce
	}
	return base
}
