package engine

import (
	"context"
	"sync"

	"github.com/dshills/scriptstorm/internal/config"
	"github.com/dshills/scriptstorm/internal/engine/command"
	"github.com/dshills/scriptstorm/internal/engine/linestore"
	"github.com/dshills/scriptstorm/internal/engine/queue"
	"github.com/dshills/scriptstorm/internal/engine/script"
	"github.com/dshills/scriptstorm/internal/logging"
	"github.com/dshills/scriptstorm/internal/notify"
	"github.com/dshills/scriptstorm/internal/persist"
	"github.com/dshills/scriptstorm/internal/renderer/caret"
	"github.com/dshills/scriptstorm/internal/renderer/pagination"
	"github.com/dshills/scriptstorm/internal/renderer/surface"
)

// ApplyResult is the outcome of a committed or rejected-as-no-op batch.
type ApplyResult struct {
	Results  []command.Result
	Modified bool
	// Revision is the live revision after the batch.
	Revision uint64
	// Version is the persisted version number, set by SubmitEdits.
	Version int
}

// Controller is the document façade. It owns the live Document, the
// dirty flag, the caret, and format cycling state, and serializes every
// mutation through a MutationQueue.
//
// Mutations run on the queue's worker goroutine. Observers are notified
// from that goroutine and must not wait on other queued operations.
type Controller struct {
	mu sync.RWMutex

	doc     *script.Document
	base    string // loaded canonical envelope, merged into on serialize
	dirty   bool
	caret   CaretState
	pages   []pagination.Page
	version int

	store      *linestore.Store
	queue      *queue.Queue
	pager      *pagination.Engine
	carets     *caret.Translator
	surface    surface.Surface
	notifier   *notify.Notifier
	persist    persist.Service
	documentID string
	cycle      *FormatCycle
	stale      StalePolicy
	pageConfig pagination.Config
	logger     *logging.Logger
}

// New creates a Controller holding the seed document.
func New(opts ...Option) *Controller {
	c := &Controller{
		doc:        script.Seed(),
		pageConfig: pagination.DefaultConfig(),
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.WithComponent("engine")
	if c.surface == nil {
		c.surface = surface.NewMemory()
	}
	if c.store == nil {
		c.store = linestore.New(linestore.WithLogger(c.logger))
	}
	if c.notifier == nil {
		c.notifier = notify.New()
	}
	if c.cycle == nil {
		c.cycle = NewFormatCycle()
	}

	c.queue = queue.New(queue.WithLogger(c.logger))
	c.pager = pagination.New(c.surface,
		pagination.WithConfig(c.pageConfig),
		pagination.WithLogger(c.logger),
	)
	c.carets = caret.New(c.surface, c.logger)
	c.pager.OnResized(c.repaginateAsync)

	c.render(c.doc)
	c.pages = c.pager.Paginate(c.doc.Lines)
	return c
}

// Close drains queued mutations and stops background work.
func (c *Controller) Close(ctx context.Context) error {
	err := c.queue.Close(ctx)
	c.pager.Close()
	c.notifier.Close()
	return err
}

// Subscribe registers an observer for every change.
func (c *Controller) Subscribe(observer notify.Observer) *notify.Subscription {
	return c.notifier.Subscribe(observer)
}

// SubscribeKind registers an observer for one kind of change.
func (c *Controller) SubscribeKind(kind notify.Kind, observer notify.Observer) *notify.Subscription {
	return c.notifier.SubscribeKind(kind, observer)
}

// Snapshot returns the live document. Snapshots are immutable.
func (c *Controller) Snapshot() *script.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.doc
}

// Dirty reports whether there are modifications not yet acknowledged by
// persistence.
func (c *Controller) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// Version returns the last persisted version number seen.
func (c *Controller) Version() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Pages returns the current page layout.
func (c *Controller) Pages() []pagination.Page {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]pagination.Page(nil), c.pages...)
}

// Queue exposes the mutation queue for depth and stats.
func (c *Controller) Queue() *queue.Queue {
	return c.queue
}

// HeightCache exposes the pagination height cache.
func (c *Controller) HeightCache() *pagination.HeightCache {
	return c.pager.Cache()
}

// Content serializes the live document as a canonical envelope. The page
// count of the current layout is included.
func (c *Controller) Content() (string, error) {
	c.mu.RLock()
	d := c.doc.Clone()
	d.PageCount = len(c.pages)
	c.mu.RUnlock()
	return c.serialize(d)
}

func (c *Controller) serialize(d *script.Document) (string, error) {
	c.mu.RLock()
	base := c.base
	c.mu.RUnlock()
	return c.store.Merge(base, d)
}

// Open replaces the document with parsed raw content. Open never fails on
// content; unparsable input degrades to plain action lines.
func (c *Controller) Open(ctx context.Context, raw string) error {
	_, err := c.queue.Do(ctx, queue.SourceSystem, func() (any, error) {
		doc, shape := c.store.ParseShape(raw)
		c.logger.Info("opened %s document with %d lines", shape, doc.Len())

		c.pager.Cache().Reset()
		c.formatCycle().Reset()
		c.render(doc)
		pages := c.pager.Paginate(doc.Lines)

		c.mu.Lock()
		c.doc = doc
		c.base = ""
		if shape == linestore.ShapeCanonical {
			c.base = raw
		}
		c.dirty = false
		c.caret = CaretState{}
		c.pages = pages
		c.mu.Unlock()

		c.notifier.Notify(notify.Change{Kind: notify.KindLoaded, Revision: doc.Revision, Source: string(queue.SourceSystem)})
		c.notifier.Notify(notify.Change{Kind: notify.KindPaginated, Revision: doc.Revision, Pages: len(pages)})
		return nil, nil
	})
	return err
}

// Apply validates and applies a command batch in queue order.
func (c *Controller) Apply(ctx context.Context, source queue.Source, commands []command.Command) (ApplyResult, error) {
	return c.ApplyBatch(ctx, source, command.Batch{Commands: commands})
}

// ApplyBatch applies a decoded batch. A batch whose BaseRevision is set
// and differs from the live revision at execution time is handled by the
// stale policy.
func (c *Controller) ApplyBatch(ctx context.Context, source queue.Source, batch command.Batch) (ApplyResult, error) {
	return queue.Submit(ctx, c.queue, source, func() (ApplyResult, error) {
		doc := c.Snapshot()

		if base := batch.BaseRevision; base != nil && *base != doc.Revision {
			if c.stalePolicy() == StalePolicyReject {
				c.logger.Warn("rejected %s batch for revision %d, live revision is %d", source, *base, doc.Revision)
				return ApplyResult{Revision: doc.Revision}, &OperationError{Op: "apply", Source: string(source), Err: ErrStaleBatch}
			}
			c.logger.Debug("applying %s batch for revision %d against revision %d", source, *base, doc.Revision)
		}

		outcome, err := command.Apply(batch.Commands, doc)
		if err != nil {
			c.logger.Warn("%s batch failed validation: %v", source, err)
			return ApplyResult{Revision: doc.Revision}, &OperationError{Op: "apply", Source: string(source), Err: err}
		}

		result := ApplyResult{Results: outcome.Results, Modified: outcome.Modified, Revision: doc.Revision}
		if !outcome.Modified {
			return result, nil
		}
		c.commit(doc, outcome.Doc, source, outcome.Results, true)
		result.Revision = outcome.Doc.Revision
		return result, nil
	})
}

// CycleFormat advances the format cycle for the selected line and assigns
// the resulting tag. It returns the tag now on the line.
func (c *Controller) CycleFormat(ctx context.Context) (script.FormatTag, error) {
	return queue.Submit(ctx, c.queue, queue.SourceHuman, func() (script.FormatTag, error) {
		doc := c.Snapshot()
		id := c.Caret().LineID
		line, ok := doc.Find(id)
		if id.IsNil() || !ok {
			return "", &OperationError{Op: "cycle-format", Source: string(queue.SourceHuman), Err: ErrNoSelection}
		}

		tag := c.formatCycle().Next(id, line.Tag)
		next, changed, err := command.SetTag(doc, id, tag)
		if err != nil {
			return line.Tag, &OperationError{Op: "cycle-format", Source: string(queue.SourceHuman), Err: err}
		}
		if changed {
			results := []command.Result{{Success: true, LineID: id, Changed: true}}
			c.commit(doc, next, queue.SourceHuman, results, true)
		}
		return tag, nil
	})
}

// Repaginate re-measures and reassigns pages in queue order.
func (c *Controller) Repaginate(ctx context.Context) ([]pagination.Page, error) {
	return queue.Submit(ctx, c.queue, queue.SourceSystem, func() ([]pagination.Page, error) {
		return c.repaginate(), nil
	})
}

// NotifyResize reports a viewport resize. The height cache is reset and
// pages recomputed once the debounce window passes.
func (c *Controller) NotifyResize() {
	c.pager.NotifyResize()
}

// ApplyConfig applies reloaded settings. Pages are recomputed in queue
// order.
func (c *Controller) ApplyConfig(cfg *config.Config) {
	c.pager.SetConfig(paginationConfig(cfg))
	c.mu.Lock()
	c.cycle = NewFormatCycle(cfg.Editor.FormatCycle...)
	c.stale = ParseStalePolicy(cfg.Editor.StalePolicy)
	c.mu.Unlock()
	c.repaginateAsync()
}

func (c *Controller) formatCycle() *FormatCycle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cycle
}

func (c *Controller) stalePolicy() StalePolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

func (c *Controller) repaginateAsync() {
	if _, err := c.queue.Enqueue(queue.SourceSystem, func() (any, error) {
		return c.repaginate(), nil
	}); err != nil {
		c.logger.Debug("repaginate skipped: %v", err)
	}
}

// Save sends the live content to persistence and clears the dirty flag on
// acknowledgement, unless the document changed while saving.
func (c *Controller) Save(ctx context.Context) (int, error) {
	if c.persist == nil {
		return 0, &OperationError{Op: "save", Err: ErrNoPersistence}
	}

	rev := c.Snapshot().Revision
	content, err := c.Content()
	if err != nil {
		return 0, &OperationError{Op: "save", Err: err}
	}
	info, err := c.persist.Save(ctx, c.documentID, content)
	if err != nil {
		c.logger.Error("save %s failed: %v", c.documentID, err)
		return 0, &OperationError{Op: "save", Err: err}
	}

	c.mu.Lock()
	c.version = info.VersionNumber
	cleared := c.dirty && c.doc.Revision == rev
	if cleared {
		c.dirty = false
	}
	dirty := c.dirty
	c.mu.Unlock()

	c.notifier.Notify(notify.Change{Kind: notify.KindSaved, Revision: rev, Dirty: dirty, Version: info.VersionNumber})
	if cleared {
		c.notifier.Notify(notify.Change{Kind: notify.KindDirty, Revision: rev, Dirty: false})
	}
	return info.VersionNumber, nil
}

// SubmitEdits routes a batch through the persistence service's applyEdits
// in queue order. A nil edit result means nothing changed and no version
// was recorded. Otherwise the persisted result becomes the live document
// and is considered saved.
func (c *Controller) SubmitEdits(ctx context.Context, commands []command.Command) (ApplyResult, error) {
	if c.persist == nil {
		return ApplyResult{}, &OperationError{Op: "submit-edits", Err: ErrNoPersistence}
	}

	return queue.Submit(ctx, c.queue, queue.SourceAI, func() (ApplyResult, error) {
		doc := c.Snapshot()
		content, err := c.serialize(doc)
		if err != nil {
			return ApplyResult{}, &OperationError{Op: "submit-edits", Source: string(queue.SourceAI), Err: err}
		}

		resp, err := c.persist.ApplyEdits(context.WithoutCancel(ctx), c.documentID, commands, content)
		if err != nil {
			c.logger.Warn("applyEdits for %s failed: %v", c.documentID, err)
			return ApplyResult{Revision: doc.Revision}, &OperationError{Op: "submit-edits", Source: string(queue.SourceAI), Err: err}
		}

		c.mu.Lock()
		c.version = resp.Script.VersionNumber
		c.mu.Unlock()

		if resp.EditResult == nil {
			return ApplyResult{Revision: doc.Revision, Version: resp.Script.VersionNumber}, nil
		}

		// Apply locally too so surviving lines keep their identity. If the
		// service's content disagrees, its content wins.
		next := c.store.Parse(resp.EditResult.Content)
		if local, err := command.Apply(commands, doc); err == nil && local.Doc.Equal(next) {
			next = local.Doc
		} else {
			c.logger.Warn("persisted content for %s differs from local apply, reloading", c.documentID)
			c.pager.Cache().Reset()
			next.Revision = doc.Revision + 1
		}

		c.commit(doc, next, queue.SourceAI, resp.EditResult.Results, false)
		c.notifier.Notify(notify.Change{Kind: notify.KindSaved, Revision: next.Revision, Version: resp.Script.VersionNumber})
		return ApplyResult{
			Results:  resp.EditResult.Results,
			Modified: true,
			Revision: next.Revision,
			Version:  resp.Script.VersionNumber,
		}, nil
	})
}

// commit installs next as the live document. It runs on the queue worker.
func (c *Controller) commit(prev, next *script.Document, source queue.Source, results []command.Result, dirty bool) {
	touched := touchedLines(results)
	c.pager.InvalidateLines(touched...)
	c.render(next)
	pages := c.pager.Paginate(next.Lines)

	c.mu.Lock()
	c.doc = next
	c.pages = pages
	wasDirty := c.dirty
	c.dirty = dirty
	c.mu.Unlock()

	caretChanged := c.rederiveCaret(prev, next, source, results)

	c.notifier.Notify(notify.Change{Kind: notify.KindApplied, Revision: next.Revision, Source: string(source), Dirty: dirty, Lines: touched})
	if wasDirty != dirty {
		c.notifier.Notify(notify.Change{Kind: notify.KindDirty, Revision: next.Revision, Source: string(source), Dirty: dirty})
	}
	c.notifier.Notify(notify.Change{Kind: notify.KindPaginated, Revision: next.Revision, Pages: len(pages)})
	if caretChanged {
		c.notifier.Notify(notify.Change{Kind: notify.KindCaret, Revision: next.Revision, Source: string(source)})
	}
}

func (c *Controller) repaginate() []pagination.Page {
	doc := c.Snapshot()
	c.render(doc)
	pages := c.pager.Paginate(doc.Lines)

	c.mu.Lock()
	c.pages = pages
	c.mu.Unlock()

	c.notifier.Notify(notify.Change{Kind: notify.KindPaginated, Revision: doc.Revision, Pages: len(pages)})
	return pages
}

// render brings surfaces that support it in step with doc.
func (c *Controller) render(doc *script.Document) {
	if s, ok := c.surface.(surface.Syncer); ok {
		s.Sync(doc)
	}
}

func touchedLines(results []command.Result) []script.LineID {
	ids := make([]script.LineID, 0, len(results))
	for _, r := range results {
		if r.Changed && !r.LineID.IsNil() {
			ids = append(ids, r.LineID)
		}
	}
	return ids
}
