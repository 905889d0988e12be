// Package notify republishes document changes to external collaborators
// such as the chat widget, the renderer, and the save service.
//
// Observers subscribe to every change or to one Kind. Delivery is
// synchronous by default, in subscription order; WithAsync moves delivery
// to a single goroutine that preserves publish order.
package notify

import (
	"sync"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

// Kind is the type of a document change.
type Kind int

const (
	// KindApplied reports a committed mutation batch that modified the document.
	KindApplied Kind = iota
	// KindDirty reports a change of the dirty flag.
	KindDirty
	// KindSaved reports a save acknowledgement from persistence.
	KindSaved
	// KindPaginated reports a recomputed page layout.
	KindPaginated
	// KindCaret reports that the caret was re-derived.
	KindCaret
	// KindLoaded reports that a document was loaded, replacing the previous one.
	KindLoaded
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindApplied:
		return "applied"
	case KindDirty:
		return "dirty"
	case KindSaved:
		return "saved"
	case KindPaginated:
		return "paginated"
	case KindCaret:
		return "caret"
	case KindLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Change describes one document change.
type Change struct {
	Kind Kind

	// Revision is the document revision after the change.
	Revision uint64

	// Source names who caused the change (human, ai, system, persistence).
	Source string

	// Dirty is the dirty flag after the change.
	Dirty bool

	// Lines lists the lines touched by an applied batch.
	Lines []script.LineID

	// Pages is the page count after pagination.
	Pages int

	// Version is the persisted version number, for KindSaved.
	Version int
}

// Observer receives changes.
type Observer func(change Change)

// Subscription is an active observer registration.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes the observer. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

type registration struct {
	id       uint64
	kind     Kind
	all      bool
	observer Observer
}

// Notifier fans changes out to observers.
type Notifier struct {
	mu     sync.RWMutex
	regs   []registration
	nextID uint64
	closed bool

	async  bool
	buffer chan Change
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAsync delivers changes from a background goroutine with the given buffer.
func WithAsync(bufferSize int) Option {
	return func(n *Notifier) {
		if bufferSize > 0 {
			n.async = true
			n.buffer = make(chan Change, bufferSize)
		}
	}
}

// New creates a Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{done: make(chan struct{})}
	for _, opt := range opts {
		opt(n)
	}
	if n.async {
		n.wg.Add(1)
		go n.processAsync()
	}
	return n
}

// Subscribe registers an observer for every change.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.add(registration{all: true, observer: observer})
}

// SubscribeKind registers an observer for one kind of change.
func (n *Notifier) SubscribeKind(kind Kind, observer Observer) *Subscription {
	return n.add(registration{kind: kind, observer: observer})
}

func (n *Notifier) add(r registration) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	r.id = n.nextID
	n.regs = append(n.regs, r)
	return &Subscription{id: r.id, notifier: n}
}

// Notify publishes a change.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	closed := n.closed
	n.mu.RUnlock()
	if closed {
		return
	}

	if n.async {
		select {
		case n.buffer <- change:
		case <-n.done:
		}
		return
	}
	n.deliver(change)
}

// Close stops delivery, draining any buffered changes first. It is safe to
// call more than once.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, r := range n.regs {
		if r.id == id {
			n.regs = append(n.regs[:i:i], n.regs[i+1:]...)
			return
		}
	}
}

func (n *Notifier) deliver(change Change) {
	n.mu.RLock()
	var observers []Observer
	for _, r := range n.regs {
		if r.all || r.kind == change.Kind {
			observers = append(observers, r.observer)
		}
	}
	n.mu.RUnlock()

	// Observers run outside the lock so they may subscribe or unsubscribe.
	for _, obs := range observers {
		obs(change)
	}
}

func (n *Notifier) processAsync() {
	defer n.wg.Done()
	for {
		select {
		case change := <-n.buffer:
			n.deliver(change)
		case <-n.done:
			for {
				select {
				case change := <-n.buffer:
					n.deliver(change)
				default:
					return
				}
			}
		}
	}
}
