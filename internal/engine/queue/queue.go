// Package queue serializes mutation tasks against a shared document.
//
// A Queue runs one worker goroutine that takes tasks from a FIFO list and
// runs them one at a time. Tasks finish in the order they were enqueued,
// however long each one blocks internally: a slow AI batch enqueued before
// a fast keystroke batch still runs first. A task that fails or panics
// reports to its own caller and the worker moves on.
//
// There is no priority and no preemption. Once a task is dequeued it runs
// to completion; a caller that stops waiting simply discards the result.
package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/dshills/scriptstorm/internal/logging"
)

// ErrClosed is returned when enqueuing on a closed queue.
var ErrClosed = errors.New("mutation queue closed")

// Source identifies who submitted a task.
type Source string

// Task sources.
const (
	SourceHuman  Source = "human"
	SourceAI     Source = "ai"
	SourceSystem Source = "system"
)

// TaskFunc is the body of a queued task.
type TaskFunc func() (any, error)

// TaskError wraps a panic recovered from a task body.
type TaskError struct {
	Seq    uint64
	Source Source
	Panic  any
	Stack  []byte
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d (%s) panicked: %v", e.Seq, e.Source, e.Panic)
}

// Ticket is the caller's handle on an enqueued task.
type Ticket struct {
	Seq    uint64
	Source Source

	fn     TaskFunc
	done   chan struct{}
	result any
	err    error
}

// Done is closed once the task has run.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task has run or ctx ends. When ctx ends first the
// task is not interrupted; its result is simply not observed.
func (t *Ticket) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats reports queue counters.
type Stats struct {
	Enqueued  uint64
	Completed uint64
	Failed    uint64
	Depth     int
}

// Queue is a FIFO task queue consumed by a single worker.
type Queue struct {
	mu      sync.Mutex
	pending []*Ticket
	running bool
	closed  bool
	wake    chan struct{}
	stopped chan struct{}

	seq       atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64

	logger *logging.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the queue logger.
func WithLogger(l *logging.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// New creates a queue and starts its worker.
func New(opts ...Option) *Queue {
	q := &Queue{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.WithComponent("queue")

	go q.loop()
	return q
}

// Enqueue appends a task and returns its ticket without waiting.
func (q *Queue) Enqueue(source Source, fn TaskFunc) (*Ticket, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	t := &Ticket{
		Seq:    q.seq.Add(1),
		Source: source,
		fn:     fn,
		done:   make(chan struct{}),
	}
	q.pending = append(q.pending, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return t, nil
}

// Do enqueues a task and waits for it.
func (q *Queue) Do(ctx context.Context, source Source, fn TaskFunc) (any, error) {
	t, err := q.Enqueue(source, fn)
	if err != nil {
		return nil, err
	}
	return t.Wait(ctx)
}

// Submit is a typed Do.
func Submit[T any](ctx context.Context, q *Queue, source Source, fn func() (T, error)) (T, error) {
	v, err := q.Do(ctx, source, func() (any, error) { return fn() })
	t, _ := v.(T)
	return t, err
}

// Depth returns the number of tasks queued or running.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.running {
		n++
	}
	return n
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued:  q.seq.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
		Depth:     q.Depth(),
	}
}

// Close stops accepting tasks, lets the worker drain what is queued, and
// waits for it to exit or ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
	q.mu.Unlock()

	select {
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) loop() {
	defer close(q.stopped)
	for {
		t, ok := q.next()
		if !ok {
			return
		}
		q.run(t)
	}
}

// next pops the head task, sleeping until one arrives. It returns false
// once the queue is closed and empty.
func (q *Queue) next() (*Ticket, bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			t := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.running = true
			q.mu.Unlock()
			return t, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
		<-q.wake
	}
}

func (q *Queue) run(t *Ticket) {
	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
		close(t.done)
	}()

	t.result, t.err = q.call(t)
	q.completed.Add(1)
	if t.err != nil {
		q.failed.Add(1)
		q.logger.Debug("task %d from %s failed: %v", t.Seq, t.Source, t.err)
	}
}

func (q *Queue) call(t *Ticket) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskError{Seq: t.Seq, Source: t.Source, Panic: r, Stack: debug.Stack()}
			q.logger.Error("%v", err)
		}
	}()
	return t.fn()
}
