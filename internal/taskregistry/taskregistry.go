// Package taskregistry implements the shutdown-watch cancellation contract
// (spec §5 "Cancellation"): every long-lived task registers here so a
// single shutdown call can broadcast cancellation and wait for a clean,
// cooperative exit, grounded on the teacher's errgroup-based service
// lifecycle and golang.org/x/sync/errgroup's own cancel-and-wait shape.
package taskregistry

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Handle is what Register returns alongside the task's done func: the
// task's id, its cancel function, and its cancellation context.
type Handle struct {
	ID     string
	Cancel context.CancelFunc
	ctx    context.Context
}

// Context returns the task's cancellation context; the task must poll
// ctx.Done() at every suspension point (spec §5 "cooperative").
func (h *Handle) Context() context.Context { return h.ctx }

// Registry tracks every outstanding cancellable task and carries the
// process-wide shutdown watch (spec §5): "the watch broadcasts a true
// value; all cancellable tasks observe and exit cleanly. Any remaining
// handles are aborted."
type Registry struct {
	mu       sync.Mutex
	parent   context.Context
	cancel   context.CancelFunc
	tasks    map[string]*entry
	shutdown bool
}

type entry struct {
	handle *Handle
	done   chan struct{}
}

// New returns a registry whose tasks are all children of parent; canceling
// parent (or calling Shutdown) cancels every registered task.
func New(parent context.Context) *Registry {
	ctx, cancel := context.WithCancel(parent)
	return &Registry{parent: ctx, cancel: cancel, tasks: make(map[string]*entry)}
}

// Register allocates a new cancellable task context under id, returning a
// Handle the caller's goroutine should run against, and a done func the
// caller must invoke exactly once when the task actually exits.
func (r *Registry) Register(id string) (*Handle, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		return nil, nil, fmt.Errorf("taskregistry: registry is shutting down, refusing to register %q", id)
	}
	if _, exists := r.tasks[id]; exists {
		return nil, nil, fmt.Errorf("taskregistry: task %q already registered", id)
	}
	ctx, cancel := context.WithCancel(r.parent)
	h := &Handle{ID: id, Cancel: cancel, ctx: ctx}
	done := make(chan struct{})
	r.tasks[id] = &entry{handle: h, done: done}

	var once sync.Once
	markDone := func() {
		once.Do(func() { close(done) })
	}
	return h, markDone, nil
}

// Unregister drops a completed task's bookkeeping entry. Safe to call after
// the task's done func has already fired.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// Active reports how many tasks are currently tracked.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Shutdown broadcasts cancellation to every registered task and waits up to
// grace for all of them to report done, then returns — any stragglers are
// left to finish asynchronously ("any remaining handles are aborted": their
// context is already canceled, so they are expected to unwind promptly).
func (r *Registry) Shutdown(grace time.Duration) {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return
	}
	r.shutdown = true
	entries := make([]*entry, 0, len(r.tasks))
	for _, e := range r.tasks {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	r.cancel()

	deadline := time.After(grace)
	for _, e := range entries {
		select {
		case <-e.handle.ctx.Done():
		default:
		}
		select {
		case <-e.done:
		case <-deadline:
			return
		}
	}
}
