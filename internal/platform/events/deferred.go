package events

import (
	"context"
	"sync"
)

type deferredKey struct{}

// Deferred queues side effects raised inside a store transaction so they
// only run once the transaction has committed.
type Deferred struct {
	mu  sync.Mutex
	fns []func()

	// nested is set when an enclosing Deferred owns the queue; Run and
	// Discard are then left to the owner.
	nested bool
}

// Defer returns a context that queues OnCommit callbacks into d. When ctx
// already carries a Deferred the callbacks go to it and the returned d is
// inert.
func Defer(ctx context.Context) (context.Context, *Deferred) {
	if _, ok := ctx.Value(deferredKey{}).(*Deferred); ok {
		return ctx, &Deferred{nested: true}
	}
	d := &Deferred{}
	return context.WithValue(ctx, deferredKey{}, d), d
}

// OnCommit runs fn now, or queues it when ctx carries a Deferred.
func OnCommit(ctx context.Context, fn func()) {
	if d, ok := ctx.Value(deferredKey{}).(*Deferred); ok {
		d.mu.Lock()
		d.fns = append(d.fns, fn)
		d.mu.Unlock()
		return
	}
	fn()
}

// Run executes the queued callbacks in order and empties the queue.
func (d *Deferred) Run() {
	if d.nested {
		return
	}
	d.mu.Lock()
	fns := d.fns
	d.fns = nil
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Discard drops the queued callbacks.
func (d *Deferred) Discard() {
	if d.nested {
		return
	}
	d.mu.Lock()
	d.fns = nil
	d.mu.Unlock()
}
