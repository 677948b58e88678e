package gorawronion

import (
	"context"
	"sync"
)

// Completion is the asynchronous outcome of a handler, a dispatch step or a
// whole pipeline run. It settles exactly once, either with a nil error
// (success) or with a non-nil error (failure).
//
// Callbacks registered on a Completion run before [Completion.Done] is
// closed, so a waiter that wakes up on Done observes every side effect of
// those callbacks.
//
// The zero value is not a usable Completion; create one with [NewCompletion],
// [Settled], [Resolved], [Rejected] or [Async]. A zero Completion returned
// by a handler is treated like nil, i.e. as success.
type Completion struct {
	done chan struct{}

	mu        sync.Mutex
	settled   bool
	err       error
	callbacks []func(error)
}

// NewCompletion returns a pending Completion together with the function that
// settles it. Only the first call to settle has any effect.
func NewCompletion() (*Completion, func(error)) {
	c := &Completion{done: make(chan struct{})}
	return c, func(err error) { c.settle(err) }
}

// Resolved returns a Completion that has already succeeded.
func Resolved() *Completion {
	return Settled(nil)
}

// Rejected returns a Completion that has already failed with err.
func Rejected(err error) *Completion {
	return Settled(err)
}

// Settled returns an already-settled Completion carrying err.
func Settled(err error) *Completion {
	c := &Completion{done: make(chan struct{}), settled: true, err: err}
	close(c.done)
	return c
}

// Async runs fn on a new goroutine and returns a Completion that settles with
// its result. A panic inside fn rejects the Completion instead of crashing
// the process.
func Async(fn func() error) *Completion {
	c, settle := NewCompletion()
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
			}
			settle(err)
		}()
		err = fn()
	}()
	return c
}

func (c *Completion) settle(err error) bool {
	c.mu.Lock()
	if c.settled {
		c.mu.Unlock()
		return false
	}
	c.settled = true
	c.err = err
	cbs := c.callbacks
	c.callbacks = nil
	c.mu.Unlock()

	for _, cb := range cbs {
		cb(err)
	}
	close(c.done)
	return true
}

// onSettle registers cb to run once c settles. If c has already settled, cb
// runs immediately on the calling goroutine.
func (c *Completion) onSettle(cb func(error)) {
	c.mu.Lock()
	if c.settled {
		err := c.err
		c.mu.Unlock()
		cb(err)
		return
	}
	c.callbacks = append(c.callbacks, cb)
	c.mu.Unlock()
}

// Done returns a channel that is closed once c has settled.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the failure c settled with. It returns nil while c is still
// pending and after a successful settle.
func (c *Completion) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Await blocks until c settles and returns its error.
func (c *Completion) Await() error {
	<-c.done
	return c.Err()
}

// Wait blocks until c settles or ctx is done, whichever comes first. Giving
// up on ctx does not cancel the work behind c.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Then returns a Completion that settles with fn's result once c has
// settled. fn receives c's error and may pass it on, replace it or swallow
// it. fn runs on whichever goroutine settles c; a panic in fn rejects the
// returned Completion.
func (c *Completion) Then(fn func(error) error) *Completion {
	out, settle := NewCompletion()
	c.onSettle(func(err error) {
		var res error
		defer func() {
			if r := recover(); r != nil {
				res = panicError(r)
			}
			settle(res)
		}()
		res = fn(err)
	})
	return out
}
