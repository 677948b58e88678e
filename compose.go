package gorawronion

import (
	"log/slog"
	"reflect"
	"slices"

	"github.com/google/uuid"
)

// Invoker runs a composed pipeline once for the context value c. terminal,
// when non-nil, is entered after the last composed handler calls its
// continuation, exactly as if it were one more element of the sequence.
type Invoker[C any] func(c C, terminal Handler[C]) *Completion

// Handler turns the invoker into a handler so the pipeline can be nested as
// a single step of another pipeline. The outer continuation becomes the
// inner pipeline's terminal handler.
func (inv Invoker[C]) Handler() Handler[C] {
	return func(c C, next Next) *Completion {
		return inv(c, func(C, Next) *Completion { return next() })
	}
}

// Pipeline is an immutable, ordered sequence of handlers. It is safe for
// concurrent use; every run gets its own dispatcher. The zero value is an
// empty, unnamed pipeline with no logging and no observer; use [New] to
// compose handlers.
type Pipeline[C any] struct {
	name     string
	handlers []Handler[C]
	logger   *slog.Logger
	observer Observer
}

// New validates handlers and returns a Pipeline over a private copy of them.
// A nil element yields a [*ConfigError] wrapping [ErrNotCallable].
func New[C any](handlers []Handler[C], opts ...Option) (*Pipeline[C], error) {
	for i, h := range handlers {
		if h == nil {
			return nil, &ConfigError{Index: i, Err: ErrNotCallable}
		}
	}

	cfg := newConfig(opts)
	return &Pipeline[C]{
		name:     cfg.name,
		handlers: slices.Clone(handlers),
		logger:   cfg.logger,
		observer: cfg.observer(),
	}, nil
}

// Compose validates handlers and returns the function that runs them in
// onion order.
//
// Example:
//
//	run, err := onion.Compose([]onion.Handler[*Req]{logging, auth, route})
//	if err != nil {
//		return err
//	}
//	err = run(req, nil).Wait(ctx)
func Compose[C any](handlers []Handler[C], opts ...Option) (Invoker[C], error) {
	p, err := New(handlers, opts...)
	if err != nil {
		return nil, err
	}
	return p.Invoker(), nil
}

// ComposeAny is Compose for a dynamically typed stack, e.g. one assembled
// from configuration. seq must be a slice or an array; each element must be
// a Handler[C], a func(C, Next) *Completion, an Invoker[C] or a
// Middleware[C].
func ComposeAny[C any](seq any, opts ...Option) (Invoker[C], error) {
	v := reflect.ValueOf(seq)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return nil, &ConfigError{Index: -1, Err: ErrNotList}
	}

	handlers := make([]Handler[C], v.Len())
	for i := range handlers {
		h, ok := asHandler[C](v.Index(i).Interface())
		if !ok {
			return nil, &ConfigError{Index: i, Err: ErrNotCallable}
		}
		handlers[i] = h
	}
	return Compose(handlers, opts...)
}

// asHandler converts one element of a dynamically typed stack.
func asHandler[C any](el any) (Handler[C], bool) {
	var h Handler[C]
	switch fn := el.(type) {
	case Handler[C]:
		h = fn
	case func(C, Next) *Completion:
		h = fn
	case Invoker[C]:
		if fn != nil {
			h = fn.Handler()
		}
	case Middleware[C]:
		if fn != nil && !isNilPointer(fn) {
			h = fn.Handle
		}
	}
	return h, h != nil
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// Name returns the name configured with WithName.
func (p *Pipeline[C]) Name() string { return p.name }

// Len returns the number of composed handlers.
func (p *Pipeline[C]) Len() int { return len(p.handlers) }

// Run runs the pipeline for c without a terminal handler.
func (p *Pipeline[C]) Run(c C) *Completion {
	return p.RunWith(c, nil)
}

// RunWith runs the pipeline for c. The returned Completion settles once
// every entered handler, including the work it does after its continuation
// returns, has settled.
func (p *Pipeline[C]) RunWith(c C, terminal Handler[C]) *Completion {
	d := newDispatcher(p, c, terminal)
	info := RunInfo{
		ID:       uuid.NewString(),
		Pipeline: p.name,
		Size:     len(p.handlers),
		Terminal: terminal != nil,
	}
	return d.run(info)
}

// Invoker returns p.RunWith as an Invoker.
func (p *Pipeline[C]) Invoker() Invoker[C] {
	return p.RunWith
}

// Handler returns p as a handler for nesting inside another pipeline.
func (p *Pipeline[C]) Handler() Handler[C] {
	return p.Invoker().Handler()
}
