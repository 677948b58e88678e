package gorawronion

import "context"

// StepKind tells an Observer what occupies an entered pipeline position.
type StepKind int

const (
	// StepSequence is a handler from the composed sequence.
	StepSequence StepKind = iota
	// StepTerminal is the terminal handler supplied to a single run.
	StepTerminal
)

func (k StepKind) String() string {
	switch k {
	case StepSequence:
		return "sequence"
	case StepTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// RunInfo describes one pipeline run to an Observer.
type RunInfo struct {
	ID       string
	Pipeline string
	Size     int  // number of composed handlers
	Terminal bool // whether a terminal handler was supplied
}

// Observer is notified about pipeline runs. Implementations must be safe for
// concurrent use; see the tracing and metrics packages.
type Observer interface {
	// StartRun is called once per run, before the first handler is entered.
	// ctx is derived from the run's context value when it carries one.
	StartRun(ctx context.Context, info RunInfo) RunObserver
}

// RunObserver receives the events of a single run. Its methods may be called
// from different goroutines, but each position is started at most once.
type RunObserver interface {
	// StartStep is called when a handler is entered. The returned function
	// is called once with the step's outcome when its Completion settles.
	StartStep(position int, kind StepKind) func(err error)

	// ProtocolViolation is called when a continuation targets a position
	// that was already entered.
	ProtocolViolation(position int)

	// End is called once with the run's final outcome.
	End(err error)
}

type noopObserver struct{}

func (noopObserver) StartRun(context.Context, RunInfo) RunObserver { return noopRun{} }

type noopRun struct{}

func (noopRun) StartStep(int, StepKind) func(error) { return func(error) {} }
func (noopRun) ProtocolViolation(int)               {}
func (noopRun) End(error)                           {}

// multiObserver fans events out to several observers in registration order.
type multiObserver []Observer

func (m multiObserver) StartRun(ctx context.Context, info RunInfo) RunObserver {
	runs := make(multiRun, len(m))
	for i, o := range m {
		runs[i] = o.StartRun(ctx, info)
	}
	return runs
}

type multiRun []RunObserver

func (m multiRun) StartStep(position int, kind StepKind) func(error) {
	ends := make([]func(error), len(m))
	for i, r := range m {
		ends[i] = r.StartStep(position, kind)
	}
	return func(err error) {
		// Close in reverse so nested instrumentation unwinds cleanly.
		for i := len(ends) - 1; i >= 0; i-- {
			ends[i](err)
		}
	}
}

func (m multiRun) ProtocolViolation(position int) {
	for _, r := range m {
		r.ProtocolViolation(position)
	}
}

func (m multiRun) End(err error) {
	for i := len(m) - 1; i >= 0; i-- {
		m[i].End(err)
	}
}

// contextOf returns the context.Context carried by the run's context value,
// if any. A Context method that panics, e.g. on a nil receiver, yields
// context.Background.
func contextOf(v any) (ctx context.Context) {
	defer func() {
		if recover() != nil {
			ctx = context.Background()
		}
	}()

	switch c := v.(type) {
	case context.Context:
		if c != nil {
			return c
		}
	case interface{ Context() context.Context }:
		if ctx := c.Context(); ctx != nil {
			return ctx
		}
	}
	return context.Background()
}
