package gorawronion

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// stepKind distinguishes what occupies a position during one run.
type stepKind int

const (
	stepSequence  stepKind = iota // composed handler at the position
	stepTerminal                  // terminal handler supplied to the run
	stepExhausted                 // nothing left to enter
)

// step is the resolved occupant of a pipeline position.
type step[C any] struct {
	kind    stepKind
	handler Handler[C]
}

// dispatcher holds the state of a single run. It is created fresh for every
// invocation and never shared between runs.
type dispatcher[C any] struct {
	p        *Pipeline[C]
	c        C
	terminal Handler[C]

	// cursor is the highest position entered so far; -1 before the first.
	cursor atomic.Int64

	// violation is the first protocol violation seen during the run.
	violation atomic.Pointer[ProtocolError]

	logger *slog.Logger
	obs    RunObserver
}

func newDispatcher[C any](p *Pipeline[C], c C, terminal Handler[C]) *dispatcher[C] {
	d := &dispatcher[C]{p: p, c: c, terminal: terminal}
	d.cursor.Store(-1)
	return d
}

// run starts the run at position 0 and returns the outermost Completion.
func (d *dispatcher[C]) run(info RunInfo) *Completion {
	logger := d.p.logger
	if logger == nil {
		logger = discardLogger
	}
	d.logger = logger.With(
		slog.String("pipeline", info.Pipeline),
		slog.String("run_id", info.ID),
	)
	d.obs = d.startRun(info)
	d.logger.Debug("pipeline run started",
		slog.Int("size", info.Size),
		slog.Bool("terminal", info.Terminal),
	)

	start := time.Now()
	out, settle := NewCompletion()
	d.advance(0).onSettle(func(err error) {
		if err == nil {
			// A dropped rejection from a second next() call still fails
			// the run.
			if v := d.violation.Load(); v != nil {
				err = v
			}
		}
		elapsed := time.Since(start)
		if err != nil {
			d.logger.Warn("pipeline run failed",
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			d.logger.Debug("pipeline run completed",
				slog.Duration("elapsed", elapsed),
			)
		}
		d.obs.End(err)
		settle(err)
	})
	return out
}

// startRun notifies the pipeline's observer. The context value is only
// inspected when an observer is installed.
func (d *dispatcher[C]) startRun(info RunInfo) RunObserver {
	switch d.p.observer.(type) {
	case nil, noopObserver:
		return noopRun{}
	}
	return d.p.observer.StartRun(contextOf(d.c), info)
}

// enter moves the cursor to position i. It reports false when i has already
// been reached, in which case the cursor is left untouched.
func (d *dispatcher[C]) enter(i int) bool {
	for {
		cur := d.cursor.Load()
		if int64(i) <= cur {
			return false
		}
		if d.cursor.CompareAndSwap(cur, int64(i)) {
			return true
		}
	}
}

// resolve returns what should run at position i.
func (d *dispatcher[C]) resolve(i int) step[C] {
	switch {
	case i < len(d.p.handlers):
		return step[C]{kind: stepSequence, handler: d.p.handlers[i]}
	case i == len(d.p.handlers) && d.terminal != nil:
		return step[C]{kind: stepTerminal, handler: d.terminal}
	default:
		return step[C]{kind: stepExhausted}
	}
}

// advance enters position i and returns the Completion of everything from i
// onward.
func (d *dispatcher[C]) advance(i int) *Completion {
	if !d.enter(i) {
		perr := &ProtocolError{Position: i}
		d.violation.CompareAndSwap(nil, perr)
		d.logger.Warn("continuation called more than once",
			slog.Int("position", i),
			slog.Int("caller_position", i-1),
		)
		d.obs.ProtocolViolation(i)
		return Rejected(perr)
	}

	st := d.resolve(i)
	if st.kind == stepExhausted {
		return Resolved()
	}

	kind := StepSequence
	if st.kind == stepTerminal {
		kind = StepTerminal
	}
	end := d.obs.StartStep(i, kind)

	c := d.invoke(st.handler, i)
	c.onSettle(end)
	return c
}

// invoke calls h for position i. A panic raised before h returns is turned
// into a rejected Completion, so synchronous and asynchronous failures reach
// the caller the same way. A nil or zero Completion counts as success.
func (d *dispatcher[C]) invoke(h Handler[C], i int) (c *Completion) {
	defer func() {
		if r := recover(); r != nil {
			err := panicError(r)
			attrs := []any{slog.Int("position", i), slog.Any("panic", r)}
			if pe, ok := err.(*PanicError); ok {
				attrs = append(attrs, slog.String("stack", string(pe.Stack)))
			}
			d.logger.Error("handler panicked", attrs...)
			c = Rejected(err)
		}
	}()

	c = h(d.c, func() *Completion { return d.advance(i + 1) })
	if c == nil || c.done == nil {
		c = Resolved()
	}
	return c
}
