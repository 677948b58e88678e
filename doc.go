// Package gorawronion composes asynchronous middleware into a single
// callable that runs them in onion order.
//
// Every [Handler] receives the caller's context value and a [Next]
// continuation. Code before the call to next runs in sequence order, code
// after it runs in reverse order once the rest of the pipeline has settled:
//
//	logging := func(r *Req, next onion.Next) *onion.Completion {
//		r.Log = append(r.Log, "before")
//		return next().Then(func(err error) error {
//			r.Log = append(r.Log, "after")
//			return err
//		})
//	}
//
//	run, err := onion.Compose([]onion.Handler[*Req]{logging, auth, route})
//	if err != nil {
//		return err // malformed stack, nothing ran
//	}
//	if err := run(req, nil).Wait(ctx); err != nil {
//		return err
//	}
//
// A handler that does not call next short-circuits the rest of the
// pipeline. Calling next twice fails the run with
// [ErrNextCalledMultipleTimes]. Errors returned by handlers, rejected
// completions and panics all surface through the [Completion] returned by
// the invoker; nothing is thrown out of the invocation itself.
//
// Handlers written in blocking style can be adapted with [Func] and [Go].
// Pipelines nest: [Invoker.Handler] and [Pipeline.Handler] turn a pipeline
// into one step of another.
package gorawronion
