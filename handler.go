package gorawronion

// Next resumes the pipeline at the position after the calling handler and
// returns the downstream Completion. Each Next may be called at most once;
// a second call yields a Completion rejected with
// [ErrNextCalledMultipleTimes].
type Next func() *Completion

// Handler is one layer of the onion. It receives the caller-defined context
// value and the continuation for the rest of the pipeline. Returning nil is
// equivalent to returning [Resolved].
type Handler[C any] func(c C, next Next) *Completion

// Middleware is implemented by values that act as a handler. [ComposeAny]
// accepts them alongside plain functions.
type Middleware[C any] interface {
	Handle(c C, next Next) *Completion
}

// Func adapts a blocking handler. Calling next blocks until the rest of the
// pipeline has settled and returns its error.
//
//	onion.Func(func(c *Req, next func() error) error {
//		c.Log = append(c.Log, "before")
//		err := next()
//		c.Log = append(c.Log, "after")
//		return err
//	})
func Func[C any](fn func(c C, next func() error) error) Handler[C] {
	return func(c C, next Next) *Completion {
		return Settled(fn(c, func() error { return next().Await() }))
	}
}

// Go is like [Func] but runs fn on its own goroutine, so the handler returns
// a pending Completion immediately.
func Go[C any](fn func(c C, next func() error) error) Handler[C] {
	return func(c C, next Next) *Completion {
		return Async(func() error {
			return fn(c, func() error { return next().Await() })
		})
	}
}
