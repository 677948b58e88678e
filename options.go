package gorawronion

import "log/slog"

// Option configures a Pipeline.
type Option func(*config)

// WithName sets the pipeline name used in logs, spans and metric labels.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets the structured logger used for run lifecycle events,
// protocol violations and recovered panics. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver appends an Observer that is notified about every run. It may
// be passed more than once; observers are started in registration order.
func WithObserver(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}
