package gorawronion

import "log/slog"

var discardLogger = slog.New(slog.DiscardHandler)

// config holds the internal configuration assembled via functional options.
type config struct {
	name      string
	logger    *slog.Logger
	observers []Observer
}

// newConfig applies opts on top of the package defaults.
func newConfig(opts []Option) config {
	cfg := config{
		name:   "pipeline",
		logger: discardLogger,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// observer collapses the configured observers into one.
func (c *config) observer() Observer {
	switch len(c.observers) {
	case 0:
		return noopObserver{}
	case 1:
		return c.observers[0]
	}
	return multiObserver(c.observers)
}
