package gorawronion

import "log/slog"

// DefaultOptions returns the recommended set of options for production use.
// Currently this routes engine logs to slog.Default(); additional defaults
// may be added in future versions.
func DefaultOptions() []Option {
	return []Option{
		WithLogger(slog.Default()),
	}
}
