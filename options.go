package ogi

import "log/slog"

// defaultInboxSize buffers enough arrivals that producers rarely block
// between Collect rounds.
const defaultInboxSize = 256

// Option configures a Scheduler.
type Option func(*schedulerOptions)

// schedulerOptions holds resolved settings after applying defaults.
// Unexported — callers use the With* functions.
type schedulerOptions struct {
	logger    *slog.Logger
	inboxSize int
}

func defaultOptions() schedulerOptions {
	return schedulerOptions{
		logger:    slog.Default(),
		inboxSize: defaultInboxSize,
	}
}

// WithLogger sets the structured logger for the scheduler.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithInboxSize sets the result inbox buffer capacity. Results that arrive
// while no Collect call is draining sit in this buffer; size it for the
// largest batch expected between collection rounds.
func WithInboxSize(n int) Option {
	return func(o *schedulerOptions) {
		if n > 0 {
			o.inboxSize = n
		}
	}
}
