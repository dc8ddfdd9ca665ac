package gpucmd

import (
	"log/slog"

	"github.com/gogpu/gpucmd/internal/arena"
)

// Default sizes.
const (
	// DefaultArenaCapacity is the capacity of the device arena used for
	// resource names.
	DefaultArenaCapacity = arena.DefaultCapacity

	// DefaultCommandArenaCapacity is the capacity of each command buffer's
	// private arena used for uniform blocks and debug labels.
	DefaultCommandArenaCapacity = 4096
)

// Option configures a Device during creation.
//
// Example:
//
//	dev, err := gpucmd.NewDevice(drv,
//	    gpucmd.WithLogger(slog.Default()),
//	    gpucmd.WithPrewarm(2),
//	)
type Option func(*options)

// options holds optional configuration for Device creation.
type options struct {
	logger               *slog.Logger
	arenaCapacity        int
	commandArenaCapacity int
	prewarm              int
}

// defaultOptions returns the default device options.
func defaultOptions() options {
	return options{
		arenaCapacity:        DefaultArenaCapacity,
		commandArenaCapacity: DefaultCommandArenaCapacity,
	}
}

// WithLogger sets a device-specific logger. The logger is also passed to
// the driver when it accepts one. Without this option the device logs
// through [Logger].
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithArenaCapacity sets the capacity in bytes of the device arena.
// Non-positive values keep the default.
func WithArenaCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.arenaCapacity = n
		}
	}
}

// WithCommandArenaCapacity sets the capacity in bytes of each command
// buffer's arena. It bounds the size of a single uniform push or debug
// label. Non-positive values keep the default.
func WithCommandArenaCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.commandArenaCapacity = n
		}
	}
}

// WithPrewarm creates n idle instances in each of the device pools so the
// first frames do not allocate.
func WithPrewarm(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.prewarm = n
		}
	}
}
