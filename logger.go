package gpucmd

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucmd/gpucore"
)

// newNopLogger creates a logger that silently discards all output.
// Enabled reports false, so callers skip message formatting entirely.
func newNopLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// shared holds the open devices that follow the package logger.
// sharedMu also orders SetLogger against device registration so a driver
// never keeps a logger that was replaced while the device opened.
var (
	sharedMu sync.Mutex
	shared   = make(map[*Device]struct{})
)

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the package-wide logger used by devices that were
// not given one through [WithLogger]. The logger is also handed to the
// drivers of those devices. By default gpucmd produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior.
//
// Log levels used by gpucmd:
//   - [slog.LevelDebug]: pool and arena traffic, pass begin/end
//   - [slog.LevelInfo]: device open and close, backend selection
//   - [slog.LevelWarn]: skipped frames, implicit submits during teardown
//   - [slog.LevelError]: pool misuse, leaked command buffers
//
// Example:
//
//	gpucmd.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	sharedMu.Lock()
	defer sharedMu.Unlock()
	loggerPtr.Store(l)
	for d := range shared {
		propagateLogger(d.driver, l)
	}
}

// Logger returns the package-wide logger.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by drivers that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes the logger to a driver if it implements
// the loggerSetter interface.
func propagateLogger(drv gpucore.Driver, l *slog.Logger) {
	if ls, ok := drv.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

// followPackageLogger hands the current package logger to d's driver and
// keeps it in step with later SetLogger calls until unfollowPackageLogger.
func followPackageLogger(d *Device) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared[d] = struct{}{}
	propagateLogger(d.driver, Logger())
}

func unfollowPackageLogger(d *Device) {
	sharedMu.Lock()
	delete(shared, d)
	sharedMu.Unlock()
}
