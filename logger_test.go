package gpucmd

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gpucmd/backend/headless"
)

func TestLoggerDefaultSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("default logger should not be enabled for %v", level)
		}
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetLogger(custom)

	if Logger() != custom {
		t.Error("Logger() did not return the logger set via SetLogger")
	}

	// Devices without WithLogger log through the package logger.
	newTestDevice(t)
	if !strings.Contains(buf.String(), "device created") {
		t.Errorf("package logger did not receive device output: %s", buf.String())
	}
}

func TestSetLoggerNilRestoresSilent(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.Default())
	SetLogger(nil)

	l := Logger()
	if l == nil {
		t.Fatal("SetLogger(nil) should set nop logger, not nil")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should produce a disabled logger")
	}
}

// loggingDriver records the logger handed to the driver.
type loggingDriver struct {
	*headless.Driver
	logger atomic.Pointer[slog.Logger]
}

func (d *loggingDriver) SetLogger(l *slog.Logger) {
	d.logger.Store(l)
	d.Driver.SetLogger(l)
}

func TestWithLoggerPropagatesToDriver(t *testing.T) {
	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	drv := &loggingDriver{Driver: headless.New()}
	dev, err := NewDevice(drv, WithLogger(custom))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = dev.Close() })

	if drv.logger.Load() != custom {
		t.Error("WithLogger did not propagate to the driver")
	}
	if !strings.Contains(buf.String(), "backend=headless") {
		t.Errorf("device logger output missing backend: %s", buf.String())
	}

	// A per-device logger wins over later package-wide changes.
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	SetLogger(slog.Default())
	if drv.logger.Load() != custom {
		t.Error("SetLogger replaced the driver logger of a device opened WithLogger")
	}
}

func TestSetLoggerPropagatesToDriver(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	drv := &loggingDriver{Driver: headless.New()}
	dev, err := NewDevice(drv)
	if err != nil {
		t.Fatal(err)
	}
	if drv.logger.Load() != Logger() {
		t.Error("NewDevice did not hand the package logger to the driver")
	}

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(custom)
	if drv.logger.Load() != custom {
		t.Errorf("driver logger after SetLogger = %v, want the new logger", drv.logger.Load())
	}

	SetLogger(nil)
	if l := drv.logger.Load(); l == nil || l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) did not hand a silent logger to the driver")
	}

	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}
	SetLogger(custom)
	if drv.logger.Load() == custom {
		t.Error("SetLogger reached the driver of a closed device")
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	const goroutines = 100

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := Logger()
			if l == nil {
				t.Error("Logger() returned nil during concurrent access")
			}
			l.Debug("concurrent read")
		}()
	}
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetLogger(slog.Default())
			SetLogger(nil)
		}()
	}

	wg.Wait()
}

func BenchmarkLoggerLoad(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		_ = Logger()
	}
}

func BenchmarkLoggerDisabledLog(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for b.Loop() {
		l.Debug("message", "key", "value")
	}
}
