package gpucmd

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("GPUCMD_BACKEND", "headless")
	t.Setenv("GPUCMD_ARENA_CAPACITY", "2048")
	t.Setenv("GPUCMD_COMMAND_ARENA_CAPACITY", "8192")
	t.Setenv("GPUCMD_PREWARM", "2")
	t.Setenv("GPUCMD_LOG_LEVEL", "debug")

	conf, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := Config{
		Backend:              "headless",
		ArenaCapacity:        2048,
		CommandArenaCapacity: 8192,
		Prewarm:              2,
		LogLevel:             "debug",
	}
	if conf != want {
		t.Errorf("LoadConfig() = %+v, want %+v", conf, want)
	}

	opts, err := conf.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.arenaCapacity != 2048 || o.commandArenaCapacity != 8192 || o.prewarm != 2 {
		t.Errorf("options = %+v", o)
	}
	if o.logger == nil || !o.logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug logger not configured")
	}
}

func TestLoadConfigPrefix(t *testing.T) {
	t.Setenv("DEMO_PREWARM", "3")
	conf, err := LoadConfig("DEMO")
	if err != nil {
		t.Fatal(err)
	}
	if conf.Prewarm != 3 {
		t.Errorf("Prewarm = %d, want 3", conf.Prewarm)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("GPUCMD_PREWARM", "many")
	if _, err := LoadConfig(""); err == nil {
		t.Error("LoadConfig accepted a non-numeric PREWARM")
	}
}

func TestConfigLogger(t *testing.T) {
	tests := []struct {
		level   string
		nilLog  bool
		enabled slog.Level
		wantErr bool
	}{
		{level: "", nilLog: true},
		{level: "info", enabled: slog.LevelInfo},
		{level: "WARN", enabled: slog.LevelWarn},
		{level: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := Config{LogLevel: tt.level}.Logger()
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if tt.nilLog {
				if l != nil {
					t.Error("expected nil logger")
				}
				return
			}
			if !l.Enabled(context.Background(), tt.enabled) {
				t.Errorf("logger disabled at %v", tt.enabled)
			}
			if l.Enabled(context.Background(), tt.enabled-1) {
				t.Errorf("logger enabled below %v", tt.enabled)
			}
		})
	}

	if _, err := (Config{LogLevel: "loud"}).Options(); err == nil {
		t.Error("Options accepted an invalid log level")
	}
}

func TestOpenFromConfig(t *testing.T) {
	conf := Config{Backend: "headless", Prewarm: 1}
	opts, err := conf.Options()
	if err != nil {
		t.Fatal(err)
	}
	dev, err := Open(conf.Backend, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()
	if got := dev.Stats().CommandBuffers.Idle; got != 1 {
		t.Errorf("prewarmed command buffers = %d, want 1", got)
	}
}
