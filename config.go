package gpucmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the environment prefix read by LoadConfig.
const EnvPrefix = "GPUCMD"

// Config is the environment-driven device configuration.
//
//	GPUCMD_BACKEND=headless
//	GPUCMD_ARENA_CAPACITY=2048
//	GPUCMD_COMMAND_ARENA_CAPACITY=8192
//	GPUCMD_PREWARM=2
//	GPUCMD_LOG_LEVEL=debug
type Config struct {
	// Backend selects a registered backend. Empty selects the default.
	Backend string `envconfig:"BACKEND"`

	ArenaCapacity        int `envconfig:"ARENA_CAPACITY"`
	CommandArenaCapacity int `envconfig:"COMMAND_ARENA_CAPACITY"`
	Prewarm              int `envconfig:"PREWARM"`

	// LogLevel is one of debug, info, warn, error. Empty disables logging.
	LogLevel string `envconfig:"LOG_LEVEL"`
}

// LoadConfig reads Config from the environment. An empty prefix uses
// EnvPrefix.
func LoadConfig(prefix string) (Config, error) {
	if prefix == "" {
		prefix = EnvPrefix
	}
	var conf Config
	if err := envconfig.Process(prefix, &conf); err != nil {
		return Config{}, fmt.Errorf("gpucmd: load config: %w", err)
	}
	return conf, nil
}

// Logger builds a text logger writing to stderr at the configured level.
// It returns nil when LogLevel is empty.
func (c Config) Logger() (*slog.Logger, error) {
	if c.LogLevel == "" {
		return nil, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return nil, fmt.Errorf("gpucmd: log level %q: %w", c.LogLevel, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// Options converts the configuration into device options.
func (c Config) Options() ([]Option, error) {
	opts := []Option{
		WithArenaCapacity(c.ArenaCapacity),
		WithCommandArenaCapacity(c.CommandArenaCapacity),
		WithPrewarm(c.Prewarm),
	}
	l, err := c.Logger()
	if err != nil {
		return nil, err
	}
	if l != nil {
		opts = append(opts, WithLogger(l))
	}
	return opts, nil
}
