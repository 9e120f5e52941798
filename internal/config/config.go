package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/avatarscript/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AVATARSCRIPT_"

// DefaultFile is the config file name looked up by the CLI.
const DefaultFile = "avatarscript.toml"

// Config holds all settings.
type Config struct {
	Logging LoggingConfig `toml:"logging" envPrefix:"LOGGING_"`
	Limits  LimitsConfig  `toml:"limits" envPrefix:"LIMITS_"`
	Avatar  AvatarConfig  `toml:"avatar" envPrefix:"AVATAR_"`
	Runtime RuntimeConfig `toml:"runtime" envPrefix:"RUNTIME_"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// Logger returns the logging configuration for logging.New.
func (c LoggingConfig) Logger() logging.Config {
	return logging.Config{
		Level:  c.Level,
		Format: logging.Format(c.Format),
	}
}

// LimitsConfig holds the instruction budget of each phase.
type LimitsConfig struct {
	Init        int `toml:"init" env:"INIT"`
	Tick        int `toml:"tick" env:"TICK"`
	Render      int `toml:"render" env:"RENDER"`
	WorldTick   int `toml:"world_tick" env:"WORLD_TICK"`
	WorldRender int `toml:"world_render" env:"WORLD_RENDER"`
}

// AvatarConfig locates avatar bundles.
type AvatarConfig struct {
	// Dir is the directory holding one sub-directory per avatar.
	Dir string `toml:"dir" env:"DIR"`
	// Watch reloads an avatar when its files change.
	Watch bool `toml:"watch" env:"WATCH"`
	// DebounceMS is the quiet period before a reload.
	DebounceMS int `toml:"debounce_ms" env:"DEBOUNCE_MS"`
}

// Debounce returns DebounceMS as a duration.
func (c AvatarConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// RuntimeConfig tunes the control goroutine.
type RuntimeConfig struct {
	// ExecutorQueue is the number of pending calls the executor buffers.
	ExecutorQueue int `toml:"executor_queue" env:"EXECUTOR_QUEUE"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
		Limits: LimitsConfig{
			Init:        2_000_000,
			Tick:        10_000,
			Render:      10_000,
			WorldTick:   5_000,
			WorldRender: 5_000,
		},
		Avatar: AvatarConfig{
			Dir:        "avatars",
			DebounceMS: 250,
		},
		Runtime: RuntimeConfig{
			ExecutorQueue: 100,
		},
	}
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	environment map[string]string
}

// WithEnvironment reads overrides from environ instead of the process
// environment.
func WithEnvironment(environ map[string]string) LoadOption {
	return func(o *loadOptions) {
		o.environment = environ
	}
}

// Load resolves defaults, then the TOML file at path (skipped when path is
// empty), then environment overrides, and validates the result.
func Load(path string, opts ...LoadOption) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := Parse(path, data, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, o.environment); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse overlays TOML data onto cfg. Keys absent from data keep their
// current values. source names the data in errors.
func Parse(source string, data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return perr
	}
	return nil
}

func applyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports every unusable setting.
func (c *Config) Validate() error {
	var errs []error

	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, validationError("logging.level", "must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, validationError("logging.format", "must be text or json, got %q", c.Logging.Format))
	}

	for _, limit := range []struct {
		path  string
		value int
	}{
		{"limits.init", c.Limits.Init},
		{"limits.tick", c.Limits.Tick},
		{"limits.render", c.Limits.Render},
		{"limits.world_tick", c.Limits.WorldTick},
		{"limits.world_render", c.Limits.WorldRender},
	} {
		if limit.value < 1 {
			errs = append(errs, validationError(limit.path, "must be positive, got %d", limit.value))
		}
	}

	if c.Avatar.DebounceMS < 0 {
		errs = append(errs, validationError("avatar.debounce_ms", "must not be negative, got %d", c.Avatar.DebounceMS))
	}
	if c.Runtime.ExecutorQueue < 1 {
		errs = append(errs, validationError("runtime.executor_queue", "must be positive, got %d", c.Runtime.ExecutorQueue))
	}

	return errors.Join(errs...)
}
