// Package config loads the rxdemo configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"gopkg.in/yaml.v3"

	"github.com/xinjiayu/rxcore"
)

// Config holds the scheduler and logging settings for rxdemo.
//
// A zero field means "use the default"; Load fills defaults before decoding.
type Config struct {
	// ComputeWorkers is the worker count of the computation scheduler.
	ComputeWorkers int `yaml:"computeWorkers"`

	// IOIdleTimeout is how long an idle IO worker is kept, e.g. "30s".
	IOIdleTimeout time.Duration `yaml:"ioIdleTimeout"`

	// LogLevel is one of "debug", "info", "warn", "error" or "none".
	LogLevel string `yaml:"logLevel"`

	// Metrics enables the monitored schedulers and the metrics report.
	Metrics bool `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ComputeWorkers: rxcore.DefaultConfig().Workers,
		IOIdleTimeout:  rxcore.DefaultIdleTimeout,
		LogLevel:       "warn",
	}
}

// Load reads a YAML configuration file. Fields missing from the file keep
// their defaults; unknown fields are rejected. An empty file is valid.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.ComputeWorkers < 0 {
		return fmt.Errorf("computeWorkers must not be negative, got %d", c.ComputeWorkers)
	}
	if c.IOIdleTimeout < 0 {
		return fmt.Errorf("ioIdleTimeout must not be negative, got %s", c.IOIdleTimeout)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel matches a level name case-insensitively. The empty string
// means Warn.
func ParseLogLevel(name string) (ldlog.LogLevel, error) {
	if name == "" {
		return ldlog.Warn, nil
	}
	for _, level := range []ldlog.LogLevel{ldlog.Debug, ldlog.Info, ldlog.Warn, ldlog.Error, ldlog.None} {
		if strings.EqualFold(level.Name(), name) {
			return level, nil
		}
	}
	return ldlog.Warn, errBadLogLevel(name)
}

func errBadLogLevel(s string) error {
	return fmt.Errorf("%q is not a valid log level", s)
}

// ComputationOptions returns the options for the computation scheduler.
func (c Config) ComputationOptions(loggers ldlog.Loggers) []rxcore.Option {
	return []rxcore.Option{
		rxcore.WithWorkers(c.ComputeWorkers),
		rxcore.WithLoggers(loggers),
	}
}

// IOOptions returns the options for the IO scheduler.
func (c Config) IOOptions(loggers ldlog.Loggers) []rxcore.Option {
	return []rxcore.Option{
		rxcore.WithIdleTimeout(c.IOIdleTimeout),
		rxcore.WithLoggers(loggers),
	}
}

// SingleOptions returns the options for the single scheduler.
func (c Config) SingleOptions(loggers ldlog.Loggers) []rxcore.Option {
	return []rxcore.Option{rxcore.WithLoggers(loggers)}
}
