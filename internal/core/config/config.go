// Package config handles configuration loading and validation for portbus.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"

	"github.com/hay-kot/portbus/internal/core/comms"
)

// Config holds the application configuration.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Activity  ActivityConfig  `yaml:"activity"`
	DataDir   string          `yaml:"-"` // set by caller, not from config file
}

// TransportConfig configures the file-backed port queues.
type TransportConfig struct {
	// Capacity is the maximum number of entries queued per channel.
	Capacity int `yaml:"capacity"`
	// Overflow selects which entry a full channel discards.
	Overflow comms.Overflow `yaml:"overflow"`
}

// SchedulerConfig configures manager loops.
type SchedulerConfig struct {
	JitterMin time.Duration `yaml:"jitter_min"`
	JitterMax time.Duration `yaml:"jitter_max"`
	// Delay is the fixed pause used by loops that want a predictable cadence.
	Delay time.Duration `yaml:"delay"`
}

// ActivityConfig configures the activity log.
type ActivityConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			Capacity: 50,
			Overflow: comms.DropOldest,
		},
		Scheduler: SchedulerConfig{
			JitterMin: time.Millisecond,
			JitterMax: 100 * time.Millisecond,
			Delay:     time.Second,
		},
		Activity: ActivityConfig{
			Enabled:    true,
			MaxEntries: 1000,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.DataDir = dataDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Transport.Capacity == 0 {
		c.Transport.Capacity = defaults.Transport.Capacity
	}
	if c.Transport.Overflow == "" {
		c.Transport.Overflow = defaults.Transport.Overflow
	}
	if c.Scheduler.JitterMin == 0 && c.Scheduler.JitterMax == 0 {
		c.Scheduler.JitterMin = defaults.Scheduler.JitterMin
		c.Scheduler.JitterMax = defaults.Scheduler.JitterMax
	}
	if c.Scheduler.Delay == 0 {
		c.Scheduler.Delay = defaults.Scheduler.Delay
	}
	if c.Activity.MaxEntries == 0 {
		c.Activity.MaxEntries = defaults.Activity.MaxEntries
	}
}

// Validate checks that the configuration is usable. Problems are reported as
// criterio.FieldErrors keyed by their yaml path.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("data directory cannot be empty"))
	}
	if c.Transport.Capacity < 1 {
		errs = errs.Append("transport.capacity", fmt.Errorf("must be at least 1"))
	}
	if !c.Transport.Overflow.Valid() {
		errs = errs.Append("transport.overflow",
			fmt.Errorf("invalid policy %q, use %q or %q", c.Transport.Overflow, comms.DropOldest, comms.DropNewest))
	}
	if c.Scheduler.JitterMin < 0 {
		errs = errs.Append("scheduler.jitter_min", fmt.Errorf("cannot be negative"))
	}
	if c.Scheduler.JitterMax < c.Scheduler.JitterMin {
		errs = errs.Append("scheduler.jitter_max", fmt.Errorf("must not be less than jitter_min"))
	}
	if c.Scheduler.Delay < 0 {
		errs = errs.Append("scheduler.delay", fmt.Errorf("cannot be negative"))
	}
	if c.Activity.MaxEntries < 1 {
		errs = errs.Append("activity.max_entries", fmt.Errorf("must be at least 1"))
	}

	return errs.ToError()
}

// PortsDir returns the directory holding one queue file per channel.
func (c *Config) PortsDir() string {
	return filepath.Join(c.DataDir, "ports")
}

// RegistryFile returns the path to the subscriber registry.
func (c *Config) RegistryFile() string {
	return filepath.Join(c.DataDir, "subscribers.json")
}

// ActivityDir returns the directory holding the activity log.
func (c *Config) ActivityDir() string {
	return c.DataDir
}
