package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/portbus/internal/core/comms"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs Validate and additionally checks the config file and data
// directory on disk.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	if err := c.Validate(); err != nil {
		var fieldErrs criterio.FieldErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = errs.Append(fe.Field, fe.Err)
		}
	}

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			errs = errs.Append("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
		} else if err != nil && !os.IsNotExist(err) {
			errs = errs.Append("config_file", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	if c.DataDir != "" {
		if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
			errs = errs.Append("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))
		} else if err != nil && !os.IsNotExist(err) {
			errs = errs.Append("data_dir", fmt.Errorf("cannot access %s: %w", c.DataDir, err))
		}
	}

	return errs.ToError()
}

// Warnings returns settings that are valid but likely unintended.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Transport.Overflow == comms.DropNewest {
		warnings = append(warnings, ValidationWarning{
			Category: "Transport",
			Item:     "overflow",
			Message:  "drop-newest keeps stale messages when a listener falls behind",
		})
	}
	if c.Transport.Capacity > 1000 {
		warnings = append(warnings, ValidationWarning{
			Category: "Transport",
			Item:     "capacity",
			Message:  fmt.Sprintf("capacity %d rewrites large queue files on every send", c.Transport.Capacity),
		})
	}
	if c.Scheduler.JitterMax == c.Scheduler.JitterMin {
		warnings = append(warnings, ValidationWarning{
			Category: "Scheduler",
			Item:     "jitter_max",
			Message:  "jitter range is empty; loops will poll in lockstep",
		})
	}
	if c.Scheduler.Delay > time.Minute {
		warnings = append(warnings, ValidationWarning{
			Category: "Scheduler",
			Item:     "delay",
			Message:  fmt.Sprintf("delay %s delays request replies by up to that long", c.Scheduler.Delay),
		})
	}
	if !c.Activity.Enabled {
		warnings = append(warnings, ValidationWarning{
			Category: "Activity",
			Item:     "enabled",
			Message:  "activity log disabled; 'portbus activity' will show nothing",
		})
	}

	return warnings
}

// Setting is one effective configuration value, keyed by its yaml path.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Settings summarizes the values the bus and the loops will run with.
func (c *Config) Settings() []Setting {
	activity := "disabled"
	if c.Activity.Enabled {
		activity = fmt.Sprintf("keep last %d", c.Activity.MaxEntries)
	}

	return []Setting{
		{Key: "transport", Value: fmt.Sprintf("capacity %d, %s", c.Transport.Capacity, c.Transport.Overflow)},
		{Key: "scheduler", Value: fmt.Sprintf("jitter %s..%s, delay %s", c.Scheduler.JitterMin, c.Scheduler.JitterMax, c.Scheduler.Delay)},
		{Key: "activity", Value: activity},
		{Key: "data_dir", Value: c.DataDir},
	}
}
