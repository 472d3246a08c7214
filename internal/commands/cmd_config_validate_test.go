package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/portbus/internal/commands/doctor"
	"github.com/hay-kot/portbus/internal/core/comms"
	"github.com/hay-kot/portbus/internal/core/config"
	"github.com/hay-kot/portbus/internal/printer"
)

func TestConfigReport(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Transport.Capacity = 8
	cfg.Transport.Overflow = comms.DropNewest

	report := newConfigReport(&cfg, filepath.Join(t.TempDir(), "config.yaml"))
	assert.True(t, report.Valid)
	assert.Empty(t, report.Problems)
	require.NotEmpty(t, report.Settings)
	assert.Equal(t, config.Setting{Key: "transport", Value: "capacity 8, drop-newest"}, report.Settings[0])

	var buf bytes.Buffer
	printConfigReport(printer.New(&buf), report)
	assert.Contains(t, buf.String(), "capacity 8, drop-newest")
	assert.Contains(t, buf.String(), "Configuration is valid")
}

func TestConfigReport_Invalid(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Scheduler.JitterMax = 0

	report := newConfigReport(&cfg, "")
	assert.False(t, report.Valid)

	var failed []string
	for _, item := range report.Problems {
		if item.Status == doctor.StatusFail {
			failed = append(failed, item.Label)
		}
	}
	assert.Contains(t, failed, "scheduler.jitter_max")

	var buf bytes.Buffer
	printConfigReport(printer.New(&buf), report)
	assert.Contains(t, buf.String(), "Configuration is invalid")
}
