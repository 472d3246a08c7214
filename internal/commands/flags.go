package commands

import (
	"os"
	"path/filepath"

	"github.com/hay-kot/portbus/internal/core/comms"
	"github.com/hay-kot/portbus/internal/core/config"
	"github.com/hay-kot/portbus/internal/store/jsonfile"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// Ports, Registry and Activity are the file-backed stores behind Bus.
	Ports    *jsonfile.PortStore
	Registry *jsonfile.Registry
	Activity *jsonfile.ActivityStore

	// Bus publishes to and listens on Ports.
	Bus *comms.Bus
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "portbus", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "portbus")
}
