package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/inertialabsxyz/movement/core/execution"
)

const (
	// ConfigFileName is the base name of the movement configuration file without extension.
	ConfigFileName = "movement"
	// ConfigExtension is the file extension for the configuration file without the leading dot.
	ConfigExtension = "yaml"
	// ConfigName is the filename for the movement configuration file.
	ConfigName = ConfigFileName + "." + ConfigExtension
	// AppConfigDir is the directory name for the app configuration.
	AppConfigDir = "config"
)

// DefaultRootDir returns the default root directory for movement
var DefaultRootDir = DefaultRootDirWithName(ConfigFileName)

// DefaultRootDirWithName returns the default root directory for an application,
// based on the app name and the user's home directory
func DefaultRootDirWithName(appName string) string {
	if appName == "" {
		appName = ConfigFileName
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, "."+appName)
}

// DefaultConfig keeps default values of Config
func DefaultConfig() Config {
	return Config{
		RootDir: DefaultRootDir,
		DBPath:  "data",
		DA: DAConfig{
			LightNode: LightNodeConfig{
				Protocol:       "http",
				Host:           "127.0.0.1",
				Port:           30730,
				HTTP1:          false,
				InitialHeight:  0,
				Namespace:      "movement",
				BlockTime:      DurationWrapper{6 * time.Second},
				RequestTimeout: DurationWrapper{30 * time.Second},
			},
		},
		DaDB: DaDBConfig{
			Path: "da_db",
		},
		Execution: execution.DefaultConfig(),
		Settlement: SettlementConfig{
			Enabled:      false,
			ClientType:   SettlementClientEth,
			PollInterval: DurationWrapper{2 * time.Second},
			MaxAttempts:  5,
			QueueSize:    64,
		},
		RPC: RPCConfig{
			Address: "127.0.0.1:30832",
		},
		Instrumentation: DefaultInstrumentationConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Trace:  false,
		},
	}
}
