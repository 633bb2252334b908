// Config loading for the tally CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// Config keys.
	cfgKeyDataDir    = "data_dir"
	cfgKeyRemoteDir  = "remote_dir"
	cfgKeyClientID   = "client_id"
	cfgKeyDeviceName = "device_name"
	cfgKeyPassphrase = "passphrase"
)

// loadedConfig is the viper handle populated by PersistentPreRunE.
var loadedConfig *viper.Viper

// loadConfig reads config.yaml from the resolved config directory using
// Viper. It creates the config directory and a default config.yaml with a
// fresh device identity on first run. A missing config.yaml afterwards is
// not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}

	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	// The passphrase may come from the environment instead of the file.
	v.BindEnv(cfgKeyPassphrase, "TALLY_PASSPHRASE")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return v, nil
}

// ensureConfigDir creates the config directory if it does not exist.
func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile creates a default config.yaml on first run.
// The generated file carries this device's permanent client_id; devices
// are told apart by it for the rest of their lives, so it is written
// exactly once.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		// File already exists.
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "tally-device"
	}
	content := fmt.Sprintf(`# Tally CLI configuration

# Permanent device identity. Do not copy to another device.
client_id: %s

# Label shown to other devices, e.g. in lock contention messages.
device_name: %s

# Remote drive folder holding the shared encrypted snapshot.
# Leave empty to work offline with the local fallback only.
# remote_dir:

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# Snapshot passphrase; TALLY_PASSPHRASE overrides this value.
# passphrase:
`, uuid.Must(uuid.NewV7()).String(), hostname)

	return os.WriteFile(path, []byte(content), 0o600)
}
