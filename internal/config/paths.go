// Package config provides configuration management for rc.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/dualpane/rc/internal/constants"
)

// getConfigDir returns the platform-appropriate config directory.
//   - Windows: %APPDATA%\rc
//   - Unix: $XDG_CONFIG_HOME/rc or ~/.config/rc
func getConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, constants.AppName)
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, constants.AppName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", constants.AppName)
	}
	return ""
}

// GetDefaultConfigPath returns the default config file path.
func GetDefaultConfigPath() string {
	dir := getConfigDir()
	if dir == "" {
		return "config.csv"
	}
	return filepath.Join(dir, "config.csv")
}

// LogDirectory returns the directory for rc log files.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\rc\logs
//   - Unix: $XDG_STATE_HOME/rc/logs or ~/.local/state/rc/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), constants.AppName+"-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, constants.AppName, "logs")
	}

	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, constants.AppName, "logs")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), constants.AppName+"-logs")
	}
	return filepath.Join(homeDir, ".local", "state", constants.AppName, "logs")
}

// EnsureLogDirectory creates the log directory if it doesn't exist.
// Uses 0700 permissions to restrict log access to owner only.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}
