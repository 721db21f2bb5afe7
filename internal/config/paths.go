package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/mixtray/mixtray/internal/constants"
)

// LogDirectory returns the directory for MixTray's rotating log file.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\MixTray\logs
//   - Unix: ~/.config/mixtray/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "mixtray-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, constants.AppName, "logs")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "mixtray-logs")
		}
		return filepath.Join(homeDir, ".config", "mixtray", "logs")
	}
	return filepath.Join(configDir, "mixtray", "logs")
}

// LogFilePath returns the full path of the rotating log file.
func LogFilePath() string {
	return filepath.Join(LogDirectory(), constants.LogFileName)
}

// EnsureLogDirectory creates the log directory if it doesn't exist.
// Uses 0700 permissions to restrict log access to owner only.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}
