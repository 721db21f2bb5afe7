// Package config provides configuration management for MixTray.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/ini.v1"

	"github.com/mixtray/mixtray/internal/constants"
)

// Config is the MixTray configuration.
//
// Config file location:
//   - Windows: %APPDATA%\MixTray\mixtray.conf
//   - Unix: ~/.config/mixtray/mixtray.conf
//
// INI format:
//
//	[target]
//	executable = SndVol.exe
//	title_pattern = Volume Mixer
//
//	[discovery]
//	max_attempts = 5
//	retry_delay_ms = 250
//
//	[tray]
//	tooltip = Custom Volume Mixer
//
//	[logging]
//	level = info
//	file = true
type Config struct {
	Target    TargetConfig
	Discovery DiscoveryConfig
	Tray      TrayConfig
	Logging   LoggingConfig
}

// TargetConfig identifies the application whose window is controlled.
type TargetConfig struct {
	// Executable is the base name matched against the process table and
	// resolved under %WINDIR%\System32 when a new instance must be started.
	// Default: SndVol.exe
	Executable string `ini:"executable"`

	// TitlePattern must appear (case-sensitive) in the target window title.
	// Default: Volume Mixer
	TitlePattern string `ini:"title_pattern"`
}

// DiscoveryConfig bounds the window discovery retry loop.
type DiscoveryConfig struct {
	// MaxAttempts is the total number of enumeration passes.
	// Minimum: 1, Maximum: 50, Default: 5
	MaxAttempts int `ini:"max_attempts"`

	// RetryDelayMS is the sleep between passes in milliseconds.
	// Minimum: 0, Maximum: 10000, Default: 250
	RetryDelayMS int `ini:"retry_delay_ms"`
}

// TrayConfig controls the notification-area icon.
type TrayConfig struct {
	// Tooltip is truncated to 127 bytes when registered with the shell.
	Tooltip string `ini:"tooltip"`
}

// LoggingConfig controls log verbosity and the rotating log file.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `ini:"level"`

	// File enables the rotating log file under LogDirectory(). Default: true
	File bool `ini:"file"`
}

// Config validation errors
var (
	ErrMissingExecutable   = errors.New("executable is required")
	ErrExecutableHasPath   = errors.New("executable must be a base name without directories")
	ErrMissingTitlePattern = errors.New("title_pattern is required")
	ErrInvalidMaxAttempts  = fmt.Errorf("max_attempts must be between 1 and %d", constants.MaxDiscoveryAttempts)
	ErrInvalidRetryDelay   = fmt.Errorf("retry_delay_ms must be between 0 and %d", constants.MaxDiscoveryDelay.Milliseconds())
	ErrInvalidLogLevel     = errors.New("level must be one of debug, info, warn, error")
	ErrTooltipNotASCII     = errors.New("tooltip must contain ASCII characters only")
)

// DefaultConfigPath returns the default path for the mixtray.conf file.
//   - Windows: %APPDATA%\MixTray\mixtray.conf
//   - Unix: ~/.config/mixtray/mixtray.conf
func DefaultConfigPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", errors.New("neither APPDATA nor USERPROFILE environment variable set")
			}
			appData = filepath.Join(userProfile, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, constants.AppName)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "mixtray")
	}

	return filepath.Join(configDir, "mixtray.conf"), nil
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Target: TargetConfig{
			Executable:   constants.DefaultExecutable,
			TitlePattern: constants.DefaultTitlePattern,
		},
		Discovery: DiscoveryConfig{
			MaxAttempts:  constants.DefaultDiscoveryAttempts,
			RetryDelayMS: int(constants.DefaultDiscoveryDelay.Milliseconds()),
		},
		Tray: TrayConfig{
			Tooltip: constants.DefaultTooltip,
		},
		Logging: LoggingConfig{
			Level: constants.DefaultLogLevel,
			File:  true,
		},
	}
}

// LoadConfig loads configuration from the mixtray.conf file.
// If path is empty, uses the default path.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load mixtray.conf: %w", err)
	}

	targetSection := iniFile.Section("target")
	cfg.Target.Executable = targetSection.Key("executable").MustString(constants.DefaultExecutable)
	cfg.Target.TitlePattern = targetSection.Key("title_pattern").MustString(constants.DefaultTitlePattern)

	discoverySection := iniFile.Section("discovery")
	cfg.Discovery.MaxAttempts = discoverySection.Key("max_attempts").MustInt(constants.DefaultDiscoveryAttempts)
	cfg.Discovery.RetryDelayMS = discoverySection.Key("retry_delay_ms").MustInt(int(constants.DefaultDiscoveryDelay.Milliseconds()))

	traySection := iniFile.Section("tray")
	cfg.Tray.Tooltip = traySection.Key("tooltip").MustString(constants.DefaultTooltip)

	loggingSection := iniFile.Section("logging")
	cfg.Logging.Level = loggingSection.Key("level").MustString(constants.DefaultLogLevel)
	cfg.Logging.File = loggingSection.Key("file").MustBool(true)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mixtray.conf: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to the mixtray.conf file.
// If path is empty, uses the default path.
// Creates parent directories if they don't exist.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	targetSection, err := iniFile.NewSection("target")
	if err != nil {
		return fmt.Errorf("failed to create target section: %w", err)
	}
	targetSection.Key("executable").SetValue(cfg.Target.Executable)
	targetSection.Key("title_pattern").SetValue(cfg.Target.TitlePattern)

	discoverySection, err := iniFile.NewSection("discovery")
	if err != nil {
		return fmt.Errorf("failed to create discovery section: %w", err)
	}
	discoverySection.Key("max_attempts").SetValue(fmt.Sprintf("%d", cfg.Discovery.MaxAttempts))
	discoverySection.Key("retry_delay_ms").SetValue(fmt.Sprintf("%d", cfg.Discovery.RetryDelayMS))

	traySection, err := iniFile.NewSection("tray")
	if err != nil {
		return fmt.Errorf("failed to create tray section: %w", err)
	}
	traySection.Key("tooltip").SetValue(cfg.Tray.Tooltip)

	loggingSection, err := iniFile.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	loggingSection.Key("level").SetValue(cfg.Logging.Level)
	loggingSection.Key("file").SetValue(fmt.Sprintf("%t", cfg.Logging.File))

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
// Returns nil if valid, or an error describing what's wrong.
func (cfg *Config) Validate() error {
	exe := strings.TrimSpace(cfg.Target.Executable)
	if exe == "" {
		return ErrMissingExecutable
	}
	if strings.ContainsAny(exe, `\/`) {
		return ErrExecutableHasPath
	}
	if cfg.Target.TitlePattern == "" {
		return ErrMissingTitlePattern
	}
	if cfg.Discovery.MaxAttempts < 1 || cfg.Discovery.MaxAttempts > constants.MaxDiscoveryAttempts {
		return ErrInvalidMaxAttempts
	}
	if cfg.Discovery.RetryDelayMS < 0 || time.Duration(cfg.Discovery.RetryDelayMS)*time.Millisecond > constants.MaxDiscoveryDelay {
		return ErrInvalidRetryDelay
	}
	// The tray icon is registered through the ANSI shell API.
	for i := 0; i < len(cfg.Tray.Tooltip); i++ {
		if cfg.Tray.Tooltip[i] >= utf8.RuneSelf {
			return ErrTooltipNotASCII
		}
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}

// RetryDelay returns the discovery retry delay as a duration.
func (cfg *Config) RetryDelay() time.Duration {
	return time.Duration(cfg.Discovery.RetryDelayMS) * time.Millisecond
}
