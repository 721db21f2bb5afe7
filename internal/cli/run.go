package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mixtray/mixtray/internal/app"
	"github.com/mixtray/mixtray/internal/config"
	"github.com/mixtray/mixtray/internal/constants"
	"github.com/mixtray/mixtray/internal/logging"
	"github.com/mixtray/mixtray/internal/platform/win32"
	"github.com/mixtray/mixtray/internal/version"
)

// Replaced in tests.
var (
	newDesktop = win32.New
	showError  = win32.ShowError
)

// runTray loads config, sets up logging and runs the controller until it
// quits. Startup failures are logged and shown in a message box.
func runTray(ctx context.Context, console io.Writer) error {
	configPath, err := config.DefaultConfigPath()
	if err != nil {
		return reportStartupError(nil, fmt.Errorf("failed to determine config path: %w", err))
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return reportStartupError(nil, err)
	}

	log := newLogger(cfg, console, os.Getenv)
	defer log.Close()

	log.Info().
		Str("version", version.Version).
		Str("config", configPath).
		Str("target", cfg.Target.Executable).
		Msg("Starting MixTray")

	desktop, err := newDesktop()
	if err != nil {
		return reportStartupError(log, err)
	}

	code, err := app.Run(ctx, desktop, cfg, log)
	if err != nil {
		return reportStartupError(log, err)
	}
	if code != 0 {
		return fmt.Errorf("message loop exited with code %d", code)
	}
	log.Infof("%s %s stopped", constants.AppName, version.Version)
	return nil
}

// newLogger builds the process logger. The level comes from config unless
// MIXTRAY_DEBUG is set. A log directory that cannot be created only
// disables the file sink.
func newLogger(cfg *config.Config, console io.Writer, getenv func(string) string) *logging.Logger {
	logging.SetGlobalLevel(resolveLevel(cfg, getenv))

	opts := logging.Options{Console: console}
	var dirErr error
	if cfg.Logging.File {
		if dirErr = config.EnsureLogDirectory(); dirErr == nil {
			opts.FilePath = config.LogFilePath()
		}
	}

	log := logging.NewLogger(opts)
	if dirErr != nil {
		log.Warn().Err(dirErr).Str("dir", config.LogDirectory()).Msg("Failed to create log directory, file logging disabled")
	}
	return log
}

func resolveLevel(cfg *config.Config, getenv func(string) string) zerolog.Level {
	if getenv(constants.DebugEnvVar) != "" {
		return zerolog.DebugLevel
	}
	level, err := logging.ParseLevel(strings.ToLower(cfg.Logging.Level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func reportStartupError(log *logging.Logger, err error) error {
	if log != nil {
		log.Error().Err(err).Msg("Startup failed")
	} else {
		config.WriteStartupLog("startup failed: %v", err)
	}
	showError(constants.AppName, err.Error())
	return err
}
