package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mixtray/mixtray/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mixtray configuration",
		Long: `Configuration management commands for mixtray.

Commands:
  init  - Write a configuration file with default values
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Long: `Write a mixtray.conf file containing the default settings.

An existing file is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			configPath, err := config.DefaultConfigPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}

			if _, err := os.Stat(configPath); err == nil {
				fmt.Fprintf(out, "Configuration already exists at: %s\n", configPath)
				fmt.Fprintln(out, "Edit it directly or run 'mixtray config show' to view it.")
				return nil
			}

			if err := config.SaveConfig(config.NewConfig(), configPath); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(out, "Configuration saved to: %s\n", configPath)
			return nil
		},
	}
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration.

Values missing from the configuration file are shown with their defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			configPath, err := config.DefaultConfigPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "[target]")
			fmt.Fprintf(out, "  Executable:     %s\n", cfg.Target.Executable)
			fmt.Fprintf(out, "  Title pattern:  %s\n", cfg.Target.TitlePattern)
			fmt.Fprintln(out, "[discovery]")
			fmt.Fprintf(out, "  Max attempts:   %d\n", cfg.Discovery.MaxAttempts)
			fmt.Fprintf(out, "  Retry delay:    %v\n", cfg.RetryDelay())
			fmt.Fprintln(out, "[tray]")
			fmt.Fprintf(out, "  Tooltip:        %s\n", cfg.Tray.Tooltip)
			fmt.Fprintln(out, "[logging]")
			fmt.Fprintf(out, "  Level:          %s\n", cfg.Logging.Level)
			fmt.Fprintf(out, "  Log file:       %t\n", cfg.Logging.File)
			if cfg.Logging.File {
				fmt.Fprintf(out, "  Log path:       %s\n", config.LogFilePath())
			}
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			configPath, err := config.DefaultConfigPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}

			fmt.Fprintln(out, "Configuration path:")
			fmt.Fprintf(out, "  %s\n", configPath)
			fmt.Fprintln(out)

			if fileInfo, err := os.Stat(configPath); err == nil {
				fmt.Fprintln(out, "Status: File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", fileInfo.Size())
				fmt.Fprintf(out, "Modified: %s\n", fileInfo.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist (defaults in use)")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: mixtray config init")
			}
			return nil
		},
	}
}
