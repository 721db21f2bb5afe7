// Package cli provides the command-line entry point for mixtray.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mixtray/mixtray/internal/version"
)

// NewRootCmd creates the root command. Running it with no subcommand starts
// the tray controller.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mixtray",
		Short: "MixTray - tray icon toggle for the Windows Volume Mixer",
		Long: `MixTray ` + version.Version + ` - Built: ` + version.BuildTime + `
Puts a notification-area icon in front of the Windows Volume Mixer.

  Left click   show the mixer at the bottom-right of the screen, or hide it
  Right click  quit (a mixer started by MixTray is closed too)

Settings are read from the file shown by 'mixtray config path'.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTray(cmd.Context(), cmd.ErrOrStderr())
		},
	}

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// AddCommands registers all subcommands.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mixtray %s (built %s)\n", version.Version, version.BuildTime)
		},
	}
}

// Execute runs the root command with a context that is cancelled on
// SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}
