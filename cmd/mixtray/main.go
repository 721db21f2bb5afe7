// MixTray - notification-area toggle for the Windows Volume Mixer.
//
// Build for Windows:
//
//	GOOS=windows go build -ldflags "-H=windowsgui -X main.Version=v0.3.0" ./cmd/mixtray
//
// Left click on the tray icon shows or hides the mixer in the bottom-right
// corner of the work area. Right click quits.
package main

import (
	"os"

	"github.com/mixtray/mixtray/internal/cli"
	"github.com/mixtray/mixtray/internal/version"
)

// Version information, overridden via -ldflags at release time.
var (
	Version   = "v0.3.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
