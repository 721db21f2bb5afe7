package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used for the window class, config directory and log file names.
	AppName = "MixTray"

	// EventWindowClassName - window class registered for the hidden event window
	EventWindowClassName = "MixTrayEventWindowClass"

	// TargetWindowProperty - property key under which the target window is
	// stored on the event window
	TargetWindowProperty = "MIXTRAY_TARGET_HWND"
)

// Target defaults (Windows Volume Mixer)
const (
	// DefaultExecutable - executable base name looked up in the process table
	DefaultExecutable = "SndVol.exe"

	// DefaultTitlePattern - substring the target window title must contain
	DefaultTitlePattern = "Volume Mixer"

	// SystemDirEnvVar - environment variable holding the Windows directory
	SystemDirEnvVar = "WINDIR"

	// SystemSubdir - directory under %WINDIR% holding the target executable
	SystemSubdir = "System32"
)

// Window discovery
const (
	// DefaultDiscoveryAttempts - enumeration passes before giving up (first + 4 retries)
	// Window creation lags process creation, so a freshly spawned process
	// usually needs one or two retries.
	DefaultDiscoveryAttempts = 5

	// DefaultDiscoveryDelay - sleep between enumeration passes (250ms)
	DefaultDiscoveryDelay = 250 * time.Millisecond

	// MaxDiscoveryAttempts - upper bound accepted from config
	MaxDiscoveryAttempts = 50

	// MaxDiscoveryDelay - upper bound accepted from config (10 seconds)
	MaxDiscoveryDelay = 10 * time.Second

	// WindowTitleBufferSize - UTF-16 code units read per window title
	WindowTitleBufferSize = 256
)

// Tray icon
const (
	// DefaultTooltip - text shown when hovering the notification-area icon
	DefaultTooltip = "Custom Volume Mixer"

	// TrayIconID - uID of the single icon owned by the event window
	TrayIconID = 1

	// TaskbarCreatedMessage - broadcast by Explorer after it (re)starts
	TaskbarCreatedMessage = "TaskbarCreated"
)

// Logging
const (
	// DefaultLogLevel - level used when config does not set one
	DefaultLogLevel = "info"

	// LogFileName - rotating log file under the log directory
	LogFileName = "mixtray.log"

	// DebugEnvVar - forces debug logging when set to any non-empty value
	DebugEnvVar = "MIXTRAY_DEBUG"
)
