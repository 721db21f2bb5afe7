package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StartupLogPath returns the path of the startup log. It captures failures
// that happen before the rotating logger exists, such as an unreadable
// mixtray.conf.
func StartupLogPath() string {
	return filepath.Join(LogDirectory(), "mixtray-startup.log")
}

// WriteStartupLog appends a timestamped line to the startup log. Errors are
// ignored; there is nowhere left to report them.
func WriteStartupLog(format string, args ...interface{}) {
	logPath := StartupLogPath()

	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(f, "[%s] %s\n", timestamp, fmt.Sprintf(format, args...))
}
