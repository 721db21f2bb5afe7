//go:build !windows

// Package win32 implements platform.Desktop on top of user32, shell32 and
// kernel32. On other operating systems New always fails.
package win32

import (
	"github.com/mixtray/mixtray/internal/platform"
)

// New returns ErrUnsupported outside Windows.
func New() (platform.Desktop, error) {
	return nil, ErrUnsupported
}

// ShowError is a no-op outside Windows; the error is already on stderr.
func ShowError(title, message string) {}
