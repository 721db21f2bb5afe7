// Package window finds the top-level window that belongs to the target
// process.
package window

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mixtray/mixtray/internal/constants"
	"github.com/mixtray/mixtray/internal/logging"
	"github.com/mixtray/mixtray/internal/platform"
)

// ErrWindowNotFound is returned when no matching window appears within the
// attempt budget.
var ErrWindowNotFound = errors.New("target window not found")

// API is the subset of the platform the locator needs.
type API interface {
	EnumWindows(fn func(platform.HWND) bool) error
	WindowProcessID(hwnd platform.HWND) (uint32, error)
	WindowText(hwnd platform.HWND) (string, error)
}

// Locator enumerates top-level windows until one owned by the target PID
// has a title containing the pattern.
type Locator struct {
	api API
	log *logging.Logger

	MaxAttempts int
	RetryDelay  time.Duration

	// Sleep waits between passes. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewLocator creates a locator with the default retry policy.
func NewLocator(api API, log *logging.Logger) *Locator {
	return &Locator{
		api:         api,
		log:         log.Component("window"),
		MaxAttempts: constants.DefaultDiscoveryAttempts,
		RetryDelay:  constants.DefaultDiscoveryDelay,
		Sleep:       sleepContext,
	}
}

// Locate runs up to MaxAttempts enumeration passes, sleeping RetryDelay
// between them. It returns the first window in enumeration order whose
// owning PID equals pid and whose title contains titlePattern
// (case-sensitive). There is no sleep after a match or after the final pass.
func (l *Locator) Locate(ctx context.Context, pid uint32, titlePattern string) (platform.HWND, error) {
	attempts := l.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		hwnd, err := l.scan(pid, titlePattern)
		if err != nil {
			lastErr = err
			l.log.Debug().Err(err).Int("attempt", attempt).Msg("Window enumeration failed")
		} else if hwnd != 0 {
			l.log.Debug().
				Uint32("pid", pid).
				Uint64("hwnd", uint64(hwnd)).
				Int("attempt", attempt).
				Msg("Found target window")
			return hwnd, nil
		}

		if attempt == attempts {
			break
		}
		if err := l.Sleep(ctx, l.RetryDelay); err != nil {
			return 0, fmt.Errorf("window discovery interrupted: %w", err)
		}
	}

	if lastErr != nil {
		return 0, fmt.Errorf("%w after %d attempts (pid %d, title %q): %w", ErrWindowNotFound, attempts, pid, titlePattern, lastErr)
	}
	return 0, fmt.Errorf("%w after %d attempts (pid %d, title %q)", ErrWindowNotFound, attempts, pid, titlePattern)
}

// scan performs one enumeration pass. Windows whose PID or title cannot be
// read are logged and skipped.
func (l *Locator) scan(pid uint32, titlePattern string) (platform.HWND, error) {
	var found platform.HWND
	err := l.api.EnumWindows(func(hwnd platform.HWND) bool {
		owner, err := l.api.WindowProcessID(hwnd)
		if err != nil {
			l.log.Debug().Err(err).Uint64("hwnd", uint64(hwnd)).Msg("Skipping window, owner process unreadable")
			return true
		}
		if owner != pid {
			return true
		}
		title, err := l.api.WindowText(hwnd)
		if err != nil {
			l.log.Debug().Err(err).Uint64("hwnd", uint64(hwnd)).Msg("Skipping window, title unreadable")
			return true
		}
		if strings.Contains(title, titlePattern) {
			found = hwnd
			return false
		}
		return true
	})
	if found != 0 {
		return found, nil
	}
	return 0, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
