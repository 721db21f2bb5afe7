// Package process finds or launches the target application and owns its
// process handle for the controller's lifetime.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mixtray/mixtray/internal/constants"
	"github.com/mixtray/mixtray/internal/handle"
	"github.com/mixtray/mixtray/internal/logging"
	"github.com/mixtray/mixtray/internal/platform"
)

var (
	// ErrSystemDirUnset is returned when %WINDIR% is not set.
	ErrSystemDirUnset = errors.New("system directory environment variable not set")

	// ErrPathNotFound is returned when the executable is missing from the
	// system directory.
	ErrPathNotFound = errors.New("executable not found")

	// ErrCreateProcess is returned when the OS refuses to start the process.
	ErrCreateProcess = errors.New("failed to create process")
)

// API is the subset of the platform the supervisor needs.
type API interface {
	Processes() ([]platform.ProcessEntry, error)
	StartHidden(path string) (pid uint32, proc platform.Handle, err error)
	TerminateProcess(proc platform.Handle, exitCode uint32) error
	CloseHandle(h platform.Handle) error
}

// WindowLocator finds the target window of a process.
type WindowLocator interface {
	Locate(ctx context.Context, pid uint32, titlePattern string) (platform.HWND, error)
}

// Supervisor determines whether the target is running, starts it if not,
// and resolves its window.
type Supervisor struct {
	api     API
	locator WindowLocator
	log     *logging.Logger

	// Getenv and Stat default to os.Getenv and os.Stat.
	Getenv func(string) string
	Stat   func(string) (os.FileInfo, error)
}

// NewSupervisor creates a supervisor.
func NewSupervisor(api API, locator WindowLocator, log *logging.Logger) *Supervisor {
	return &Supervisor{
		api:     api,
		locator: locator,
		log:     log.Component("process"),
		Getenv:  os.Getenv,
		Stat:    os.Stat,
	}
}

// Acquire attaches to a running instance of executableName or starts a new
// hidden one, then locates its window. A process started here is terminated
// again if its window cannot be found.
func (s *Supervisor) Acquire(ctx context.Context, executableName, titlePattern string) (*ManagedProcess, error) {
	pid, found, err := s.FindPID(executableName)
	if err != nil {
		// A failed scan is treated as "not running".
		s.log.Warn().Err(err).Str("exe", executableName).Msg("Process scan failed, launching a new instance")
	}

	if found {
		s.log.Info().Uint32("pid", pid).Str("exe", executableName).Msg("Attaching to running instance")
		hwnd, err := s.locator.Locate(ctx, pid, titlePattern)
		if err != nil {
			return nil, fmt.Errorf("failed to find window of running %s (pid %d): %w", executableName, pid, err)
		}
		return &ManagedProcess{
			PID:    pid,
			Window: hwnd,
			handle: handle.Invalid(),
			api:    s.api,
			log:    s.log,
		}, nil
	}

	path, err := s.ResolvePath(executableName)
	if err != nil {
		return nil, err
	}

	pid, raw, err := s.api.StartHidden(path)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrCreateProcess, path, err)
	}
	s.log.Info().Uint32("pid", pid).Str("path", path).Msg("Started hidden instance")

	mp := &ManagedProcess{
		PID:     pid,
		handle:  handle.New(raw, s.api.CloseHandle),
		spawned: true,
		api:     s.api,
		log:     s.log,
	}

	hwnd, err := s.locator.Locate(ctx, pid, titlePattern)
	if err != nil {
		if cerr := mp.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Uint32("pid", pid).Msg("Failed to clean up instance after window discovery failed")
		}
		return nil, fmt.Errorf("failed to find window of started %s (pid %d): %w", executableName, pid, err)
	}
	mp.Window = hwnd

	return mp, nil
}

// FindPID scans the process table for executableName. The match is exact
// and case-sensitive against the last path component of each entry; the
// first match wins. Entries read before a scan failure are still searched,
// and the failure is only reported when none of them matched.
func (s *Supervisor) FindPID(executableName string) (uint32, bool, error) {
	entries, err := s.api.Processes()
	for _, e := range entries {
		if baseName(e.ExeFile) == executableName {
			return e.PID, true, nil
		}
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to snapshot processes: %w", err)
	}
	return 0, false, nil
}

// ResolvePath returns %WINDIR%\System32\<executableName> if it exists.
func (s *Supervisor) ResolvePath(executableName string) (string, error) {
	dir := s.Getenv(constants.SystemDirEnvVar)
	if dir == "" {
		return "", fmt.Errorf("%w: %s", ErrSystemDirUnset, constants.SystemDirEnvVar)
	}

	path := filepath.Join(dir, constants.SystemSubdir, executableName)
	if _, err := s.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return path, nil
}

// baseName returns the component after the last slash or backslash.
// Snapshot entries normally hold bare names already; this keeps the match
// correct if a full path is reported.
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `\/`); i >= 0 {
		return p[i+1:]
	}
	return p
}
