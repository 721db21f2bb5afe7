package process

import (
	"fmt"

	"github.com/mixtray/mixtray/internal/handle"
	"github.com/mixtray/mixtray/internal/logging"
	"github.com/mixtray/mixtray/internal/platform"
)

// ManagedProcess is the target process as seen by the controller. Window is
// the top-level window discovered for it.
type ManagedProcess struct {
	PID    uint32
	Window platform.HWND

	handle  *handle.Guard
	spawned bool
	api     API
	log     *logging.Logger
}

// Spawned reports whether this controller started the process. Only spawned
// processes are terminated on Close.
func (p *ManagedProcess) Spawned() bool {
	return p.spawned
}

// Close terminates the process if it was spawned here and releases the
// handle. An attached process is left running. Calling Close more than once
// is safe.
func (p *ManagedProcess) Close() error {
	if p == nil || !p.handle.Valid() {
		return nil
	}

	var termErr error
	if p.spawned {
		if err := p.api.TerminateProcess(p.handle.Raw(), 0); err != nil {
			termErr = fmt.Errorf("failed to terminate pid %d: %w", p.PID, err)
		} else {
			p.log.Info().Uint32("pid", p.PID).Msg("Terminated spawned instance")
		}
	}

	if err := p.handle.Close(); err != nil {
		closeErr := fmt.Errorf("failed to close handle of pid %d: %w", p.PID, err)
		if termErr != nil {
			return fmt.Errorf("%w; %w", termErr, closeErr)
		}
		return closeErr
	}
	return termErr
}
