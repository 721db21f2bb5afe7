// Package app wires the supervisor, locator, binding, tray and event loop
// into one controller and owns its startup and teardown order.
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/mixtray/mixtray/internal/binding"
	"github.com/mixtray/mixtray/internal/config"
	"github.com/mixtray/mixtray/internal/constants"
	"github.com/mixtray/mixtray/internal/eventloop"
	"github.com/mixtray/mixtray/internal/logging"
	"github.com/mixtray/mixtray/internal/platform"
	"github.com/mixtray/mixtray/internal/process"
	"github.com/mixtray/mixtray/internal/tray"
	"github.com/mixtray/mixtray/internal/window"
)

// Controller is a started tray controller.
type Controller struct {
	desktop  platform.Desktop
	log      *logging.Logger
	proc     *process.ManagedProcess
	loop     *eventloop.Loop
	tray     *tray.Controller
	bindings *binding.Registry
	cleanup  cleanupStack
	closed   bool
}

// Run starts the controller, pumps messages until quit, and tears down.
// The calling goroutine is locked to its OS thread for the duration since
// the event window belongs to the thread that created it. Teardown errors
// are logged and do not change the exit code.
func Run(ctx context.Context, desktop platform.Desktop, cfg *config.Config, log *logging.Logger) (int, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	c, err := Start(ctx, desktop, cfg, log)
	if err != nil {
		return 1, err
	}
	defer func() {
		if err := c.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Teardown finished with errors")
		}
	}()

	return c.Run(ctx)
}

// Start acquires the target, creates the event window and tray icon, and
// binds the target to the event window. On failure everything acquired so
// far is released before the error is returned.
func Start(ctx context.Context, desktop platform.Desktop, cfg *config.Config, log *logging.Logger) (*Controller, error) {
	c := &Controller{
		desktop: desktop,
		log:     log.Component("app"),
	}

	if err := c.start(ctx, cfg, log); err != nil {
		if cerr := c.cleanup.unwind(c.log); cerr != nil {
			c.log.Warn().Err(cerr).Msg("Cleanup after failed startup finished with errors")
		}
		c.closed = true
		return nil, err
	}
	return c, nil
}

func (c *Controller) start(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	locator := window.NewLocator(c.desktop, log)
	locator.MaxAttempts = cfg.Discovery.MaxAttempts
	locator.RetryDelay = cfg.RetryDelay()

	supervisor := process.NewSupervisor(c.desktop, locator, log)
	proc, err := supervisor.Acquire(ctx, cfg.Target.Executable, cfg.Target.TitlePattern)
	if err != nil {
		return err
	}
	c.proc = proc
	c.cleanup.push("release target process", proc.Close)

	loop, err := eventloop.New(c.desktop, constants.EventWindowClassName, log)
	if err != nil {
		return err
	}
	c.loop = loop
	c.cleanup.push("destroy event window", loop.Close)

	c.bindings = binding.NewRegistry(c.desktop, log)
	c.tray = tray.New(loop.Window(), c.desktop, c.desktop, c.bindings, tray.Options{Tooltip: cfg.Tray.Tooltip}, log)
	loop.Attach(c.tray)
	c.cleanup.push("remove tray icon", c.tray.Close)

	if err := c.bindings.Bind(loop.Window(), proc.Window); err != nil {
		return err
	}
	c.cleanup.push("unbind target window", func() error {
		return c.bindings.Unbind(c.loop.Window())
	})

	c.log.Info().
		Uint32("pid", proc.PID).
		Bool("spawned", proc.Spawned()).
		Uint64("target", uint64(proc.Window)).
		Str("tray", c.tray.State().String()).
		Msg("Controller started")
	return nil
}

// EventWindow returns the hidden event window.
func (c *Controller) EventWindow() platform.HWND {
	return c.loop.Window()
}

// Process returns the managed target process.
func (c *Controller) Process() *process.ManagedProcess {
	return c.proc
}

// Tray returns the tray icon controller.
func (c *Controller) Tray() *tray.Controller {
	return c.tray
}

// Run pumps messages until the loop quits. Cancelling ctx asks the loop to
// quit through tray.QuitMessage.
func (c *Controller) Run(ctx context.Context) (int, error) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			if err := c.desktop.PostMessage(c.loop.Window(), tray.QuitMessage, 0, 0); err != nil {
				c.log.Warn().Err(err).Msg("Failed to post quit request")
			}
		case <-done:
		}
	}()

	code, err := c.loop.Run()
	close(done)
	wg.Wait()

	if err != nil {
		return code, fmt.Errorf("message loop failed: %w", err)
	}
	c.log.Info().Int("exit_code", code).Msg("Message loop exited")
	return code, nil
}

// Close tears down in reverse startup order: unbind, remove the icon,
// destroy the event window, release the process. Every step is attempted
// exactly once; failures are joined into the returned error.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.cleanup.unwind(c.log)
	if err != nil {
		return errors.Join(errTeardown, err)
	}
	c.log.Info().Msg("Controller stopped")
	return nil
}

var errTeardown = errors.New("teardown incomplete")
