// Package tray owns the notification-area icon and turns clicks on it into
// show, hide and quit actions on the bound target window.
package tray

import (
	"github.com/mixtray/mixtray/internal/constants"
	"github.com/mixtray/mixtray/internal/logging"
	"github.com/mixtray/mixtray/internal/platform"
)

// State is the icon's registration state with the shell.
type State int

const (
	Unregistered State = iota
	Registered
)

func (s State) String() string {
	if s == Registered {
		return "registered"
	}
	return "unregistered"
}

// Shell is the notification-area surface.
type Shell interface {
	LoadDefaultIcon() (platform.Handle, error)
	NotifyIcon(op platform.NotifyIconOp, data *platform.NotifyIconData) error
	RegisterWindowMessage(name string) (uint32, error)
	PostQuitMessage(exitCode int32)
}

// Windows is the target window surface.
type Windows interface {
	IsWindowVisible(hwnd platform.HWND) bool
	ShowWindow(hwnd platform.HWND, cmd int32) bool
	SetForegroundWindow(hwnd platform.HWND) error
	WindowRect(hwnd platform.HWND) (platform.Rect, error)
	MoveWindow(hwnd platform.HWND, x, y int32) error
	WorkArea() (platform.Rect, error)
}

// Lookup resolves the target bound to the event window.
type Lookup interface {
	Lookup(eventWindow platform.HWND) (platform.HWND, error)
}

// Options configures the icon.
type Options struct {
	Tooltip string
}

// Controller is the tray icon state machine. All methods run on the event
// loop thread.
type Controller struct {
	owner   platform.HWND
	shell   Shell
	windows Windows
	lookup  Lookup
	log     *logging.Logger

	icon           IconState
	state          State
	closed         bool
	taskbarCreated uint32
}

// New builds the icon metadata and registers it with the shell. A
// registration failure is logged and leaves the controller Unregistered.
func New(eventWindow platform.HWND, shell Shell, windows Windows, lookup Lookup, opts Options, log *logging.Logger) *Controller {
	c := &Controller{
		owner:   eventWindow,
		shell:   shell,
		windows: windows,
		lookup:  lookup,
		log:     log.Component("tray"),
	}

	icon, err := shell.LoadDefaultIcon()
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to load default icon")
	}
	c.icon = NewIconState(icon, opts.Tooltip)

	if id, err := shell.RegisterWindowMessage(constants.TaskbarCreatedMessage); err != nil {
		c.log.Warn().Err(err).Msg("Failed to register TaskbarCreated, icon will not survive an Explorer restart")
	} else {
		c.taskbarCreated = id
	}

	c.register()
	return c
}

// State returns the current registration state.
func (c *Controller) State() State {
	return c.state
}

// Icon returns the registered icon metadata.
func (c *Controller) Icon() IconState {
	return c.icon
}

func (c *Controller) register() {
	if err := c.shell.NotifyIcon(platform.NIM_ADD, c.icon.notifyData(c.owner, constants.TrayIconID)); err != nil {
		c.log.Error().Err(err).Msg("Failed to register tray icon, continuing without it")
		c.state = Unregistered
		return
	}
	c.state = Registered
	c.log.Info().Str("tooltip", c.icon.Tooltip()).Msg("Tray icon registered")
}

// HandleMessage processes a message sent to the event window. handled is
// false for messages the controller does not own.
func (c *Controller) HandleMessage(hwnd platform.HWND, msg uint32, wParam, lParam uintptr) (result uintptr, handled bool) {
	switch {
	case msg == CallbackMessage:
		c.handleClick(hwnd, lParam)
		return 0, true
	case msg == QuitMessage:
		c.log.Info().Msg("Quit requested")
		c.shell.PostQuitMessage(0)
		return 0, true
	case c.taskbarCreated != 0 && msg == c.taskbarCreated:
		c.handleTaskbarCreated()
		return 0, true
	}
	return 0, false
}

func (c *Controller) handleClick(hwnd platform.HWND, lParam uintptr) {
	switch uint32(lParam) {
	case platform.WM_LBUTTONDOWN:
		c.toggle(hwnd)
	case platform.WM_RBUTTONDOWN:
		c.log.Info().Msg("Right click, quitting")
		c.shell.PostQuitMessage(0)
	default:
		c.log.Debug().Uint64("payload", uint64(lParam)).Msg("Ignoring tray event")
	}
}

// toggle hides a visible target, or moves a hidden one to the bottom-right
// of the work area and shows it. Visibility is read from the OS each time.
func (c *Controller) toggle(eventWindow platform.HWND) {
	target, err := c.lookup.Lookup(eventWindow)
	if err != nil {
		c.log.Error().Err(err).Msg("No target window bound, ignoring click")
		return
	}

	if c.windows.IsWindowVisible(target) {
		c.windows.ShowWindow(target, platform.SW_HIDE)
		c.log.Debug().Msg("Target hidden")
		return
	}

	if err := c.reposition(target); err != nil {
		c.log.Warn().Err(err).Msg("Failed to reposition target window")
	}
	c.windows.ShowWindow(target, platform.SW_SHOW)
	if err := c.windows.SetForegroundWindow(target); err != nil {
		c.log.Debug().Err(err).Msg("SetForegroundWindow refused")
	}
	c.log.Debug().Msg("Target shown")
}

func (c *Controller) reposition(target platform.HWND) error {
	work, err := c.windows.WorkArea()
	if err != nil {
		return err
	}
	rect, err := c.windows.WindowRect(target)
	if err != nil {
		return err
	}
	x, y := BottomRight(work, rect)
	return c.windows.MoveWindow(target, x, y)
}

// handleTaskbarCreated restores the icon after the shell restarts. A
// degraded controller gets another registration attempt.
func (c *Controller) handleTaskbarCreated() {
	if c.closed {
		return
	}
	c.log.Info().Str("state", c.state.String()).Msg("Taskbar recreated, re-adding tray icon")
	c.register()
}

// Close removes the icon from the shell. A failure is logged only. Calling
// Close again does nothing.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.state != Registered {
		return nil
	}
	c.state = Unregistered
	if err := c.shell.NotifyIcon(platform.NIM_DELETE, c.icon.notifyData(c.owner, constants.TrayIconID)); err != nil {
		c.log.Warn().Err(err).Msg("Failed to remove tray icon")
		return err
	}
	c.log.Debug().Msg("Tray icon removed")
	return nil
}
