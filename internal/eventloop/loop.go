// Package eventloop owns the hidden message-only event window and the
// blocking message loop that drives it.
package eventloop

import (
	"errors"
	"fmt"

	"github.com/mixtray/mixtray/internal/logging"
	"github.com/mixtray/mixtray/internal/platform"
)

var (
	// ErrRegisterClass is returned when the window class cannot be registered.
	ErrRegisterClass = errors.New("failed to register event window class")

	// ErrCreateWindow is returned when the message-only window cannot be created.
	ErrCreateWindow = errors.New("failed to create event window")
)

// API is the subset of the platform the loop needs.
type API interface {
	RegisterWindowClass(name string, proc platform.WindowProc) error
	UnregisterWindowClass(name string) error
	CreateMessageWindow(className string) (platform.HWND, error)
	DestroyWindow(hwnd platform.HWND) error
	DefWindowProc(hwnd platform.HWND, msg uint32, wParam, lParam uintptr) uintptr
	GetMessage(msg *platform.Msg) (bool, error)
	TranslateMessage(msg *platform.Msg)
	DispatchMessage(msg *platform.Msg) uintptr
}

// Handler receives messages dispatched to the event window.
type Handler interface {
	HandleMessage(hwnd platform.HWND, msg uint32, wParam, lParam uintptr) (result uintptr, handled bool)
}

// Loop is the event window and its message pump. It must be created, run
// and closed on the same locked OS thread.
type Loop struct {
	api       API
	className string
	hwnd      platform.HWND
	handler   Handler
	log       *logging.Logger

	destroyed    bool
	unregistered bool
}

// New registers className and creates a message-only window of that class.
// If window creation fails the class is unregistered again.
func New(api API, className string, log *logging.Logger) (*Loop, error) {
	l := &Loop{
		api:       api,
		className: className,
		log:       log.Component("eventloop"),
	}

	if err := api.RegisterWindowClass(className, l.windowProc); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrRegisterClass, className, err)
	}

	hwnd, err := api.CreateMessageWindow(className)
	if err != nil {
		if uerr := api.UnregisterWindowClass(className); uerr != nil {
			l.log.Warn().Err(uerr).Msg("Failed to unregister window class after window creation failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrCreateWindow, err)
	}
	l.hwnd = hwnd

	l.log.Debug().Uint64("hwnd", uint64(hwnd)).Str("class", className).Msg("Event window created")
	return l, nil
}

// Window returns the event window.
func (l *Loop) Window() platform.HWND {
	return l.hwnd
}

// Attach routes messages to h. Messages that arrive before Attach, or that
// h does not handle, go to the default window procedure.
func (l *Loop) Attach(h Handler) {
	l.handler = h
}

func (l *Loop) windowProc(hwnd platform.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	if l.handler != nil {
		if result, handled := l.handler.HandleMessage(hwnd, msg, wParam, lParam); handled {
			return result
		}
	}
	return l.api.DefWindowProc(hwnd, msg, wParam, lParam)
}

// Run pumps messages until WM_QUIT and returns its exit code.
func (l *Loop) Run() (int, error) {
	l.log.Debug().Msg("Entering message loop")
	var msg platform.Msg
	for {
		ok, err := l.api.GetMessage(&msg)
		if err != nil {
			return 1, fmt.Errorf("failed to get message: %w", err)
		}
		if !ok {
			code := int(int32(msg.WParam))
			l.log.Debug().Int("exit_code", code).Msg("Message loop finished")
			return code, nil
		}
		l.api.TranslateMessage(&msg)
		l.api.DispatchMessage(&msg)
	}
}

// Close destroys the event window, then unregisters its class. Each step
// is attempted once; later calls do nothing.
func (l *Loop) Close() error {
	var errs []error

	if !l.destroyed {
		l.destroyed = true
		if err := l.api.DestroyWindow(l.hwnd); err != nil {
			l.log.Warn().Err(err).Msg("Failed to destroy event window")
			errs = append(errs, fmt.Errorf("failed to destroy event window: %w", err))
		}
	}

	if !l.unregistered {
		l.unregistered = true
		if err := l.api.UnregisterWindowClass(l.className); err != nil {
			l.log.Warn().Err(err).Msg("Failed to unregister window class")
			errs = append(errs, fmt.Errorf("failed to unregister window class: %w", err))
		}
	}

	return errors.Join(errs...)
}
