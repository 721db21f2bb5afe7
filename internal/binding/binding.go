// Package binding stores the target window reference as a named property on
// the event window, so the tray handler can recover it on every click
// without package-level state.
package binding

import (
	"errors"
	"fmt"

	"github.com/mixtray/mixtray/internal/constants"
	"github.com/mixtray/mixtray/internal/logging"
	"github.com/mixtray/mixtray/internal/platform"
)

// PropertyName is the property key used on the event window.
const PropertyName = constants.TargetWindowProperty

var (
	// ErrBindFailed is returned when the property store rejects the write.
	ErrBindFailed = errors.New("failed to bind target window")

	// ErrAlreadyBound is returned when the event window already carries a
	// different target.
	ErrAlreadyBound = errors.New("event window already bound to another target")

	// ErrBindingMissing is returned when no target is bound.
	ErrBindingMissing = errors.New("no target window bound")
)

// API is the per-window property store.
type API interface {
	SetProp(hwnd platform.HWND, name string, data uintptr) error
	GetProp(hwnd platform.HWND, name string) (uintptr, bool)
	RemoveProp(hwnd platform.HWND, name string) (uintptr, error)
}

// Registry binds a target window to an event window.
type Registry struct {
	api API
	log *logging.Logger
}

// NewRegistry creates a registry backed by the window property store.
func NewRegistry(api API, log *logging.Logger) *Registry {
	return &Registry{api: api, log: log.Component("binding")}
}

// Bind records target on eventWindow. Binding the same target again is a
// no-op.
func (r *Registry) Bind(eventWindow, target platform.HWND) error {
	if target == 0 {
		return fmt.Errorf("%w: null target window", ErrBindFailed)
	}
	if existing, ok := r.api.GetProp(eventWindow, PropertyName); ok && existing != 0 {
		if platform.HWND(existing) == target {
			return nil
		}
		return fmt.Errorf("%w: bound to %#x", ErrAlreadyBound, existing)
	}
	if err := r.api.SetProp(eventWindow, PropertyName, uintptr(target)); err != nil {
		return fmt.Errorf("%w: %v", ErrBindFailed, err)
	}
	r.log.Debug().Uint64("event_window", uint64(eventWindow)).Uint64("target", uint64(target)).Msg("Bound target window")
	return nil
}

// Lookup returns the target bound to eventWindow.
func (r *Registry) Lookup(eventWindow platform.HWND) (platform.HWND, error) {
	v, ok := r.api.GetProp(eventWindow, PropertyName)
	if !ok || v == 0 {
		return 0, ErrBindingMissing
	}
	return platform.HWND(v), nil
}

// Unbind removes the binding. It must run before the event window is
// destroyed. Unbinding a window with no binding returns ErrBindingMissing.
func (r *Registry) Unbind(eventWindow platform.HWND) error {
	if _, ok := r.api.GetProp(eventWindow, PropertyName); !ok {
		return ErrBindingMissing
	}
	if _, err := r.api.RemoveProp(eventWindow, PropertyName); err != nil {
		return fmt.Errorf("failed to remove %s: %w", PropertyName, err)
	}
	return nil
}
