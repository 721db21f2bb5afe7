//go:build windows

package win32

import (
	"sync"

	"golang.org/x/sys/windows"

	"github.com/mixtray/mixtray/internal/platform"
)

// Callbacks created with windows.NewCallback are never freed, so there is
// exactly one of each. Per-call state is looked up by key.
var (
	enumWindowsCallback = windows.NewCallback(enumWindowsProc)
	wndProcCallback     = windows.NewCallback(wndProc)

	// enumStates maps the EnumWindows lParam to its *enumState.
	enumStates sync.Map

	// windowProcs maps an HWND to the procedure of its class.
	windowProcs sync.Map
)

type enumState struct {
	fn      func(platform.HWND) bool
	stopped bool
}

func enumWindowsProc(hwnd windows.HWND, lParam uintptr) uintptr {
	v, ok := enumStates.Load(lParam)
	if !ok {
		return 0
	}
	state := v.(*enumState)
	if state.fn(platform.HWND(hwnd)) {
		return 1
	}
	state.stopped = true
	return 0
}

func wndProc(hwnd, msg, wParam, lParam uintptr) uintptr {
	if v, ok := windowProcs.Load(hwnd); ok {
		return v.(platform.WindowProc)(platform.HWND(hwnd), uint32(msg), wParam, lParam)
	}
	ret, _, _ := pDefWindowProc.Call(hwnd, msg, wParam, lParam)
	return ret
}
