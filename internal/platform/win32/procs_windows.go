//go:build windows

package win32

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	shell32  = windows.NewLazySystemDLL("shell32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	pGetWindowText         = user32.NewProc("GetWindowTextW")
	pShowWindow            = user32.NewProc("ShowWindow")
	pSetForegroundWindow   = user32.NewProc("SetForegroundWindow")
	pGetWindowRect         = user32.NewProc("GetWindowRect")
	pSetWindowPos          = user32.NewProc("SetWindowPos")
	pSystemParametersInfo  = user32.NewProc("SystemParametersInfoW")
	pSetProp               = user32.NewProc("SetPropW")
	pGetProp               = user32.NewProc("GetPropW")
	pRemoveProp            = user32.NewProc("RemovePropW")
	pLoadIcon              = user32.NewProc("LoadIconW")
	pRegisterWindowMessage = user32.NewProc("RegisterWindowMessageW")
	pRegisterClassEx       = user32.NewProc("RegisterClassExW")
	pUnregisterClass       = user32.NewProc("UnregisterClassW")
	pCreateWindowEx        = user32.NewProc("CreateWindowExW")
	pDestroyWindow         = user32.NewProc("DestroyWindow")
	pDefWindowProc         = user32.NewProc("DefWindowProcW")
	pGetMessage            = user32.NewProc("GetMessageW")
	pTranslateMessage      = user32.NewProc("TranslateMessage")
	pDispatchMessage       = user32.NewProc("DispatchMessageW")
	pPostMessage           = user32.NewProc("PostMessageW")
	pPostQuitMessage       = user32.NewProc("PostQuitMessage")
	pShellNotifyIcon       = shell32.NewProc("Shell_NotifyIconA")
	pGetModuleHandle       = kernel32.NewProc("GetModuleHandleW")
)

const (
	startfPreventPinning = 0x00002000

	spiGetWorkArea = 0x0030

	swpNoSize     = 0x0001
	swpNoZOrder   = 0x0004
	swpNoActivate = 0x0010

	idiApplication = 32512

	nifMessage = 0x00000001
	nifIcon    = 0x00000002
	nifTip     = 0x00000004
)

// hwndMessage is HWND_MESSAGE, ((HWND)-3).
var hwndMessage = ^uintptr(2)

type rect struct {
	Left, Top, Right, Bottom int32
}

type point struct {
	X, Y int32
}

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

type wndClassEx struct {
	Size       uint32
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   windows.Handle
	Icon       windows.Handle
	Cursor     windows.Handle
	Background windows.Handle
	MenuName   *uint16
	ClassName  *uint16
	IconSm     windows.Handle
}

// notifyIconDataA is NOTIFYICONDATAA. The tooltip is a fixed ANSI buffer.
type notifyIconDataA struct {
	Size            uint32
	Wnd             windows.HWND
	ID              uint32
	Flags           uint32
	CallbackMessage uint32
	Icon            windows.Handle
	Tip             [128]byte
	State           uint32
	StateMask       uint32
	Info            [256]byte
	Version         uint32
	InfoTitle       [64]byte
	InfoFlags       uint32
	GuidItem        windows.GUID
	BalloonIcon     windows.Handle
}

// callErr converts the error returned by LazyProc.Call into a wrapped
// error. A zero errno still reports failure.
func callErr(name string, err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) && errno == 0 {
		err = syscall.EINVAL
	}
	return fmt.Errorf("%s failed: %w", name, err)
}
