//go:build windows

// Package win32 implements platform.Desktop on top of user32, shell32 and
// kernel32.
package win32

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/mixtray/mixtray/internal/constants"
	"github.com/mixtray/mixtray/internal/platform"
)

// Desktop is the Windows platform.Desktop.
type Desktop struct {
	instance windows.Handle

	mu      sync.Mutex
	classes map[string]platform.WindowProc
}

var _ platform.Desktop = (*Desktop)(nil)

// New returns the Windows desktop.
func New() (platform.Desktop, error) {
	instance, _, err := pGetModuleHandle.Call(0)
	if instance == 0 {
		return nil, callErr("GetModuleHandleW", err)
	}
	return &Desktop{
		instance: windows.Handle(instance),
		classes:  make(map[string]platform.WindowProc),
	}, nil
}

// Processes

func (d *Desktop) Processes() ([]platform.ProcessEntry, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Process32First(snapshot, &entry); err != nil {
		return nil, fmt.Errorf("Process32First failed: %w", err)
	}

	var entries []platform.ProcessEntry
	for {
		entries = append(entries, platform.ProcessEntry{
			PID:     entry.ProcessID,
			ExeFile: windows.UTF16ToString(entry.ExeFile[:]),
		})
		if err := windows.Process32Next(snapshot, &entry); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				break
			}
			return entries, fmt.Errorf("Process32Next failed: %w", err)
		}
	}
	return entries, nil
}

// StartHidden launches path with a hidden initial window and taskbar
// pinning disabled. The thread handle is closed immediately.
func (d *Desktop) StartHidden(path string) (uint32, platform.Handle, error) {
	cmdLine, err := windows.UTF16PtrFromString(windows.EscapeArg(path))
	if err != nil {
		return 0, 0, err
	}

	si := windows.StartupInfo{
		Flags:      windows.STARTF_USESHOWWINDOW | startfPreventPinning,
		ShowWindow: windows.SW_HIDE,
	}
	si.Cb = uint32(unsafe.Sizeof(si))
	var pi windows.ProcessInformation

	if err := windows.CreateProcess(nil, cmdLine, nil, nil, false, 0, nil, nil, &si, &pi); err != nil {
		return 0, 0, fmt.Errorf("CreateProcessW failed: %w", err)
	}
	windows.CloseHandle(pi.Thread)

	return pi.ProcessId, platform.Handle(pi.Process), nil
}

func (d *Desktop) TerminateProcess(proc platform.Handle, exitCode uint32) error {
	if err := windows.TerminateProcess(windows.Handle(proc), exitCode); err != nil {
		return fmt.Errorf("TerminateProcess failed: %w", err)
	}
	return nil
}

func (d *Desktop) CloseHandle(h platform.Handle) error {
	return windows.CloseHandle(windows.Handle(h))
}

// Top-level windows

func (d *Desktop) EnumWindows(fn func(platform.HWND) bool) error {
	state := &enumState{fn: fn}
	key := uintptr(unsafe.Pointer(state))
	enumStates.Store(key, state)
	defer enumStates.Delete(key)

	err := windows.EnumWindows(enumWindowsCallback, unsafe.Pointer(state))
	if state.stopped {
		// EnumWindows reports failure when the callback ends enumeration.
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnumWindows failed: %w", err)
	}
	return nil
}

func (d *Desktop) WindowProcessID(hwnd platform.HWND) (uint32, error) {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(windows.HWND(hwnd), &pid); err != nil {
		return 0, fmt.Errorf("GetWindowThreadProcessId failed: %w", err)
	}
	return pid, nil
}

func (d *Desktop) WindowText(hwnd platform.HWND) (string, error) {
	buf := make([]uint16, constants.WindowTitleBufferSize)
	n, _, err := pGetWindowText.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		// Untitled windows return zero without setting the last error.
		var errno syscall.Errno
		if errors.As(err, &errno) && errno != 0 {
			return "", fmt.Errorf("GetWindowTextW failed: %w", err)
		}
		return "", nil
	}
	return windows.UTF16ToString(buf[:n]), nil
}

func (d *Desktop) IsWindowVisible(hwnd platform.HWND) bool {
	return windows.IsWindowVisible(windows.HWND(hwnd))
}

func (d *Desktop) ShowWindow(hwnd platform.HWND, cmd int32) bool {
	was, _, _ := pShowWindow.Call(uintptr(hwnd), uintptr(cmd))
	return was != 0
}

func (d *Desktop) SetForegroundWindow(hwnd platform.HWND) error {
	ret, _, err := pSetForegroundWindow.Call(uintptr(hwnd))
	if ret == 0 {
		return callErr("SetForegroundWindow", err)
	}
	return nil
}

func (d *Desktop) WindowRect(hwnd platform.HWND) (platform.Rect, error) {
	var r rect
	ret, _, err := pGetWindowRect.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&r)))
	if ret == 0 {
		return platform.Rect{}, callErr("GetWindowRect", err)
	}
	return platform.Rect(r), nil
}

func (d *Desktop) MoveWindow(hwnd platform.HWND, x, y int32) error {
	ret, _, err := pSetWindowPos.Call(
		uintptr(hwnd),
		0,
		uintptr(x),
		uintptr(y),
		0,
		0,
		swpNoSize|swpNoZOrder|swpNoActivate,
	)
	if ret == 0 {
		return callErr("SetWindowPos", err)
	}
	return nil
}

func (d *Desktop) WorkArea() (platform.Rect, error) {
	var r rect
	ret, _, err := pSystemParametersInfo.Call(spiGetWorkArea, 0, uintptr(unsafe.Pointer(&r)), 0)
	if ret == 0 {
		return platform.Rect{}, callErr("SystemParametersInfoW(SPI_GETWORKAREA)", err)
	}
	return platform.Rect(r), nil
}

// Per-window property store

func (d *Desktop) SetProp(hwnd platform.HWND, name string, data uintptr) error {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}
	ret, _, err := pSetProp.Call(uintptr(hwnd), uintptr(unsafe.Pointer(p)), data)
	if ret == 0 {
		return callErr("SetPropW", err)
	}
	return nil
}

func (d *Desktop) GetProp(hwnd platform.HWND, name string) (uintptr, bool) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, false
	}
	ret, _, _ := pGetProp.Call(uintptr(hwnd), uintptr(unsafe.Pointer(p)))
	return ret, ret != 0
}

func (d *Desktop) RemoveProp(hwnd platform.HWND, name string) (uintptr, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	ret, _, err := pRemoveProp.Call(uintptr(hwnd), uintptr(unsafe.Pointer(p)))
	if ret == 0 {
		return 0, callErr("RemovePropW", err)
	}
	return ret, nil
}

// Shell notification area

func (d *Desktop) LoadDefaultIcon() (platform.Handle, error) {
	ret, _, err := pLoadIcon.Call(0, idiApplication)
	if ret == 0 {
		return 0, callErr("LoadIconW(IDI_APPLICATION)", err)
	}
	return platform.Handle(ret), nil
}

func (d *Desktop) NotifyIcon(op platform.NotifyIconOp, data *platform.NotifyIconData) error {
	nid := notifyIconDataA{
		Wnd:             windows.HWND(data.Owner),
		ID:              data.ID,
		Flags:           nifMessage | nifTip,
		CallbackMessage: data.CallbackMessage,
		Icon:            windows.Handle(data.Icon),
		Tip:             data.Tip,
	}
	nid.Size = uint32(unsafe.Sizeof(nid))
	if data.Icon != 0 {
		nid.Flags |= nifIcon
	}

	ret, _, err := pShellNotifyIcon.Call(uintptr(op), uintptr(unsafe.Pointer(&nid)))
	if ret == 0 {
		return callErr(fmt.Sprintf("Shell_NotifyIconA(%s)", op), err)
	}
	return nil
}

func (d *Desktop) RegisterWindowMessage(name string) (uint32, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	ret, _, err := pRegisterWindowMessage.Call(uintptr(unsafe.Pointer(p)))
	if ret == 0 {
		return 0, callErr("RegisterWindowMessageW", err)
	}
	return uint32(ret), nil
}

// Window class, message-only window and message loop

func (d *Desktop) RegisterWindowClass(name string, proc platform.WindowProc) error {
	className, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}
	wc := wndClassEx{
		WndProc:   wndProcCallback,
		Instance:  d.instance,
		ClassName: className,
	}
	wc.Size = uint32(unsafe.Sizeof(wc))

	ret, _, err := pRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc)))
	if ret == 0 {
		return callErr("RegisterClassExW", err)
	}

	d.mu.Lock()
	d.classes[name] = proc
	d.mu.Unlock()
	return nil
}

func (d *Desktop) UnregisterWindowClass(name string) error {
	className, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}
	ret, _, err := pUnregisterClass.Call(uintptr(unsafe.Pointer(className)), uintptr(d.instance))
	if ret == 0 {
		return callErr("UnregisterClassW", err)
	}

	d.mu.Lock()
	delete(d.classes, name)
	d.mu.Unlock()
	return nil
}

// CreateMessageWindow creates a message-only window of className. Messages
// sent during creation go to DefWindowProc; the class procedure takes over
// once the handle is known.
func (d *Desktop) CreateMessageWindow(className string) (platform.HWND, error) {
	d.mu.Lock()
	proc, ok := d.classes[className]
	d.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("window class %q not registered", className)
	}

	cls, err := windows.UTF16PtrFromString(className)
	if err != nil {
		return 0, err
	}
	title, err := windows.UTF16PtrFromString(constants.AppName)
	if err != nil {
		return 0, err
	}

	hwnd, _, err := pCreateWindowEx.Call(
		0,
		uintptr(unsafe.Pointer(cls)),
		uintptr(unsafe.Pointer(title)),
		0,
		0, 0, 0, 0,
		hwndMessage,
		0,
		uintptr(d.instance),
		0,
	)
	if hwnd == 0 {
		return 0, callErr("CreateWindowExW", err)
	}

	if proc != nil {
		windowProcs.Store(hwnd, proc)
	}
	return platform.HWND(hwnd), nil
}

func (d *Desktop) DestroyWindow(hwnd platform.HWND) error {
	ret, _, err := pDestroyWindow.Call(uintptr(hwnd))
	if ret == 0 {
		return callErr("DestroyWindow", err)
	}
	windowProcs.Delete(uintptr(hwnd))
	return nil
}

func (d *Desktop) DefWindowProc(hwnd platform.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	ret, _, _ := pDefWindowProc.Call(uintptr(hwnd), uintptr(msg), wParam, lParam)
	return ret
}

// GetMessage retrieves the next message for any window of this thread.
func (d *Desktop) GetMessage(m *platform.Msg) (bool, error) {
	var raw msg
	ret, _, err := pGetMessage.Call(uintptr(unsafe.Pointer(&raw)), 0, 0, 0)
	switch int32(ret) {
	case -1:
		return false, callErr("GetMessageW", err)
	case 0:
		*m = fromRaw(&raw)
		return false, nil
	}
	*m = fromRaw(&raw)
	return true, nil
}

func (d *Desktop) TranslateMessage(m *platform.Msg) {
	raw := toRaw(m)
	pTranslateMessage.Call(uintptr(unsafe.Pointer(&raw)))
}

func (d *Desktop) DispatchMessage(m *platform.Msg) uintptr {
	raw := toRaw(m)
	ret, _, _ := pDispatchMessage.Call(uintptr(unsafe.Pointer(&raw)))
	return ret
}

func (d *Desktop) PostMessage(hwnd platform.HWND, msg uint32, wParam, lParam uintptr) error {
	ret, _, err := pPostMessage.Call(uintptr(hwnd), uintptr(msg), wParam, lParam)
	if ret == 0 {
		return callErr("PostMessageW", err)
	}
	return nil
}

func (d *Desktop) PostQuitMessage(exitCode int32) {
	pPostQuitMessage.Call(uintptr(exitCode))
}

func fromRaw(raw *msg) platform.Msg {
	return platform.Msg{
		HWnd:    platform.HWND(raw.Hwnd),
		Message: raw.Message,
		WParam:  raw.WParam,
		LParam:  raw.LParam,
		Time:    raw.Time,
		Pt:      platform.Point{X: raw.Pt.X, Y: raw.Pt.Y},
	}
}

func toRaw(m *platform.Msg) msg {
	return msg{
		Hwnd:    uintptr(m.HWnd),
		Message: m.Message,
		WParam:  m.WParam,
		LParam:  m.LParam,
		Time:    m.Time,
		Pt:      point{X: m.Pt.X, Y: m.Pt.Y},
	}
}
