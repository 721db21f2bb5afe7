// Package platform defines the OS window-system surface MixTray consumes.
//
// The core packages depend only on the types and interfaces declared here.
// The Windows implementation lives in platform/win32; an in-memory
// implementation for tests lives in platform/platformtest.
package platform

// HWND is an opaque top-level window reference.
type HWND uintptr

// Handle is an opaque kernel or GDI object handle (process, icon).
type Handle uintptr

// InvalidHandle mirrors INVALID_HANDLE_VALUE.
const InvalidHandle = ^Handle(0)

// Window messages and payload values used by the tray and event loop.
const (
	WM_NULL        = 0x0000
	WM_CLOSE       = 0x0010
	WM_QUIT        = 0x0012
	WM_LBUTTONDOWN = 0x0201
	WM_LBUTTONUP   = 0x0202
	WM_RBUTTONDOWN = 0x0204
	WM_RBUTTONUP   = 0x0205
	WM_USER        = 0x0400
	WM_APP         = 0x8000
)

// ShowWindow commands.
const (
	SW_HIDE = 0
	SW_SHOW = 5
)

// NotifyIconOp selects the Shell_NotifyIcon operation.
type NotifyIconOp uint32

const (
	NIM_ADD    NotifyIconOp = 0x0
	NIM_MODIFY NotifyIconOp = 0x1
	NIM_DELETE NotifyIconOp = 0x2
)

func (op NotifyIconOp) String() string {
	switch op {
	case NIM_ADD:
		return "add"
	case NIM_MODIFY:
		return "modify"
	case NIM_DELETE:
		return "delete"
	default:
		return "unknown"
	}
}

// TipSize is the capacity of the notification-area tooltip buffer,
// including the terminating NUL.
const TipSize = 128

// NotifyIconData is the subset of NOTIFYICONDATA that MixTray fills in.
type NotifyIconData struct {
	Owner           HWND
	ID              uint32
	CallbackMessage uint32
	Icon            Handle
	Tip             [TipSize]byte
}

// Rect is a screen rectangle in pixels; Right and Bottom are exclusive.
type Rect struct {
	Left, Top, Right, Bottom int32
}

func (r Rect) Width() int32  { return r.Right - r.Left }
func (r Rect) Height() int32 { return r.Bottom - r.Top }

// Point is a screen coordinate.
type Point struct {
	X, Y int32
}

// Msg mirrors the Win32 MSG structure.
type Msg struct {
	HWnd    HWND
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      Point
}

// ProcessEntry is one row of a process table snapshot.
type ProcessEntry struct {
	PID     uint32
	ExeFile string
}

// WindowProc is a window procedure. It runs on the thread that owns hwnd.
type WindowProc func(hwnd HWND, msg uint32, wParam, lParam uintptr) uintptr

// Desktop is every OS primitive MixTray uses. Consumers declare narrower
// interfaces; Desktop exists so a single value can be handed to app.Run.
type Desktop interface {
	// Processes
	Processes() ([]ProcessEntry, error)
	StartHidden(path string) (pid uint32, proc Handle, err error)
	TerminateProcess(proc Handle, exitCode uint32) error
	CloseHandle(h Handle) error

	// Top-level windows
	EnumWindows(fn func(HWND) bool) error
	WindowProcessID(hwnd HWND) (uint32, error)
	WindowText(hwnd HWND) (string, error)
	IsWindowVisible(hwnd HWND) bool
	ShowWindow(hwnd HWND, cmd int32) bool
	SetForegroundWindow(hwnd HWND) error
	WindowRect(hwnd HWND) (Rect, error)
	MoveWindow(hwnd HWND, x, y int32) error
	WorkArea() (Rect, error)

	// Per-window property store
	SetProp(hwnd HWND, name string, data uintptr) error
	GetProp(hwnd HWND, name string) (uintptr, bool)
	RemoveProp(hwnd HWND, name string) (uintptr, error)

	// Shell notification area
	LoadDefaultIcon() (Handle, error)
	NotifyIcon(op NotifyIconOp, data *NotifyIconData) error
	RegisterWindowMessage(name string) (uint32, error)

	// Window class, message-only window and message loop
	RegisterWindowClass(name string, proc WindowProc) error
	UnregisterWindowClass(name string) error
	CreateMessageWindow(className string) (HWND, error)
	DestroyWindow(hwnd HWND) error
	DefWindowProc(hwnd HWND, msg uint32, wParam, lParam uintptr) uintptr
	GetMessage(msg *Msg) (bool, error)
	TranslateMessage(msg *Msg)
	DispatchMessage(msg *Msg) uintptr
	PostMessage(hwnd HWND, msg uint32, wParam, lParam uintptr) error
	PostQuitMessage(exitCode int32)
}
