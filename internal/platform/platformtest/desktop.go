// Package platformtest provides an in-memory platform.Desktop for tests.
package platformtest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mixtray/mixtray/internal/platform"
)

// ErrIdle is returned by GetMessage when no message arrives within
// IdleTimeout. It turns a missing quit into a test failure instead of a hang.
var ErrIdle = errors.New("platformtest: message queue idle")

// Window is a fake top-level or message-only window.
type Window struct {
	PID     uint32
	Title   string
	Visible bool
	Rect    platform.Rect
	Props   map[string]uintptr

	// Class is set for windows created through CreateMessageWindow.
	// Message-only windows are never enumerated.
	Class       string
	MessageOnly bool

	// AppearAfter hides the window from the first N EnumWindows passes.
	AppearAfter int

	PIDErr  error
	TextErr error
}

// Desktop is a scriptable platform.Desktop. Exported error fields inject
// failures into the matching call. All methods are safe for concurrent use.
type Desktop struct {
	mu sync.Mutex

	// Processes
	ProcessList    []platform.ProcessEntry
	ProcessesErr   error
	StartErr       error
	NextPID        uint32
	Started        []string
	OnStart        func(pid uint32)
	TerminateErr   error
	CloseHandleErr error
	Terminated     []platform.Handle
	openHandles    map[platform.Handle]uint32

	// Windows
	windows          map[platform.HWND]*Window
	order            []platform.HWND
	nextHWND         platform.HWND
	EnumPasses       int
	EnumErr          error
	SetForegroundErr error
	WindowRectErr    error
	MoveErr          error
	Work             platform.Rect
	WorkAreaErr      error
	Foreground       platform.HWND

	// Properties
	SetPropErr    error
	RemovePropErr error

	// Shell
	IconHandle         platform.Handle
	LoadIconErr        error
	NotifyErr          map[platform.NotifyIconOp]error
	icons              map[uint32]platform.NotifyIconData
	RegisterMessageErr error
	messages           map[string]uint32

	// Class and message loop
	RegisterClassErr   error
	UnregisterClassErr error
	CreateWindowErr    error
	DestroyErr         error
	classes            map[string]platform.WindowProc
	queue              chan platform.Msg
	IdleTimeout        time.Duration

	// Calls records state-changing calls in order, e.g. "NotifyIcon(delete)".
	Calls []string
}

var _ platform.Desktop = (*Desktop)(nil)

// New returns an empty desktop with a 1920x1040 work area.
func New() *Desktop {
	return &Desktop{
		NextPID:     4000,
		openHandles: make(map[platform.Handle]uint32),
		windows:     make(map[platform.HWND]*Window),
		nextHWND:    0x100,
		Work:        platform.Rect{Left: 0, Top: 0, Right: 1920, Bottom: 1040},
		IconHandle:  0x7f00,
		NotifyErr:   make(map[platform.NotifyIconOp]error),
		icons:       make(map[uint32]platform.NotifyIconData),
		messages:    make(map[string]uint32),
		classes:     make(map[string]platform.WindowProc),
		queue:       make(chan platform.Msg, 256),
		IdleTimeout: 5 * time.Second,
	}
}

func (d *Desktop) record(format string, args ...interface{}) {
	d.Calls = append(d.Calls, fmt.Sprintf(format, args...))
}

// CallLog returns a copy of Calls.
func (d *Desktop) CallLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.Calls...)
}

// CallIndex returns the position of the first call starting with prefix,
// or -1.
func (d *Desktop) CallIndex(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, c := range d.Calls {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

// AddProcess adds an entry to the process table.
func (d *Desktop) AddProcess(pid uint32, exe string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ProcessList = append(d.ProcessList, platform.ProcessEntry{PID: pid, ExeFile: exe})
}

// AddWindow adds a window and returns its handle.
func (d *Desktop) AddWindow(w Window) platform.HWND {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addWindowLocked(w)
}

func (d *Desktop) addWindowLocked(w Window) platform.HWND {
	hwnd := d.nextHWND
	d.nextHWND += 0x10
	if w.Props == nil {
		w.Props = make(map[string]uintptr)
	}
	d.windows[hwnd] = &w
	d.order = append(d.order, hwnd)
	return hwnd
}

// Window returns a copy of the window state.
func (d *Desktop) Window(hwnd platform.HWND) (Window, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[hwnd]
	if !ok {
		return Window{}, false
	}
	cp := *w
	cp.Props = make(map[string]uintptr, len(w.Props))
	for k, v := range w.Props {
		cp.Props[k] = v
	}
	return cp, true
}

// SetVisible changes a window's visibility without recording a call.
func (d *Desktop) SetVisible(hwnd platform.HWND, visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.windows[hwnd]; ok {
		w.Visible = visible
	}
}

// Icon returns the registered notification icon with the given id.
func (d *Desktop) Icon(id uint32) (platform.NotifyIconData, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.icons[id]
	return data, ok
}

// ClearIcons simulates an Explorer restart dropping every icon.
func (d *Desktop) ClearIcons() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.icons = make(map[uint32]platform.NotifyIconData)
}

// OpenHandles returns the number of process handles not yet closed.
func (d *Desktop) OpenHandles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.openHandles)
}

// StartedPaths returns the paths passed to StartHidden.
func (d *Desktop) StartedPaths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.Started...)
}

// TerminatedHandles returns the handles passed to TerminateProcess.
func (d *Desktop) TerminatedHandles() []platform.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]platform.Handle(nil), d.Terminated...)
}

// ClassRegistered reports whether a window class is currently registered.
func (d *Desktop) ClassRegistered(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.classes[name]
	return ok
}

// Processes

func (d *Desktop) Processes() ([]platform.ProcessEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Like a failing Process32Next, the rows read so far come back with
	// the error.
	return append([]platform.ProcessEntry(nil), d.ProcessList...), d.ProcessesErr
}

func (d *Desktop) StartHidden(path string) (uint32, platform.Handle, error) {
	d.mu.Lock()
	d.record("StartHidden(%s)", path)
	if d.StartErr != nil {
		d.mu.Unlock()
		return 0, 0, d.StartErr
	}
	pid := d.NextPID
	d.NextPID++
	h := platform.Handle(0x9000 + uintptr(pid))
	d.openHandles[h] = pid
	d.Started = append(d.Started, path)
	exe := path
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		exe = path[i+1:]
	}
	d.ProcessList = append(d.ProcessList, platform.ProcessEntry{PID: pid, ExeFile: exe})
	onStart := d.OnStart
	d.mu.Unlock()

	if onStart != nil {
		onStart(pid)
	}
	return pid, h, nil
}

func (d *Desktop) TerminateProcess(proc platform.Handle, exitCode uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("TerminateProcess")
	if d.TerminateErr != nil {
		return d.TerminateErr
	}
	pid, ok := d.openHandles[proc]
	if !ok {
		return fmt.Errorf("platformtest: terminate on unknown handle %#x", proc)
	}
	d.Terminated = append(d.Terminated, proc)
	kept := d.ProcessList[:0]
	for _, e := range d.ProcessList {
		if e.PID != pid {
			kept = append(kept, e)
		}
	}
	d.ProcessList = kept
	return nil
}

func (d *Desktop) CloseHandle(h platform.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CloseHandle")
	if _, ok := d.openHandles[h]; !ok {
		return fmt.Errorf("platformtest: close on unknown handle %#x", h)
	}
	delete(d.openHandles, h)
	return d.CloseHandleErr
}

// Top-level windows

func (d *Desktop) EnumWindows(fn func(platform.HWND) bool) error {
	d.mu.Lock()
	d.EnumPasses++
	if d.EnumErr != nil {
		d.mu.Unlock()
		return d.EnumErr
	}
	pass := d.EnumPasses
	var visible []platform.HWND
	for _, hwnd := range d.order {
		w, ok := d.windows[hwnd]
		if !ok || w.MessageOnly || w.AppearAfter >= pass {
			continue
		}
		visible = append(visible, hwnd)
	}
	d.mu.Unlock()

	for _, hwnd := range visible {
		if !fn(hwnd) {
			break
		}
	}
	return nil
}

func (d *Desktop) WindowProcessID(hwnd platform.HWND) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[hwnd]
	if !ok {
		return 0, fmt.Errorf("platformtest: no window %#x", hwnd)
	}
	if w.PIDErr != nil {
		return 0, w.PIDErr
	}
	return w.PID, nil
}

func (d *Desktop) WindowText(hwnd platform.HWND) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[hwnd]
	if !ok {
		return "", fmt.Errorf("platformtest: no window %#x", hwnd)
	}
	if w.TextErr != nil {
		return "", w.TextErr
	}
	return w.Title, nil
}

func (d *Desktop) IsWindowVisible(hwnd platform.HWND) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[hwnd]
	return ok && w.Visible
}

func (d *Desktop) ShowWindow(hwnd platform.HWND, cmd int32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[hwnd]
	if !ok {
		return false
	}
	was := w.Visible
	switch cmd {
	case platform.SW_HIDE:
		d.record("ShowWindow(hide)")
		w.Visible = false
	default:
		d.record("ShowWindow(show)")
		w.Visible = true
	}
	return was
}

func (d *Desktop) SetForegroundWindow(hwnd platform.HWND) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SetForegroundWindow")
	if d.SetForegroundErr != nil {
		return d.SetForegroundErr
	}
	d.Foreground = hwnd
	return nil
}

func (d *Desktop) WindowRect(hwnd platform.HWND) (platform.Rect, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.WindowRectErr != nil {
		return platform.Rect{}, d.WindowRectErr
	}
	w, ok := d.windows[hwnd]
	if !ok {
		return platform.Rect{}, fmt.Errorf("platformtest: no window %#x", hwnd)
	}
	return w.Rect, nil
}

func (d *Desktop) MoveWindow(hwnd platform.HWND, x, y int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("MoveWindow(%d,%d)", x, y)
	if d.MoveErr != nil {
		return d.MoveErr
	}
	w, ok := d.windows[hwnd]
	if !ok {
		return fmt.Errorf("platformtest: no window %#x", hwnd)
	}
	width, height := w.Rect.Width(), w.Rect.Height()
	w.Rect = platform.Rect{Left: x, Top: y, Right: x + width, Bottom: y + height}
	return nil
}

func (d *Desktop) WorkArea() (platform.Rect, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.WorkAreaErr != nil {
		return platform.Rect{}, d.WorkAreaErr
	}
	return d.Work, nil
}

// Per-window property store

func (d *Desktop) SetProp(hwnd platform.HWND, name string, data uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SetProp(%s)", name)
	if d.SetPropErr != nil {
		return d.SetPropErr
	}
	w, ok := d.windows[hwnd]
	if !ok {
		return fmt.Errorf("platformtest: no window %#x", hwnd)
	}
	w.Props[name] = data
	return nil
}

func (d *Desktop) GetProp(hwnd platform.HWND, name string) (uintptr, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[hwnd]
	if !ok {
		return 0, false
	}
	v, ok := w.Props[name]
	return v, ok
}

func (d *Desktop) RemoveProp(hwnd platform.HWND, name string) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RemoveProp(%s)", name)
	if d.RemovePropErr != nil {
		return 0, d.RemovePropErr
	}
	w, ok := d.windows[hwnd]
	if !ok {
		return 0, fmt.Errorf("platformtest: no window %#x", hwnd)
	}
	v, ok := w.Props[name]
	if !ok {
		return 0, fmt.Errorf("platformtest: property %s not set", name)
	}
	delete(w.Props, name)
	return v, nil
}

// Shell notification area

func (d *Desktop) LoadDefaultIcon() (platform.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.LoadIconErr != nil {
		return 0, d.LoadIconErr
	}
	return d.IconHandle, nil
}

func (d *Desktop) NotifyIcon(op platform.NotifyIconOp, data *platform.NotifyIconData) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("NotifyIcon(%s)", op)
	if err := d.NotifyErr[op]; err != nil {
		return err
	}
	switch op {
	case platform.NIM_ADD:
		if _, ok := d.icons[data.ID]; ok {
			return fmt.Errorf("platformtest: icon %d already added", data.ID)
		}
		d.icons[data.ID] = *data
	case platform.NIM_MODIFY:
		if _, ok := d.icons[data.ID]; !ok {
			return fmt.Errorf("platformtest: icon %d not present", data.ID)
		}
		d.icons[data.ID] = *data
	case platform.NIM_DELETE:
		if _, ok := d.icons[data.ID]; !ok {
			return fmt.Errorf("platformtest: icon %d not present", data.ID)
		}
		delete(d.icons, data.ID)
	}
	return nil
}

func (d *Desktop) RegisterWindowMessage(name string) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterMessageErr != nil {
		return 0, d.RegisterMessageErr
	}
	if id, ok := d.messages[name]; ok {
		return id, nil
	}
	id := uint32(0xC000 + len(d.messages))
	d.messages[name] = id
	return id, nil
}

// Window class, message-only window and message loop

func (d *Desktop) RegisterWindowClass(name string, proc platform.WindowProc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RegisterWindowClass")
	if d.RegisterClassErr != nil {
		return d.RegisterClassErr
	}
	if _, ok := d.classes[name]; ok {
		return fmt.Errorf("platformtest: class %s already registered", name)
	}
	d.classes[name] = proc
	return nil
}

func (d *Desktop) UnregisterWindowClass(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UnregisterWindowClass")
	if d.UnregisterClassErr != nil {
		return d.UnregisterClassErr
	}
	if _, ok := d.classes[name]; !ok {
		return fmt.Errorf("platformtest: class %s not registered", name)
	}
	for _, w := range d.windows {
		if w.Class == name {
			return fmt.Errorf("platformtest: class %s still has windows", name)
		}
	}
	delete(d.classes, name)
	return nil
}

func (d *Desktop) CreateMessageWindow(className string) (platform.HWND, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateMessageWindow")
	if d.CreateWindowErr != nil {
		return 0, d.CreateWindowErr
	}
	if _, ok := d.classes[className]; !ok {
		return 0, fmt.Errorf("platformtest: class %s not registered", className)
	}
	return d.addWindowLocked(Window{Class: className, MessageOnly: true}), nil
}

func (d *Desktop) DestroyWindow(hwnd platform.HWND) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroyWindow")
	if d.DestroyErr != nil {
		return d.DestroyErr
	}
	if _, ok := d.windows[hwnd]; !ok {
		return fmt.Errorf("platformtest: no window %#x", hwnd)
	}
	delete(d.windows, hwnd)
	return nil
}

func (d *Desktop) DefWindowProc(hwnd platform.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	return 0
}

// GetMessage blocks until a message is posted. It returns false for
// WM_QUIT and ErrIdle if nothing arrives within IdleTimeout.
func (d *Desktop) GetMessage(msg *platform.Msg) (bool, error) {
	select {
	case m := <-d.queue:
		*msg = m
		return m.Message != platform.WM_QUIT, nil
	case <-time.After(d.IdleTimeout):
		return false, ErrIdle
	}
}

func (d *Desktop) TranslateMessage(msg *platform.Msg) {}

func (d *Desktop) DispatchMessage(msg *platform.Msg) uintptr {
	d.mu.Lock()
	w, ok := d.windows[msg.HWnd]
	var proc platform.WindowProc
	if ok {
		proc = d.classes[w.Class]
	}
	d.mu.Unlock()

	if proc == nil {
		return 0
	}
	return proc(msg.HWnd, msg.Message, msg.WParam, msg.LParam)
}

func (d *Desktop) PostMessage(hwnd platform.HWND, msg uint32, wParam, lParam uintptr) error {
	d.mu.Lock()
	_, ok := d.windows[hwnd]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("platformtest: no window %#x", hwnd)
	}
	d.queue <- platform.Msg{HWnd: hwnd, Message: msg, WParam: wParam, LParam: lParam}
	return nil
}

func (d *Desktop) PostQuitMessage(exitCode int32) {
	d.mu.Lock()
	d.record("PostQuitMessage(%d)", exitCode)
	d.mu.Unlock()
	d.queue <- platform.Msg{Message: platform.WM_QUIT, WParam: uintptr(exitCode)}
}

// Send delivers a message straight to the window procedure of hwnd, as a
// SendMessage from the shell would.
func (d *Desktop) Send(hwnd platform.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	return d.DispatchMessage(&platform.Msg{HWnd: hwnd, Message: msg, WParam: wParam, LParam: lParam})
}

// MessageID returns the id previously handed out for a registered message.
func (d *Desktop) MessageID(name string) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.messages[name]
	return id, ok
}

// PropNames returns the property names set on hwnd, sorted.
func (d *Desktop) PropNames(hwnd platform.HWND) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[hwnd]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(w.Props))
	for k := range w.Props {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
