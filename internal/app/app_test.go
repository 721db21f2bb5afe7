package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mixtray/mixtray/internal/binding"
	"github.com/mixtray/mixtray/internal/config"
	"github.com/mixtray/mixtray/internal/constants"
	"github.com/mixtray/mixtray/internal/eventloop"
	"github.com/mixtray/mixtray/internal/logging"
	"github.com/mixtray/mixtray/internal/platform"
	"github.com/mixtray/mixtray/internal/platform/platformtest"
	"github.com/mixtray/mixtray/internal/process"
	"github.com/mixtray/mixtray/internal/tray"
	"github.com/mixtray/mixtray/internal/window"
)

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Discovery.RetryDelayMS = 0
	return cfg
}

// newDesktop returns a desktop where spawning a process creates a hidden
// Volume Mixer window one enumeration pass later. WINDIR points at an empty
// directory until withExecutable is called.
func newDesktop(t *testing.T) *platformtest.Desktop {
	t.Helper()
	t.Setenv("WINDIR", t.TempDir())
	d := platformtest.New()
	d.OnStart = func(pid uint32) {
		d.AddWindow(platformtest.Window{
			PID:         pid,
			Title:       "Volume Mixer - Speakers",
			Rect:        platform.Rect{Left: 0, Top: 0, Right: 400, Bottom: 300},
			AppearAfter: 1,
		})
	}
	return d
}

func startController(t *testing.T, d *platformtest.Desktop) *Controller {
	t.Helper()
	c, err := Start(context.Background(), d, testConfig(), logging.NewNopLogger())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c
}

// withExecutable makes %WINDIR%\System32\SndVol.exe resolvable.
func withExecutable(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("WINDIR", dir)
	if err := os.MkdirAll(filepath.Join(dir, "System32"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "System32", "SndVol.exe"), nil, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestStartSpawnsOnceWhenNotRunning(t *testing.T) {
	d := newDesktop(t)
	withExecutable(t)

	c := startController(t, d)
	if got := len(d.StartedPaths()); got != 1 {
		t.Fatalf("spawned %d processes, want 1", got)
	}
	if !c.Process().Spawned() {
		t.Error("process should be owned")
	}

	w, _ := d.Window(c.Process().Window)
	if w.Title != "Volume Mixer - Speakers" {
		t.Errorf("bound window title = %q", w.Title)
	}
	bound, ok := d.GetProp(c.EventWindow(), binding.PropertyName)
	if !ok || platform.HWND(bound) != c.Process().Window {
		t.Errorf("binding = %#x, %v; want %#x", bound, ok, c.Process().Window)
	}
	if c.Tray().State() != tray.Registered {
		t.Errorf("tray state = %v", c.Tray().State())
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(d.TerminatedHandles()) != 1 || d.OpenHandles() != 0 {
		t.Errorf("spawned process not released: terminated=%v open=%d", d.TerminatedHandles(), d.OpenHandles())
	}
}

func TestStartAttachesWhenRunning(t *testing.T) {
	d := newDesktop(t)
	d.AddProcess(812, "SndVol.exe")
	hwnd := d.AddWindow(platformtest.Window{PID: 812, Title: "Volume Mixer"})

	c := startController(t, d)
	if len(d.StartedPaths()) != 0 {
		t.Errorf("spawned %v, want none", d.StartedPaths())
	}
	if c.Process().Window != hwnd {
		t.Errorf("Window = %#x, want %#x", c.Process().Window, hwnd)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d.CallIndex("TerminateProcess") != -1 {
		t.Error("attached process must survive shutdown")
	}
}

func TestTeardownOrder(t *testing.T) {
	d := newDesktop(t)
	withExecutable(t)

	c := startController(t, d)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	assertTeardownOrder(t, d)

	n := len(d.CallLog())
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if len(d.CallLog()) != n {
		t.Error("second Close repeated releases")
	}
}

func TestTeardownContinuesAfterFailures(t *testing.T) {
	d := newDesktop(t)
	withExecutable(t)
	c := startController(t, d)

	d.RemovePropErr = errors.New("unbind failed")
	d.NotifyErr[platform.NIM_DELETE] = errors.New("icon delete failed")
	d.DestroyErr = errors.New("destroy failed")
	d.TerminateErr = errors.New("terminate failed")

	err := c.Close()
	if err == nil {
		t.Fatal("Close should report teardown failures")
	}
	for _, want := range []error{d.RemovePropErr, d.NotifyErr[platform.NIM_DELETE], d.DestroyErr, d.TerminateErr} {
		if !errors.Is(err, want) {
			t.Errorf("Close error missing %v", want)
		}
	}
	assertTeardownOrder(t, d)

	counts := map[string]int{}
	for _, call := range d.CallLog() {
		counts[call]++
	}
	for _, call := range []string{
		"RemoveProp(" + binding.PropertyName + ")",
		"NotifyIcon(delete)",
		"DestroyWindow",
		"UnregisterWindowClass",
		"TerminateProcess",
		"CloseHandle",
	} {
		if counts[call] != 1 {
			t.Errorf("%s called %d times, want 1", call, counts[call])
		}
	}
	if d.OpenHandles() != 0 {
		t.Error("process handle leaked after terminate failure")
	}
}

func assertTeardownOrder(t *testing.T, d *platformtest.Desktop) {
	t.Helper()
	order := []string{
		"RemoveProp(" + binding.PropertyName + ")",
		"NotifyIcon(delete)",
		"DestroyWindow",
		"TerminateProcess",
		"CloseHandle",
	}
	prev := -1
	for _, call := range order {
		idx := d.CallIndex(call)
		if idx == -1 {
			t.Fatalf("%s never called: %v", call, d.CallLog())
		}
		if idx < prev {
			t.Errorf("%s out of order: %v", call, d.CallLog())
		}
		prev = idx
	}
}

func TestStartFailuresReleasePartialState(t *testing.T) {
	tests := []struct {
		name    string
		inject  func(d *platformtest.Desktop)
		wantErr error
		// released lists calls that must have happened during unwinding.
		released []string
	}{
		{
			name:     "class registration",
			inject:   func(d *platformtest.Desktop) { d.RegisterClassErr = errors.New("exists") },
			wantErr:  eventloop.ErrRegisterClass,
			released: []string{"TerminateProcess", "CloseHandle"},
		},
		{
			name:     "window creation",
			inject:   func(d *platformtest.Desktop) { d.CreateWindowErr = errors.New("no memory") },
			wantErr:  eventloop.ErrCreateWindow,
			released: []string{"UnregisterWindowClass", "TerminateProcess", "CloseHandle"},
		},
		{
			name:     "binding write",
			inject:   func(d *platformtest.Desktop) { d.SetPropErr = errors.New("no memory") },
			wantErr:  binding.ErrBindFailed,
			released: []string{"NotifyIcon(delete)", "DestroyWindow", "UnregisterWindowClass", "TerminateProcess", "CloseHandle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDesktop(t)
			withExecutable(t)
			tt.inject(d)

			_, err := Start(context.Background(), d, testConfig(), logging.NewNopLogger())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Start err = %v, want %v", err, tt.wantErr)
			}
			for _, call := range tt.released {
				if d.CallIndex(call) == -1 {
					t.Errorf("%s not called during unwind: %v", call, d.CallLog())
				}
			}
			if d.OpenHandles() != 0 {
				t.Error("process handle leaked")
			}
		})
	}
}

func TestStartFatalDiscoveryErrors(t *testing.T) {
	t.Run("executable missing", func(t *testing.T) {
		d := newDesktop(t)
		_, err := Start(context.Background(), d, testConfig(), logging.NewNopLogger())
		if !errors.Is(err, process.ErrPathNotFound) {
			t.Errorf("err = %v, want ErrPathNotFound", err)
		}
	})

	t.Run("window never appears", func(t *testing.T) {
		d := newDesktop(t)
		withExecutable(t)
		d.OnStart = nil
		_, err := Start(context.Background(), d, testConfig(), logging.NewNopLogger())
		if !errors.Is(err, window.ErrWindowNotFound) {
			t.Errorf("err = %v, want ErrWindowNotFound", err)
		}
		if d.EnumPasses != constants.DefaultDiscoveryAttempts {
			t.Errorf("EnumPasses = %d, want %d", d.EnumPasses, constants.DefaultDiscoveryAttempts)
		}
		if d.OpenHandles() != 0 {
			t.Error("spawned process leaked")
		}
	})
}

func TestRightClickEndsLoop(t *testing.T) {
	for _, unbound := range []bool{false, true} {
		d := newDesktop(t)
		withExecutable(t)
		c := startController(t, d)

		if unbound {
			d.RemoveProp(c.EventWindow(), binding.PropertyName)
		}
		d.PostMessage(c.EventWindow(), tray.CallbackMessage, constants.TrayIconID, platform.WM_RBUTTONDOWN)

		code, err := c.Run(context.Background())
		if err != nil || code != 0 {
			t.Errorf("unbound=%v: Run = %d, %v; want 0, nil", unbound, code, err)
		}
		c.Close()
	}
}

func TestLeftClickThroughLoop(t *testing.T) {
	d := newDesktop(t)
	withExecutable(t)
	c := startController(t, d)
	target := c.Process().Window

	d.PostMessage(c.EventWindow(), tray.CallbackMessage, constants.TrayIconID, platform.WM_LBUTTONDOWN)
	d.PostMessage(c.EventWindow(), tray.CallbackMessage, constants.TrayIconID, platform.WM_RBUTTONDOWN)

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	w, _ := d.Window(target)
	if !w.Visible {
		t.Error("target should be visible after a left click")
	}
	if w.Rect.Right != d.Work.Right || w.Rect.Bottom != d.Work.Bottom {
		t.Errorf("target rect = %+v, want flush with work area %+v", w.Rect, d.Work)
	}
	c.Close()
}

func TestRunStopsOnContextCancel(t *testing.T) {
	d := newDesktop(t)
	withExecutable(t)

	ctx, cancel := context.WithCancel(context.Background())
	c, err := Start(ctx, d, testConfig(), logging.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	code, err := c.Run(ctx)
	if err != nil || code != 0 {
		t.Errorf("Run = %d, %v; want 0, nil", code, err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestRunEndToEnd(t *testing.T) {
	d := newDesktop(t)
	withExecutable(t)
	// The context is already cancelled, so discovery must succeed on the
	// first pass.
	d.OnStart = func(pid uint32) {
		d.AddWindow(platformtest.Window{PID: pid, Title: "Volume Mixer"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, err := Run(ctx, d, testConfig(), logging.NewNopLogger())
	if err != nil || code != 0 {
		t.Fatalf("Run = %d, %v", code, err)
	}
	assertTeardownOrder(t, d)
	if d.ClassRegistered(constants.EventWindowClassName) {
		t.Error("window class left registered")
	}
}

func TestRunStartupFailureExitCode(t *testing.T) {
	d := newDesktop(t)
	code, err := Run(context.Background(), d, testConfig(), logging.NewNopLogger())
	if err == nil || code != 1 {
		t.Errorf("Run = %d, %v; want 1 and an error", code, err)
	}
}
