package process

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/mixtray/mixtray/internal/logging"
	"github.com/mixtray/mixtray/internal/platform"
	"github.com/mixtray/mixtray/internal/platform/platformtest"
	"github.com/mixtray/mixtray/internal/window"
)

type fakeFileInfo struct{ os.FileInfo }

func newTestSupervisor(d *platformtest.Desktop) *Supervisor {
	loc := window.NewLocator(d, logging.NewNopLogger())
	loc.MaxAttempts = 3
	loc.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	s := NewSupervisor(d, loc, logging.NewNopLogger())
	s.Getenv = func(key string) string {
		if key == "WINDIR" {
			return `C:\Windows`
		}
		return ""
	}
	s.Stat = func(string) (os.FileInfo, error) { return fakeFileInfo{}, nil }
	return s
}

func TestAcquireAttachesToRunningInstance(t *testing.T) {
	d := platformtest.New()
	d.AddProcess(4, "System")
	d.AddProcess(812, "SndVol.exe")
	hwnd := d.AddWindow(platformtest.Window{PID: 812, Title: "Volume Mixer"})

	s := newTestSupervisor(d)
	mp, err := s.Acquire(context.Background(), "SndVol.exe", "Volume Mixer")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if mp.PID != 812 || mp.Window != hwnd {
		t.Errorf("Acquire = pid %d hwnd %#x, want 812 %#x", mp.PID, mp.Window, hwnd)
	}
	if mp.Spawned() {
		t.Error("attached process reported as spawned")
	}
	if len(d.StartedPaths()) != 0 {
		t.Errorf("unexpected launch: %v", d.StartedPaths())
	}

	if err := mp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d.CallIndex("TerminateProcess") != -1 {
		t.Error("attached process must not be terminated")
	}
}

func TestAcquireSpawnsWhenNotRunning(t *testing.T) {
	d := platformtest.New()
	d.AddProcess(4, "System")
	var hwnd platform.HWND
	d.OnStart = func(pid uint32) {
		hwnd = d.AddWindow(platformtest.Window{PID: pid, Title: "Volume Mixer", AppearAfter: 1})
	}

	s := newTestSupervisor(d)
	mp, err := s.Acquire(context.Background(), "SndVol.exe", "Volume Mixer")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !mp.Spawned() {
		t.Error("expected spawned process")
	}
	if mp.Window != hwnd {
		t.Errorf("Window = %#x, want %#x", mp.Window, hwnd)
	}
	started := d.StartedPaths()
	if len(started) != 1 || started[0] != `C:\Windows/System32/SndVol.exe` && started[0] != `C:\Windows\System32\SndVol.exe` {
		t.Errorf("StartedPaths = %v", started)
	}

	// A second acquire attaches instead of launching again.
	again, err := s.Acquire(context.Background(), "SndVol.exe", "Volume Mixer")
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if again.Spawned() || len(d.StartedPaths()) != 1 {
		t.Errorf("second Acquire launched again: spawned=%v started=%v", again.Spawned(), d.StartedPaths())
	}

	if err := mp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(d.TerminatedHandles()) != 1 {
		t.Errorf("spawned process not terminated")
	}
	if d.OpenHandles() != 0 {
		t.Errorf("OpenHandles = %d, want 0", d.OpenHandles())
	}
	if err := mp.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if len(d.TerminatedHandles()) != 1 {
		t.Errorf("second Close terminated again")
	}
}

func TestAcquireTerminatesSpawnWhenWindowMissing(t *testing.T) {
	d := platformtest.New()

	s := newTestSupervisor(d)
	_, err := s.Acquire(context.Background(), "SndVol.exe", "Volume Mixer")
	if !errors.Is(err, window.ErrWindowNotFound) {
		t.Fatalf("err = %v, want ErrWindowNotFound", err)
	}
	if len(d.TerminatedHandles()) != 1 {
		t.Error("spawned process should be terminated after discovery failure")
	}
	if d.OpenHandles() != 0 {
		t.Errorf("OpenHandles = %d, want 0", d.OpenHandles())
	}
}

func TestAcquireAttachedWindowMissing(t *testing.T) {
	d := platformtest.New()
	d.AddProcess(812, "SndVol.exe")

	s := newTestSupervisor(d)
	_, err := s.Acquire(context.Background(), "SndVol.exe", "Volume Mixer")
	if !errors.Is(err, window.ErrWindowNotFound) {
		t.Fatalf("err = %v, want ErrWindowNotFound", err)
	}
	if len(d.StartedPaths()) != 0 || len(d.TerminatedHandles()) != 0 {
		t.Error("attached failure must not launch or terminate")
	}
}

func TestAcquireCreateProcessFailure(t *testing.T) {
	d := platformtest.New()
	d.StartErr = errors.New("access denied")

	s := newTestSupervisor(d)
	_, err := s.Acquire(context.Background(), "SndVol.exe", "Volume Mixer")
	if !errors.Is(err, ErrCreateProcess) {
		t.Errorf("err = %v, want ErrCreateProcess", err)
	}
}

func TestAcquireScanFailureLaunches(t *testing.T) {
	d := platformtest.New()
	d.ProcessesErr = errors.New("snapshot failed")
	d.OnStart = func(pid uint32) {
		d.AddWindow(platformtest.Window{PID: pid, Title: "Volume Mixer"})
	}

	s := newTestSupervisor(d)
	mp, err := s.Acquire(context.Background(), "SndVol.exe", "Volume Mixer")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !mp.Spawned() {
		t.Error("scan failure should fall through to launching")
	}
}

func TestAcquireAttachesAfterPartialScan(t *testing.T) {
	d := platformtest.New()
	d.AddProcess(4, "System")
	d.AddProcess(812, "SndVol.exe")
	d.ProcessesErr = errors.New("Process32Next failed")
	want := d.AddWindow(platformtest.Window{PID: 812, Title: "Volume Mixer"})

	s := newTestSupervisor(d)
	mp, err := s.Acquire(context.Background(), "SndVol.exe", "Volume Mixer")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if mp.Spawned() || mp.PID != 812 || mp.Window != want {
		t.Errorf("Acquire = pid %d window %#x spawned %v; want attach to 812", mp.PID, mp.Window, mp.Spawned())
	}
	if started := d.StartedPaths(); len(started) != 0 {
		t.Errorf("target launched again: %v", started)
	}
}

func TestFindPIDPartialScan(t *testing.T) {
	d := platformtest.New()
	d.AddProcess(812, "SndVol.exe")
	scanErr := errors.New("Process32Next failed")
	d.ProcessesErr = scanErr

	s := newTestSupervisor(d)

	pid, found, err := s.FindPID("SndVol.exe")
	if err != nil || !found || pid != 812 {
		t.Errorf("FindPID = %d, %v, %v; want 812, true, nil", pid, found, err)
	}

	_, found, err = s.FindPID("explorer.exe")
	if found || !errors.Is(err, scanErr) {
		t.Errorf("FindPID(explorer.exe) found=%v err=%v; want scan error", found, err)
	}
}

func TestFindPID(t *testing.T) {
	d := platformtest.New()
	d.AddProcess(10, "sndvol.exe")
	d.AddProcess(11, `C:\Windows\System32\SndVol.exe`)
	d.AddProcess(12, "SndVol.exe")

	s := newTestSupervisor(d)

	pid, found, err := s.FindPID("SndVol.exe")
	if err != nil || !found || pid != 11 {
		t.Errorf("FindPID = %d, %v, %v; want 11, true, nil", pid, found, err)
	}

	_, found, err = s.FindPID("SndVol")
	if err != nil || found {
		t.Errorf("prefix must not match: found=%v err=%v", found, err)
	}

	_, found, _ = s.FindPID("explorer.exe")
	if found {
		t.Error("absent process reported found")
	}
}

func TestResolvePath(t *testing.T) {
	d := platformtest.New()
	s := newTestSupervisor(d)

	s.Getenv = func(string) string { return "" }
	if _, err := s.ResolvePath("SndVol.exe"); !errors.Is(err, ErrSystemDirUnset) {
		t.Errorf("unset WINDIR: err = %v, want ErrSystemDirUnset", err)
	}

	s.Getenv = func(string) string { return `C:\Windows` }
	s.Stat = func(string) (os.FileInfo, error) { return nil, fs.ErrNotExist }
	if _, err := s.ResolvePath("SndVol.exe"); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("missing file: err = %v, want ErrPathNotFound", err)
	}

	statErr := errors.New("permission denied")
	s.Stat = func(string) (os.FileInfo, error) { return nil, statErr }
	if _, err := s.ResolvePath("SndVol.exe"); !errors.Is(err, statErr) || errors.Is(err, ErrPathNotFound) {
		t.Errorf("stat failure: err = %v", err)
	}
}

func TestManagedProcessCloseReportsTerminateFailure(t *testing.T) {
	d := platformtest.New()
	d.OnStart = func(pid uint32) {
		d.AddWindow(platformtest.Window{PID: pid, Title: "Volume Mixer"})
	}
	s := newTestSupervisor(d)
	mp, err := s.Acquire(context.Background(), "SndVol.exe", "Volume Mixer")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	d.TerminateErr = errors.New("access denied")
	if err := mp.Close(); err == nil {
		t.Error("expected terminate error")
	}
	if d.OpenHandles() != 0 {
		t.Errorf("handle must be released even when terminate fails")
	}
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"SndVol.exe":                     "SndVol.exe",
		`C:\Windows\System32\SndVol.exe`: "SndVol.exe",
		"/usr/bin/true":                  "true",
		"":                               "",
	}
	for in, want := range tests {
		if got := baseName(in); got != want {
			t.Errorf("baseName(%q) = %q, want %q", in, got, want)
		}
	}
}
