package binding

import (
	"errors"
	"testing"

	"github.com/mixtray/mixtray/internal/logging"
	"github.com/mixtray/mixtray/internal/platform"
	"github.com/mixtray/mixtray/internal/platform/platformtest"
)

func setup(t *testing.T) (*platformtest.Desktop, *Registry, platform.HWND) {
	t.Helper()
	d := platformtest.New()
	if err := d.RegisterWindowClass("TestClass", nil); err != nil {
		t.Fatal(err)
	}
	hwnd, err := d.CreateMessageWindow("TestClass")
	if err != nil {
		t.Fatal(err)
	}
	return d, NewRegistry(d, logging.NewNopLogger()), hwnd
}

func TestBindLookupUnbind(t *testing.T) {
	d, r, event := setup(t)
	target := platform.HWND(0x4242)

	if err := r.Bind(event, target); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	got, err := r.Lookup(event)
	if err != nil || got != target {
		t.Errorf("Lookup = %#x, %v; want %#x", got, err, target)
	}
	if names := d.PropNames(event); len(names) != 1 || names[0] != PropertyName {
		t.Errorf("PropNames = %v", names)
	}

	if err := r.Unbind(event); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if _, err := r.Lookup(event); !errors.Is(err, ErrBindingMissing) {
		t.Errorf("Lookup after Unbind = %v, want ErrBindingMissing", err)
	}
	if err := r.Unbind(event); !errors.Is(err, ErrBindingMissing) {
		t.Errorf("second Unbind = %v, want ErrBindingMissing", err)
	}
}

func TestLookupWithoutBind(t *testing.T) {
	_, r, event := setup(t)
	if _, err := r.Lookup(event); !errors.Is(err, ErrBindingMissing) {
		t.Errorf("Lookup = %v, want ErrBindingMissing", err)
	}
}

func TestBindSameTargetIsNoop(t *testing.T) {
	d, r, event := setup(t)

	if err := r.Bind(event, 0x10); err != nil {
		t.Fatal(err)
	}
	if err := r.Bind(event, 0x10); err != nil {
		t.Errorf("rebinding same target: %v", err)
	}
	sets := 0
	for _, c := range d.CallLog() {
		if c == "SetProp("+PropertyName+")" {
			sets++
		}
	}
	if sets != 1 {
		t.Errorf("SetProp called %d times, want 1", sets)
	}
}

func TestBindDifferentTargetFails(t *testing.T) {
	_, r, event := setup(t)

	if err := r.Bind(event, 0x10); err != nil {
		t.Fatal(err)
	}
	if err := r.Bind(event, 0x20); !errors.Is(err, ErrAlreadyBound) {
		t.Errorf("Bind = %v, want ErrAlreadyBound", err)
	}
	got, _ := r.Lookup(event)
	if got != 0x10 {
		t.Errorf("binding changed to %#x", got)
	}
}

func TestBindFailures(t *testing.T) {
	d, r, event := setup(t)

	if err := r.Bind(event, 0); !errors.Is(err, ErrBindFailed) {
		t.Errorf("null target: %v, want ErrBindFailed", err)
	}

	d.SetPropErr = errors.New("out of memory")
	if err := r.Bind(event, 0x10); !errors.Is(err, ErrBindFailed) {
		t.Errorf("SetProp failure: %v, want ErrBindFailed", err)
	}
}

func TestUnbindRemoveFailure(t *testing.T) {
	d, r, event := setup(t)
	if err := r.Bind(event, 0x10); err != nil {
		t.Fatal(err)
	}
	d.RemovePropErr = errors.New("denied")
	if err := r.Unbind(event); err == nil || errors.Is(err, ErrBindingMissing) {
		t.Errorf("Unbind = %v, want remove error", err)
	}
}
