// Package handle provides single-owner wrappers around OS handles.
package handle

import (
	"github.com/mixtray/mixtray/internal/platform"
)

// CloseFunc releases a raw handle.
type CloseFunc func(platform.Handle) error

// Guard owns one OS handle and releases it at most once.
//
// A Guard is not safe for concurrent use; it is owned by exactly one
// component on the event-loop thread.
type Guard struct {
	h        platform.Handle
	close    CloseFunc
	released bool
}

// New takes ownership of h. closeFn is called by Close when h is valid.
func New(h platform.Handle, closeFn CloseFunc) *Guard {
	return &Guard{h: h, close: closeFn}
}

// Invalid returns a guard that owns nothing. Close on it is a no-op.
func Invalid() *Guard {
	return &Guard{h: platform.InvalidHandle}
}

// IsValidHandle reports whether h refers to a real object. Both the null
// handle and INVALID_HANDLE_VALUE are treated as "no handle".
func IsValidHandle(h platform.Handle) bool {
	return h != 0 && h != platform.InvalidHandle
}

// Valid reports whether the guard still owns a releasable handle.
func (g *Guard) Valid() bool {
	return g != nil && !g.released && IsValidHandle(g.h)
}

// Raw returns the underlying handle without transferring ownership.
func (g *Guard) Raw() platform.Handle {
	if g == nil {
		return platform.InvalidHandle
	}
	return g.h
}

// Close releases the handle. Only the first call does any work; the
// guard is marked released even if the close function fails.
func (g *Guard) Close() error {
	if g == nil || g.released {
		return nil
	}
	g.released = true
	if !IsValidHandle(g.h) || g.close == nil {
		return nil
	}
	return g.close(g.h)
}
