package win32

import "errors"

// ErrUnsupported is returned by New on operating systems without the
// Windows shell.
var ErrUnsupported = errors.New("mixtray requires Windows")
