package cachefs

import "errors"

// ErrLockTimeout is returned when a tile or meta-tile lock could not be
// acquired within the configured timeout.
var ErrLockTimeout = errors.New("cachefs: lock timeout")

// ErrIO wraps unexpected filesystem failures encountered while storing or
// loading a tile.
var ErrIO = errors.New("cachefs: io error")
