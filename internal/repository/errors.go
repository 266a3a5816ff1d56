// Package repository defines error types that are reused across the
// identity stores.  These sentinel values allow higher layers such as
// the token service and the handlers to distinguish between failure
// scenarios without depending on a particular storage driver.
package repository

import "errors"

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// ErrStaleSession is returned by UpdateSessionCredential when the user's
// session credential was written by someone else since it was read.
// Callers should treat the update as lost.
var ErrStaleSession = errors.New("session credential changed concurrently")

// ErrUnknownRole is returned when assigning a role that does not exist.
var ErrUnknownRole = errors.New("unknown role")
