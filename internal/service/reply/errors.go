package reply

import "errors"

// ErrNotFound is returned when a reply does not exist in the caller's org.
var ErrNotFound = errors.New("reply not found")
