// Package process cleans up browser processes the renderers start.
package process

import "errors"

// ErrInvalidPID rejects pids that would address the caller's own group.
var ErrInvalidPID = errors.New("invalid process id")
