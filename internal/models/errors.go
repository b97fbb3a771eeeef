package models

import "errors"

// Errors shared across the resolution pipeline and the stop collection.
var (
	// ErrResolutionFailure means the place-resolution capability was unreachable, rejected the
	// credentials, or answered with nothing parseable. Re-submitting the same query may succeed.
	ErrResolutionFailure = errors.New("address resolution failed")
	// ErrNoMatchFound means the capability answered validly but matched nothing.
	ErrNoMatchFound = errors.New("no address matched the query")
	// ErrNoOriginAvailable means neither an explicit origin nor a live position is known yet.
	ErrNoOriginAvailable = errors.New("no origin available, waiting for position")
	// ErrCaptureUnavailable means camera or positioning access was denied.
	ErrCaptureUnavailable = errors.New("capture device unavailable")
	ErrStopNotFound       = errors.New("stop not found")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)
