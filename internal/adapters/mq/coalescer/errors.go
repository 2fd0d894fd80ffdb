package coalescer

import "errors"

// Sentinel errors.
var (
	ErrStopped    = errors.New("coalescer stopped")
	ErrNotStarted = errors.New("coalescer not started")
)
