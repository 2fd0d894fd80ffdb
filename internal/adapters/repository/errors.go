package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrNotConfigured  = errors.New("store backend not configured")
	ErrUpstream       = errors.New("upstream store error")
	ErrClosed         = errors.New("store closed")
)
