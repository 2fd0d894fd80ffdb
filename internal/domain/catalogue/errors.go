package catalogue

import "errors"

// Sentinel errors.
var (
	ErrEmpty      = errors.New("catalogue is empty")
	ErrHTTPStatus = errors.New("unexpected http status")
	ErrNoSource   = errors.New("no catalogue source configured")
)
