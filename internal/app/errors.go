package service

import "errors"

// Sentinel errors returned by the service. The HTTP layer maps them to
// client errors; anything else is an internal failure.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrUnknownPedal = errors.New("unknown pedal")
	ErrSamePedal    = errors.New("winner and loser are the same pedal")
	ErrUnknownBrand = errors.New("unknown brand")
	ErrSameBrand    = errors.New("a battle needs two different brands")
	ErrNotInBattle  = errors.New("pedal does not belong to this battle")
)
