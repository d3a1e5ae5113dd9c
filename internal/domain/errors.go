package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrLockHeld       = errors.New("lock already held")
	ErrUnknownBetType = errors.New("unknown bet type")
	ErrValidation     = errors.New("validation failed")
	ErrPeriodClosed   = errors.New("period closed")
	ErrRateLookup     = errors.New("rate lookup failed")
	ErrSubmission     = errors.New("submission failed")
	ErrSubmitInFlight = errors.New("submission already in flight")
	ErrSessionClosed  = errors.New("session closed")
)
