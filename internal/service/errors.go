package service

import "errors"

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidSecondFactor = errors.New("invalid second-factor code")
	ErrNoPendingChallenge  = errors.New("no pending second-factor challenge")
	ErrSessionNotFound     = errors.New("session not found")
	ErrStoreUnavailable    = errors.New("session store unavailable")
)
