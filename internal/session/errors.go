package session

import "errors"

var (
	ErrNotFound            = errors.New("session: not found")
	ErrSessionFull         = errors.New("session: full")
	ErrSessionExpired      = errors.New("session: expired")
	ErrPresenterLeft       = errors.New("session: presenter did not reclaim within grace period")
	ErrInvalidJoinSecret   = errors.New("session: invalid join secret")
	ErrInvalidPresenterKey = errors.New("session: invalid presenter key")
	ErrSessionLocked       = errors.New("session: locked")
	ErrNotPresenter        = errors.New("session: caller is not the presenter")
	ErrParticipantNotFound = errors.New("session: participant not found")
	ErrTooManySessions     = errors.New("session: concurrent session limit reached")
)
