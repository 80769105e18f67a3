package session

import "errors"

var (
	ErrNotConnected   = errors.New("session: not connected")
	ErrClosed         = errors.New("session: closed")
	ErrNoRoute        = errors.New("session: no route")
	ErrUnknownShape   = errors.New("session: unknown shape")
	ErrInvalidBinding = errors.New("session: invalid binding")
	ErrPendingExists  = errors.New("session: request id already pending")
	ErrInvalidConfig  = errors.New("session: invalid config")
)
