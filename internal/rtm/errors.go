package rtm

import (
	"errors"

	"github.com/danmuck/rtmctl/internal/protocol/session"
)

var (
	ErrNotConnected  = session.ErrNotConnected
	ErrClosed        = session.ErrClosed
	ErrNoRoute       = session.ErrNoRoute
	ErrUnknownShape  = session.ErrUnknownShape
	ErrRequestFailed = errors.New("rtm: request failed")
	ErrNilCallback   = errors.New("rtm: nil callback")
)
