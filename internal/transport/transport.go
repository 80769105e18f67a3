// Package transport carries raw message frames between the socket and the
// network. The websocket implementation is built on gorilla/websocket.
package transport

import (
	"context"
	"errors"

	"github.com/danmuck/rtmctl/internal/protocol/frame"
)

var (
	ErrClosed          = errors.New("transport: closed")
	ErrDial            = errors.New("transport: dial failed")
	ErrWriteAfterClose = errors.New("transport: write after close")
)

// Transport is one established bidirectional connection.
//
// ReadFrame is called from a single reader goroutine and WriteMessage from a
// single writer goroutine. Close may be called from anywhere, more than once,
// and unblocks both.
type Transport interface {
	ReadFrame(ctx context.Context) (frame.Frame, error)
	WriteMessage(ctx context.Context, payload []byte) error
	Close() error
}
