package rtm

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/rtmctl/internal/protocol"
	"github.com/danmuck/rtmctl/internal/protocol/messages"
)

// Request sends msg and decodes the reply into K before calling fn.
func Request[K any](s *Socket, msg protocol.Message, fn func(reply *K, err error)) (int64, error) {
	if fn == nil {
		return 0, ErrNilCallback
	}
	return s.SendWithCallback(msg, func(raw []byte) {
		reply := new(K)
		if err := protocol.DecodeInto(raw, reply); err != nil {
			fn(nil, err)
			return
		}
		fn(reply, replyErr(reply))
	})
}

// Call sends msg and blocks for the reply. A reply with ok=false is returned
// together with an error wrapping ErrRequestFailed.
func Call[K any](ctx context.Context, s *Socket, msg protocol.Message) (*K, error) {
	type result struct {
		reply *K
		err   error
	}
	ch := make(chan result, 1)
	id, err := Request(s, msg, func(reply *K, err error) {
		ch <- result{reply: reply, err: err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r.reply, r.err
	case <-ctx.Done():
		s.pending.Cancel(id)
		return nil, ctx.Err()
	case <-s.Done():
		select {
		case r := <-ch:
			return r.reply, r.err
		default:
		}
		return nil, fmt.Errorf("%w: request %d abandoned", ErrClosed, id)
	}
}

func replyErr(reply any) error {
	m, ok := reply.(protocol.Message)
	if !ok {
		return nil
	}
	env := m.Header()
	if env.Succeeded() {
		return nil
	}
	if env.Error != nil {
		return fmt.Errorf("%w: reply_to=%d: %w", ErrRequestFailed, env.ReplyTo, env.Error)
	}
	return fmt.Errorf("%w: reply_to=%d", ErrRequestFailed, env.ReplyTo)
}

// Ping sends a ping and waits for the pong, returning the round trip time.
func Ping(ctx context.Context, s *Socket) (time.Duration, error) {
	start := time.Now()
	if _, err := Call[messages.Pong](ctx, s, messages.NewPing()); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
