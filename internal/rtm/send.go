package rtm

import (
	"fmt"
	"reflect"
	"time"

	"github.com/danmuck/rtmctl/internal/protocol"
	"github.com/danmuck/rtmctl/internal/protocol/session"
)

// Send queues msg and returns its id. A zero id is assigned from the
// socket's counter; an empty type is filled from the registry.
func (s *Socket) Send(msg protocol.Message) (int64, error) {
	return s.send(msg, nil)
}

// SendWithCallback is Send with cb invoked once with the raw reply.
// The callback is dropped if the socket closes first.
func (s *Socket) SendWithCallback(msg protocol.Message, cb session.Callback) (int64, error) {
	if cb == nil {
		return 0, ErrNilCallback
	}
	return s.send(msg, cb)
}

func (s *Socket) send(msg protocol.Message, cb session.Callback) (int64, error) {
	if msg == nil {
		return 0, protocol.ErrNilMessage
	}
	if v := reflect.ValueOf(msg); v.Kind() == reflect.Pointer && v.IsNil() {
		return 0, protocol.ErrNilMessage
	}
	if s.state.Load() != session.StateOpen {
		return 0, ErrNotConnected
	}
	env := msg.Header()
	if env.Type == "" {
		key, ok := s.outboundKey(msg)
		if !ok {
			return 0, fmt.Errorf("%w: %T has no registered route", ErrNoRoute, msg)
		}
		env.Type = key.Type
		env.Subtype = key.WireSubtype()
	}
	if env.ID == 0 && env.ReplyTo == 0 {
		env.ID = s.nextID.Add(1)
	}
	payload, err := protocol.Encode(msg)
	if err != nil {
		return 0, err
	}
	if cb != nil {
		if err := s.pending.Add(env.ID, cb); err != nil {
			return 0, err
		}
	}
	depth := s.outbox.Push(payload)
	s.log.Debug().
		Int64("id", env.ID).
		Str("key", env.Key().String()).
		Int("queued", depth).
		Msg("rtm.Socket.Send queued")
	s.kick()
	return env.ID, nil
}

// outboundKey is the last key registered for msg's shape.
func (s *Socket) outboundKey(msg protocol.Message) (protocol.RouteKey, bool) {
	keys := s.reg.KeysFor(reflect.TypeOf(msg))
	if len(keys) == 0 {
		return protocol.RouteKey{}, false
	}
	return keys[len(keys)-1], true
}

// kick starts a drain worker unless one is already running.
func (s *Socket) kick() {
	if s.gate.TryAcquire() {
		go s.drain()
	}
}

// drain owns the write side while it holds the gate. After releasing it
// re-checks the outbox so a Send racing the release is not stranded.
func (s *Socket) drain() {
	for {
		s.flush()
		s.gate.Release()
		if s.outbox.Len() == 0 || s.state.Load() != session.StateOpen {
			return
		}
		if !s.gate.TryAcquire() {
			return
		}
	}
}

func (s *Socket) flush() {
	start := time.Now()
	written := 0
	defer func() {
		if written > 0 {
			s.recorder.DrainFinished(time.Since(start), written)
		}
	}()
	for s.state.Load() == session.StateOpen {
		payload, ok := s.outbox.Pop()
		if !ok {
			return
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(s.ctx); err != nil {
				return
			}
		}
		if err := s.tr.WriteMessage(s.ctx, payload); err != nil {
			if s.state.Load() != session.StateOpen {
				return
			}
			s.log.Warn().Err(err).Msg("rtm.Socket.drain write failed")
			s.report(session.Condition{Kind: session.KindSendError, Err: err, Raw: payload})
			_ = s.Close()
			return
		}
		written++
		s.recorder.MessageSent(len(payload))
	}
}
