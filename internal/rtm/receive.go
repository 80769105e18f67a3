package rtm

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/danmuck/rtmctl/internal/protocol"
	"github.com/danmuck/rtmctl/internal/protocol/frame"
	"github.com/danmuck/rtmctl/internal/protocol/session"
)

func (s *Socket) readLoop() {
	asm := frame.NewAssembler(s.cfg.Limits)
	for {
		f, err := s.tr.ReadFrame(s.ctx)
		if err != nil {
			if s.state.Load() == session.StateOpen {
				s.log.Warn().Err(err).Msg("rtm.Socket.readLoop receive failed")
				s.report(session.Condition{Kind: session.KindReceiveError, Err: err})
				_ = s.Close()
			}
			return
		}
		raw, done, err := asm.Push(f)
		if !done {
			continue
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("rtm.Socket.readLoop dropped message")
			s.report(session.Condition{Kind: session.KindDecodeError, Err: err})
			continue
		}
		if err := s.Dispatch(raw); err != nil {
			if errors.Is(err, ErrNoRoute) {
				s.log.Debug().Err(err).Msg("rtm.Socket.readLoop unrouted")
			} else {
				s.log.Warn().Err(err).Msg("rtm.Socket.readLoop dispatch failed")
			}
		}
	}
}

// Dispatch routes one complete inbound message. A reply to a pending request
// goes to that request's callback only. Anything else is decoded and passed
// to each handler bound to its route key, in bind order.
//
// Decode failures, missing routes and handler failures are reported to the
// observers and returned. A failing handler stops delivery of this message
// to the handlers after it. Empty and null messages are ignored.
func (s *Socket) Dispatch(raw []byte) error {
	env, err := protocol.DecodeEnvelope(raw)
	if errors.Is(err, protocol.ErrEmptyMessage) {
		return nil
	}
	if err != nil {
		s.report(session.Condition{Kind: session.KindDecodeError, Err: err, Raw: raw})
		return err
	}
	key := env.Key()
	s.recorder.MessageReceived(key, len(raw))

	if env.ReplyTo != 0 {
		if cb, ok := s.pending.Take(env.ReplyTo); ok {
			return s.resolve(key, env.ReplyTo, cb, raw)
		}
	}

	bindings := s.table.Handlers(key)
	if len(bindings) == 0 {
		err := fmt.Errorf("%w: %s", ErrNoRoute, key)
		s.report(session.Condition{Kind: session.KindNoRoute, Err: err, Key: key, Raw: raw})
		return err
	}

	decoded := make(map[reflect.Type]any, 1)
	if shape, ok := s.reg.Lookup(key); ok {
		v, err := s.reg.Decode(key, raw)
		if err != nil {
			s.report(session.Condition{Kind: session.KindDecodeError, Err: err, Key: key, Raw: raw})
			return err
		}
		decoded[shape.Type] = v
	}
	for _, b := range bindings {
		msg, err := decodeFor(decoded, b.Handler.Shape, raw)
		if err != nil {
			s.report(session.Condition{Kind: session.KindDecodeError, Err: err, Key: key, Raw: raw})
			return err
		}
		if err := session.Invoke(key, b, msg); err != nil {
			s.report(session.Condition{Kind: session.KindHandlerError, Err: err, Key: key, Raw: raw})
			return err
		}
	}
	return nil
}

// decodeFor returns raw decoded as shape, reusing an earlier decode of the
// same shape. A nil shape receives the raw bytes.
func decodeFor(cache map[reflect.Type]any, shape reflect.Type, raw []byte) (any, error) {
	if shape == nil {
		return raw, nil
	}
	if v, ok := cache[shape]; ok {
		return v, nil
	}
	v := reflect.New(shape).Interface()
	if err := protocol.DecodeInto(raw, v); err != nil {
		return nil, err
	}
	cache[shape] = v
	return v, nil
}

func (s *Socket) resolve(key protocol.RouteKey, id int64, cb session.Callback, raw []byte) error {
	b := session.Binding{Handler: session.Handler{Call: func(any) error {
		cb(raw)
		return nil
	}}}
	if err := session.Invoke(key, b, nil); err != nil {
		s.report(session.Condition{Kind: session.KindHandlerError, Err: err, Key: key, Raw: raw})
		return fmt.Errorf("rtm: reply to %d: %w", id, err)
	}
	return nil
}
