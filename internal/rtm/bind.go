package rtm

import (
	"fmt"
	"reflect"

	"github.com/danmuck/rtmctl/internal/protocol"
	"github.com/danmuck/rtmctl/internal/protocol/session"
)

type BindingID = session.BindingID

// HandlerSpec is a typed handler waiting to be bound to a socket.
type HandlerSpec struct {
	keys  []protocol.RouteKey
	shape reflect.Type
	call  func(any) error
}

// On describes a handler for shape T. With no keys it is bound to every key
// registered for T.
func On[T any](fn func(*T) error, keys ...protocol.RouteKey) HandlerSpec {
	return HandlerSpec{
		keys:  keys,
		shape: reflect.TypeFor[T](),
		call: func(v any) error {
			return fn(v.(*T))
		},
	}
}

// Bind attaches fn to s. See On for key selection.
func Bind[T any](s *Socket, fn func(*T) error, keys ...protocol.RouteKey) (BindingID, error) {
	if fn == nil {
		return 0, ErrNilCallback
	}
	return s.bind(On(fn, keys...))
}

// BindFunc is Bind for handlers that cannot fail.
func BindFunc[T any](s *Socket, fn func(*T), keys ...protocol.RouteKey) (BindingID, error) {
	if fn == nil {
		return 0, ErrNilCallback
	}
	return Bind(s, func(m *T) error {
		fn(m)
		return nil
	}, keys...)
}

// Unbind removes one binding. It reports whether the binding existed.
func (s *Socket) Unbind(id BindingID) bool {
	return s.table.Unbind(id)
}

// Routes returns the keys that currently have handlers.
func (s *Socket) Routes() []protocol.RouteKey {
	return s.table.Keys()
}

func (s *Socket) bind(spec HandlerSpec) (BindingID, error) {
	if spec.call == nil {
		return 0, ErrNilCallback
	}
	switch s.state.Load() {
	case session.StateClosing, session.StateClosed:
		return 0, ErrClosed
	}
	keys := spec.keys
	if len(keys) == 0 {
		keys = s.reg.KeysFor(spec.shape)
	}
	if len(keys) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownShape, spec.shape)
	}
	id, err := s.table.Bind(keys, session.Handler{Shape: spec.shape, Call: spec.call})
	if err != nil {
		return 0, err
	}
	s.log.Debug().Uint64("binding", uint64(id)).Str("shape", spec.shape.String()).Msg("rtm.Socket.Bind")
	return id, nil
}
