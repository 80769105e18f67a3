// Package registry maps route keys to the message shapes they decode into.
//
// A Builder collects registrations at startup and produces an immutable
// Registry. Registries are safe for concurrent reads without locking.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/danmuck/rtmctl/internal/protocol"
)

var (
	ErrDuplicateRoute = errors.New("registry: duplicate route")
	ErrInvalidShape   = errors.New("registry: invalid shape")
	ErrNoKeys         = errors.New("registry: shape registered without keys")
	ErrBuilderSealed  = errors.New("registry: builder already built")
	ErrUnknownRoute   = errors.New("registry: unknown route")
)

// Shape describes how to materialize one message type.
type Shape struct {
	Type reflect.Type
	New  func() any
}

// Name returns the shape's Go type name for diagnostics.
func (s Shape) Name() string {
	if s.Type == nil {
		return "<nil>"
	}
	return s.Type.String()
}

// Builder collects shape registrations. Not safe for concurrent use.
type Builder struct {
	routes map[protocol.RouteKey]Shape
	keys   map[reflect.Type][]protocol.RouteKey
	sealed bool
}

func NewBuilder() *Builder {
	return &Builder{
		routes: make(map[protocol.RouteKey]Shape),
		keys:   make(map[reflect.Type][]protocol.RouteKey),
	}
}

// Add registers shape T under every key in keys.
// T must be a struct type embedding protocol.Envelope.
func Add[T any](b *Builder, keys ...protocol.RouteKey) error {
	rt := reflect.TypeFor[T]()
	if rt.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s is not a struct", ErrInvalidShape, rt)
	}
	if _, ok := any(new(T)).(protocol.Message); !ok {
		return fmt.Errorf("%w: %s does not embed protocol.Envelope", ErrInvalidShape, rt)
	}
	return b.add(Shape{Type: rt, New: func() any { return new(T) }}, keys)
}

// MustAdd is Add for static registration lists; it panics on error.
func MustAdd[T any](b *Builder, keys ...protocol.RouteKey) {
	if err := Add[T](b, keys...); err != nil {
		panic(err)
	}
}

func (b *Builder) add(shape Shape, keys []protocol.RouteKey) error {
	if b.sealed {
		return ErrBuilderSealed
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: %s", ErrNoKeys, shape.Name())
	}
	seen := make(map[protocol.RouteKey]struct{}, len(keys))
	for _, raw := range keys {
		key := protocol.Key(raw.Type, raw.Subtype)
		if key.Type == "" {
			return fmt.Errorf("%w: %s has an empty type", ErrInvalidShape, shape.Name())
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s lists %s twice", ErrDuplicateRoute, shape.Name(), key)
		}
		seen[key] = struct{}{}
		if prev, ok := b.routes[key]; ok {
			return fmt.Errorf("%w: %s claimed by %s and %s", ErrDuplicateRoute, key, prev.Name(), shape.Name())
		}
	}
	for _, raw := range keys {
		key := protocol.Key(raw.Type, raw.Subtype)
		b.routes[key] = shape
		b.keys[shape.Type] = append(b.keys[shape.Type], key)
	}
	return nil
}

// Build seals the builder and returns the immutable registry.
func (b *Builder) Build() *Registry {
	b.sealed = true
	r := &Registry{
		routes: make(map[protocol.RouteKey]Shape, len(b.routes)),
		keys:   make(map[reflect.Type][]protocol.RouteKey, len(b.keys)),
	}
	for k, v := range b.routes {
		r.routes[k] = v
	}
	for t, keys := range b.keys {
		r.keys[t] = append([]protocol.RouteKey(nil), keys...)
	}
	return r
}

// Registry is the read-only route table.
type Registry struct {
	routes map[protocol.RouteKey]Shape
	keys   map[reflect.Type][]protocol.RouteKey
}

// Empty returns a registry with no routes.
func Empty() *Registry {
	return NewBuilder().Build()
}

func (r *Registry) Lookup(key protocol.RouteKey) (Shape, bool) {
	if r == nil {
		return Shape{}, false
	}
	shape, ok := r.routes[protocol.Key(key.Type, key.Subtype)]
	return shape, ok
}

// KeysFor returns the keys registered for t in registration order.
// Pointer types resolve to their element type.
func (r *Registry) KeysFor(t reflect.Type) []protocol.RouteKey {
	if r == nil || t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	keys := r.keys[t]
	if len(keys) == 0 {
		return nil
	}
	return append([]protocol.RouteKey(nil), keys...)
}

// Decode materializes raw into the shape registered for key.
func (r *Registry) Decode(key protocol.RouteKey, raw []byte) (any, error) {
	shape, ok := r.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, key)
	}
	out := shape.New()
	if err := protocol.DecodeInto(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Keys returns every registered key, sorted by type then subtype.
func (r *Registry) Keys() []protocol.RouteKey {
	if r == nil {
		return nil
	}
	out := make([]protocol.RouteKey, 0, len(r.routes))
	for k := range r.routes {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Subtype < out[j].Subtype
	})
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.routes)
}
