package session

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/danmuck/rtmctl/internal/protocol"
)

// BindingID identifies one Bind call so it can be removed later.
type BindingID uint64

// Handler consumes decoded messages of one shape.
type Handler struct {
	// Shape is the struct type Call expects behind a pointer.
	Shape reflect.Type
	Call  func(msg any) error
}

// Binding is a handler as stored in the table.
type Binding struct {
	ID      BindingID
	Handler Handler
}

// HandlerError wraps a failed or panicking handler.
type HandlerError struct {
	Key     protocol.RouteKey
	Binding BindingID
	Err     error
	Panic   any
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("session: handler %d for %s panicked: %v", e.Binding, e.Key, e.Panic)
	}
	return fmt.Sprintf("session: handler %d for %s: %v", e.Binding, e.Key, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Invoke runs b's handler on msg. Errors and panics come back as *HandlerError.
func Invoke(key protocol.RouteKey, b Binding, msg any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			herr := &HandlerError{Key: key, Binding: b.ID, Panic: r}
			if e, ok := r.(error); ok {
				herr.Err = e
			}
			err = herr
		}
	}()
	if callErr := b.Handler.Call(msg); callErr != nil {
		return &HandlerError{Key: key, Binding: b.ID, Err: callErr}
	}
	return nil
}

// DispatchTable maps route keys to handlers in bind order.
type DispatchTable struct {
	mu     sync.RWMutex
	next   BindingID
	routes map[protocol.RouteKey][]Binding
	keys   map[BindingID][]protocol.RouteKey
}

func NewDispatchTable() *DispatchTable {
	return &DispatchTable{
		routes: make(map[protocol.RouteKey][]Binding),
		keys:   make(map[BindingID][]protocol.RouteKey),
	}
}

// Bind appends h to every key in keys.
func (t *DispatchTable) Bind(keys []protocol.RouteKey, h Handler) (BindingID, error) {
	if h.Call == nil {
		return 0, fmt.Errorf("%w: nil handler", ErrInvalidBinding)
	}
	if len(keys) == 0 {
		return 0, fmt.Errorf("%w: no route keys", ErrInvalidBinding)
	}
	normalized := make([]protocol.RouteKey, 0, len(keys))
	seen := make(map[protocol.RouteKey]struct{}, len(keys))
	for _, k := range keys {
		key := protocol.Key(k.Type, k.Subtype)
		if key.Type == "" {
			return 0, fmt.Errorf("%w: empty type", ErrInvalidBinding)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	id := t.next
	for _, key := range normalized {
		t.routes[key] = append(t.routes[key], Binding{ID: id, Handler: h})
	}
	t.keys[id] = normalized
	return id, nil
}

// Unbind removes the binding from every key it was attached to.
func (t *DispatchTable) Unbind(id BindingID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys, ok := t.keys[id]
	if !ok {
		return false
	}
	delete(t.keys, id)
	for _, key := range keys {
		list := t.routes[key]
		kept := list[:0:0]
		for _, b := range list {
			if b.ID != id {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 {
			delete(t.routes, key)
			continue
		}
		t.routes[key] = kept
	}
	return true
}

// Handlers returns a snapshot of the bindings for key.
func (t *DispatchTable) Handlers(key protocol.RouteKey) []Binding {
	key = protocol.Key(key.Type, key.Subtype)
	t.mu.RLock()
	defer t.mu.RUnlock()
	list := t.routes[key]
	if len(list) == 0 {
		return nil
	}
	return append([]Binding(nil), list...)
}

// Keys returns the keys with at least one handler, sorted.
func (t *DispatchTable) Keys() []protocol.RouteKey {
	t.mu.RLock()
	out := make([]protocol.RouteKey, 0, len(t.routes))
	for k := range t.routes {
		out = append(out, k)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

// Len returns the number of live bindings.
func (t *DispatchTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.keys)
}

func (t *DispatchTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = make(map[protocol.RouteKey][]Binding)
	t.keys = make(map[BindingID][]protocol.RouteKey)
}
