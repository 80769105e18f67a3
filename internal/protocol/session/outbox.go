package session

import (
	"sync"
	"sync/atomic"
)

// Outbox is the FIFO queue of serialized outbound messages.
type Outbox struct {
	mu    sync.Mutex
	items [][]byte
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Push(payload []byte) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, payload)
	return len(o.items)
}

// Pop removes the oldest payload.
func (o *Outbox) Pop() ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.items) == 0 {
		return nil, false
	}
	item := o.items[0]
	o.items[0] = nil
	o.items = o.items[1:]
	if len(o.items) == 0 {
		o.items = nil
	}
	return item, true
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Clear drops every queued payload and returns how many were dropped.
func (o *Outbox) Clear() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.items)
	o.items = nil
	return n
}

// DrainGate admits at most one drain worker at a time.
//
// A worker that releases the gate must check the outbox again and try to
// re-acquire; otherwise a push racing the release is never written.
type DrainGate struct {
	active atomic.Bool
}

func (g *DrainGate) TryAcquire() bool {
	return g.active.CompareAndSwap(false, true)
}

func (g *DrainGate) Release() {
	g.active.Store(false)
}

func (g *DrainGate) Active() bool {
	return g.active.Load()
}
