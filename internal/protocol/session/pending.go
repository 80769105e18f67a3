package session

import (
	"fmt"
	"sync"
)

// Callback receives the raw payload of the reply to one request.
type Callback func(raw []byte)

// Pending correlates outstanding request ids with their reply callbacks.
// Each callback is handed out at most once.
type Pending struct {
	mu    sync.Mutex
	items map[int64]Callback
}

func NewPending() *Pending {
	return &Pending{items: make(map[int64]Callback)}
}

func (p *Pending) Add(id int64, cb Callback) error {
	if id <= 0 || cb == nil {
		return fmt.Errorf("%w: id=%d", ErrInvalidBinding, id)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[id]; ok {
		return fmt.Errorf("%w: id=%d", ErrPendingExists, id)
	}
	p.items[id] = cb
	return nil
}

// Take removes and returns the callback for id.
func (p *Pending) Take(id int64) (Callback, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cb, ok := p.items[id]
	if ok {
		delete(p.items, id)
	}
	return cb, ok
}

// Cancel drops the callback for id without invoking it.
func (p *Pending) Cancel(id int64) bool {
	_, ok := p.Take(id)
	return ok
}

func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Clear drops every pending callback and returns how many were dropped.
func (p *Pending) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.items)
	p.items = make(map[int64]Callback)
	return n
}
