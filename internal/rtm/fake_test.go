package rtm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/rtmctl/internal/protocol/frame"
	"github.com/danmuck/rtmctl/internal/protocol/session"
	"github.com/danmuck/rtmctl/internal/transport"
)

// fakeTransport feeds scripted frames to the reader and records writes.
type fakeTransport struct {
	frames     chan frame.Frame
	readErr    chan error
	writeDelay time.Duration
	writeErr   error

	mu     sync.Mutex
	writes [][]byte

	active    atomic.Int32
	maxActive atomic.Int32
	closes    atomic.Int32
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames:  make(chan frame.Frame, 64),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) ReadFrame(ctx context.Context) (frame.Frame, error) {
	select {
	case fr := <-f.frames:
		return fr, nil
	case err := <-f.readErr:
		return frame.Frame{}, err
	case <-f.closed:
		return frame.Frame{}, transport.ErrClosed
	case <-ctx.Done():
		return frame.Frame{}, ctx.Err()
	}
}

func (f *fakeTransport) WriteMessage(ctx context.Context, payload []byte) error {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.writeDelay > 0 {
		time.Sleep(f.writeDelay)
	}
	f.mu.Lock()
	f.writes = append(f.writes, append([]byte(nil), payload...))
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error {
	f.closes.Add(1)
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) push(payload string, n int) {
	for _, fr := range frame.SplitN([]byte(payload), n) {
		f.frames <- fr
	}
}

func (f *fakeTransport) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = string(w)
	}
	return out
}

// conditions records observed conditions for assertions.
type conditions struct {
	mu   sync.Mutex
	seen []session.Condition
}

func (c *conditions) Observe(cond session.Condition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, cond)
}

func (c *conditions) of(kind session.Kind) []session.Condition {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []session.Condition
	for _, cond := range c.seen {
		if cond.Kind == kind {
			out = append(out, cond)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
