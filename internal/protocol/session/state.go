package session

import "sync/atomic"

// State is the socket lifecycle position.
type State int32

const (
	StateCreated State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Lifecycle holds a State for concurrent readers and writers.
type Lifecycle struct {
	v atomic.Int32
}

func (l *Lifecycle) Load() State {
	return State(l.v.Load())
}

func (l *Lifecycle) Store(s State) {
	l.v.Store(int32(s))
}

// Transition moves from -> to and reports whether it won.
func (l *Lifecycle) Transition(from, to State) bool {
	return l.v.CompareAndSwap(int32(from), int32(to))
}
