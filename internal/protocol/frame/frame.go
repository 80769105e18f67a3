package frame

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrMessageTooLarge = errors.New("frame: message too large")
	ErrChunkTooSmall   = errors.New("frame: read chunk size must be positive")
)

// Frame is one transport read. A logical message is one or more frames,
// the last of which has Final set.
type Frame struct {
	Payload []byte
	Final   bool
}

// Limits constrains reassembly memory use.
type Limits struct {
	MaxMessageBytes int
	ReadChunkBytes  int
}

func DefaultLimits() Limits {
	return Limits{
		MaxMessageBytes: 8 * 1024 * 1024,
		ReadChunkBytes:  1024,
	}
}

// WithDefaults fills zero values from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	def := DefaultLimits()
	if l.MaxMessageBytes <= 0 {
		l.MaxMessageBytes = def.MaxMessageBytes
	}
	if l.ReadChunkBytes <= 0 {
		l.ReadChunkBytes = def.ReadChunkBytes
	}
	return l
}

func (l Limits) Validate() error {
	if l.ReadChunkBytes <= 0 {
		return ErrChunkTooSmall
	}
	return nil
}

// Assembler accumulates frame payloads into logical messages.
// It is owned by a single read loop and is not safe for concurrent use.
type Assembler struct {
	limits     Limits
	buf        bytes.Buffer
	frames     int
	discarding bool
}

func NewAssembler(limits Limits) *Assembler {
	return &Assembler{limits: limits.WithDefaults()}
}

// Push adds f to the pending message. It returns the complete message once
// a final frame arrives. An oversized message is dropped through its final
// frame and reported once, on that frame, as ErrMessageTooLarge.
func (a *Assembler) Push(f Frame) ([]byte, bool, error) {
	if !a.discarding {
		if a.buf.Len()+len(f.Payload) > a.limits.MaxMessageBytes {
			a.discarding = true
			a.buf.Reset()
		} else {
			a.buf.Write(f.Payload)
		}
	}
	a.frames++
	if !f.Final {
		return nil, false, nil
	}

	frames := a.frames
	if a.discarding {
		a.Reset()
		return nil, true, fmt.Errorf("%w: frames=%d limit=%d", ErrMessageTooLarge, frames, a.limits.MaxMessageBytes)
	}
	out := make([]byte, a.buf.Len())
	copy(out, a.buf.Bytes())
	a.Reset()
	return out, true, nil
}

// Pending reports whether a partial message is buffered.
func (a *Assembler) Pending() bool {
	return a.frames > 0
}

func (a *Assembler) Reset() {
	a.buf.Reset()
	a.frames = 0
	a.discarding = false
}

// Split cuts payload into frames of at most chunk bytes, marking the last final.
// An empty payload yields a single empty final frame.
func Split(payload []byte, chunk int) []Frame {
	if chunk <= 0 || len(payload) <= chunk {
		return []Frame{{Payload: payload, Final: true}}
	}
	out := make([]Frame, 0, (len(payload)+chunk-1)/chunk)
	for start := 0; start < len(payload); start += chunk {
		end := start + chunk
		if end > len(payload) {
			end = len(payload)
		}
		out = append(out, Frame{Payload: payload[start:end], Final: end == len(payload)})
	}
	return out
}

// SplitN cuts payload into n frames of near-equal size.
func SplitN(payload []byte, n int) []Frame {
	if n <= 1 || len(payload) == 0 {
		return []Frame{{Payload: payload, Final: true}}
	}
	chunk := (len(payload) + n - 1) / n
	return Split(payload, chunk)
}
