package protocol

import (
	"fmt"
	"strings"
)

// NoSubtype is the subtype used in route keys for messages without one.
const NoSubtype = "none"

// Error is the error object carried by failed responses.
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("protocol: remote error code=%d msg=%q", e.Code, e.Msg)
}

// Envelope is the header shared by every message shape.
// Shapes embed it so the header fields marshal inline with the shape fields.
type Envelope struct {
	ID      int64  `json:"id,omitempty"`
	ReplyTo int64  `json:"reply_to,omitempty"`
	Type    string `json:"type,omitempty"`
	Subtype string `json:"subtype,omitempty"`
	OK      *bool  `json:"ok,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Message is implemented by any shape embedding Envelope.
type Message interface {
	Header() *Envelope
}

// Header returns the envelope itself; promoted to embedding shapes.
func (e *Envelope) Header() *Envelope {
	return e
}

// Key returns the route key for this envelope.
func (e *Envelope) Key() RouteKey {
	return Key(e.Type, e.Subtype)
}

// Succeeded reports the ok flag; an absent flag reads as true.
func (e *Envelope) Succeeded() bool {
	if e.OK == nil {
		return true
	}
	return *e.OK
}

// IsResponse reports whether the envelope answers an earlier request.
func (e *Envelope) IsResponse() bool {
	return e.ReplyTo != 0
}

func (e *Envelope) Validate() error {
	if e.ID < 0 || e.ReplyTo < 0 {
		return fmt.Errorf("%w: negative id", ErrInvalidEnvelope)
	}
	if e.ID != 0 && e.ReplyTo != 0 {
		return fmt.Errorf("%w: id=%d and reply_to=%d both set", ErrInvalidEnvelope, e.ID, e.ReplyTo)
	}
	return nil
}

// RouteKey is the (type, subtype) pair messages are routed by.
// Build keys with Key so an absent subtype is always NoSubtype.
type RouteKey struct {
	Type    string
	Subtype string
}

// Key builds a normalized route key.
func Key(msgType, subtype string) RouteKey {
	subtype = strings.TrimSpace(subtype)
	if subtype == "" {
		subtype = NoSubtype
	}
	return RouteKey{Type: strings.TrimSpace(msgType), Subtype: subtype}
}

// HasSubtype reports whether the key carries a real subtype.
func (k RouteKey) HasSubtype() bool {
	return k.Subtype != "" && k.Subtype != NoSubtype
}

// WireSubtype returns the subtype as written on the wire ("" for NoSubtype).
func (k RouteKey) WireSubtype() string {
	if !k.HasSubtype() {
		return ""
	}
	return k.Subtype
}

func (k RouteKey) String() string {
	sub := k.Subtype
	if sub == "" {
		sub = NoSubtype
	}
	return k.Type + "/" + sub
}

// Bool returns a pointer to v, for the optional ok flag.
func Bool(v bool) *bool {
	return &v
}
