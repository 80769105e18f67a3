package protocol

import "errors"

var (
	ErrInvalidEnvelope = errors.New("protocol: invalid envelope")
	ErrEmptyMessage    = errors.New("protocol: empty message")
	ErrMissingType     = errors.New("protocol: missing type")
	ErrNilMessage      = errors.New("protocol: nil message")
)
