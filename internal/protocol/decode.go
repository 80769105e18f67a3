package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var nullLiteral = []byte("null")

// DecodeEnvelope reads only the envelope fields of raw.
// Shape-specific fields are ignored; decode them with DecodeInto.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral) {
		return Envelope{}, ErrEmptyMessage
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	return env, nil
}

// DecodeInto unmarshals raw into out, which must be a pointer to a shape.
func DecodeInto(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("protocol: decode %T: %w", out, err)
	}
	return nil
}
