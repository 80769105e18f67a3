package protocol

import (
	"encoding/json"
	"fmt"
)

// Encode serializes msg as one compact JSON text.
// Empty optional fields are omitted by the envelope tags.
func Encode(msg Message) ([]byte, error) {
	if msg == nil || msg.Header() == nil {
		return nil, ErrNilMessage
	}
	head := msg.Header()
	if err := head.Validate(); err != nil {
		return nil, err
	}
	if head.Type == "" {
		return nil, ErrMissingType
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", head.Key(), err)
	}
	return payload, nil
}
