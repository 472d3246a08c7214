package comms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Wire keys owned by the envelope. Payload fields may not use them.
const (
	keyMessageType = "messageType"
	keyKind        = "messageKind"
	keySender      = "sender"
)

func isReserved(key string) bool {
	switch key {
	case keyMessageType, keyKind, keySender:
		return true
	default:
		return false
	}
}

// Payload holds the message-specific fields of a message as raw JSON values.
// A field that is absent is different from a field that is present with a null value.
type Payload map[string]json.RawMessage

// NewPayload converts v into a Payload. v must encode to a JSON object (a struct, a map
// or a Payload); nil yields an empty payload.
func NewPayload(v any) (Payload, error) {
	switch p := v.(type) {
	case nil:
		return Payload{}, nil
	case Payload:
		return p.Clone(), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return ParsePayload(raw)
}

// ParsePayload reads a JSON object into a Payload.
func ParsePayload(raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Payload{}, nil
	}
	if raw[0] != '{' {
		return nil, fmt.Errorf("%w: payload must be a JSON object", ErrMalformed)
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}

// Clone returns a deep copy of p.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = bytes.Clone(v)
	}
	return out
}

// Has reports whether the field is present, including when its value is null.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Get decodes field key into dst. It returns false when the field is absent.
func (p Payload) Get(key string, dst any) (bool, error) {
	raw, ok := p[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode field %q: %w", key, err)
	}
	return true, nil
}

// Set encodes v as field key.
func (p Payload) Set(key string, v any) error {
	if isReserved(key) {
		return fmt.Errorf("%w: %q", ErrReservedField, key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode field %q: %w", key, err)
	}
	p[key] = raw
	return nil
}

// Keys returns the field names in p, sorted.
func (p Payload) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}
