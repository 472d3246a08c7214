package comms

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode serializes m as a flat JSON record: the messageType and messageKind discriminators,
// the sender of a request when set, and every payload field at the top level.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformed)
	}

	payload := m.Payload()
	record := make(map[string]json.RawMessage, len(payload)+3)
	for k, v := range payload {
		if isReserved(k) {
			return nil, fmt.Errorf("%w: %q", ErrReservedField, k)
		}
		record[k] = v
	}

	var err error
	if record[keyMessageType], err = json.Marshal(m.MessageType()); err != nil {
		return nil, err
	}
	if record[keyKind], err = json.Marshal(m.Kind()); err != nil {
		return nil, err
	}
	if sender := SenderOf(m); sender != "" {
		if record[keySender], err = json.Marshal(sender); err != nil {
			return nil, err
		}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.MessageType(), err)
	}
	return data, nil
}

// Decode parses a record produced by Encode. A record without a messageKind is read as
// a request when it names a sender and as an event otherwise. A sender on an explicit
// event or response is ignored. The returned error wraps ErrMalformed.
func Decode(data []byte) (Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: record must be a JSON object", ErrMalformed)
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var messageType string
	if err := decodeString(record, keyMessageType, &messageType); err != nil {
		return nil, err
	}
	if messageType == "" {
		return nil, fmt.Errorf("%w: missing messageType", ErrMalformed)
	}

	_, hasSender := record[keySender]
	kind := KindEvent
	if hasSender {
		kind = KindRequest
	}
	if _, ok := record[keyKind]; ok {
		var s string
		if err := decodeString(record, keyKind, &s); err != nil {
			return nil, err
		}
		kind = Kind(s)
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: unknown messageKind %q", ErrMalformed, s)
		}
	}

	var sender string
	if hasSender {
		if err := decodeString(record, keySender, &sender); err != nil {
			return nil, err
		}
	}

	delete(record, keyMessageType)
	delete(record, keyKind)
	delete(record, keySender)
	payload := Payload(record)

	switch kind {
	case KindRequest:
		return Request{messageType: messageType, sender: sender, payload: payload}, nil
	case KindResponse:
		return Response{messageType: messageType, payload: payload}, nil
	default:
		return Event{messageType: messageType, payload: payload}, nil
	}
}

func decodeString(record map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := record[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s must be a string", ErrMalformed, key)
	}
	return nil
}
