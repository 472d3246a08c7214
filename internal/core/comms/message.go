// Package comms defines the message bus shared by manager scripts: typed message
// values, the wire codec, the publisher and the per-subscriber listener.
package comms

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned when a wire record cannot be decoded into a message.
	ErrMalformed = errors.New("malformed message")
	// ErrReservedField is returned when a payload uses a key reserved by the wire format.
	ErrReservedField = errors.New("reserved payload field")
	// ErrNoSender is returned when replying to a request that did not name a sender.
	ErrNoSender = errors.New("request has no sender")
)

// Kind discriminates the three message variants.
type Kind string

const (
	KindEvent    Kind = "event"
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
)

// Valid reports whether k is one of the known variants.
func (k Kind) Valid() bool {
	switch k {
	case KindEvent, KindRequest, KindResponse:
		return true
	default:
		return false
	}
}

// Message is a closed set of variants: Event, Request and Response.
// Every message has exactly one MessageType, fixed when it is built.
type Message interface {
	MessageType() string
	Kind() Kind
	Payload() Payload

	sealed()
}

// Event is an unaddressed, fire-and-forget notification.
type Event struct {
	messageType string
	payload     Payload
}

// NewEvent builds an event. The payload is copied.
func NewEvent(messageType string, payload Payload) (Event, error) {
	if err := checkMessage(messageType, payload); err != nil {
		return Event{}, err
	}
	return Event{messageType: messageType, payload: payload.Clone()}, nil
}

func (e Event) MessageType() string { return e.messageType }
func (e Event) Kind() Kind          { return KindEvent }
func (e Event) Payload() Payload    { return e.payload.Clone() }
func (Event) sealed()               {}

// Request asks another subscriber for a Response. Sender is the subscriber name the
// reply should be addressed to; it may be empty.
type Request struct {
	messageType string
	sender      string
	payload     Payload
}

// NewRequest builds a request. The payload is copied.
func NewRequest(messageType, sender string, payload Payload) (Request, error) {
	if err := checkMessage(messageType, payload); err != nil {
		return Request{}, err
	}
	return Request{messageType: messageType, sender: sender, payload: payload.Clone()}, nil
}

func (r Request) MessageType() string { return r.messageType }
func (r Request) Kind() Kind          { return KindRequest }
func (r Request) Payload() Payload    { return r.payload.Clone() }
func (r Request) Sender() string      { return r.sender }
func (Request) sealed()               {}

// Response is the reply to a Request. It is addressed by the replier, usually to the
// request's Sender.
type Response struct {
	messageType string
	payload     Payload
}

// NewResponse builds a response. The payload is copied.
func NewResponse(messageType string, payload Payload) (Response, error) {
	if err := checkMessage(messageType, payload); err != nil {
		return Response{}, err
	}
	return Response{messageType: messageType, payload: payload.Clone()}, nil
}

func (r Response) MessageType() string { return r.messageType }
func (r Response) Kind() Kind          { return KindResponse }
func (r Response) Payload() Payload    { return r.payload.Clone() }
func (Response) sealed()               {}

// SenderOf returns the sender of m when m is a Request, and "" otherwise.
func SenderOf(m Message) string {
	if r, ok := m.(Request); ok {
		return r.sender
	}
	return ""
}

func checkMessage(messageType string, payload Payload) error {
	if messageType == "" {
		return fmt.Errorf("%w: empty messageType", ErrMalformed)
	}
	for key := range payload {
		if isReserved(key) {
			return fmt.Errorf("%w: %q", ErrReservedField, key)
		}
	}
	return nil
}

// Type declares a message type: its discriminator, its variant and the Go shape of its
// payload. Listeners register against a Type; producers build messages from it.
type Type[T any] struct {
	Name string
	Kind Kind
}

// Define declares a message type.
func Define[T any](name string, kind Kind) Type[T] {
	return Type[T]{Name: name, Kind: kind}
}

// Event builds an event of this type from p.
func (t Type[T]) Event(p T) (Event, error) {
	payload, err := NewPayload(p)
	if err != nil {
		return Event{}, err
	}
	return NewEvent(t.Name, payload)
}

// Request builds a request of this type from p, to be answered to sender.
func (t Type[T]) Request(sender string, p T) (Request, error) {
	payload, err := NewPayload(p)
	if err != nil {
		return Request{}, err
	}
	return NewRequest(t.Name, sender, payload)
}

// Response builds a response of this type from p.
func (t Type[T]) Response(p T) (Response, error) {
	payload, err := NewPayload(p)
	if err != nil {
		return Response{}, err
	}
	return NewResponse(t.Name, payload)
}

// Message builds a message of this type using the variant the type was defined with.
func (t Type[T]) Message(sender string, p T) (Message, error) {
	switch t.Kind {
	case KindRequest:
		return t.Request(sender, p)
	case KindResponse:
		return t.Response(p)
	default:
		return t.Event(p)
	}
}

// Decode reads m's payload into a T. Missing fields keep their zero value.
func (t Type[T]) Decode(m Message) (T, error) {
	var out T
	if m.MessageType() != t.Name {
		return out, fmt.Errorf("decode %s: got message type %q", t.Name, m.MessageType())
	}

	raw, err := json.Marshal(m.Payload())
	if err != nil {
		return out, fmt.Errorf("decode %s: %w", t.Name, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", t.Name, err)
	}
	return out, nil
}
