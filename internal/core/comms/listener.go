package comms

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Handler is invoked for each drained message whose type it was registered for.
type Handler func(ctx context.Context, msg Message) error

// Listener is a named endpoint that drains its own channel and dispatches messages to
// handlers by message type. Only the listener's owner reads its channel.
type Listener struct {
	bus        *Bus
	subscriber string
	channel    string
	log        zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// Subscriber returns the name the listener was created with.
func (l *Listener) Subscriber() string { return l.subscriber }

// Channel returns the listener's private channel.
func (l *Listener) Channel() string { return l.channel }

// AddListeners registers h for each of the given message types. Registering a type a
// second time replaces its handler.
func (l *Listener) AddListeners(h Handler, messageTypes ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range messageTypes {
		l.handlers[t] = h
	}
}

// Handles reports whether a handler is registered for messageType.
func (l *Listener) Handles(messageType string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.handlers[messageType]
	return ok
}

// Handle registers fn for messages of type t. The payload is decoded into a T before
// fn is called; messages whose payload does not decode are skipped.
func Handle[T any](l *Listener, t Type[T], fn func(ctx context.Context, msg Message, payload T) error) {
	l.AddListeners(func(ctx context.Context, msg Message) error {
		payload, err := t.Decode(msg)
		if err != nil {
			l.log.Debug().Err(err).Str("message_type", t.Name).Msg("skipping undecodable payload")
			l.drop(msg.MessageType(), msg.Kind(), "undecodable payload")
			return nil
		}
		return fn(ctx, msg, payload)
	}, t.Name)
}

// Drain reads every message queued on the listener's channel and dispatches each to
// its handler, oldest first. Undecodable records and message types without a handler
// are skipped. Handler errors do not stop the drain; they are joined and returned
// once the batch is done.
//
// Drain matches execution.StepFunc so a listener can be driven by a loop directly.
func (l *Listener) Drain(ctx context.Context) error {
	entries, err := l.bus.transport.ReceiveAll(ctx, l.channel)
	if err != nil {
		return fmt.Errorf("receive %s: %w", l.channel, err)
	}

	var errs []error
	for _, data := range entries {
		msg, err := Decode(data)
		if err != nil {
			l.log.Debug().Err(err).Msg("skipping malformed message")
			l.drop("", "", "malformed")
			continue
		}

		l.mu.RLock()
		h, ok := l.handlers[msg.MessageType()]
		l.mu.RUnlock()

		if !ok {
			l.log.Debug().Str("message_type", msg.MessageType()).Msg("no handler registered")
			l.drop(msg.MessageType(), msg.Kind(), "unhandled")
			continue
		}

		l.bus.record(Activity{
			Type:        ActivityReceive,
			Channel:     l.channel,
			MessageType: msg.MessageType(),
			Kind:        msg.Kind(),
			Subscriber:  l.subscriber,
		})

		if err := h(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("handle %s: %w", msg.MessageType(), err))
		}
	}

	return errors.Join(errs...)
}

// Close removes the listener from the directory. Messages still queued on its channel
// are left in place.
func (l *Listener) Close(ctx context.Context) error {
	if err := l.bus.directory.Leave(ctx, l.subscriber); err != nil {
		return fmt.Errorf("leave %s: %w", l.subscriber, err)
	}
	l.log.Debug().Msg("listener left")
	return nil
}

func (l *Listener) drop(messageType string, kind Kind, reason string) {
	l.bus.record(Activity{
		Type:        ActivityDrop,
		Channel:     l.channel,
		MessageType: messageType,
		Kind:        kind,
		Subscriber:  l.subscriber,
		Reason:      reason,
	})
}
