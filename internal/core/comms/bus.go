package comms

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Bus publishes messages onto a Transport and creates listeners.
//
// Requests and responses are paired by convention only: a requester puts its own
// subscriber name in Request.Sender and the responder addresses its reply there. There
// is no correlation id, so two outstanding requests of the same type from the same
// sender cannot be told apart by their replies.
type Bus struct {
	transport Transport
	directory Directory
	activity  ActivityRecorder
	log       zerolog.Logger
}

// NewBus creates a bus on the given transport and subscriber directory.
func NewBus(transport Transport, directory Directory, log zerolog.Logger) *Bus {
	return &Bus{
		transport: transport,
		directory: directory,
		log:       log,
	}
}

// WithActivity records send and receive activity to rec.
func (b *Bus) WithActivity(rec ActivityRecorder) *Bus {
	b.activity = rec
	return b
}

// SendEvent writes msg to the private channel of recipient. With an empty recipient
// the message is broadcast to every subscriber in the directory.
//
// Delivery is best effort: a full channel drops an entry per the transport's overflow
// policy and nothing is acknowledged. Errors are returned only when the message
// cannot be encoded or the transport itself fails.
func (b *Bus) SendEvent(ctx context.Context, msg Message, recipient string) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	if recipient != "" {
		if err := b.send(ctx, ChannelFor(recipient), msg, data); err != nil {
			return fmt.Errorf("send %s to %s: %w", msg.MessageType(), recipient, err)
		}
		return nil
	}

	members, err := b.directory.Members(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	b.log.Debug().
		Str("message_type", msg.MessageType()).
		Int("subscribers", len(members)).
		Msg("broadcasting")

	for _, member := range members {
		if err := b.send(ctx, ChannelFor(member), msg, data); err != nil {
			b.log.Warn().Err(err).
				Str("subscriber", member).
				Str("message_type", msg.MessageType()).
				Msg("broadcast delivery failed")
		}
	}
	return nil
}

// Reply sends resp to the subscriber named in req.Sender.
func (b *Bus) Reply(ctx context.Context, req Request, resp Response) error {
	if req.Sender() == "" {
		return fmt.Errorf("reply to %s: %w", req.MessageType(), ErrNoSender)
	}
	return b.SendEvent(ctx, resp, req.Sender())
}

// Listen joins the directory as subscriber and returns a listener bound to its
// private channel.
func (b *Bus) Listen(ctx context.Context, subscriber string) (*Listener, error) {
	if err := ValidateSubscriber(subscriber); err != nil {
		return nil, err
	}
	if err := b.directory.Join(ctx, subscriber); err != nil {
		return nil, fmt.Errorf("join %s: %w", subscriber, err)
	}

	b.log.Debug().Str("subscriber", subscriber).Msg("listener joined")

	return &Listener{
		bus:        b,
		subscriber: subscriber,
		channel:    ChannelFor(subscriber),
		handlers:   make(map[string]Handler),
		log:        b.log.With().Str("subscriber", subscriber).Logger(),
	}, nil
}

func (b *Bus) send(ctx context.Context, channel string, msg Message, data []byte) error {
	if err := b.transport.Send(ctx, channel, data); err != nil {
		return err
	}
	b.record(Activity{
		Type:        ActivitySend,
		Channel:     channel,
		MessageType: msg.MessageType(),
		Kind:        msg.Kind(),
		Subscriber:  SenderOf(msg),
	})
	return nil
}

func (b *Bus) record(a Activity) {
	if b.activity == nil {
		return
	}
	if err := b.activity.Record(a); err != nil {
		b.log.Debug().Err(err).Msg("record activity")
	}
}
