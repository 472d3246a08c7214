package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/portbus/internal/core/comms"
	"github.com/hay-kot/portbus/internal/messages"
)

// SendInput is what the send command builds a message from.
type SendInput struct {
	Type      string
	Kind      string
	Recipient string
	Sender    string
}

// Validate checks the input using criterio.
func (in SendInput) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if in.Type == "" {
		errs = errs.Append("type", fmt.Errorf("message type is required"))
	}
	if in.Kind != "" && !comms.Kind(in.Kind).Valid() {
		errs = errs.Append("kind", fmt.Errorf("unknown kind %q, use event, request or response", in.Kind))
	}
	if in.Sender != "" {
		if err := comms.ValidateSubscriber(in.Sender); err != nil {
			errs = errs.Append("sender", err)
		}
	}
	if in.Recipient != "" {
		if err := comms.ValidateSubscriber(in.Recipient); err != nil {
			errs = errs.Append("to", err)
		}
	}

	return errs.ToError()
}

// resolveKind returns the explicit kind, else the kind the type was declared with,
// else event.
func (in SendInput) resolveKind() comms.Kind {
	if in.Kind != "" {
		return comms.Kind(in.Kind)
	}
	if info, err := messages.Lookup(in.Type); err == nil {
		return info.Kind
	}
	return comms.KindEvent
}

// Build creates the message described by the input.
func (in SendInput) Build(payload comms.Payload) (comms.Message, error) {
	switch in.resolveKind() {
	case comms.KindRequest:
		return comms.NewRequest(in.Type, in.Sender, payload)
	case comms.KindResponse:
		return comms.NewResponse(in.Type, payload)
	default:
		return comms.NewEvent(in.Type, payload)
	}
}

type SendCmd struct {
	flags *Flags
	input SendInput
	file  string
}

// NewSendCmd creates a new send command.
func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags}
}

// Register adds the send command to the application.
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "send",
		Usage:     "Send a message to a subscriber or broadcast it",
		UsageText: "portbus send --type <type> [--to <subscriber>] [payload]",
		Description: `Sends one message on the bus.

Without --to the message is broadcast to every joined subscriber. With --to it is
written to that subscriber's private channel only. Delivery is best effort: a full
channel drops an entry and nothing is acknowledged.

The payload is a JSON object, given as an argument, read from -f/--file, or read
from stdin. Its fields are sent as-is next to messageType.

Examples:
  portbus send --type grow '{"status":"COMPLETE","target":"n00dles"}'
  portbus send --type stock-listings-request --sender me --to stocks
  echo '{"config":{"reserve":1e6}}' | portbus send --type config-changed`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "type",
				Aliases:     []string{"t"},
				Usage:       "message type (see 'portbus types')",
				Required:    true,
				Destination: &cmd.input.Type,
			},
			&cli.StringFlag{
				Name:        "kind",
				Aliases:     []string{"k"},
				Usage:       "event, request or response (default: declared kind of the type, else event)",
				Destination: &cmd.input.Kind,
			},
			&cli.StringFlag{
				Name:        "to",
				Aliases:     []string{"r"},
				Usage:       "recipient subscriber (default: broadcast)",
				Destination: &cmd.input.Recipient,
			},
			&cli.StringFlag{
				Name:        "sender",
				Aliases:     []string{"s"},
				Usage:       "subscriber replies should be sent to (requests only)",
				Destination: &cmd.input.Sender,
			},
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "read payload from file",
				Destination: &cmd.file,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	if err := cmd.input.Validate(); err != nil {
		return err
	}

	if _, err := messages.Lookup(cmd.input.Type); err != nil {
		log.Warn().Msg(err.Error())
	}

	payload, err := readPayload(c, cmd.file, os.Stdin)
	if err != nil {
		return err
	}

	msg, err := cmd.input.Build(payload)
	if err != nil {
		return err
	}

	if msg.Kind() == comms.KindRequest && comms.SenderOf(msg) == "" {
		log.Warn().Str("message_type", msg.MessageType()).Msg("request has no --sender, it cannot be answered")
	}

	return cmd.flags.Bus.SendEvent(ctx, msg, cmd.input.Recipient)
}
