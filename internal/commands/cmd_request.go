package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/portbus/internal/core/comms"
	"github.com/hay-kot/portbus/internal/core/execution"
)

type RequestCmd struct {
	flags *Flags

	as        string
	msgType   string
	replyType string
	to        string
	file      string
	timeout   time.Duration
	json      bool
}

// NewRequestCmd creates a new request command.
func NewRequestCmd(flags *Flags) *RequestCmd {
	return &RequestCmd{flags: flags}
}

// Register adds the request command to the application.
func (cmd *RequestCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "request",
		Usage:     "Send a request and wait for the response",
		UsageText: "portbus request --type <type> [--to <subscriber>] [--timeout 30s] [payload]",
		Description: `Joins the bus, sends a request naming itself as sender, and waits for the
first message of the reply type on its own channel.

Replies are matched by type only. If several requests of the same type are
outstanding from the same subscriber, any of their replies may be printed.

The bus itself never times out a request; this command gives up after --timeout.

Examples:
  portbus request --type stock-listings-request --to stocks
  portbus request --type stock-listings-request '{"listings":[{"symbol":"ECP"}]}'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "type",
				Aliases:     []string{"t"},
				Usage:       "request message type",
				Required:    true,
				Destination: &cmd.msgType,
			},
			&cli.StringFlag{
				Name:        "reply-type",
				Usage:       "response message type (default: type with -request replaced by -response)",
				Destination: &cmd.replyType,
			},
			&cli.StringFlag{
				Name:        "to",
				Aliases:     []string{"r"},
				Usage:       "responder subscriber (default: broadcast)",
				Destination: &cmd.to,
			},
			&cli.StringFlag{
				Name:        "as",
				Usage:       "subscriber name to receive the reply on (default: random cli-* name)",
				Destination: &cmd.as,
			},
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "read payload from file",
				Destination: &cmd.file,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "how long to wait for the response",
				Value:       30 * time.Second,
				Destination: &cmd.timeout,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "always print JSON lines",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})

	return app
}

// defaultReplyType derives the response type from a request type by convention.
func defaultReplyType(requestType string) string {
	if base, ok := strings.CutSuffix(requestType, "-request"); ok {
		return base + "-response"
	}
	return requestType + "-response"
}

func (cmd *RequestCmd) run(ctx context.Context, c *cli.Command) error {
	name := cmd.as
	if name == "" {
		name = anonymousSubscriber()
	}
	replyType := cmd.replyType
	if replyType == "" {
		replyType = defaultReplyType(cmd.msgType)
	}

	payload, err := readPayload(c, cmd.file, os.Stdin)
	if err != nil {
		return err
	}

	req, err := comms.NewRequest(cmd.msgType, name, payload)
	if err != nil {
		return err
	}

	bus := cmd.flags.Bus
	listener, err := bus.Listen(ctx, name)
	if err != nil {
		return err
	}
	defer listener.Close(context.WithoutCancel(ctx)) //nolint:errcheck

	var reply comms.Message
	listener.AddListeners(func(_ context.Context, msg comms.Message) error {
		if reply == nil {
			reply = msg
		}
		return nil
	}, replyType)

	if err := bus.SendEvent(ctx, req, cmd.to); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, cmd.timeout)
	defer cancel()

	err = execution.InfiniteLoop(waitCtx, func(ctx context.Context) error {
		if err := listener.Drain(ctx); err != nil {
			return err
		}
		if reply != nil {
			return errDone
		}
		return nil
	})
	if err := loopExit(err); err != nil {
		return err
	}

	if reply == nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("timeout waiting for %s after %s", replyType, cmd.timeout)
	}

	return newMessageWriter(c.Root().Writer, cmd.json).Write(reply)
}
