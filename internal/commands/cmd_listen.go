package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/portbus/internal/core/comms"
	"github.com/hay-kot/portbus/internal/core/execution"
)

// errDone stops a CLI loop once it has what it waited for.
var errDone = errors.New("done")

type ListenCmd struct {
	flags *Flags

	as      string
	types   []string
	count   int
	timeout time.Duration
	delay   time.Duration
	json    bool
}

// NewListenCmd creates a new listen command.
func NewListenCmd(flags *Flags) *ListenCmd {
	return &ListenCmd{flags: flags}
}

// Register adds the listen command to the application.
func (cmd *ListenCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "listen",
		Usage:     "Join the bus and print messages of the given types",
		UsageText: "portbus listen --type <type> [--type <type>...] [--as <name>]",
		Description: `Joins the bus as a subscriber, then drains its channel in a loop and prints
every message whose type was given with --type. Other types are dropped.

Output is one line per message on a terminal and the JSON wire record otherwise.
Without --delay the loop pauses a random 1-100ms between drains.

With --count N, matching messages drained after the Nth are written back to the
subscriber's channel, where a later 'listen --as <name>' picks them up.

Examples:
  portbus listen --type grow
  portbus listen --as watcher --type stock-listings-changed --count 1
  portbus listen --type grow --timeout 5m --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "as",
				Usage:       "subscriber name (default: random cli-* name)",
				Destination: &cmd.as,
			},
			&cli.StringSliceFlag{
				Name:        "type",
				Aliases:     []string{"t"},
				Usage:       "message type to print (repeatable)",
				Required:    true,
				Destination: &cmd.types,
			},
			&cli.IntFlag{
				Name:        "count",
				Aliases:     []string{"n"},
				Usage:       "exit after printing N messages (0 = no limit)",
				Destination: &cmd.count,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "stop listening after this long (0 = never)",
				Destination: &cmd.timeout,
			},
			&cli.DurationFlag{
				Name:        "delay",
				Usage:       "fixed pause between drains (0 = jittered)",
				Destination: &cmd.delay,
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

func (cmd *ListenCmd) run(ctx context.Context, c *cli.Command) error {
	name := cmd.as
	if name == "" {
		name = anonymousSubscriber()
	}

	listener, err := cmd.flags.Bus.Listen(ctx, name)
	if err != nil {
		return err
	}
	defer listener.Close(context.WithoutCancel(ctx)) //nolint:errcheck

	if cmd.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.timeout)
		defer cancel()
	}

	counter := &countedPrinter{
		out:   newMessageWriter(c.Root().Writer, cmd.json),
		limit: cmd.count,
		requeue: func(ctx context.Context, msg comms.Message) error {
			return cmd.flags.Bus.SendEvent(ctx, msg, name)
		},
	}
	listener.AddListeners(counter.handle, cmd.types...)

	step := func(ctx context.Context) error {
		if err := listener.Drain(ctx); err != nil {
			return err
		}
		if counter.done() {
			return errDone
		}
		return nil
	}

	if cmd.delay > 0 {
		err = execution.DelayedInfiniteLoop(ctx, cmd.delay, step)
	} else {
		err = execution.InfiniteLoop(ctx, step)
	}

	return loopExit(err)
}

// countedPrinter prints up to limit messages (0 = no limit). Messages drained after the
// limit is reached are put back on the subscriber's channel instead of being printed.
type countedPrinter struct {
	out     *messageWriter
	limit   int
	printed int
	requeue func(ctx context.Context, msg comms.Message) error
}

func (p *countedPrinter) handle(ctx context.Context, msg comms.Message) error {
	if p.done() {
		if err := p.requeue(ctx, msg); err != nil {
			return fmt.Errorf("requeue %s: %w", msg.MessageType(), err)
		}
		return nil
	}
	if err := p.out.Write(msg); err != nil {
		return fmt.Errorf("print: %w", err)
	}
	p.printed++
	return nil
}

func (p *countedPrinter) done() bool {
	return p.limit > 0 && p.printed >= p.limit
}

// loopExit maps the ways a CLI loop is expected to end to a nil error.
func loopExit(err error) error {
	switch {
	case errors.Is(err, errDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}
