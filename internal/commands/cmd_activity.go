package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/portbus/internal/core/comms"
)

type ActivityCmd struct {
	flags *Flags
	last  int
	since time.Duration
	match string
}

// NewActivityCmd creates a new activity command.
func NewActivityCmd(flags *Flags) *ActivityCmd {
	return &ActivityCmd{flags: flags}
}

// Register adds the activity command to the application.
func (cmd *ActivityCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "activity",
		Usage:     "Show recent sends, receives and drops",
		UsageText: "portbus activity [--last N] [--since 10m] [--match <glob>]",
		Description: `Prints the activity log as JSON lines, newest first.

--match filters on message type (e.g. 'stock-*').`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "last",
				Aliases:     []string{"n"},
				Usage:       "return only the last N entries",
				Value:       50,
				Destination: &cmd.last,
			},
			&cli.DurationFlag{
				Name:        "since",
				Usage:       "only entries newer than this",
				Destination: &cmd.since,
			},
			&cli.StringFlag{
				Name:        "match",
				Aliases:     []string{"m"},
				Usage:       "only message types matching this glob",
				Destination: &cmd.match,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ActivityCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.match != "" && !doublestar.ValidatePattern(cmd.match) {
		return fmt.Errorf("invalid --match pattern %q", cmd.match)
	}

	// Filter before limiting so --last counts matching entries.
	var (
		activities []comms.Activity
		err        error
	)
	if cmd.since > 0 {
		activities, err = cmd.flags.Activity.ListSince(time.Now().Add(-cmd.since), 0)
	} else {
		activities, err = cmd.flags.Activity.List(0)
	}
	if err != nil {
		return fmt.Errorf("list activity: %w", err)
	}

	enc := json.NewEncoder(c.Root().Writer)
	printed := 0
	for _, a := range activities {
		if cmd.last > 0 && printed >= cmd.last {
			break
		}
		if cmd.match != "" {
			if ok, _ := doublestar.Match(cmd.match, a.MessageType); !ok {
				continue
			}
		}
		if err := enc.Encode(a); err != nil {
			return err
		}
		printed++
	}
	return nil
}
