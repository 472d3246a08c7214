package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/portbus/internal/core/comms"
)

type PortsCmd struct {
	flags *Flags
	match string
}

// NewPortsCmd creates a new ports command.
func NewPortsCmd(flags *Flags) *PortsCmd {
	return &PortsCmd{flags: flags}
}

// Register adds the ports command to the application.
func (cmd *PortsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ports",
		Usage:     "List channels and subscribers",
		UsageText: "portbus ports [--match <glob>]",
		Description: `Lists every channel with its queue depth and drop count as JSON lines, marking
which channels belong to a currently joined subscriber.

Examples:
  portbus ports
  portbus ports --match 'sub/cli-*'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "match",
				Aliases:     []string{"m"},
				Usage:       "only channels matching this glob",
				Destination: &cmd.match,
			},
		},
		Action: cmd.run,
	})

	return app
}

type portInfo struct {
	Channel    string `json:"channel"`
	Subscriber string `json:"subscriber,omitempty"`
	Joined     bool   `json:"joined"`
	Depth      int    `json:"depth"`
	Dropped    int    `json:"dropped"`
}

func (cmd *PortsCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.match != "" && !doublestar.ValidatePattern(cmd.match) {
		return fmt.Errorf("invalid --match pattern %q", cmd.match)
	}

	channels, err := cmd.flags.Ports.Channels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	members, err := cmd.flags.Registry.Members(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}
	joined := make(map[string]bool, len(members))
	for _, m := range members {
		joined[m] = true
	}

	var infos []portInfo
	seen := make(map[string]bool)
	for _, ch := range channels {
		sub, _ := comms.SubscriberOf(ch.Name)
		seen[sub] = true
		infos = append(infos, portInfo{
			Channel:    ch.Name,
			Subscriber: sub,
			Joined:     joined[sub],
			Depth:      ch.Depth,
			Dropped:    ch.Dropped,
		})
	}

	// Subscribers that joined but were never sent anything have no channel file yet.
	for _, m := range members {
		if !seen[m] {
			infos = append(infos, portInfo{Channel: comms.ChannelFor(m), Subscriber: m, Joined: true})
		}
	}

	enc := json.NewEncoder(c.Root().Writer)
	for _, info := range infos {
		if cmd.match != "" {
			if ok, _ := doublestar.Match(cmd.match, info.Channel); !ok {
				continue
			}
		}
		if err := enc.Encode(info); err != nil {
			return err
		}
	}
	return nil
}
