package commands

import (
	"context"
	"encoding/json"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/portbus/internal/messages"
)

type TypesCmd struct {
	flags *Flags
}

// NewTypesCmd creates a new types command.
func NewTypesCmd(flags *Flags) *TypesCmd {
	return &TypesCmd{flags: flags}
}

// Register adds the types command to the application.
func (cmd *TypesCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "types",
		Usage:     "List the declared message types",
		UsageText: "portbus types",
		Description: `Lists the message types managers in this repository exchange, with the kind
each is sent as. Other types can still be sent; listeners that do not know them
drop them.`,
		Action: func(_ context.Context, c *cli.Command) error {
			enc := json.NewEncoder(c.Root().Writer)
			for _, info := range messages.All() {
				if err := enc.Encode(info); err != nil {
					return err
				}
			}
			return nil
		},
	})

	return app
}
