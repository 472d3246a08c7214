package commands

import (
	"context"
	"encoding/json"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/portbus/internal/commands/doctor"
	"github.com/hay-kot/portbus/internal/printer"
)

type DoctorCmd struct {
	flags  *Flags
	format string
	fix    bool
}

func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "doctor",
		Usage:     "Check configuration, subscribers and queues",
		UsageText: "portbus doctor [--fix] [--format json]",
		Description: `Runs diagnostic checks on the configuration and the data directory.

Subscribers whose process exited without leaving still receive broadcasts, and
queues nobody owns keep their last entries forever. --fix removes both.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "fix",
				Usage:       "remove stale subscribers and orphaned queues",
				Destination: &cmd.fix,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	checks := []doctor.Check{
		doctor.NewConfigCheck(cmd.flags.Config, cmd.flags.ConfigPath),
		doctor.NewSubscriberCheck(cmd.flags.Registry, cmd.fix),
		doctor.NewQueueCheck(cmd.flags.Ports, cmd.flags.Registry, cmd.fix),
	}

	results := doctor.RunAll(ctx, checks)

	if cmd.format == "json" {
		return cmd.outputJSON(c, results)
	}

	return cmd.outputText(ctx, results)
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	tally := doctor.Count(results)

	out := struct {
		Healthy bool            `json:"healthy"`
		Summary doctor.Tally    `json:"summary"`
		Checks  []doctor.Result `json:"checks"`
	}{
		Healthy: tally.Healthy(),
		Summary: tally,
		Checks:  results,
	}

	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (cmd *DoctorCmd) outputText(ctx context.Context, results []doctor.Result) error {
	p := printer.Ctx(ctx)

	for _, result := range results {
		p.Section(result.Name)

		for _, item := range result.Items {
			p.Item(item.Status.String(), item.Label, item.Detail)
		}

		p.Printf("")
	}

	tally := doctor.Count(results)
	p.Printf("Summary: %d passed, %d warnings, %d failed", tally.Passed, tally.Warned, tally.Failed)
	if tally.Fixable > 0 {
		p.Infof("%d issue(s) can be fixed with --fix", tally.Fixable)
	}

	if !tally.Healthy() {
		return cli.Exit("", 1)
	}

	return nil
}
