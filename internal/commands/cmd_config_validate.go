package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/portbus/internal/commands/doctor"
	"github.com/hay-kot/portbus/internal/core/config"
	"github.com/hay-kot/portbus/internal/printer"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Inspect the bus configuration",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Show effective settings and check them",
				UsageText: "portbus config validate [--format json]",
				Description: `Prints the queue capacity and overflow policy, the scheduler jitter and delay,
activity retention and the data directory the bus will use, followed by any
errors or warnings. Exits non-zero when a setting is invalid.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

// configReport is the result of validating one configuration.
type configReport struct {
	Valid    bool               `json:"valid"`
	Settings []config.Setting   `json:"settings"`
	Problems []doctor.CheckItem `json:"problems,omitempty"`
}

func newConfigReport(cfg *config.Config, configPath string) configReport {
	r := configReport{
		Valid:    true,
		Settings: cfg.Settings(),
		Problems: doctor.ConfigProblems(cfg, configPath),
	}
	for _, item := range r.Problems {
		if item.Status == doctor.StatusFail {
			r.Valid = false
		}
	}
	return r
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.flags.Config == nil {
		return fmt.Errorf("configuration not loaded")
	}

	report := newConfigReport(cmd.flags.Config, cmd.flags.ConfigPath)

	if cmd.format == "json" {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printConfigReport(printer.Ctx(ctx), report)
	}

	if !report.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func printConfigReport(p *printer.Printer, r configReport) {
	p.Section("Settings")
	for _, s := range r.Settings {
		p.Printf("  %-10s %s", s.Key, s.Value)
	}

	if len(r.Problems) > 0 {
		p.Printf("")
		p.Section("Problems")
		for _, item := range r.Problems {
			p.Item(item.Status.String(), item.Label, item.Detail)
		}
	}

	p.Printf("")
	switch {
	case !r.Valid:
		p.Errorf("Configuration is invalid")
	case len(r.Problems) > 0:
		p.Successf("Configuration is valid (%d warning(s))", len(r.Problems))
	default:
		p.Successf("Configuration is valid")
	}
}
