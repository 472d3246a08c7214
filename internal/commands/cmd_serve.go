package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/hay-kot/portbus/internal/core/execution"
	"github.com/hay-kot/portbus/internal/manager"
	"github.com/hay-kot/portbus/internal/messages"
)

// listingsFile is the on-disk shape read by serve-listings. JSON files parse too.
type listingsFile struct {
	Listings []struct {
		Symbol   string  `yaml:"symbol"`
		Price    float64 `yaml:"price"`
		Forecast float64 `yaml:"forecast"`
		Shares   int64   `yaml:"shares"`
	} `yaml:"listings"`
}

// fileListings reads listings from path on every call, so edits to the file show up
// on the next tick.
func fileListings(path string) manager.ListingsSourceFunc {
	return func(context.Context) ([]messages.Listing, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		var f listingsFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		out := make([]messages.Listing, len(f.Listings))
		for i, l := range f.Listings {
			out[i] = messages.Listing{Symbol: l.Symbol, Price: l.Price, Forecast: l.Forecast, Shares: l.Shares}
		}
		return out, nil
	}
}

type ServeListingsCmd struct {
	flags *Flags

	as     string
	file   string
	delay  time.Duration
	jitter bool
}

// NewServeListingsCmd creates a new serve-listings command.
func NewServeListingsCmd(flags *Flags) *ServeListingsCmd {
	return &ServeListingsCmd{flags: flags}
}

// Register adds the serve-listings command to the application.
func (cmd *ServeListingsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve-listings",
		Usage:     "Run a listings manager that answers stock-listings requests",
		UsageText: "portbus serve-listings --file listings.yaml [--as stocks] [--delay 1s]",
		Description: `Runs a manager loop that reads listings from a YAML or JSON file every tick.

When the listings change it broadcasts stock-listings-changed. Every
stock-listings-request it receives is answered with stock-listings-response,
addressed to the request's sender.

File format:
  listings:
    - symbol: ECP
      price: 12.5
      forecast: 0.61`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "as",
				Usage:       "subscriber name",
				Value:       "stocks",
				Destination: &cmd.as,
			},
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "listings file",
				Required:    true,
				Destination: &cmd.file,
			},
			&cli.DurationFlag{
				Name:        "delay",
				Usage:       "fixed pause between ticks (default: scheduler.delay from config)",
				Destination: &cmd.delay,
			},
			&cli.BoolFlag{
				Name:        "jitter",
				Usage:       "pause a random scheduler.jitter_min..jitter_max instead of a fixed delay",
				Destination: &cmd.jitter,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeListingsCmd) run(ctx context.Context, c *cli.Command) error {
	sched := cmd.flags.Config.Scheduler

	delay := execution.Fixed(sched.Delay)
	switch {
	case cmd.jitter:
		delay = execution.Jitter(sched.JitterMin, sched.JitterMax)
	case cmd.delay > 0:
		delay = execution.Fixed(cmd.delay)
	}

	logger := log.With().Str("component", "manager").Str("manager", "listings").Logger()

	m, err := manager.New(ctx, cmd.flags.Bus, cmd.as, delay, logger)
	if err != nil {
		return err
	}

	return manager.NewListingsManager(m, fileListings(cmd.file)).Run(ctx)
}
