package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/portbus/internal/commands"
	"github.com/hay-kot/portbus/internal/core/comms"
	"github.com/hay-kot/portbus/internal/core/config"
	"github.com/hay-kot/portbus/internal/printer"
	"github.com/hay-kot/portbus/internal/store/jsonfile"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	if err := setupLogger("info", ""); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var (
		p     = printer.New(os.Stderr)
		flags = &commands.Flags{}
	)
	ctx = printer.NewContext(ctx, p)

	app := &cli.Command{
		Name:      "portbus",
		Usage:     "Message bus and scheduler for cooperating manager scripts",
		UsageText: "portbus [global options] command [command options]",
		Description: `portbus lets independently running manager scripts exchange typed messages.

Every subscriber owns a private channel (a bounded queue file under the data
directory). Events are broadcast to every joined subscriber or addressed to one;
requests name a sender that the responder replies to.

Run 'portbus listen --type <type>' to watch messages and
'portbus send --type <type> [payload]' to publish one.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("PORTBUS_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (optional)",
				Sources:     cli.EnvVars("PORTBUS_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("PORTBUS_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("PORTBUS_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := setupLogger(flags.LogLevel, flags.LogFile); err != nil {
				return ctx, err
			}

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			flags.Ports = jsonfile.NewPortStore(cfg.PortsDir()).
				WithCapacity(cfg.Transport.Capacity).
				WithOverflow(cfg.Transport.Overflow)
			flags.Registry = jsonfile.NewRegistry(cfg.RegistryFile())
			flags.Activity = jsonfile.NewActivityStore(cfg.ActivityDir()).
				WithMaxActivities(cfg.Activity.MaxEntries)

			logger := log.With().Str("component", "bus").Logger()
			flags.Bus = comms.NewBus(flags.Ports, flags.Registry, logger)
			if cfg.Activity.Enabled {
				flags.Bus = flags.Bus.WithActivity(flags.Activity)
			}

			return log.Logger.WithContext(ctx), nil
		},
	}

	app = commands.NewSendCmd(flags).Register(app)
	app = commands.NewListenCmd(flags).Register(app)
	app = commands.NewRequestCmd(flags).Register(app)
	app = commands.NewServeListingsCmd(flags).Register(app)
	app = commands.NewPortsCmd(flags).Register(app)
	app = commands.NewActivityCmd(flags).Register(app)
	app = commands.NewTypesCmd(flags).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)
	app = commands.NewDoctorCmd(flags).Register(app)

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr)
		printer.Ctx(ctx).FatalError(err)
		exitCode = 1
	}

	stop()
	os.Exit(exitCode)
}

func setupLogger(level string, logFile string) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		// Write to both console and file
		output = io.MultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, file)
	}

	log.Logger = log.Output(output).Level(parsedLevel).With().Timestamp().Logger()

	return nil
}
