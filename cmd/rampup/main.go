package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/andrebq/rampup/cmd/rampup/credential"
	"github.com/andrebq/rampup/cmd/rampup/serve"
	"github.com/andrebq/rampup/cmd/rampup/users"
	"github.com/andrebq/rampup/internal/logutil"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	var level string
	var pretty bool
	app := &cli.App{
		Name:  "rampup",
		Usage: "Sign up and log in users with salted password hashes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Minimum level to log (debug, info, warn, error)",
				EnvVars:     []string{"RAMPUP_LOG_LEVEL"},
				Value:       "info",
				Destination: &level,
			},
			&cli.BoolFlag{
				Name:        "pretty",
				Usage:       "Human friendly logs instead of json",
				EnvVars:     []string{"RAMPUP_LOG_PRETTY"},
				Destination: &pretty,
			},
		},
		Before: func(ctx *cli.Context) error {
			logger := logutil.Setup(level, pretty, os.Stderr)
			ctx.Context = logutil.WithLogger(ctx.Context, logger)
			return nil
		},
		Commands: []*cli.Command{
			serve.Cmd(),
			users.Cmd(),
			credential.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
