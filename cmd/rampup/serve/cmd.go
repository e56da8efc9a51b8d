package serve

import (
	"time"

	"github.com/andrebq/rampup/internal/cmdflags"
	"github.com/andrebq/rampup/internal/httpserver"
	"github.com/andrebq/rampup/internal/logutil"
	"github.com/andrebq/rampup/sessions"
	"github.com/andrebq/rampup/users/api"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	bindAddr := "localhost:7007"
	var dbpath string
	var insecureCookie bool
	sessionTTL := 12 * time.Hour
	hasher := cmdflags.NewHasher()
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the signup/login web application",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Address to bind for incoming requests",
				EnvVars:     []string{"RAMPUP_BIND"},
				Value:       bindAddr,
				Destination: &bindAddr,
			},
			cmdflags.Database(&dbpath),
			&cli.BoolFlag{
				Name:        "insecure-cookie",
				Usage:       "Allow the session cookie over plain HTTP (development only)",
				Destination: &insecureCookie,
			},
			&cli.DurationFlag{
				Name:        "session-ttl",
				Usage:       "How long a session token remains valid",
				EnvVars:     []string{"RAMPUP_SESSION_TTL"},
				Value:       sessionTTL,
				Destination: &sessionTTL,
			},
		}, hasher.Flags()...),
		Action: func(ctx *cli.Context) error {
			log := logutil.GetOrDefault(ctx.Context)
			store, err := hasher.OpenStore(ctx.Context, dbpath)
			if err != nil {
				return err
			}
			defer store.Close()
			tokens, err := sessions.InMemory(sessionTTL)
			if err != nil {
				return err
			}
			realm := api.NewRealm(store, tokens, sessionTTL, insecureCookie)
			handler, err := api.AsHandler(ctx.Context, store, realm)
			if err != nil {
				return err
			}
			if insecureCookie {
				log.Warn().Msg("Session cookies will be sent over plain HTTP")
			}
			return httpserver.Serve(ctx.Context, bindAddr, handler)
		},
	}
}
