package credential

import (
	"fmt"
	"os"

	"github.com/andrebq/rampup/credential"
	"github.com/andrebq/rampup/internal/cmdflags"
	"github.com/andrebq/rampup/internal/logutil"
	"github.com/andrebq/rampup/internal/prompt"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	hasher := cmdflags.NewHasher()
	return &cli.Command{
		Name:    "credential",
		Aliases: []string{"cred"},
		Usage:   "Enroll or verify a single password without touching a database",
		Flags:   hasher.Flags(),
		Subcommands: []*cli.Command{
			enrollCmd(hasher),
			verifyCmd(hasher),
		},
	}
}

func build(ctx *cli.Context, hasher *cmdflags.Hasher) (*credential.Hasher, error) {
	h, _, err := hasher.Build(credential.WithLogger(logutil.GetOrDefault(ctx.Context)))
	return h, err
}

func enrollCmd(hasher *cmdflags.Hasher) *cli.Command {
	return &cli.Command{
		Name:  "enroll",
		Usage: "Print the digest name, a new salt and hash (tab separated) for the password read from stdin",
		Action: func(ctx *cli.Context) error {
			h, err := build(ctx, hasher)
			if err != nil {
				return err
			}
			password, err := prompt.Password(os.Stdin, ctx.App.ErrWriter, "Password")
			if err != nil {
				return err
			}
			c, err := h.Enroll(password)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "%v\t%v\t%v\n", c.Digest(), c.Salt(), c.Hash())
			return nil
		},
	}
}

func verifyCmd(hasher *cmdflags.Hasher) *cli.Command {
	var salt, hash, storedDigest string
	return &cli.Command{
		Name:  "verify",
		Usage: "Check the password read from stdin against a stored salt and hash",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "salt", Destination: &salt, Required: true},
			&cli.StringFlag{Name: "hash", Destination: &hash, Required: true},
			&cli.StringFlag{
				Name:        "stored-digest",
				Usage:       "Digest name printed by enroll (eg.: sha256, argon2id+pepper). Defaults to the --digest flag",
				Destination: &storedDigest,
			},
		},
		Action: func(ctx *cli.Context) error {
			h, err := build(ctx, hasher.ForDigest(storedDigest))
			if err != nil {
				return err
			}
			password, err := prompt.Password(os.Stdin, ctx.App.ErrWriter, "Password")
			if err != nil {
				return err
			}
			ok, err := h.Check(password, salt, hash)
			if err != nil {
				return cli.Exit(err.Error(), 3)
			} else if !ok {
				return cli.Exit("password does not match", 2)
			}
			fmt.Fprintln(ctx.App.Writer, "ok")
			return nil
		},
	}
}
