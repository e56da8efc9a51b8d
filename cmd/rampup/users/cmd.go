package users

import (
	"errors"
	"fmt"
	"os"

	"github.com/andrebq/rampup/internal/cmdflags"
	"github.com/andrebq/rampup/internal/prompt"
	"github.com/andrebq/rampup/users"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	var dbpath string
	hasher := cmdflags.NewHasher()
	var store *users.Store
	return &cli.Command{
		Name:    "users",
		Aliases: []string{"u"},
		Usage:   "Manage the users stored in a database",
		Flags:   append([]cli.Flag{cmdflags.Database(&dbpath)}, hasher.Flags()...),
		Before: func(ctx *cli.Context) error {
			var err error
			store, err = hasher.OpenStore(ctx.Context, dbpath)
			return err
		},
		After: func(ctx *cli.Context) error {
			if store == nil {
				return nil
			}
			return store.Close()
		},
		Subcommands: []*cli.Command{
			registerCmd(&store),
			authenticateCmd(&store),
			passwdCmd(&store),
			importCmd(&store),
			listCmd(&store),
		},
	}
}

func registerCmd(store **users.Store) *cli.Command {
	var name string
	var email string
	return &cli.Command{
		Name:  "register",
		Usage: "Register a new user (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Aliases:     []string{"n"},
				Usage:       "Name of the user to register",
				Destination: &name,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "email",
				Aliases:     []string{"e"},
				Usage:       "Email used to log in",
				Destination: &email,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			password, err := prompt.Password(os.Stdin, ctx.App.ErrWriter, "Password")
			if err != nil {
				return err
			}
			u, err := (*store).Create(ctx.Context, users.SignUp{
				Name:                 name,
				Email:                email,
				Password:             password,
				PasswordConfirmation: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, u.UID)
			return nil
		},
	}
}

func authenticateCmd(store **users.Store) *cli.Command {
	var email string
	return &cli.Command{
		Name:  "authenticate",
		Usage: "Check a password (read from stdin) against the stored credential",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "email",
				Aliases:     []string{"e"},
				Destination: &email,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			password, err := prompt.Password(os.Stdin, ctx.App.ErrWriter, "Password")
			if err != nil {
				return err
			}
			u, ok, err := (*store).Authenticate(ctx.Context, email, password)
			if err != nil {
				return err
			} else if !ok {
				return cli.Exit("invalid email or password", 2)
			}
			fmt.Fprintln(ctx.App.Writer, u.UID)
			return nil
		},
	}
}

func passwdCmd(store **users.Store) *cli.Command {
	var email string
	return &cli.Command{
		Name:  "passwd",
		Usage: "Replace the password of a user (new password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "email",
				Aliases:     []string{"e"},
				Destination: &email,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			u, err := (*store).FindByEmail(ctx.Context, email)
			if err != nil {
				return err
			}
			password, err := prompt.Password(os.Stdin, ctx.App.ErrWriter, "New password")
			if err != nil {
				return err
			}
			return (*store).ChangePassword(ctx.Context, u.UID, password, password)
		},
	}
}

func importCmd(store **users.Store) *cli.Command {
	var file string
	return &cli.Command{
		Name:  "import",
		Usage: "Import users exported from the legacy application (csv: name,email,salt,hashed_password)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "CSV file to import, use - for stdin",
				Destination: &file,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			in := os.Stdin
			if file != "-" {
				fd, err := os.Open(file)
				if err != nil {
					return err
				}
				defer fd.Close()
				in = fd
			}
			n, err := (*store).ImportLegacy(ctx.Context, in)
			if err != nil {
				var failed users.ImportFailed
				if errors.As(err, &failed) {
					return fmt.Errorf("%v: %w", file, err)
				}
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "%v users imported\n", n)
			return nil
		},
	}
}

func listCmd(store **users.Store) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List registered users",
		Action: func(ctx *cli.Context) error {
			list, err := (*store).List(ctx.Context)
			if err != nil {
				return err
			}
			for _, u := range list {
				fmt.Fprintf(ctx.App.Writer, "%v\t%v\t%v\n", u.UID, u.Email, u.Name)
			}
			return nil
		},
	}
}
