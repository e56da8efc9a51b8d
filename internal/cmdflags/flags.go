package cmdflags

import (
	"context"
	"math"
	"strings"

	"github.com/andrebq/rampup/credential"
	"github.com/andrebq/rampup/internal/logutil"
	"github.com/andrebq/rampup/users"
	"github.com/urfave/cli/v2"
)

type (
	// Hasher collects the flags needed to build a credential.Hasher.
	Hasher struct {
		Digest        string
		SaltLength    int
		PepperEnvVar  string
		UsePepper     bool
		Iterations    int
		Argon2Time    uint
		Argon2Memory  uint
		Argon2Threads uint
	}
)

func Database(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "rampup.db"
	}
	return &cli.StringFlag{
		Name:        "db",
		Aliases:     []string{"d"},
		Usage:       "Path to the sqlite database holding users",
		EnvVars:     []string{"RAMPUP_DB"},
		Destination: out,
		Value:       *out,
	}
}

func NewHasher() *Hasher {
	p := credential.DefaultDigestParams()
	return &Hasher{
		Digest:        credential.DigestArgon2id,
		SaltLength:    credential.DefaultSaltLength,
		PepperEnvVar:  credential.PepperEnvVar,
		Iterations:    p.PBKDF2Iterations,
		Argon2Time:    uint(p.Argon2Time),
		Argon2Memory:  uint(p.Argon2Memory),
		Argon2Threads: uint(p.Argon2Threads),
	}
}

func (h *Hasher) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "digest",
			Usage:       "Digest used for new credentials (sha256, pbkdf2, scrypt, argon2id)",
			EnvVars:     []string{"RAMPUP_DIGEST"},
			Value:       h.Digest,
			Destination: &h.Digest,
		},
		&cli.IntFlag{
			Name:        "salt-length",
			Usage:       "Number of characters in new salts",
			EnvVars:     []string{"RAMPUP_SALT_LENGTH"},
			Value:       h.SaltLength,
			Destination: &h.SaltLength,
		},
		&cli.IntFlag{
			Name:        "pbkdf2-iterations",
			Usage:       "Iterations used by the pbkdf2 digest",
			Value:       h.Iterations,
			Destination: &h.Iterations,
		},
		&cli.UintFlag{
			Name:        "argon2-time",
			Usage:       "Passes over memory used by the argon2id digest",
			Value:       h.Argon2Time,
			Destination: &h.Argon2Time,
		},
		&cli.UintFlag{
			Name:        "argon2-memory",
			Usage:       "Memory (in KiB) used by the argon2id digest",
			Value:       h.Argon2Memory,
			Destination: &h.Argon2Memory,
		},
		&cli.UintFlag{
			Name:        "argon2-threads",
			Usage:       "Threads used by the argon2id digest",
			Value:       h.Argon2Threads,
			Destination: &h.Argon2Threads,
		},
		&cli.BoolFlag{
			Name:        "pepper",
			Usage:       "Mix a server side pepper into new credentials, read from the variable named by --pepper-envvar-name",
			EnvVars:     []string{"RAMPUP_USE_PEPPER"},
			Destination: &h.UsePepper,
		},
		&cli.StringFlag{
			Name:        "pepper-envvar-name",
			Usage:       "Name of the environment variable that holds the pepper. The pepper itself should not be passed as an argument",
			Value:       h.PepperEnvVar,
			Destination: &h.PepperEnvVar,
		},
	}
}

// Build returns the hasher described by the flags. When a pepper is used
// the returned verifiers can still check records created without it.
func (h *Hasher) Build(opts ...credential.Option) (current *credential.Hasher, verifiers []*credential.Hasher, err error) {
	switch {
	case h.Argon2Time > math.MaxUint32:
		return nil, nil, credential.InvalidOption{Option: "argon2-time", Reason: "out of range"}
	case h.Argon2Memory > math.MaxUint32:
		return nil, nil, credential.InvalidOption{Option: "argon2-memory", Reason: "out of range"}
	case h.Argon2Threads > math.MaxUint8:
		return nil, nil, credential.InvalidOption{Option: "argon2-threads", Reason: "must be at most 255"}
	}
	params := credential.DefaultDigestParams()
	params.PBKDF2Iterations = h.Iterations
	params.Argon2Time = uint32(h.Argon2Time)
	params.Argon2Memory = uint32(h.Argon2Memory)
	params.Argon2Threads = uint8(h.Argon2Threads)
	digest, err := credential.DigestByName(h.Digest, params)
	if err != nil {
		return nil, nil, err
	}
	if h.UsePepper {
		pepper, err := credential.PepperFromEnv(h.PepperEnvVar, nil, nil)
		if err != nil {
			return nil, nil, err
		}
		plain, err := credential.New(append([]credential.Option{credential.WithDigest(digest), credential.WithSaltLength(h.SaltLength)}, opts...)...)
		if err != nil {
			return nil, nil, err
		}
		verifiers = append(verifiers, plain)
		digest = credential.Peppered(digest, pepper)
		pepper.Zero()
	}
	current, err = credential.New(append([]credential.Option{credential.WithDigest(digest), credential.WithSaltLength(h.SaltLength)}, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return current, verifiers, nil
}

// ForDigest returns a copy of h configured to verify credentials whose
// stored digest name is name, as printed by Credential.Digest. An empty
// name keeps the flags as they are.
func (h *Hasher) ForDigest(name string) *Hasher {
	cp := *h
	if name == "" {
		return &cp
	}
	cp.Digest = strings.TrimSuffix(name, credential.PepperSuffix)
	cp.UsePepper = cp.Digest != name
	return &cp
}

// OpenStore opens the user database at dbpath with the hasher described
// by the flags.
func (h *Hasher) OpenStore(ctx context.Context, dbpath string) (*users.Store, error) {
	log := logutil.GetOrDefault(ctx)
	current, verifiers, err := h.Build(credential.WithLogger(log))
	if err != nil {
		return nil, err
	}
	opts := []users.Option{users.WithLogger(log)}
	for _, v := range verifiers {
		opts = append(opts, users.WithVerifier(v))
	}
	return users.Open(ctx, dbpath, current, opts...)
}
