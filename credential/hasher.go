// Package credential derives and verifies salted password hashes.
//
// A Hasher is stateless: Enroll draws a fresh salt and digests
// password||salt, Verify recomputes the digest for a stored pair and
// compares it in constant time. Callers own persistence, the package only
// hands out Credential values they cannot forge or mutate.
//
// A wrong password is never reported as an error, Verify only returns
// false. Stored data that could not have come from Enroll is logged as a
// MalformedStoredCredential, use Check to receive it as an error instead.
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Alphabet holds the symbols salts are drawn from.
	Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	MinSaltLength     = 10
	MaxSaltLength     = 64
	DefaultSaltLength = 16
)

type (
	Hasher struct {
		digest     Digest
		saltLength int
		random     io.Reader
		log        zerolog.Logger
	}

	Option func(*Hasher) error

	// Credential is a salt and the digest computed with it. Only Enroll
	// creates one, both values are always replaced together.
	Credential struct {
		digest string
		salt   string
		hash   string
	}
)

func WithDigest(d Digest) Option {
	return func(h *Hasher) error {
		if d == nil {
			return InvalidOption{Option: "digest", Reason: "cannot be nil"}
		}
		h.digest = d
		return nil
	}
}

func WithSaltLength(n int) Option {
	return func(h *Hasher) error {
		if n < MinSaltLength || n > MaxSaltLength {
			return InvalidOption{Option: "salt length", Reason: "must be between 10 and 64"}
		}
		h.saltLength = n
		return nil
	}
}

// WithRandom replaces crypto/rand.Reader, the reader must be safe for
// concurrent use.
func WithRandom(r io.Reader) Option {
	return func(h *Hasher) error {
		if r == nil {
			return InvalidOption{Option: "random", Reason: "cannot be nil"}
		}
		h.random = r
		return nil
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(h *Hasher) error {
		h.log = l
		return nil
	}
}

// New returns a Hasher using SHA256 and DefaultSaltLength unless
// configured otherwise.
func New(opts ...Option) (*Hasher, error) {
	h := &Hasher{
		digest:     SHA256(),
		saltLength: DefaultSaltLength,
		random:     rand.Reader,
		log:        log.Logger,
	}
	for _, o := range opts {
		if err := o(h); err != nil {
			return nil, err
		}
	}
	h.log = h.log.With().Str("digest", h.digest.Name()).Logger()
	return h, nil
}

func (h *Hasher) Digest() Digest {
	return h.digest
}

func (h *Hasher) SaltLength() int {
	return h.saltLength
}

// Enroll returns a new credential for password. The only possible error
// is RandomSourceUnavailable.
func (h *Hasher) Enroll(password string) (Credential, error) {
	salt, err := h.makeSalt()
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		digest: h.digest.Name(),
		salt:   salt,
		hash:   hex.EncodeToString(h.digest.Sum([]byte(password), []byte(salt))),
	}, nil
}

// Verify reports whether password matches the stored salt and hash.
// Malformed stored values are logged and reported as a mismatch.
func (h *Hasher) Verify(password, salt, expectedHash string) bool {
	ok, err := h.Check(password, salt, expectedHash)
	if err != nil {
		h.log.Warn().Err(err).Msg("Refusing to verify password against malformed stored credential")
		return false
	}
	return ok
}

// Check is Verify for callers that want to flag corrupted records. The
// error is always a MalformedStoredCredential, a wrong password is only
// a false result.
func (h *Hasher) Check(password, salt, expectedHash string) (bool, error) {
	if err := h.validSalt(salt); err != nil {
		return false, err
	}
	expected, err := h.decodeHash(expectedHash)
	if err != nil {
		return false, err
	}
	actual := h.digest.Sum([]byte(password), []byte(salt))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

// NeedsRehash reports whether a stored pair was produced with a different
// salt length or digest size than h uses now. Callers should enroll the
// password again after the next successful Verify.
func (h *Hasher) NeedsRehash(salt, hash string) bool {
	return len(salt) != h.saltLength || len(hash) != hex.EncodedLen(h.digest.Size())
}

func (h *Hasher) makeSalt() (string, error) {
	// 248 is the largest multiple of len(Alphabet) that fits in a byte,
	// rejecting anything above it keeps every symbol equally likely
	const limit = 256 - (256 % len(Alphabet))
	out := make([]byte, 0, h.saltLength)
	buf := make([]byte, h.saltLength+h.saltLength/2)
	for len(out) < h.saltLength {
		if _, err := io.ReadFull(h.random, buf); err != nil {
			return "", RandomSourceUnavailable{cause: err}
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == h.saltLength {
				break
			}
		}
	}
	return string(out), nil
}

func (h *Hasher) validSalt(salt string) error {
	switch {
	case len(salt) == 0:
		return MalformedStoredCredential{Field: "salt", Reason: "empty"}
	case len(salt) < MinSaltLength || len(salt) > MaxSaltLength:
		return MalformedStoredCredential{Field: "salt", Reason: "length out of range"}
	}
	for i := 0; i < len(salt); i++ {
		if !inAlphabet(salt[i]) {
			return MalformedStoredCredential{Field: "salt", Reason: "unexpected symbol"}
		}
	}
	return nil
}

func (h *Hasher) decodeHash(hash string) ([]byte, error) {
	if len(hash) == 0 {
		return nil, MalformedStoredCredential{Field: "hash", Reason: "empty"}
	}
	if len(hash) != hex.EncodedLen(h.digest.Size()) {
		return nil, MalformedStoredCredential{Field: "hash", Reason: "length does not match digest"}
	}
	buf, err := hex.DecodeString(hash)
	if err != nil {
		return nil, MalformedStoredCredential{Field: "hash", Reason: "not hex encoded"}
	}
	return buf, nil
}

func inAlphabet(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (c Credential) Salt() string   { return c.salt }
func (c Credential) Hash() string   { return c.hash }
func (c Credential) Digest() string { return c.digest }

func (c Credential) IsZero() bool {
	return c == Credential{}
}
