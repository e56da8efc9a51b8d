package credential

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

const (
	keySize = 32

	DigestSHA256   = "sha256"
	DigestPBKDF2   = "pbkdf2"
	DigestScrypt   = "scrypt"
	DigestArgon2id = "argon2id"
)

type (
	// Digest maps a password and its salt to a fixed size key.
	//
	// Implementations must be deterministic and safe for concurrent use,
	// Verify depends on recomputing the exact same bytes Enroll stored.
	Digest interface {
		Name() string
		Size() int
		Sum(password, salt []byte) []byte
	}

	DigestParams struct {
		PBKDF2Iterations int

		ScryptN int
		ScryptR int
		ScryptP int

		Argon2Time    uint32
		Argon2Memory  uint32
		Argon2Threads uint8
	}

	sha256Digest struct{}

	pbkdf2Digest struct {
		iterations int
	}

	scryptDigest struct {
		n, r, p int
	}

	argon2idDigest struct {
		time    uint32
		memory  uint32
		threads uint8
	}
)

// DefaultDigestParams follows the OWASP password storage recommendations
// at the time of writing.
func DefaultDigestParams() DigestParams {
	return DigestParams{
		PBKDF2Iterations: 600_000,
		ScryptN:          1 << 15,
		ScryptR:          8,
		ScryptP:          1,
		Argon2Time:       3,
		Argon2Memory:     64 * 1024,
		Argon2Threads:    2,
	}
}

// DigestByName returns the digest registered under name, configured
// with the values from params.
func DigestByName(name string, params DigestParams) (Digest, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DigestSHA256:
		return SHA256(), nil
	case DigestPBKDF2:
		return PBKDF2(params.PBKDF2Iterations)
	case DigestScrypt:
		return Scrypt(params.ScryptN, params.ScryptR, params.ScryptP)
	case DigestArgon2id:
		return Argon2id(params.Argon2Time, params.Argon2Memory, params.Argon2Threads)
	}
	return nil, InvalidOption{Option: "digest", Reason: fmt.Sprintf("unknown digest %q", name)}
}

// SHA256 is the single pass sha256(password || salt) used by the legacy
// application. It exists so old records keep working, new deployments
// should pick one of the KDFs.
func SHA256() Digest {
	return sha256Digest{}
}

func (sha256Digest) Name() string { return DigestSHA256 }
func (sha256Digest) Size() int    { return sha256.Size }

func (sha256Digest) Sum(password, salt []byte) []byte {
	h := sha256.New()
	h.Write(password)
	h.Write(salt)
	return h.Sum(nil)
}

func PBKDF2(iterations int) (Digest, error) {
	if iterations < 1 {
		return nil, InvalidOption{Option: "pbkdf2.iterations", Reason: "must be positive"}
	}
	return pbkdf2Digest{iterations: iterations}, nil
}

func (pbkdf2Digest) Name() string { return DigestPBKDF2 }
func (pbkdf2Digest) Size() int    { return keySize }

func (p pbkdf2Digest) Sum(password, salt []byte) []byte {
	return pbkdf2.Key(concat(password, salt), salt, p.iterations, keySize, sha256.New)
}

func Scrypt(n, r, p int) (Digest, error) {
	switch {
	case n <= 1 || n&(n-1) != 0:
		return nil, InvalidOption{Option: "scrypt.n", Reason: "must be a power of two greater than one"}
	case r < 1 || p < 1:
		return nil, InvalidOption{Option: "scrypt.r/p", Reason: "must be positive"}
	case uint64(r)*uint64(p) >= 1<<30:
		return nil, InvalidOption{Option: "scrypt.r/p", Reason: "r*p must be less than 2^30"}
	}
	return scryptDigest{n: n, r: r, p: p}, nil
}

func (scryptDigest) Name() string { return DigestScrypt }
func (scryptDigest) Size() int    { return keySize }

func (s scryptDigest) Sum(password, salt []byte) []byte {
	// parameters are checked by Scrypt, a nil key never matches a stored hash
	key, _ := scrypt.Key(concat(password, salt), salt, s.n, s.r, s.p, keySize)
	return key
}

func Argon2id(time, memoryKiB uint32, threads uint8) (Digest, error) {
	switch {
	case time < 1:
		return nil, InvalidOption{Option: "argon2.time", Reason: "must be positive"}
	case threads < 1:
		return nil, InvalidOption{Option: "argon2.threads", Reason: "must be positive"}
	case memoryKiB < 8*uint32(threads):
		return nil, InvalidOption{Option: "argon2.memory", Reason: "must be at least 8KiB per thread"}
	}
	return argon2idDigest{time: time, memory: memoryKiB, threads: threads}, nil
}

func (argon2idDigest) Name() string { return DigestArgon2id }
func (argon2idDigest) Size() int    { return keySize }

func (a argon2idDigest) Sum(password, salt []byte) []byte {
	return argon2.IDKey(concat(password, salt), salt, a.time, a.memory, a.threads, keySize)
}

func concat(password, salt []byte) []byte {
	buf := make([]byte, 0, len(password)+len(salt))
	buf = append(buf, password...)
	return append(buf, salt...)
}
