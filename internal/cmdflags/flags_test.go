package cmdflags

import (
	"math"
	"os"
	"testing"

	"github.com/andrebq/rampup/credential"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	h := NewHasher()
	h.Argon2Memory = 64
	h.Argon2Time = 1
	current, verifiers, err := h.Build()
	require.NoError(t, err)
	require.Empty(t, verifiers)
	require.Equal(t, credential.DigestArgon2id, current.Digest().Name())
	require.Equal(t, credential.DefaultSaltLength, current.SaltLength())
}

func TestBuildWithPepper(t *testing.T) {
	t.Setenv("RAMPUP_TEST_PEPPER", "blmHX4evD5FygUEa3EWxjzuAPF7lC4sKuWBrhgti/20=")
	h := NewHasher()
	h.Digest = credential.DigestSHA256
	h.UsePepper = true
	h.PepperEnvVar = "RAMPUP_TEST_PEPPER"

	current, verifiers, err := h.Build()
	require.NoError(t, err)
	require.Equal(t, "sha256+pepper", current.Digest().Name())
	require.Len(t, verifiers, 1)
	require.Equal(t, credential.DigestSHA256, verifiers[0].Digest().Name())
	require.Empty(t, os.Getenv("RAMPUP_TEST_PEPPER"))

	c, err := current.Enroll("password")
	require.NoError(t, err)
	require.True(t, current.Verify("password", c.Salt(), c.Hash()))
	require.False(t, verifiers[0].Verify("password", c.Salt(), c.Hash()))
}

func TestBuildRejectsBadFlags(t *testing.T) {
	h := NewHasher()
	h.Digest = "md5"
	_, _, err := h.Build()
	require.Error(t, err)

	h = NewHasher()
	h.Digest = credential.DigestSHA256
	h.SaltLength = 4
	_, _, err = h.Build()
	require.Error(t, err)

	for _, tweak := range []func(*Hasher){
		func(h *Hasher) { h.Argon2Threads = 257 },
		func(h *Hasher) { h.Argon2Threads = math.MaxUint8 + 1 },
		func(h *Hasher) { h.Argon2Time = math.MaxUint32 + 1 },
		func(h *Hasher) { h.Argon2Memory = math.MaxUint32 + 64 },
	} {
		h = NewHasher()
		tweak(h)
		_, _, err = h.Build()
		var invalid credential.InvalidOption
		require.ErrorAs(t, err, &invalid)
	}

	h = NewHasher()
	h.Digest = credential.DigestSHA256
	h.UsePepper = true
	h.PepperEnvVar = "RAMPUP_TEST_MISSING_PEPPER"
	_, _, err = h.Build()
	require.Error(t, err)
}

func TestForDigest(t *testing.T) {
	h := NewHasher()
	h.Digest = credential.DigestArgon2id
	h.UsePepper = true

	same := h.ForDigest("")
	require.Equal(t, *h, *same)

	legacy := h.ForDigest(credential.DigestSHA256)
	require.Equal(t, credential.DigestSHA256, legacy.Digest)
	require.False(t, legacy.UsePepper)
	require.Equal(t, credential.DigestArgon2id, h.Digest, "original flags must not change")

	current, _, err := legacy.Build()
	require.NoError(t, err)
	c, err := current.Enroll("password")
	require.NoError(t, err)
	require.Equal(t, credential.DigestSHA256, c.Digest())

	peppered := NewHasher().ForDigest("pbkdf2+pepper")
	require.Equal(t, credential.DigestPBKDF2, peppered.Digest)
	require.True(t, peppered.UsePepper)
}
