package credential

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testParams() DigestParams {
	return DigestParams{
		PBKDF2Iterations: 1000,
		ScryptN:          1 << 10,
		ScryptR:          8,
		ScryptP:          1,
		Argon2Time:       1,
		Argon2Memory:     64,
		Argon2Threads:    1,
	}
}

func TestLegacySHA256(t *testing.T) {
	// sha256("abc"), split between password and salt
	sum := SHA256().Sum([]byte("a"), []byte("bc"))
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hex.EncodeToString(sum))
}

func TestDigestsRoundTrip(t *testing.T) {
	for _, name := range []string{DigestSHA256, DigestPBKDF2, DigestScrypt, DigestArgon2id} {
		t.Run(name, func(t *testing.T) {
			d, err := DigestByName(name, testParams())
			require.NoError(t, err)
			require.Equal(t, name, d.Name())

			h, err := New(WithDigest(d))
			require.NoError(t, err)
			c, err := h.Enroll("password")
			require.NoError(t, err)
			require.Equal(t, name, c.Digest())
			require.Len(t, c.Hash(), hex.EncodedLen(d.Size()))
			require.True(t, h.Verify("password", c.Salt(), c.Hash()))
			require.False(t, h.Verify("wordpass", c.Salt(), c.Hash()))

			sum := d.Sum([]byte("password"), []byte(c.Salt()))
			require.Equal(t, c.Hash(), hex.EncodeToString(sum), "digest must be deterministic")
		})
	}
}

func TestDigestsDisagree(t *testing.T) {
	sha, err := New()
	require.NoError(t, err)
	d, err := DigestByName(DigestPBKDF2, testParams())
	require.NoError(t, err)
	kdf, err := New(WithDigest(d))
	require.NoError(t, err)

	c, err := sha.Enroll("password")
	require.NoError(t, err)
	require.False(t, kdf.Verify("password", c.Salt(), c.Hash()))
}

func TestDigestByNameErrors(t *testing.T) {
	params := testParams()
	_, err := DigestByName("md5", params)
	require.Error(t, err)

	bad := params
	bad.ScryptN = 1000
	_, err = DigestByName(DigestScrypt, bad)
	require.Error(t, err)

	bad = params
	bad.PBKDF2Iterations = 0
	_, err = DigestByName(DigestPBKDF2, bad)
	require.Error(t, err)

	bad = params
	bad.Argon2Threads = 0
	_, err = DigestByName(DigestArgon2id, bad)
	var invalid InvalidOption
	require.True(t, errors.As(err, &invalid))
}

func TestPepper(t *testing.T) {
	env := map[string]string{
		PepperEnvVar: "blmHX4evD5FygUEa3EWxjzuAPF7lC4sKuWBrhgti/20=",
	}
	getenv := func(k string) string { return env[k] }
	setenv := func(k, v string) error { env[k] = v; return nil }

	pepper, err := PepperFromEnv(PepperEnvVar, getenv, setenv)
	require.NoError(t, err)
	require.Empty(t, env[PepperEnvVar], "reading the pepper should remove it from the environment")

	h, err := New(WithDigest(Peppered(SHA256(), pepper)))
	require.NoError(t, err)
	c, err := h.Enroll("password")
	require.NoError(t, err)
	require.Equal(t, "sha256+pepper", c.Digest())
	require.True(t, h.Verify("password", c.Salt(), c.Hash()))

	plain, err := New()
	require.NoError(t, err)
	require.False(t, plain.Verify("password", c.Salt(), c.Hash()))

	var other Pepper
	other[0] = 1
	h2, err := New(WithDigest(Peppered(SHA256(), &other)))
	require.NoError(t, err)
	require.False(t, h2.Verify("password", c.Salt(), c.Hash()))
}

func TestPepperFromEnvErrors(t *testing.T) {
	getenv := func(v string) func(string) string {
		return func(string) string { return v }
	}
	noop := func(string, string) error { return nil }

	_, err := PepperFromEnv(PepperEnvVar, getenv(""), noop)
	require.Error(t, err)
	_, err = PepperFromEnv(PepperEnvVar, getenv("not base64!"), noop)
	require.Error(t, err)
	_, err = PepperFromEnv(PepperEnvVar, getenv(base64.StdEncoding.EncodeToString([]byte("short"))), noop)
	require.Error(t, err)
}

func TestPepperedRequiresPepper(t *testing.T) {
	require.Nil(t, Peppered(SHA256(), nil))
	require.Nil(t, Peppered(nil, &Pepper{}))

	_, err := New(WithDigest(Peppered(SHA256(), nil)))
	var invalid InvalidOption
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "digest", invalid.Option)
}
