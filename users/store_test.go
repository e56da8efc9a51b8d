package users_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/andrebq/rampup/credential"
	"github.com/andrebq/rampup/internal/testutil"
	"github.com/andrebq/rampup/users"
	"github.com/stretchr/testify/require"
)

func bob() users.SignUp {
	return users.SignUp{
		Name:                 "bob",
		Email:                "bob@bob.com",
		Password:             "password",
		PasswordConfirmation: "password",
	}
}

func TestCreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t, nil)
	defer cleanup()

	u, err := store.Create(ctx, bob())
	require.NoError(t, err)
	require.NotEmpty(t, u.UID)
	require.Equal(t, "bob@bob.com", u.Email)

	found, err := store.FindByEmail(ctx, "bob@bob.com")
	require.NoError(t, err)
	require.Equal(t, u.UID, found.UID)

	authed, ok, err := store.Authenticate(ctx, "bob@bob.com", "password")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, u.UID, authed.UID)

	_, ok, err = store.Authenticate(ctx, "bob@bob.com", "bad_password")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = store.Authenticate(ctx, "alice@bob.com", "password")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEmailIsNormalized(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t, nil)
	defer cleanup()

	form := bob()
	form.Email = "  Bob@Bob.COM "
	_, err := store.Create(ctx, form)
	require.NoError(t, err)

	_, ok, err := store.Authenticate(ctx, "BOB@bob.com", "password")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t, nil)
	defer cleanup()

	for _, field := range []string{"name", "email", "password", "password_confirmation"} {
		form := bob()
		switch field {
		case "name":
			form.Name = " "
		case "email":
			form.Email = ""
		case "password":
			form.Password = ""
		case "password_confirmation":
			form.PasswordConfirmation = ""
		}
		_, err := store.Create(ctx, form)
		var missing users.MissingField
		require.True(t, errors.As(err, &missing), "expecting missing %v got %v", field, err)
		require.Equal(t, field, missing.Field)
	}

	form := bob()
	form.PasswordConfirmation = "wordpass"
	_, err := store.Create(ctx, form)
	require.ErrorIs(t, err, users.PasswordMismatch{})

	_, err = store.Create(ctx, bob())
	require.NoError(t, err)
	_, err = store.Create(ctx, bob())
	require.ErrorIs(t, err, users.EmailTaken{Email: "bob@bob.com"})

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t, nil)
	defer cleanup()

	u, err := store.Create(ctx, bob())
	require.NoError(t, err)
	_, salt, hash, err := users.StoredCredential(ctx, store, u.Email)
	require.NoError(t, err)

	require.ErrorIs(t, store.ChangePassword(ctx, u.UID, "new", "old"), users.PasswordMismatch{})
	require.NoError(t, store.ChangePassword(ctx, u.UID, "wordpass", "wordpass"))

	_, newSalt, newHash, err := users.StoredCredential(ctx, store, u.Email)
	require.NoError(t, err)
	require.NotEqual(t, salt, newSalt)
	require.NotEqual(t, hash, newHash)

	_, ok, err := store.Authenticate(ctx, u.Email, "password")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = store.Authenticate(ctx, u.Email, "wordpass")
	require.NoError(t, err)
	require.True(t, ok)

	err = store.ChangePassword(ctx, "missing-uid", "x", "x")
	var notFound users.NotFound
	require.True(t, errors.As(err, &notFound))
}

func TestFindByUID(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t, nil,
		users.WithClock(func() time.Time { return time.Date(2013, 3, 28, 23, 33, 31, 0, time.UTC) }))
	defer cleanup()

	u, err := store.Create(ctx, bob())
	require.NoError(t, err)
	found, err := store.FindByUID(ctx, u.UID)
	require.NoError(t, err)
	require.Equal(t, "bob", found.Name)
	require.True(t, found.CreatedAt.Equal(time.Date(2013, 3, 28, 23, 33, 31, 0, time.UTC)))

	_, err = store.FindByUID(ctx, "nope")
	require.ErrorIs(t, err, users.NotFound{UID: "nope"})
}

func TestCorruptedCredentialIsRejected(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t, nil)
	defer cleanup()

	u, err := store.Create(ctx, bob())
	require.NoError(t, err)
	require.NoError(t, users.CorruptHash(ctx, store, u.Email, "tampered"))

	_, ok, err := store.Authenticate(ctx, u.Email, "password")
	require.NoError(t, err)
	require.False(t, ok)
}

func legacyHash(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

func TestImportLegacyAndUpgrade(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t, nil)
	defer cleanup()

	csv := fmt.Sprintf(`name,email,salt,hashed_password
homer,homer@thesimpsons.com,salt123456,%v
bob,Bob@Bob.com,aZ09aZ09aZ,%v
`, legacyHash("password", "salt123456"), legacyHash("donuts", "aZ09aZ09aZ"))

	n, err := store.ImportLegacy(ctx, bytes.NewBufferString(csv))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	digest, _, _, err := users.StoredCredential(ctx, store, "homer@thesimpsons.com")
	require.NoError(t, err)
	require.Equal(t, credential.DigestSHA256, digest)

	_, ok, err := store.Authenticate(ctx, "homer@thesimpsons.com", "wrong")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = store.Authenticate(ctx, "homer@thesimpsons.com", "password")
	require.NoError(t, err)
	require.True(t, ok)

	digest, salt, _, err := users.StoredCredential(ctx, store, "homer@thesimpsons.com")
	require.NoError(t, err)
	require.Equal(t, credential.DigestPBKDF2, digest)
	require.Len(t, salt, credential.DefaultSaltLength)

	_, ok, err = store.Authenticate(ctx, "homer@thesimpsons.com", "password")
	require.NoError(t, err)
	require.True(t, ok, "upgraded credential must keep working")

	_, ok, err = store.Authenticate(ctx, "bob@bob.com", "donuts")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestImportLegacyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t, nil)
	defer cleanup()

	csv := fmt.Sprintf(`name,email,salt,hashed_password
homer,homer@thesimpsons.com,salt123456,%v
marge,marge@thesimpsons.com,salt123456,tampered
`, legacyHash("password", "salt123456"))

	_, err := store.ImportLegacy(ctx, bytes.NewBufferString(csv))
	var failed users.ImportFailed
	require.True(t, errors.As(err, &failed))
	require.Equal(t, 3, failed.Line)
	var malformed credential.MalformedStoredCredential
	require.True(t, errors.As(err, &malformed))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = store.ImportLegacy(ctx, bytes.NewBufferString("login,email,salt,password\n"))
	require.True(t, errors.As(err, &failed))
	require.Equal(t, 1, failed.Line)
}
