package testutil

import (
	"context"
	"os"
	"path/filepath"

	"github.com/andrebq/rampup/credential"
	"github.com/andrebq/rampup/users"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}
)

// FastHasher returns a hasher cheap enough to be used in every test.
func FastHasher(t TestLog) *credential.Hasher {
	d, err := credential.PBKDF2(1000)
	if err != nil {
		t.Fatal(err)
	}
	h, err := credential.New(credential.WithDigest(d))
	if err != nil {
		t.Fatal(err)
	}
	return h
}

// AcquireUserStore opens a user store in a temporary directory. When
// hasher is nil FastHasher is used.
func AcquireUserStore(ctx context.Context, t TestLog, hasher *credential.Hasher, opts ...users.Option) (*users.Store, func()) {
	dir, err := os.MkdirTemp("", "rampup-tests")
	if err != nil {
		t.Fatal(err)
	}
	if hasher == nil {
		hasher = FastHasher(t)
	}
	store, err := users.Open(ctx, filepath.Join(dir, "users.db"), hasher, opts...)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	return store, func() {
		err := store.Close()
		if err != nil {
			t.Log("unable to close user store", err)
		}
		err = os.RemoveAll(dir)
		if err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}
