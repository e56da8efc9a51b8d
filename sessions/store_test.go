package sessions

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	tokens, err := InMemory(10 * time.Minute)
	require.NoError(t, err)

	token, err := NewToken(rand.Reader)
	require.NoError(t, err)

	_, found, err := tokens.Lookup(ctx, token)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, tokens.Save(ctx, token, "user-1"))
	uid, found, err := tokens.Lookup(ctx, token)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "user-1", uid)

	require.NoError(t, tokens.Delete(ctx, token))
	_, found, err = tokens.Lookup(ctx, token)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, tokens.Delete(ctx, token), "deleting twice is fine")
	require.Error(t, tokens.Save(ctx, "", "user-1"))
}

func TestNewToken(t *testing.T) {
	a, err := NewToken(rand.Reader)
	require.NoError(t, err)
	b, err := NewToken(rand.Reader)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, 43)

	_, err = NewToken(bytes.NewReader(make([]byte, tokenSize-1)))
	require.Error(t, err)
}
