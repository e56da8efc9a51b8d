// Package sessions keeps the tokens handed out after a successful login.
//
// Tokens are only kept in memory, a restart or an eviction means the user
// has to log in again.
package sessions

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/allegro/bigcache/v3"
)

const (
	tokenSize = 32
)

type (
	Store interface {
		Save(ctx context.Context, token string, uid string) error
		Lookup(ctx context.Context, token string) (string, bool, error)
		Delete(ctx context.Context, token string) error
	}

	memStore struct {
		cache *bigcache.BigCache
	}
)

// InMemory returns a Store that forgets tokens ttl after they were saved.
func InMemory(ttl time.Duration) (Store, error) {
	cfg := bigcache.DefaultConfig(ttl)
	// values are uuids, the defaults reserve room for 500 byte entries
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 10_000
	cfg.MaxEntrySize = 64
	cfg.Verbose = false
	cfg.CleanWindow = ttl / 2
	if cfg.CleanWindow < time.Second {
		cfg.CleanWindow = time.Second
	}
	cache, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("sessions: unable to create token cache, cause %w", err)
	}
	return &memStore{
		cache: cache,
	}, nil
}

func (m *memStore) Save(ctx context.Context, token string, uid string) error {
	if token == "" || uid == "" {
		return errors.New("sessions: token and uid are required")
	}
	return m.cache.Set(token, []byte(uid))
}

func (m *memStore) Lookup(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	buf, err := m.cache.Get(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return string(buf), len(buf) > 0, nil
}

func (m *memStore) Delete(ctx context.Context, token string) error {
	err := m.cache.Delete(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}

// NewToken reads a random token from rnd (usually crypto/rand.Reader).
func NewToken(rnd io.Reader) (string, error) {
	var buf [tokenSize]byte
	if _, err := io.ReadFull(rnd, buf[:]); err != nil {
		return "", fmt.Errorf("sessions: unable to generate token, cause %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
