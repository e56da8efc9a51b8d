package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/andrebq/rampup/internal/logutil"
	"github.com/andrebq/rampup/sessions"
	"github.com/andrebq/rampup/users"
)

const (
	SessionCookie = "_rampup_session"
)

type (
	// Realm resolves the token carried by a request (bearer header or
	// session cookie) to the user that logged in with it.
	Realm struct {
		users          *users.Store
		tokens         sessions.Store
		insecureCookie bool
		ttl            time.Duration
	}

	userKey struct{}
)

var (
	bearerTokenRE = regexp.MustCompile(`^Bearer ([^\s]+)$`)
)

func NewRealm(store *users.Store, tokens sessions.Store, ttl time.Duration, allowHTTPCookie bool) *Realm {
	return &Realm{
		users:          store,
		tokens:         tokens,
		insecureCookie: allowHTTPCookie,
		ttl:            ttl,
	}
}

// Protect rejects requests without a valid token, the user is available
// to sensitive through CurrentUser.
func (s *Realm) Protect(sensitive http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _, ok := s.lookup(r)
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		sensitive.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	})
}

// CurrentUser returns the user bound by Protect or, outside of it, the
// user owning the token carried by r.
func (s *Realm) CurrentUser(r *http.Request) (users.User, bool) {
	if u, ok := r.Context().Value(userKey{}).(users.User); ok {
		return u, true
	}
	u, _, ok := s.lookup(r)
	return u, ok
}

// Login stores a new token for u and returns it.
func (s *Realm) Login(ctx context.Context, u users.User) (string, error) {
	token, err := sessions.NewToken(randReader)
	if err != nil {
		return "", err
	}
	err = s.tokens.Save(ctx, token, u.UID)
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Realm) Logout(r *http.Request) error {
	tk := tokenFromRequest(r)
	if tk == "" {
		return nil
	}
	return s.tokens.Delete(r.Context(), tk)
}

func (s *Realm) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl / time.Second),
		HttpOnly: true,
		Secure:   !s.insecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Realm) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !s.insecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Realm) lookup(r *http.Request) (users.User, string, bool) {
	ctx := r.Context()
	log := logutil.GetOrDefault(ctx)
	tk := tokenFromRequest(r)
	if tk == "" {
		return users.User{}, "", false
	}
	uid, found, err := s.tokens.Lookup(ctx, tk)
	if err != nil {
		log.Error().Err(err).Msg("Unexpected error when checking for token in token store")
		return users.User{}, "", false
	} else if !found {
		return users.User{}, "", false
	}
	u, err := s.users.FindByUID(ctx, uid)
	if errors.As(err, &users.NotFound{}) {
		// user removed after login
		s.tokens.Delete(ctx, tk)
		return users.User{}, "", false
	} else if err != nil {
		log.Error().Err(err).Str("uid", uid).Msg("Unable to load user for token")
		return users.User{}, "", false
	}
	return u, tk, true
}

func tokenFromRequest(r *http.Request) string {
	if groups := bearerTokenRE.FindStringSubmatch(r.Header.Get("Authorization")); len(groups) == 2 {
		return groups[1]
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
