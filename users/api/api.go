// Package api exposes signup and login over HTTP.
//
// Browsers use the HTML forms and carry a session cookie, API clients
// post JSON and send the returned token as a bearer token. Both end up in
// the same Realm.
package api

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/andrebq/rampup/internal/logutil"
	"github.com/andrebq/rampup/users"
	"github.com/julienschmidt/httprouter"
)

const (
	maxBodySize        = 64 * 1024
	invalidCredentials = "invalid email or password"
)

type (
	signupRequest struct {
		Name                 string `json:"name"`
		Email                string `json:"email"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"password_confirmation"`
	}

	loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	userResponse struct {
		User users.User `json:"user"`
	}

	sessionResponse struct {
		Token string     `json:"token"`
		User  users.User `json:"user"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

var (
	randReader io.Reader = rand.Reader
)

// AsHandler returns the router serving both the HTML pages and the JSON
// api of store.
func AsHandler(ctx context.Context, store *users.Store, realm *Realm) (http.Handler, error) {
	pages, err := newPages()
	if err != nil {
		return nil, err
	}
	router := httprouter.New()

	router.HandlerFunc("GET", "/", pages.home(realm))
	router.HandlerFunc("GET", "/signup", pages.signupForm(realm))
	router.HandlerFunc("POST", "/users", pages.signup(store, realm))
	router.HandlerFunc("GET", "/login", pages.loginForm(realm))
	router.HandlerFunc("POST", "/login", pages.login(store, realm))
	router.HandlerFunc("POST", "/logout", pages.logout(realm))

	router.HandlerFunc("POST", "/api/users", createUser(store))
	router.HandlerFunc("POST", "/api/sessions", createSession(store, realm))
	router.Handler("GET", "/api/me", realm.Protect(http.HandlerFunc(currentUser(realm))))
	router.Handler("DELETE", "/api/sessions", realm.Protect(http.HandlerFunc(deleteSession(realm))))

	return logutil.RequestLogger(logutil.GetOrDefault(ctx), router), nil
}

func createUser(store *users.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if !readJSON(w, r, &req) {
			return
		}
		u, err := store.Create(r.Context(), users.SignUp{
			Name:                 req.Name,
			Email:                req.Email,
			Password:             req.Password,
			PasswordConfirmation: req.PasswordConfirmation,
		})
		if msg, invalid := validationMessage(err); invalid {
			writeJSONError(w, http.StatusUnprocessableEntity, msg)
			return
		} else if err != nil {
			internalError(w, r, err, "Unable to create user")
			return
		}
		writeJSON(w, http.StatusCreated, userResponse{User: u})
	}
}

func createSession(store *users.Store, realm *Realm) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !readJSON(w, r, &req) {
			return
		}
		u, ok, err := store.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			internalError(w, r, err, "Unable to authenticate user")
			return
		} else if !ok {
			writeJSONError(w, http.StatusUnauthorized, invalidCredentials)
			return
		}
		token, err := realm.Login(r.Context(), u)
		if err != nil {
			internalError(w, r, err, "Unable to start session")
			return
		}
		writeJSON(w, http.StatusCreated, sessionResponse{Token: token, User: u})
	}
}

func currentUser(realm *Realm) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := realm.CurrentUser(r)
		writeJSON(w, http.StatusOK, userResponse{User: u})
	}
}

func deleteSession(realm *Realm) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := realm.Logout(r); err != nil {
			internalError(w, r, err, "Unable to end session")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// validationMessage returns a message safe to show to the user when err
// was caused by invalid input.
func validationMessage(err error) (string, bool) {
	var missing users.MissingField
	var taken users.EmailTaken
	switch {
	case err == nil:
		return "", false
	case errors.As(err, &missing), errors.As(err, &taken), errors.Is(err, users.PasswordMismatch{}):
		return err.Error(), true
	}
	return "", false
}

func readJSON(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log := logutil.GetOrDefault(r.Context())
	log.Error().Err(err).Msg(msg)
	writeJSONError(w, http.StatusInternalServerError, "server is mis-behaving, check logs for more information")
}
