package logutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFilterParams(t *testing.T) {
	in := url.Values{
		"email":                       {"bob@bob.com"},
		"password":                    {"hunter2"},
		"user[password_confirmation]": {"hunter2"},
	}
	out := FilterParams(in)
	require.Equal(t, "bob@bob.com", out.Get("email"))
	require.Equal(t, Filtered, out.Get("password"))
	require.Equal(t, Filtered, out.Get("user[password_confirmation]"))
	require.Equal(t, "hunter2", in.Get("password"), "input must not be modified")
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	var fromCtx bool
	handler := RequestLogger(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := GetOrDefault(r.Context())
		l.Info().Msg("inside handler")
		fromCtx = true
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest("GET", "/login?email=bob@bob.com&password=hunter2", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, fromCtx)
	require.Contains(t, buf.String(), "inside handler")
	require.Contains(t, buf.String(), `"status":418`)
	require.NotContains(t, buf.String(), "hunter2")
}

func TestSetupLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup("warn", false, &buf)
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")

	l = Setup("bogus", false, &buf)
	require.Equal(t, zerolog.InfoLevel, l.GetLevel())
}
