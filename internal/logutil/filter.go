package logutil

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const Filtered = "[FILTERED]"

// FilteredParams lists form fields that never reach the logs.
var FilteredParams = []string{"password", "password_confirmation", "token"}

// FilterParams returns a copy of values where every sensitive field is
// replaced by Filtered.
func FilterParams(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for k, v := range values {
		if isFiltered(k) {
			out[k] = []string{Filtered}
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}

func isFiltered(name string) bool {
	name = strings.ToLower(name)
	for _, f := range FilteredParams {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

// RequestLogger logs every request handled by next with the given
// logger. Query parameters are filtered before being logged.
func RequestLogger(logger zerolog.Logger, next http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", FilterParams(r.URL.Query()).Encode()).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	})
	withCtx := func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = r.WithContext(WithLogger(r.Context(), *hlog.FromRequest(r)))
			h.ServeHTTP(w, r)
		})
	}
	return hlog.NewHandler(logger)(access(withCtx(next)))
}
