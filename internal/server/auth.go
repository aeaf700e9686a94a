package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/kbqa-dev/kbqa-go/internal/logging"
)

// apiKeyHeader is the request header carrying the static API key.
const apiKeyHeader = "X-API-KEY"

// apiKeyMiddleware returns an HTTP middleware that enforces static API key
// authentication via the X-API-KEY header. If apiKey is empty the middleware
// is a no-op: auth is disabled and a warning is logged at server startup
// (not per-request).
//
// Requests missing or presenting an incorrect key receive 401 Unauthorized.
// The presented key value is never logged, only its presence or absence.
func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())

		presented := r.Header.Get(apiKeyHeader)
		if presented == "" {
			log.Warn("auth: missing X-API-KEY header",
				slog.String("path", r.URL.Path),
			)
			writeJSONError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
			log.Warn("auth: invalid API key",
				slog.String("path", r.URL.Path),
				slog.Bool("key_present", true),
			)
			writeJSONError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
