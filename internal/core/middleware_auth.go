package core

import (
	"crypto/subtle"
	"net/http"

	"boardpulse/internal/types"
)

// apiKeyHeader carries the shared secret guarding the /v1 surface. The
// callers are the platform's scheduler and operators, not browsers, so a
// single static key is the whole auth model.
const apiKeyHeader = "X-Api-Key"

// APIKeyMiddleware rejects requests whose X-Api-Key header does not match the
// configured key. The comparison is constant-time so response latency leaks
// nothing about key prefixes.
func (s *Server) APIKeyMiddleware(next http.Handler) http.Handler {
	expected := []byte(s.Config.Server.APIKey.Unmask())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get(apiKeyHeader)
		if provided == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthKeyMissing, "API key is required", nil))
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			s.Logger.WarnContext(r.Context(), "rejected request with invalid API key",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			Error(w, r, types.NewAppError(types.ErrCodeAuthKeyInvalid, "invalid API key", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}
