package core

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5"

	"boardpulse/internal/types"
)

// MountRoutes registers the global middleware chain and all endpoints.
//
// Ordering: Recoverer outermost so panics anywhere in the chain are caught;
// RequestID before the logger so every log line carries the correlation id;
// API-key auth only inside /v1 so the health probe stays public.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Get("/health", s.HandleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.APIKeyMiddleware)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/digest", s.HandleTriggerDigest)
			r.Post("/auto-delete", s.HandleTriggerAutoDelete)
			r.Post("/dispatch", s.HandleDispatch)

			r.Get("/", s.HandleListJobs)
			r.Get("/{jobID}", s.HandleGetJob)
		})
	})
}

// RequestIDMiddleware generates or propagates a request ID for correlation
// across logs. An incoming X-Request-Id header is reused; otherwise a random
// id is generated. The id is stored in the context and echoed back in the
// response header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID produces 16 random bytes as 32 hex characters.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-request-id"
	}
	return hex.EncodeToString(b)
}
