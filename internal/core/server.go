// Package core provides the HTTP chassis for the boardpulse job service: a
// chi router carrying the trigger endpoints, the job audit listing, and the
// health probe, with cross-cutting concerns (panic recovery, request
// correlation, structured logging, API-key auth) enforced before requests
// reach handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"boardpulse/internal/config"
	"boardpulse/internal/db"
	"boardpulse/internal/types"
)

// TriggerService is the job facade the trigger endpoints call into.
// Implemented by jobs.Service.
type TriggerService interface {
	TriggerDigest(ctx context.Context, now time.Time) (created, executed int, err error)
	TriggerAutoDelete(ctx context.Context, now time.Time) (created, executed int, err error)
	Dispatch(ctx context.Context, now time.Time) (executed int, err error)
}

// JobFinder serves the read-only audit surface over the jobs table.
// Implemented by db.JobRepository.
type JobFinder interface {
	Get(ctx context.Context, id string) (*types.Job, error)
	List(ctx context.Context, filter db.JobFilter) (types.ListResponse[types.Job], error)
}

// Pinger reports database reachability for the health probe. Implemented by
// pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server bundles the dependencies of the HTTP surface so tests can inject
// fakes per collaborator.
type Server struct {
	Config   *config.Config
	Triggers TriggerService
	Jobs     JobFinder
	DB       Pinger
	Logger   *slog.Logger

	// now is the reference clock handed to triggers; overridable in tests.
	now func() time.Time

	router *chi.Mux
}

// NewServer validates the critical dependencies and prepares the router. The
// caller mounts routes via MountRoutes after construction.
func NewServer(cfg *config.Config, triggers TriggerService, jobs JobFinder, dbPinger Pinger, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if triggers == nil {
		return nil, fmt.Errorf("trigger service must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		Config:   cfg,
		Triggers: triggers,
		Jobs:     jobs,
		DB:       dbPinger,
		Logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		router:   chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
