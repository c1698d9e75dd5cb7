// Package main is the entry point for the boardpulse job API: the HTTP
// process exposing the trigger endpoints, the job audit listing, and the
// health probe.
//
// Startup wires config -> logger -> database pool -> repositories -> mailer
// -> job kinds -> dispatcher -> HTTP server, then serves until SIGINT/SIGTERM
// and shuts down gracefully.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"boardpulse/internal/config"
	"boardpulse/internal/core"
	"boardpulse/internal/db"
	"boardpulse/internal/jobs"
	"boardpulse/internal/mail"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("boardpulse job API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	service, jobRepo := buildJobService(cfg, pool, logger)

	srv, err := core.NewServer(cfg, service, jobRepo, pool, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.MountRoutes()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // triggers run sweeps synchronously
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down HTTP server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// buildJobService wires the repositories, the mailer, the job kinds, and the
// dispatcher into the trigger facade.
func buildJobService(cfg *config.Config, pool db.DBTX, logger *slog.Logger) (*jobs.Service, *db.JobRepository) {
	jobRepo := db.NewJobRepository(pool)
	userRepo := db.NewUserRepository(pool)
	projectRepo := db.NewProjectRepository(pool)
	activityRepo := db.NewActivityRepository(pool)
	settingRepo := db.NewNotificationSettingRepository(pool)

	mailer := mail.NewMailer(nil, cfg.Mail, cfg.Server.BaseURL, logger)

	deleteNotification := jobs.NewDeleteNotificationJob(jobRepo, userRepo, mailer, cfg.Retention, cfg.Jobs.PageSize, logger)
	deleteUserData := jobs.NewDeleteUserDataJob(jobRepo, userRepo, projectRepo, activityRepo, cfg.Retention, cfg.Jobs.PageSize, logger)
	mention := jobs.NewMentionJob(userRepo, db.NewCommentRepository(pool), settingRepo, mailer, logger)
	digest := jobs.NewDigestJob(jobRepo, userRepo, projectRepo, activityRepo, settingRepo, mailer, cfg.Jobs.DigestWindow, cfg.Jobs.PageSize, logger)

	registry := jobs.NewRegistry(deleteNotification, deleteUserData, mention, digest)
	dispatcher := jobs.NewDispatcher(jobRepo, registry, cfg.Jobs.DispatchBatchSize, logger)

	return jobs.NewService(deleteNotification, deleteUserData, digest, dispatcher, cfg.Retention.AutoDeleteAccounts, logger), jobRepo
}

// newLogger creates the process-wide structured JSON logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
