// Package main is the boardpulse sweeper: an in-process cron daemon for
// deployments without an external scheduler hitting the HTTP triggers. It
// invokes the same trigger facade as the API on the configured schedules.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"boardpulse/internal/config"
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

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("boardpulse sweeper starting",
		"environment", cfg.Environment,
		"digest_schedule", cfg.Sweeper.DigestSchedule,
		"auto_delete_schedule", cfg.Sweeper.AutoDeleteSchedule,
		"dispatch_schedule", cfg.Sweeper.DispatchSchedule,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	service := buildJobService(cfg, pool, logger)

	c := cron.New()
	if _, err := c.AddFunc(cfg.Sweeper.DigestSchedule, func() {
		runTrigger(ctx, logger, "digest", func(now time.Time) (int, int, error) {
			return service.TriggerDigest(ctx, now)
		})
	}); err != nil {
		return fmt.Errorf("registering digest schedule: %w", err)
	}
	if _, err := c.AddFunc(cfg.Sweeper.AutoDeleteSchedule, func() {
		runTrigger(ctx, logger, "auto-delete", func(now time.Time) (int, int, error) {
			return service.TriggerAutoDelete(ctx, now)
		})
	}); err != nil {
		return fmt.Errorf("registering auto-delete schedule: %w", err)
	}
	if _, err := c.AddFunc(cfg.Sweeper.DispatchSchedule, func() {
		runTrigger(ctx, logger, "dispatch", func(now time.Time) (int, int, error) {
			executed, err := service.Dispatch(ctx, now)
			return 0, executed, err
		})
	}); err != nil {
		return fmt.Errorf("registering dispatch schedule: %w", err)
	}

	c.Start()
	<-ctx.Done()

	logger.Info("shutdown signal received, waiting for running sweeps")
	<-c.Stop().Done()
	logger.Info("sweeper stopped cleanly")
	return nil
}

// runTrigger executes one trigger invocation with uniform logging. Errors are
// logged, not returned; the next scheduled run retries naturally.
func runTrigger(ctx context.Context, logger *slog.Logger, name string, fn func(now time.Time) (int, int, error)) {
	start := time.Now()
	created, executed, err := fn(start.UTC())
	if err != nil {
		logger.ErrorContext(ctx, "scheduled trigger failed",
			"trigger", name,
			"created", created,
			"executed", executed,
			"error", err,
		)
		return
	}
	logger.InfoContext(ctx, "scheduled trigger completed",
		"trigger", name,
		"created", created,
		"executed", executed,
		"duration", time.Since(start),
	)
}

func buildJobService(cfg *config.Config, pool db.DBTX, logger *slog.Logger) *jobs.Service {
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

	return jobs.NewService(deleteNotification, deleteUserData, digest, dispatcher, cfg.Retention.AutoDeleteAccounts, logger)
}
