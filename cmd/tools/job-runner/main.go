// Command job-runner runs a single trigger pass from the command line against
// the configured DATABASE_URL. Useful for local development and for poking a
// stuck queue in production without going through the HTTP surface.
//
// Usage:
//
//	job-runner -task digest
//	job-runner -task auto-delete
//	job-runner -task dispatch
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"boardpulse/internal/config"
	"boardpulse/internal/db"
	"boardpulse/internal/jobs"
	"boardpulse/internal/mail"
)

func main() {
	task := flag.String("task", "", "trigger to run: digest, auto-delete, or dispatch")
	flag.Parse()

	if err := run(*task); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(task string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	service := buildJobService(cfg, pool, logger)
	now := time.Now().UTC()

	switch task {
	case "digest":
		created, executed, err := service.TriggerDigest(ctx, now)
		if err != nil {
			return err
		}
		fmt.Printf("digest: %d jobs created, %d executed\n", created, executed)
	case "auto-delete":
		created, executed, err := service.TriggerAutoDelete(ctx, now)
		if err != nil {
			return err
		}
		fmt.Printf("auto-delete: %d jobs created, %d executed\n", created, executed)
	case "dispatch":
		executed, err := service.Dispatch(ctx, now)
		if err != nil {
			return err
		}
		fmt.Printf("dispatch: %d jobs executed\n", executed)
	default:
		return fmt.Errorf("unknown task %q (want digest, auto-delete, or dispatch)", task)
	}
	return nil
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
