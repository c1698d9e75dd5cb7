package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"boardpulse/internal/config"
	"boardpulse/internal/types"
)

// DeleteNotificationJob owns the data-delete-notification kind: the creation
// sweep that finds users due an account-deletion warning, and the run phase
// that re-validates eligibility and sends the email.
//
// A user is due a warning when their last sign of life, the keep-alive stamp
// when present, account creation otherwise, is older than
// MaxUserAgedDays - DaysBetweenNotificationAndDelete. A warning sent in a
// previous cycle only blocks a new one while it is younger than that same
// threshold. A keep-alive stamp blocks the warning until it is older than the
// full MaxUserAgedDays horizon, the same bound that guards the deletion.
type DeleteNotificationJob struct {
	jobs      JobStore
	users     UserDirectory
	mailer    Mailer
	retention config.RetentionConfig
	pageSize  int
	logger    *slog.Logger
}

// NewDeleteNotificationJob creates the delete-notification job service.
func NewDeleteNotificationJob(jobs JobStore, users UserDirectory, mailer Mailer, retention config.RetentionConfig, pageSize int, logger *slog.Logger) *DeleteNotificationJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeleteNotificationJob{
		jobs:      jobs,
		users:     users,
		mailer:    mailer,
		retention: retention,
		pageSize:  pageSize,
		logger:    logger,
	}
}

// Type implements Kind.
func (j *DeleteNotificationJob) Type() types.JobType {
	return types.JobTypeDeleteNotification
}

// CreateJobs sweeps for users due a deletion warning and enqueues one job per
// user, keyed on the user id so concurrent sweeps collapse onto the same
// active job. Returns the ids of the jobs now in flight for the swept users.
//
// A failed insert is logged and skipped; the sweep continues so one bad row
// cannot starve the rest of the cohort.
func (j *DeleteNotificationJob) CreateJobs(ctx context.Context, now time.Time) ([]string, error) {
	cutoff := midnightUTC(now).Add(-j.retention.NotificationLead())

	var ids []string
	cur := j.users.FindNotificationDue(ctx, cutoff, j.pageSize)
	for cur.Next(ctx) {
		user := cur.Item()
		id, created, err := j.jobs.Create(ctx, types.JobTypeDeleteNotification, user.ID,
			types.UserJobData{UserID: user.ID})
		if err != nil {
			j.logger.ErrorContext(ctx, "failed to create delete-notification job",
				"user_id", user.ID,
				"error", err,
			)
			continue
		}
		ids = append(ids, id)
		if created {
			j.logger.InfoContext(ctx, "delete-notification job created",
				"job_id", id,
				"user_id", user.ID,
			)
		}
	}
	if err := cur.Err(); err != nil {
		return ids, fmt.Errorf("sweeping users due deletion warning: %w", err)
	}
	return ids, nil
}

// Run implements Kind. Eligibility is re-checked against the current user row
// so anything that happened between enqueue and execution, a keep-alive or a
// warning from another cycle, supersedes the sweep's stale verdict and cancels
// the job. A user who vanished or was deleted in the meantime finishes the job
// as a no-op.
func (j *DeleteNotificationJob) Run(ctx context.Context, job types.Job, now time.Time) (Outcome, error) {
	var data types.UserJobData
	if err := json.Unmarshal(job.Data, &data); err != nil {
		return Outcome{}, fmt.Errorf("decoding job data: %w", err)
	}

	user, err := j.users.Get(ctx, data.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading user %s: %w", data.UserID, err)
	}
	if user == nil || user.IsDeleted {
		// Nothing left to warn; the account is already where the pipeline
		// would have taken it.
		return Outcome{Result: "skipped: user no longer exists"}, nil
	}

	cutoff := midnightUTC(now).Add(-j.retention.NotificationLead())
	keepAliveOld := midnightUTC(now).Add(-j.retention.MaxUserAge())
	if reason, ok := warningIneligible(user, cutoff, keepAliveOld); !ok {
		return Outcome{Status: types.JobCancelled, Result: reason}, nil
	}

	deleteAt := now.Add(j.retention.DeleteGrace())
	if err := j.mailer.SendDeletionWarning(ctx, *user, deleteAt); err != nil {
		return Outcome{}, fmt.Errorf("sending deletion warning to user %s: %w", user.ID, err)
	}

	// Stamp hour precision; the exact minute carries no policy meaning and a
	// coarser stamp keeps window comparisons stable across retries.
	sentAt := now.UTC().Truncate(time.Hour)
	if err := j.users.SetDeletionNotified(ctx, user.ID, sentAt); err != nil {
		return Outcome{}, fmt.Errorf("stamping deletion notification for user %s: %w", user.ID, err)
	}

	return Outcome{Result: "deletion warning sent"}, nil
}

// warningIneligible reports why a user no longer qualifies for a deletion
// warning against a fresh row. The sent and creation dates are measured with
// the sweep's warning cutoff; a keep-alive blocks the warning for as long as
// it would block the deletion itself, anywhere inside the MaxUserAgedDays
// horizon (keepAliveOld).
func warningIneligible(user *types.User, cutoff, keepAliveOld time.Time) (string, bool) {
	if user.DeleteNotificationSentDate != nil && !user.DeleteNotificationSentDate.Before(cutoff) {
		return "warning already sent this cycle", false
	}
	if user.DeletePreventionDate != nil {
		if !user.DeletePreventionDate.Before(keepAliveOld) {
			return "keep-alive refreshed since sweep", false
		}
		return "", true
	}
	if !user.CreatedAt.Before(cutoff) {
		return "account too recent", false
	}
	return "", true
}
