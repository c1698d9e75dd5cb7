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

// DeleteUserDataJob owns the user-data-delete kind: the creation sweep over
// users whose warning grace window has elapsed, and the run phase that
// cascades the deletion of everything they created.
//
// Eligibility keys on the warning date falling strictly inside
// (now - MaxUserAgedDays, now - DaysBetweenNotificationAndDelete): old enough
// that the grace period has passed, young enough that it belongs to the
// current cycle and not a long-expired one.
type DeleteUserDataJob struct {
	jobs       JobStore
	users      UserDirectory
	projects   ProjectDirectory
	activities ActivityDirectory
	retention  config.RetentionConfig
	pageSize   int
	logger     *slog.Logger
}

// NewDeleteUserDataJob creates the delete-user-data job service.
func NewDeleteUserDataJob(jobs JobStore, users UserDirectory, projects ProjectDirectory, activities ActivityDirectory, retention config.RetentionConfig, pageSize int, logger *slog.Logger) *DeleteUserDataJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeleteUserDataJob{
		jobs:       jobs,
		users:      users,
		projects:   projects,
		activities: activities,
		retention:  retention,
		pageSize:   pageSize,
		logger:     logger,
	}
}

// Type implements Kind.
func (j *DeleteUserDataJob) Type() types.JobType {
	return types.JobTypeDeleteUserData
}

// deletionWindow computes the strict eligibility bounds for the reference
// time: the warning date must satisfy deletionOld < sent < notificationOld.
func (j *DeleteUserDataJob) deletionWindow(now time.Time) (deletionOld, notificationOld time.Time) {
	ref := midnightUTC(now)
	return ref.Add(-j.retention.MaxUserAge()), ref.Add(-j.retention.DeleteGrace())
}

// CreateJobs sweeps for users whose grace window has elapsed and enqueues one
// deletion job per user. Returns the ids of the jobs now in flight.
func (j *DeleteUserDataJob) CreateJobs(ctx context.Context, now time.Time) ([]string, error) {
	deletionOld, notificationOld := j.deletionWindow(now)

	var ids []string
	cur := j.users.FindDeletionDue(ctx, deletionOld, notificationOld, j.pageSize)
	for cur.Next(ctx) {
		user := cur.Item()
		id, created, err := j.jobs.Create(ctx, types.JobTypeDeleteUserData, user.ID,
			types.UserJobData{UserID: user.ID})
		if err != nil {
			j.logger.ErrorContext(ctx, "failed to create delete-user-data job",
				"user_id", user.ID,
				"error", err,
			)
			continue
		}
		ids = append(ids, id)
		if created {
			j.logger.InfoContext(ctx, "delete-user-data job created",
				"job_id", id,
				"user_id", user.ID,
			)
		}
	}
	if err := cur.Err(); err != nil {
		return ids, fmt.Errorf("sweeping users due deletion: %w", err)
	}
	return ids, nil
}

// Run implements Kind. After re-validating eligibility against the current
// user row it deletes the user's owned projects one by one, activities first,
// then the project with its cards and columns, and finally marks the user
// deleted. Every step is idempotent, so a crash mid-cascade is repaired by
// the next cycle re-running the remainder.
func (j *DeleteUserDataJob) Run(ctx context.Context, job types.Job, now time.Time) (Outcome, error) {
	var data types.UserJobData
	if err := json.Unmarshal(job.Data, &data); err != nil {
		return Outcome{}, fmt.Errorf("decoding job data: %w", err)
	}

	user, err := j.users.Get(ctx, data.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading user %s: %w", data.UserID, err)
	}
	if user == nil || user.IsDeleted {
		return Outcome{Status: types.JobCancelled, Result: "user no longer exists"}, nil
	}

	deletionOld, notificationOld := j.deletionWindow(now)
	if reason, ok := deletionIneligible(user, deletionOld, notificationOld); !ok {
		return Outcome{Status: types.JobCancelled, Result: reason}, nil
	}

	deleted := 0
	cur := j.projects.OwnedBy(ctx, user.ID, j.pageSize)
	for cur.Next(ctx) {
		project := cur.Item()
		if err := j.activities.DeleteForProject(ctx, project.ID); err != nil {
			return Outcome{}, fmt.Errorf("deleting activities of project %s: %w", project.ID, err)
		}
		if err := j.projects.DeleteCascade(ctx, project.ID); err != nil {
			return Outcome{}, fmt.Errorf("deleting project %s: %w", project.ID, err)
		}
		deleted++
		j.logger.InfoContext(ctx, "project deleted",
			"project_id", project.ID,
			"user_id", user.ID,
		)
	}
	if err := cur.Err(); err != nil {
		return Outcome{}, fmt.Errorf("walking projects of user %s: %w", user.ID, err)
	}

	if err := j.users.MarkDeleted(ctx, user.ID); err != nil {
		return Outcome{}, fmt.Errorf("marking user %s deleted: %w", user.ID, err)
	}

	return Outcome{Result: fmt.Sprintf("deleted user data, %d projects removed", deleted)}, nil
}

// deletionIneligible reports why a user no longer qualifies for deletion,
// mirroring the sweep's strict window against a fresh row.
func deletionIneligible(user *types.User, deletionOld, notificationOld time.Time) (string, bool) {
	if user.DeleteNotificationSentDate == nil {
		return "no deletion warning on record", false
	}
	sent := *user.DeleteNotificationSentDate
	if !sent.After(deletionOld) || !sent.Before(notificationOld) {
		return "warning date outside the deletion window", false
	}
	if user.DeletePreventionDate != nil && !user.DeletePreventionDate.Before(deletionOld) {
		return "keep-alive refreshed since warning", false
	}
	return "", true
}
