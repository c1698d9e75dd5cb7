// Package jobs implements the persisted background-job subsystem: the closed
// registry of job kinds, the creation sweeps that enqueue them, and the
// dispatch loop that claims and executes due jobs.
//
// All services in this package are stateless; every collaborator arrives
// through a constructor and every run receives its reference time as an
// argument, so a run is fully determined by its inputs.
package jobs

import (
	"context"
	"time"

	"boardpulse/internal/db"
	"boardpulse/internal/types"
)

// JobStore is the persistence seam for job records.
type JobStore interface {
	// Create inserts a PENDING job for (jobType, subject), returning the id of
	// the existing active job instead when one is already in flight.
	Create(ctx context.Context, jobType types.JobType, subject string, data any) (id string, created bool, err error)
	// ListDuePending returns up to limit PENDING jobs whose created_at has
	// passed, oldest first.
	ListDuePending(ctx context.Context, now time.Time, limit int) ([]types.Job, error)
	// Claim atomically transitions a job from PENDING to EXECUTING; false
	// means another dispatcher won.
	Claim(ctx context.Context, id string) (bool, error)
	// Finalize persists the terminal status and result of a job.
	Finalize(ctx context.Context, id string, status types.JobStatus, result string) error
	// LatestForSubject returns the newest job of a type for a subject in any
	// status, or (nil, nil) when the subject has no history.
	LatestForSubject(ctx context.Context, jobType types.JobType, subject string) (*types.Job, error)
}

// UserDirectory is the read/update seam over user accounts. The job subsystem
// consumes accounts owned by the web application; it only ever writes the
// deletion-related fields.
type UserDirectory interface {
	Get(ctx context.Context, id string) (*types.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]types.User, error)
	FindNotificationDue(ctx context.Context, cutoff time.Time, pageSize int) *db.Cursor[types.User]
	FindDeletionDue(ctx context.Context, deletionOld, notificationOld time.Time, pageSize int) *db.Cursor[types.User]
	ListActive(ctx context.Context, pageSize int) *db.Cursor[types.User]
	SetDeletionNotified(ctx context.Context, id string, sentAt time.Time) error
	MarkDeleted(ctx context.Context, id string) error
}

// ProjectDirectory is the read/delete seam over projects.
type ProjectDirectory interface {
	OwnedBy(ctx context.Context, userID string, pageSize int) *db.Cursor[types.Project]
	DeleteCascade(ctx context.Context, projectID string) error
	ForUser(ctx context.Context, userID string, projectIDs []string) ([]types.Project, error)
	IDsForUser(ctx context.Context, userID string) ([]string, error)
}

// ActivityDirectory is the read/delete seam over project activity records.
type ActivityDirectory interface {
	LatestUnseenPerProject(ctx context.Context, userID string, since time.Time, projectIDs []string) ([]types.ActivityRef, error)
	DeleteForProject(ctx context.Context, projectID string) error
}

// CommentDirectory is the read/write seam over card comments.
type CommentDirectory interface {
	Get(ctx context.Context, id string) (*types.Comment, error)
	Create(ctx context.Context, c types.Comment) (*types.Comment, error)
	UpdateText(ctx context.Context, id, text string, userIDs []string) error
}

// SettingDirectory resolves a user's notification opt-in flags. A nil setting
// means the user never opted in; callers treat that as everything off.
type SettingDirectory interface {
	Get(ctx context.Context, userID string) (*types.NotificationSetting, error)
}

// Mailer is the outbound email seam. Implementations own template rendering
// and provider transport; job kinds only decide who gets what.
type Mailer interface {
	// SendDeletionWarning warns a user their account data will be deleted at
	// deleteAt unless they come back.
	SendDeletionWarning(ctx context.Context, recipient types.User, deleteAt time.Time) error
	// SendMentionNotification tells a user they were mentioned in a comment.
	SendMentionNotification(ctx context.Context, recipient types.User, authorName string, comment types.Comment) error
	// SendActivityDigest sends the per-project unseen-activity digest, with
	// the service's own address in BCC for the support audit trail.
	SendActivityDigest(ctx context.Context, recipient types.User, entries []types.DigestEntry) error
}

// midnightUTC truncates a time to the start of its UTC day. All eligibility
// windows are computed from this reference so a sweep's verdict does not
// depend on the hour it happens to run.
func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
